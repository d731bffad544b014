package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rackctl",
		Short:         "Operator CLI for the rackd node core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("api", "http://127.0.0.1:8080", "Base URL of the rackd admin API")

	cmd.AddCommand(newNodeCommand())
	return cmd
}

func newNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Node identity, checkin, and lifecycle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newNodeLookupCommand())
	cmd.AddCommand(newNodeCheckinCommand())
	cmd.AddCommand(newNodeStageDoneCommand())
	cmd.AddCommand(newNodeModifyMetadataCommand())
	cmd.AddCommand(newNodeSearchCommand())
	return cmd
}

func newNodeLookupCommand() *cobra.Command {
	var (
		hwInfo []string
		facts  []string
	)

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Resolve a hardware descriptor or fact snapshot to a node, creating one if none matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			payload := map[string]any{}
			if len(hwInfo) > 0 {
				payload["hw_info"] = pairsToMap(hwInfo)
			}
			if len(facts) > 0 {
				payload["facts"] = pairsToMap(facts)
			}
			return client.postPrint("/v1/nodes/lookup", payload)
		},
	}

	cmd.Flags().StringArrayVar(&hwInfo, "hw-info", nil, "key=value hardware descriptor entry, repeatable")
	cmd.Flags().StringArrayVar(&facts, "fact", nil, "key=value fact entry, repeatable")
	return cmd
}

func newNodeCheckinCommand() *cobra.Command {
	var (
		nodeID string
		facts  []string
	)

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Submit a fact report for an already-resolved node",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			payload := map[string]any{
				"node_id": nodeID,
				"facts":   pairsToMap(facts),
			}
			return client.postPrint("/v1/nodes/checkin", payload)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node-id", "", "Node id")
	cmd.Flags().StringArrayVar(&facts, "fact", nil, "key=value fact entry, repeatable")
	_ = cmd.MarkFlagRequired("node-id")
	return cmd
}

func newNodeStageDoneCommand() *cobra.Command {
	var (
		nodeID string
		stage  string
	)

	cmd := &cobra.Command{
		Use:   "stage-done",
		Short: "Record completion of a provisioning stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			payload := map[string]any{"node_id": nodeID, "stage": stage}
			return client.postPrint("/v1/nodes/stage_done", payload)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node-id", "", "Node id")
	cmd.Flags().StringVar(&stage, "stage", "", "Stage name (e.g. finished)")
	_ = cmd.MarkFlagRequired("node-id")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newNodeModifyMetadataCommand() *cobra.Command {
	var (
		nodeID    string
		update    []string
		noReplace bool
		clear     bool
	)

	cmd := &cobra.Command{
		Use:   "modify-metadata",
		Short: "Modify a node's operator metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			payload := map[string]any{
				"node_id":    nodeID,
				"no_replace": noReplace,
				"clear":      clear,
			}
			if len(update) > 0 {
				payload["update"] = pairsToMap(update)
			}
			return client.postPrint("/v1/nodes/modify_metadata", payload)
		},
	}

	cmd.Flags().StringVar(&nodeID, "node-id", "", "Node id")
	cmd.Flags().StringArrayVar(&update, "set", nil, "key=value metadata entry, repeatable")
	cmd.Flags().BoolVar(&noReplace, "no-replace", false, "Preserve existing keys instead of overwriting them")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear all metadata before applying --set entries")
	_ = cmd.MarkFlagRequired("node-id")
	return cmd
}

func newNodeSearchCommand() *cobra.Command {
	var (
		hostname string
		hwInfo   []string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search nodes by hostname pattern and hw_info entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			query := map[string]string{}
			if hostname != "" {
				query["hostname"] = hostname
			}
			for k, v := range pairsToMap(hwInfo) {
				query["hw_info."+k] = fmt.Sprint(v)
			}
			return client.getPrint("/v1/nodes/search", query)
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "Hostname regex (falls back to literal substring)")
	cmd.Flags().StringArrayVar(&hwInfo, "hw-info", nil, "key=value hw_info filter, repeatable, ANDed")
	return cmd
}
