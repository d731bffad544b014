// Package config loads runtime configuration for the node core and its
// supporting services from the environment, with an optional YAML file
// for the matching/policy knobs that are awkward to express as a flat
// env var.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"rackd/internal/hwinfo"
	"rackd/internal/node"
)

// Config holds runtime configuration for the rackd daemon.
type Config struct {
	Addr         string `env:"ADDR,default=:8080"`
	DBDSN        string `env:"DB_DSN,required"`
	NATSURL      string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	NATSSubject  string `env:"NATS_SUBJECT_PREFIX,default=rackd.signals"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	AgeSecretKey string `env:"AGE_SECRET_KEY"`
	AgePublicKey string `env:"AGE_PUBLIC_KEY"`

	OutboxPollInterval  string `env:"OUTBOX_POLL_INTERVAL,default=2s"`
	OutboxBatchSize     int    `env:"OUTBOX_BATCH_SIZE,default=100"`
	PowerReconcileEvery string `env:"POWER_RECONCILE_INTERVAL,default=30s"`

	// MatchingFile points at an optional YAML file carrying the node
	// matching policy (match_nodes_on, match_nodes_on_facts,
	// facts.blacklist, protect_new_nodes, hw_info_keys). When unset,
	// the compiled-in defaults from internal/hwinfo apply.
	MatchingFile string `env:"MATCHING_CONFIG_FILE"`
}

// matchingFile is the YAML shape of MatchingFile.
type matchingFile struct {
	MatchNodesOn      []string `yaml:"match_nodes_on"`
	MatchNodesOnFacts []string `yaml:"match_nodes_on_facts"`
	Facts             struct {
		Blacklist []string `yaml:"blacklist"`
	} `yaml:"facts"`
	ProtectNewNodes bool     `yaml:"protect_new_nodes"`
	HwInfoKeys      []string `yaml:"hw_info_keys"`
}

// Load reads Config from the environment.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NodeConfig builds the node.Config the matching/lifecycle core runs
// against, applying cfg.MatchingFile over the compiled-in defaults when
// present.
func (cfg Config) NodeConfig() (node.Config, error) {
	out := node.Config{
		MatchNodesOn:      []string{"mac", "uuid", "serial", "asset"},
		MatchNodesOnFacts: nil,
		FactsBlacklist:    nil,
		ProtectNewNodes:   false,
		HwInfoKeys:        cloneKeySet(hwinfo.Keys),
	}

	if cfg.MatchingFile == "" {
		return out, nil
	}

	data, err := os.ReadFile(cfg.MatchingFile)
	if err != nil {
		return node.Config{}, fmt.Errorf("config: read matching file: %w", err)
	}

	var mf matchingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return node.Config{}, fmt.Errorf("config: parse matching file: %w", err)
	}

	if len(mf.MatchNodesOn) > 0 {
		out.MatchNodesOn = mf.MatchNodesOn
	}
	out.MatchNodesOnFacts = mf.MatchNodesOnFacts
	out.FactsBlacklist = mf.Facts.Blacklist
	out.ProtectNewNodes = mf.ProtectNewNodes
	if len(mf.HwInfoKeys) > 0 {
		keys := make(map[string]bool, len(mf.HwInfoKeys))
		for _, k := range mf.HwInfoKeys {
			keys[k] = true
		}
		out.HwInfoKeys = keys
	}

	return out, nil
}

func cloneKeySet(src map[string]bool) map[string]bool {
	out := make(map[string]bool, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
