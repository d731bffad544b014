package node

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Logger implements C7: the append-only structured event log per node.
type Logger struct {
	Store  Store
	Output *log.Logger
}

// NewLogger constructs a Logger over the given store, writing a line to
// output for every appended entry.
func NewLogger(store Store, output *log.Logger) *Logger {
	return &Logger{Store: store, Output: output}
}

// Append sets severity to "info" if absent, round-trips entry through a
// JSON encode/decode so every key becomes a string, writes a line to the
// external logger tagged with the node's name, and persists the entry
// with the supplied timestamp or a store-assigned default.
func (l *Logger) Append(ctx context.Context, n *Node, entry map[string]any, timestamp *time.Time) error {
	if _, ok := entry["severity"]; !ok {
		entry["severity"] = "info"
	}

	roundTripped, err := roundTripJSON(entry)
	if err != nil {
		return err
	}

	severity, _ := roundTripped["severity"].(string)

	record := &NodeLogEntry{
		NodeID:   n.ID,
		Severity: severity,
		Payload:  roundTripped,
	}
	if timestamp != nil {
		record.Timestamp = *timestamp
	}

	if l.Output != nil {
		l.Output.Printf("node=%s %v", n.Name, roundTripped)
	}

	return l.Store.AppendLog(ctx, record)
}

// Log returns every entry for n ordered by ascending timestamp, each
// merged with an ISO8601 timestamp field.
func (l *Logger) Log(ctx context.Context, n *Node) ([]map[string]any, error) {
	entries, err := l.Store.Log(ctx, n.ID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		merged := make(map[string]any, len(e.Payload)+1)
		for k, v := range e.Payload {
			merged[k] = v
		}
		merged["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339)
		out = append(out, merged)
	}
	return out, nil
}

// roundTripJSON encodes and then decodes v so every key becomes a plain
// string and every value is a JSON-native type, matching what will be
// read back after persistence.
func roundTripJSON(v map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportLog writes every log entry for n as newline-delimited JSON,
// zstd-compressed, to w. Intended for operator-triggered archival of a
// node's history, not for installer bundle packaging.
func (l *Logger) ExportLog(ctx context.Context, n *Node, w *bytes.Buffer) error {
	entries, err := l.Log(ctx, n)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	defer zw.Close()

	enc := json.NewEncoder(zw)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return zw.Close()
}
