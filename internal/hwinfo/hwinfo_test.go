package hwinfo

import (
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    []string
		wantErr bool
	}{
		{
			name:  "net0 collapses to mac",
			input: map[string]any{"net0": "AA:BB:CC:DD:EE:01"},
			want:  []string{"mac=aa-bb-cc-dd-ee-01"},
		},
		{
			name:  "net1 collapses to mac identically",
			input: map[string]any{"net1": "AA:BB:CC:DD:EE:01"},
			want:  []string{"mac=aa-bb-cc-dd-ee-01"},
		},
		{
			name:  "bare mac key",
			input: map[string]any{"mac": "AA:BB:CC:DD:EE:01"},
			want:  []string{"mac=aa-bb-cc-dd-ee-01"},
		},
		{
			name:  "facts survive alongside mac",
			input: map[string]any{"mac": "M", "facts": map[string]any{"k": "v"}},
			want:  []string{"fact_k=v", "mac=m"},
		},
		{
			name:  "unknown key dropped",
			input: map[string]any{"mac": "AA:BB", "widget": "x"},
			want:  []string{"mac=aa-bb"},
		},
		{
			name:  "empty value dropped",
			input: map[string]any{"mac": "AA:BB", "uuid": ""},
			want:  []string{"mac=aa-bb"},
		},
		{
			name:  "fact keys always accepted",
			input: map[string]any{"facts": map[string]any{"serial_number": "S9"}},
			want:  []string{"fact_serial_number=s9"},
		},
		{
			name: "scenario 6: two nets become two mac entries",
			input: map[string]any{
				"net0": "AA:BB:CC:DD:EE:03",
				"net1": "AA:BB:CC:DD:EE:04",
			},
			want: []string{"mac=aa-bb-cc-dd-ee-03", "mac=aa-bb-cc-dd-ee-04"},
		},
		{
			name:    "facts not a mapping",
			input:   map[string]any{"facts": "oops"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Canonicalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Canonicalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	input := map[string]any{
		"mac":   []any{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"},
		"uuid":  "U-1",
		"facts": map[string]any{"serial_number": "S9"},
	}

	first, err := Canonicalize(input)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}

	// mac repeats, so its values are collected into a list; a plain map
	// keyed by bare key would keep only the last one.
	reparsed := make(map[string]any, len(first))
	var macs []any
	for _, entry := range first {
		if Key(entry) == "mac" {
			macs = append(macs, Value(entry))
			continue
		}
		reparsed[Key(entry)] = Value(entry)
	}
	if macs != nil {
		reparsed["mac"] = macs
	}

	second, err := Canonicalize(reparsed)
	if err != nil {
		t.Fatalf("Canonicalize() on reparsed input error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("canonical form not idempotent: first=%v second=%v", first, second)
	}
}

func TestCanonicalizeOrderIndependence(t *testing.T) {
	a := map[string]any{
		"mac":  []any{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02"},
		"uuid": "U-1",
	}
	b := map[string]any{
		"uuid": "U-1",
		"mac":  []any{"AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:01"},
	}

	got1, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize(a) error = %v", err)
	}
	got2, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("Canonicalize(b) error = %v", err)
	}
	if !reflect.DeepEqual(got1, got2) {
		t.Fatalf("order dependence detected: %v != %v", got1, got2)
	}
}

func TestCanonicalizeWithKeysOverride(t *testing.T) {
	keys := map[string]bool{"asset": true}
	input := map[string]any{"asset": "A1", "uuid": "U-1"}

	got, err := CanonicalizeWithKeys(input, keys)
	if err != nil {
		t.Fatalf("CanonicalizeWithKeys() error = %v", err)
	}
	want := []string{"asset=a1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CanonicalizeWithKeys() = %v, want %v", got, want)
	}
}
