package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/hashing"
	"cdnrouter/internal/ring"
)

func TestParseNodes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Node
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  []Node{},
		},
		{
			name:  "single node default weight",
			input: "edge-1=10.0.0.1:80",
			want: []Node{
				{ID: "edge-1", Addr: "10.0.0.1:80", Weight: DefaultWeight},
			},
		},
		{
			name:  "multiple nodes with weights",
			input: "edge-1=10.0.0.1:80@50,edge-2=10.0.0.2:80@150.5,edge-3=10.0.0.3:80",
			want: []Node{
				{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 50},
				{ID: "edge-2", Addr: "10.0.0.2:80", Weight: 150.5},
				{ID: "edge-3", Addr: "10.0.0.3:80", Weight: DefaultWeight},
			},
		},
		{
			name:  "with spaces",
			input: "edge-1 = 10.0.0.1:80 @ 10 , edge-2 = 10.0.0.2:80",
			want: []Node{
				{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 10},
				{ID: "edge-2", Addr: "10.0.0.2:80", Weight: DefaultWeight},
			},
		},
		{
			name:    "invalid format - no equals",
			input:   "edge-1:10.0.0.1:80",
			wantErr: true,
		},
		{
			name:    "invalid format - empty ID",
			input:   "=10.0.0.1:80",
			wantErr: true,
		},
		{
			name:    "invalid format - empty addr",
			input:   "edge-1=@10",
			wantErr: true,
		},
		{
			name:    "invalid weight",
			input:   "edge-1=10.0.0.1:80@heavy",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseNodes() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if len(got) != len(tt.want) {
					t.Errorf("ParseNodes() length = %d, want %d", len(got), len(tt.want))
					return
				}
				for i := range got {
					if got[i] != tt.want[i] {
						t.Errorf("ParseNodes()[%d] = %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
		})
	}
}

const sampleYAML = `
listen_addr: 0.0.0.0:50061
hash_function: murmur3
points_per_weight: 4
dispersion:
  limit: 2
  shuffled: true
nodes:
  - id: edge-1
    addr: 10.0.0.1:80
    weight: 100
  - id: edge-2
    addr: 10.0.0.2:80
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdnrouter.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:50061" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.MetricsAddr != DefaultMetricsAddr {
		t.Errorf("MetricsAddr = %s, want default", cfg.MetricsAddr)
	}
	if cfg.Dispersion != (dispersion.Dispersion{Limit: 2, Shuffled: true}) {
		t.Errorf("Dispersion = %+v", cfg.Dispersion)
	}
	if len(cfg.Nodes) != 2 || cfg.Nodes[1].Weight != DefaultWeight {
		t.Errorf("Nodes = %+v", cfg.Nodes)
	}

	h, err := cfg.Hasher()
	if err != nil {
		t.Fatalf("Hasher() error = %v", err)
	}
	if h.PointsPerWeight() != 4 {
		t.Errorf("PointsPerWeight = %v, want 4", h.PointsPerWeight())
	}
	n, err := h.NewHashable("edge-1", 100)
	if err != nil {
		t.Fatalf("NewHashable: %v", err)
	}
	if len(n.Points()) != 400 {
		t.Errorf("Expected 400 points, got %d", len(n.Points()))
	}
	want := ring.GeneratePoints(hashing.Murmur3{}, "edge-1", 400)
	if n.Points()[0] != want[0] {
		t.Error("Configured hash function was not applied")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := Parse([]byte("nodes: [unterminated")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = "no-port"
	cfg.HashFunction = "sha512"
	cfg.Dispersion.Limit = -1
	cfg.Nodes = []Node{
		{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 10},
		{ID: "edge-1", Addr: "10.0.0.2:80", Weight: 10},
		{ID: "edge-3", Addr: "", Weight: -5},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	var invalid *ring.InvalidWeightError
	if !errors.As(err, &invalid) || invalid.ID != "edge-3" {
		t.Errorf("Expected InvalidWeightError for edge-3, got %v", err)
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfig_BuildMembers(t *testing.T) {
	cfg := Default()
	cfg.Nodes = []Node{
		{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 10},
		{ID: "edge-2", Addr: "10.0.0.2:80", Weight: 30},
	}

	members := cfg.BuildMembers()
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
	if members[1].ID != "edge-2" || members[1].Addr != "10.0.0.2:80" || members[1].Weight != 30 {
		t.Errorf("Unexpected member %+v", members[1])
	}
}

func TestParse_ExplicitZeroWeightRejected(t *testing.T) {
	cfg, err := Parse([]byte("nodes:\n  - {id: edge-1, addr: 10.0.0.1:80, weight: 0}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Nodes[0].Weight != 0 {
		t.Fatalf("Explicit weight should be kept, got %v", cfg.Nodes[0].Weight)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for zero weight")
	}
}

func TestConfig_ValidatePointCap(t *testing.T) {
	cfg := Default()
	cfg.PointsPerWeight = 10
	cfg.MaxPointsPerNode = 1000
	cfg.Nodes = []Node{
		{ID: "edge-1", Addr: "10.0.0.1:80", Weight: 100},
		{ID: "edge-2", Addr: "10.0.0.2:80", Weight: 101},
	}

	err := cfg.Validate()
	var invalid *ring.InvalidWeightError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidWeightError, got %v", err)
	}
	if invalid.ID != "edge-2" || invalid.MaxPoints != 1000 {
		t.Errorf("Unexpected error %+v", invalid)
	}

	cfg.Nodes = cfg.Nodes[:1]
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	h, err := cfg.Hasher()
	if err != nil {
		t.Fatalf("Hasher() error = %v", err)
	}
	if h.MaxPointsPerNode() != 1000 {
		t.Errorf("MaxPointsPerNode = %d, want 1000", h.MaxPointsPerNode())
	}
	if _, err := h.NewHashable("edge-2", 101); err == nil {
		t.Error("Expected the configured cap to apply to new nodes")
	}
}
