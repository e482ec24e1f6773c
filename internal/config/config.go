package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/hashing"
	"cdnrouter/internal/pool"
	"cdnrouter/internal/ring"
)

const (
	DefaultListenAddr  = "127.0.0.1:50061"
	DefaultMetricsAddr = "127.0.0.1:9161"
	// DefaultWeight applies to nodes given without an explicit weight.
	DefaultWeight = 100
)

// Node is a configured delivery node.
type Node struct {
	ID     string  `yaml:"id"`
	Addr   string  `yaml:"addr"`
	Weight float64 `yaml:"weight"`
}

// UnmarshalYAML applies DefaultWeight when the weight key is absent.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	type plain Node
	p := plain{Weight: DefaultWeight}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	return nil
}

// Config holds the router configuration.
type Config struct {
	ListenAddr       string                `yaml:"listen_addr"`
	MetricsAddr      string                `yaml:"metrics_addr"`
	HashFunction     string                `yaml:"hash_function"`
	PointsPerWeight  float64               `yaml:"points_per_weight"`
	MaxPointsPerNode int                   `yaml:"max_points_per_node"`
	Dispersion       dispersion.Dispersion `yaml:"dispersion"`
	Nodes            []Node                `yaml:"nodes"`
}

// Default returns a configuration with every default applied and no nodes.
func Default() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		MetricsAddr:      DefaultMetricsAddr,
		HashFunction:     "md5",
		PointsPerWeight:  ring.DefaultPointsPerWeight,
		MaxPointsPerNode: ring.DefaultMaxPointsPerNode,
		Dispersion:       dispersion.Default(),
		Nodes:            []Node{},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ParseNodes parses a comma-separated list of nodes in the format:
// "id1=addr1@weight1,id2=addr2,id3=addr3@weight3"
// A missing weight means DefaultWeight.
func ParseNodes(nodesStr string) ([]Node, error) {
	if nodesStr == "" {
		return []Node{}, nil
	}

	parts := strings.Split(nodesStr, ",")
	nodes := make([]Node, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid node format: %s (expected id=addr[@weight])", part)
		}

		id := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])
		weight := float64(DefaultWeight)

		if at := strings.LastIndex(addr, "@"); at >= 0 {
			w, err := strconv.ParseFloat(strings.TrimSpace(addr[at+1:]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid weight in %s: %w", part, err)
			}
			weight = w
			addr = strings.TrimSpace(addr[:at])
		}

		if id == "" || addr == "" {
			return nil, fmt.Errorf("node ID and address cannot be empty: %s", part)
		}

		nodes = append(nodes, Node{
			ID:     id,
			Addr:   addr,
			Weight: weight,
		})
	}

	return nodes, nil
}

// Validate checks the configuration for errors that would otherwise only
// surface when the pool is built.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen_addr: %w", err))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("metrics_addr: %w", err))
		}
	}
	if _, err := hashing.ByName(c.HashFunction); err != nil {
		errs = append(errs, fmt.Errorf("hash_function: %w", err))
	}
	if c.PointsPerWeight < 0 {
		errs = append(errs, fmt.Errorf("points_per_weight must not be negative, got %v", c.PointsPerWeight))
	}
	if c.MaxPointsPerNode < 0 {
		errs = append(errs, fmt.Errorf("max_points_per_node must not be negative, got %d", c.MaxPointsPerNode))
	}
	if c.Dispersion.Limit < 0 {
		errs = append(errs, fmt.Errorf("dispersion.limit must not be negative, got %d", c.Dispersion.Limit))
	}

	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("nodes[%d]: id cannot be empty", i))
			continue
		}
		if seen[n.ID] {
			errs = append(errs, fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID))
		}
		seen[n.ID] = true
		if n.Addr == "" {
			errs = append(errs, fmt.Errorf("nodes[%d] %s: addr cannot be empty", i, n.ID))
		}
		if !(n.Weight > 0) || math.IsInf(n.Weight, 0) {
			errs = append(errs, &ring.InvalidWeightError{ID: n.ID, Weight: n.Weight})
		} else if limit := c.maxPoints(); ring.PointCount(n.Weight, c.PointsPerWeight) > limit {
			errs = append(errs, &ring.InvalidWeightError{ID: n.ID, Weight: n.Weight, MaxPoints: limit})
		}
	}

	return errors.Join(errs...)
}

func (c *Config) maxPoints() int {
	if c.MaxPointsPerNode > 0 {
		return c.MaxPointsPerNode
	}
	return ring.DefaultMaxPointsPerNode
}

// Hasher builds a ring.Hasher from the hash function, ratio and point cap settings.
func (c *Config) Hasher(opts ...ring.Option) (*ring.Hasher, error) {
	fn, err := hashing.ByName(c.HashFunction)
	if err != nil {
		return nil, err
	}
	base := []ring.Option{
		ring.WithHashFunction(fn),
		ring.WithPointsPerWeight(c.PointsPerWeight),
		ring.WithMaxPointsPerNode(c.MaxPointsPerNode),
	}
	return ring.NewHasher(append(base, opts...)...), nil
}

// BuildMembers converts the configured nodes into pool members.
func (c *Config) BuildMembers() []pool.Member {
	members := make([]pool.Member, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		members = append(members, pool.Member{
			ID:     n.ID,
			Addr:   n.Addr,
			Weight: n.Weight,
		})
	}
	return members
}
