package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sambigeara/lwwdict/pkg/crdt"
)

const (
	configFileName        = "config.yaml"
	DefaultPort           = 60711
	DefaultGossipInterval = 5 * time.Second
	directoryPerm         = 0o700
	configFilePerm        = 0o600
)

const (
	ClockWall    = "wall"
	ClockLogical = "logical"
)

type Config struct {
	ReplicaID      string        `yaml:"replicaID"`
	Bias           string        `yaml:"bias,omitempty"`
	Clock          string        `yaml:"clock,omitempty"`
	Peers          []string      `yaml:"peers,omitempty"`
	GossipInterval time.Duration `yaml:"gossipInterval,omitempty"`
	Port           int           `yaml:"port,omitempty"`
}

// New returns a config for a fresh replica with a random identifier.
func New() *Config {
	cfg := &Config{ReplicaID: uuid.NewString()}
	cfg.applyDefaults()
	return cfg
}

func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, configFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.applyDefaults()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(dir string, cfg *Config) error {
	if cfg == nil {
		cfg = New()
	}
	cfg.applyDefaults()

	if err := cfg.normalize(); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, directoryPerm); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	encoded, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := renameio.WriteFile(filepath.Join(dir, configFileName), encoded, configFilePerm); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Exists reports whether dir already holds a config file.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, configFileName))
	return err == nil
}

func (c *Config) applyDefaults() {
	if c.Bias == "" {
		c.Bias = crdt.BiasAdd.String()
	}
	if c.Clock == "" {
		c.Clock = ClockWall
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.GossipInterval == 0 {
		c.GossipInterval = DefaultGossipInterval
	}
}

func (c *Config) normalize() error {
	if _, err := ParseBias(c.Bias); err != nil {
		return err
	}
	if c.Clock != ClockWall && c.Clock != ClockLogical {
		return fmt.Errorf("clock must be %q or %q, got %q", ClockWall, ClockLogical, c.Clock)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.GossipInterval < 0 {
		return errors.New("gossipInterval must be > 0")
	}

	peers, err := normalizePeers(c.Peers)
	if err != nil {
		return err
	}
	c.Peers = peers
	return nil
}

// BiasValue returns the parsed tie-break policy.
func (c *Config) BiasValue() crdt.Bias {
	b, _ := ParseBias(c.Bias)
	return b
}

// NewClock returns the clock selected by the config.
func (c *Config) NewClock() crdt.Clock {
	if c.Clock == ClockLogical {
		return crdt.NewReplicaClock(c.ReplicaID)
	}
	return crdt.WallClock{}
}

// AddPeer records a peer address, normalised and de-duplicated.
func (c *Config) AddPeer(peer string) error {
	addr, err := NormalizePeerAddr(peer)
	if err != nil {
		return err
	}
	peers, err := normalizePeers(append(c.Peers, addr))
	if err != nil {
		return err
	}
	c.Peers = peers
	return nil
}

func ParseBias(s string) (crdt.Bias, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", crdt.BiasAdd.String():
		return crdt.BiasAdd, nil
	case crdt.BiasRemove.String():
		return crdt.BiasRemove, nil
	default:
		return crdt.BiasAdd, fmt.Errorf("bias must be %q or %q, got %q", crdt.BiasAdd, crdt.BiasRemove, s)
	}
}

func normalizePeers(peers []string) ([]string, error) {
	out := make([]string, 0, len(peers))
	for _, peer := range peers {
		addr, err := NormalizePeerAddr(peer)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, addr) {
			out = append(out, addr)
		}
	}
	slices.Sort(out)

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// NormalizePeerAddr returns peer as host:port, applying DefaultPort when the
// port is missing.
func NormalizePeerAddr(peer string) (string, error) {
	peer = strings.TrimSpace(peer)
	if peer == "" {
		return "", errors.New("peer address cannot be empty")
	}

	if _, _, err := net.SplitHostPort(peer); err == nil {
		return peer, nil
	}

	return net.JoinHostPort(peer, strconv.Itoa(DefaultPort)), nil
}
