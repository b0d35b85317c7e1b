package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenesisConfig is the on-disk genesis/network configuration: the policy
// constants plus the seed data needed to build block zero. It mirrors
// the teacher's config/nodes.go YAML-tagged struct convention.
type GenesisConfig struct {
	Config      Config `yaml:"policy"`
	GenesisSeed string `yaml:"genesis_seed"`
	NetworkName string `yaml:"network_name"`
}

// Config is embedded as a struct, but Config's own fields need explicit
// yaml tags to survive the network-config file's naming convention.
type yamlConfig struct {
	BatchLength         uint32 `yaml:"batch_length"`
	BatchesPerEpoch     uint32 `yaml:"batches_per_epoch"`
	Slots               uint16 `yaml:"slots"`
	BlockSeparationTime uint64 `yaml:"block_separation_time_ms"`
	Mainnet             bool   `yaml:"mainnet"`
}

// UnmarshalYAML adapts Config's plain fields to the on-disk snake_case
// layout without forcing yaml tags onto the hot-path Config type used
// throughout the rest of the module.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var y yamlConfig
	if err := value.Decode(&y); err != nil {
		return err
	}
	*c = Config{
		BatchLength:         y.BatchLength,
		BatchesPerEpoch:     y.BatchesPerEpoch,
		Slots:               y.Slots,
		BlockSeparationTime: y.BlockSeparationTime,
		Mainnet:             y.Mainnet,
	}
	return nil
}

// LoadGenesisConfig reads and parses a network's genesis configuration
// file from disk.
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read genesis config %s: %w", path, err)
	}
	return ParseGenesisConfig(data)
}

// ParseGenesisConfig parses a genesis configuration document already
// read into memory, for callers embedding the config (e.g. in tests or
// a compiled-in default network).
func ParseGenesisConfig(data []byte) (*GenesisConfig, error) {
	var cfg GenesisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("policy: parse genesis config: %w", err)
	}
	return &cfg, nil
}
