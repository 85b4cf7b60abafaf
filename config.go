package enforce

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a declarative bundle of policy documents plus engine tuning,
// the on-disk interchange format between policy management tooling and a
// running service.
type Config struct {
	Version  uint16       `json:"version" yaml:"version"`
	Policies []*Policy    `json:"policies" yaml:"policies"`
	Engine   EngineConfig `json:"engine,omitempty" yaml:"engine,omitempty"`
}

// EngineConfig tunes the enforcer registry and the JSON view filter.
type EngineConfig struct {
	ReadPermission      Permission `json:"read_permission,omitempty" yaml:"read_permission,omitempty"`
	RistrettoNumCounter int64      `json:"ristretto_num_counter,omitempty" yaml:"ristretto_num_counter,omitempty"`
	RistrettoMaxCost    int64      `json:"ristretto_max_cost,omitempty" yaml:"ristretto_max_cost,omitempty"`
	RistrettoBuffer     int64      `json:"ristretto_buffer,omitempty" yaml:"ristretto_buffer,omitempty"`
}

// Validate checks every policy document in the bundle.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Policies))
	for _, p := range c.Policies {
		if p.ID != "" {
			if _, dup := seen[p.ID]; dup {
				return &PolicyError{Reason: fmt.Sprintf("duplicate policy id %q", p.ID)}
			}
			seen[p.ID] = struct{}{}
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindPolicy returns the policy with the given id, nil when absent.
func (c *Config) FindPolicy(id string) *Policy {
	for _, p := range c.Policies {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ConfigStats summarizes a bundle for tooling output.
type ConfigStats struct {
	Policies int
	Entries  int
	Subjects int
	Paths    int
}

// Stats counts the bundle's policies, entries, distinct subjects, and
// resource rows.
func (c *Config) Stats() ConfigStats {
	st := ConfigStats{Policies: len(c.Policies)}
	subjects := NewSubjectIDSet()
	for _, p := range c.Policies {
		st.Entries += len(p.Entries)
		for _, entry := range p.Entries {
			for _, s := range entry.Subjects {
				subjects.Add(s.ID)
			}
			st.Paths += len(entry.Resources)
		}
	}
	st.Subjects = len(subjects)
	return st
}

// ToYAML exports the bundle to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports the bundle to indented JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ToDSL exports the bundle to the compact policy DSL
func (c *Config) ToDSL() ([]byte, error) {
	return NewDSLEncoder().Encode(c)
}

// ConfigLoader loads bundles from the supported formats
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadDSL(data []byte) (*Config, error) {
	return NewDSLParser().Parse(data)
}

// LoadFile dispatches on the file extension: .yaml/.yml, .json, and
// .policy/.dsl are supported.
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	case ".policy", ".dsl":
		return l.LoadDSL(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// SaveFile writes the bundle in the format selected by the file extension.
func (c *Config) SaveFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = c.ToYAML()
	case ".json":
		data, err = c.ToJSON()
	case ".policy", ".dsl":
		data, err = c.ToDSL()
	default:
		return fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
