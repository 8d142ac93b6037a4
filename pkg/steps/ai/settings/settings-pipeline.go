package settings

import (
	"io"
	"os"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

type StoreSettings struct {
	Type StoreType `yaml:"type"`
	// Path is the SQLite database file
	Path        string        `yaml:"path,omitempty"`
	RedisAddr   string        `yaml:"redis_addr,omitempty"`
	RedisPrefix string        `yaml:"redis_prefix,omitempty"`
	RedisTTL    time.Duration `yaml:"redis_ttl,omitempty"`
}

// PipelineSettings is the document read from the duet config file.
type PipelineSettings struct {
	Response    *StepSettings `yaml:"response,omitempty"`
	Reformulate *StepSettings `yaml:"reformulate,omitempty"`
	Personality string        `yaml:"personality,omitempty"`
	// ModelTimeout bounds every single model call
	ModelTimeout time.Duration  `yaml:"model_timeout,omitempty"`
	Stream       bool           `yaml:"stream"`
	Store        *StoreSettings `yaml:"store,omitempty"`
	// RegistryPath is the SQLite file holding providers, models and personalities
	RegistryPath string `yaml:"registry_path,omitempty"`
}

const DefaultModelTimeout = 120 * time.Second

func NewPipelineSettings() *PipelineSettings {
	ret := &PipelineSettings{
		Response:     NewStepSettings(),
		Reformulate:  NewStepSettings(),
		ModelTimeout: DefaultModelTimeout,
		Stream:       true,
		Store: &StoreSettings{
			Type: StoreTypeSQLite,
		},
	}
	ret.fillDefaults()
	return ret
}

func (ps *PipelineSettings) fillDefaults() {
	if ps.Response == nil {
		ps.Response = NewStepSettings()
	}
	if ps.Reformulate == nil {
		ps.Reformulate = NewStepSettings()
	}
	ps.Response.fillDefaults(DefaultResponseTemperature)
	ps.Reformulate.fillDefaults(DefaultReformulateTemperature)
	if ps.ModelTimeout == 0 {
		ps.ModelTimeout = DefaultModelTimeout
	}
	if ps.Store == nil {
		ps.Store = &StoreSettings{Type: StoreTypeSQLite}
	}
	if ps.Store.Type == "" {
		ps.Store.Type = StoreTypeSQLite
	}
}

// NewPipelineSettingsFromYAML decodes a settings document on top of the defaults.
func NewPipelineSettingsFromYAML(r io.Reader) (*PipelineSettings, error) {
	ret := NewPipelineSettings()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "could not decode pipeline settings")
	}
	ret.fillDefaults()
	return ret, nil
}

func LoadPipelineSettings(path string) (*PipelineSettings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open settings file %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return NewPipelineSettingsFromYAML(f)
}

// Validate checks that both models are selected and the store is usable.
func (ps *PipelineSettings) Validate() error {
	if ps.Response == nil || ps.Response.Chat == nil || ps.Response.Chat.EngineName() == "" {
		return errors.New("no response model specified")
	}
	if ps.Reformulate == nil || ps.Reformulate.Chat == nil || ps.Reformulate.Chat.EngineName() == "" {
		return errors.New("no reformulation model specified")
	}
	if _, err := ps.Response.Chat.ResolvedApiType(); err != nil {
		return errors.Wrap(err, "response model")
	}
	if _, err := ps.Reformulate.Chat.ResolvedApiType(); err != nil {
		return errors.Wrap(err, "reformulation model")
	}
	if ps.ModelTimeout < 0 {
		return errors.New("model timeout must not be negative")
	}
	if ps.Store != nil {
		switch ps.Store.Type {
		case StoreTypeMemory:
		case StoreTypeSQLite:
			if ps.Store.Path == "" {
				return errors.New("sqlite store needs a path")
			}
		case StoreTypeRedis:
			if ps.Store.RedisAddr == "" {
				return errors.New("redis store needs an address")
			}
		default:
			return errors.Errorf("unknown store type %q", ps.Store.Type)
		}
	}
	return nil
}

func (ps *PipelineSettings) Clone() *PipelineSettings {
	if ps == nil {
		return nil
	}
	ret := &PipelineSettings{
		Response:     ps.Response.Clone(),
		Reformulate:  ps.Reformulate.Clone(),
		Personality:  ps.Personality,
		ModelTimeout: ps.ModelTimeout,
		Stream:       ps.Stream,
		RegistryPath: ps.RegistryPath,
	}
	if ps.Store != nil {
		ret.Store = clone.Clone(ps.Store).(*StoreSettings)
	}
	return ret
}
