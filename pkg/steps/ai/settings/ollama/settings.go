package ollama

import (
	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

// Settings are sampling options forwarded to the ollama server.
// The yaml names are the ollama option names.
type Settings struct {
	Mirostat      *int     `yaml:"mirostat,omitempty"`
	MirostatEta   *float64 `yaml:"mirostat_eta,omitempty"`
	MirostatTau   *float64 `yaml:"mirostat_tau,omitempty"`
	NumCtx        *int     `yaml:"num_ctx,omitempty"`
	NumGpu        *int     `yaml:"num_gpu,omitempty"`
	NumThread     *int     `yaml:"num_thread,omitempty"`
	RepeatLastN   *int     `yaml:"repeat_last_n,omitempty"`
	RepeatPenalty *float64 `yaml:"repeat_penalty,omitempty"`
	Seed          *int     `yaml:"seed,omitempty"`
	TfsZ          *float64 `yaml:"tfs_z,omitempty"`
	NumPredict    *int     `yaml:"num_predict,omitempty"`
	TopK          *int     `yaml:"top_k,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// ToOptions converts the set fields into an ollama options map.
func (s *Settings) ToOptions() (map[string]interface{}, error) {
	ret := map[string]interface{}{}
	if s == nil {
		return ret, nil
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &ret); err != nil {
		return nil, err
	}
	if ret == nil {
		ret = map[string]interface{}{}
	}
	return ret, nil
}
