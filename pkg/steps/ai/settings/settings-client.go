package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"-"`
	BaseURL        *string        `yaml:"base_url,omitempty"`
	Organization   *string        `yaml:"organization,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
	}
}

// UnmarshalYAML overrides YAML parsing to read the timeout as a number of seconds
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout      *int    `yaml:"timeout,omitempty"`
		BaseURL      *string `yaml:"base_url,omitempty"`
		Organization *string `yaml:"organization,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
		cs.TimeoutSeconds = aux.Timeout
	}
	if aux.BaseURL != nil {
		cs.BaseURL = aux.BaseURL
	}
	if aux.Organization != nil {
		cs.Organization = aux.Organization
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	if cs == nil {
		return nil
	}
	client := cs.HTTPClient
	cs_ := *cs
	cs_.HTTPClient = nil
	ret := clone.Clone(&cs_).(*ClientSettings)
	ret.HTTPClient = client
	return ret
}

// GetHTTPClient returns the configured client, or a new one bounded by Timeout.
func (cs *ClientSettings) GetHTTPClient() *http.Client {
	if cs == nil {
		return http.DefaultClient
	}
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	ret := &http.Client{}
	if cs.Timeout != nil {
		ret.Timeout = *cs.Timeout
	}
	return ret
}
