package registry

import (
	"context"
	"sort"
	"sync"
)

type modelKey struct {
	provider string
	model    string
}

// MemoryRegistry is a thread-safe Store kept in maps.
type MemoryRegistry struct {
	mu            sync.RWMutex
	configs       map[string]ProviderConfig
	models        map[modelKey]ModelEntry
	personalities map[string]Personality
	closed        bool
}

var _ Store = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		configs:       map[string]ProviderConfig{},
		models:        map[modelKey]ModelEntry{},
		personalities: map[string]Personality{},
	}
}

func (r *MemoryRegistry) ensureOpen() error {
	if r.closed {
		return ErrClosed
	}
	return nil
}

func (r *MemoryRegistry) GetModelDisplayName(_ context.Context, provider string, model string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return "", false, err
	}
	m, ok := r.models[modelKey{provider, model}]
	if !ok {
		return "", false, nil
	}
	return m.DisplayName, true, nil
}

func (r *MemoryRegistry) GetPersonalityDescription(_ context.Context, name string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return "", false, err
	}
	p, ok := r.personalities[name]
	if !ok {
		return "", false, nil
	}
	return p.Description, true, nil
}

func (r *MemoryRegistry) GetAPIKey(_ context.Context, provider string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return "", false, err
	}
	c, ok := r.configs[provider]
	if !ok {
		return "", false, nil
	}
	return c.APIKey, true, nil
}

func (r *MemoryRegistry) GetAPIEnvName(_ context.Context, provider string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return "", false, err
	}
	c, ok := r.configs[provider]
	if !ok {
		return "", false, nil
	}
	return c.APIEnvName, true, nil
}

func (r *MemoryRegistry) RegisterModel(_ context.Context, model ModelEntry) error {
	if err := validateModel(model); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	k := modelKey{model.Provider, model.ModelName}
	if _, ok := r.models[k]; ok {
		return &AlreadyExistsError{Kind: "model", Name: model.Provider + "/" + model.ModelName}
	}
	r.models[k] = model
	return nil
}

func (r *MemoryRegistry) RegisterConfig(_ context.Context, config ProviderConfig) error {
	if err := validateConfig(config); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, ok := r.configs[config.Provider]; ok {
		return &AlreadyExistsError{Kind: "config", Name: config.Provider}
	}
	r.configs[config.Provider] = config
	return nil
}

func (r *MemoryRegistry) RegisterPersonality(_ context.Context, personality Personality) error {
	if err := validatePersonality(personality); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, ok := r.personalities[personality.Name]; ok {
		return &AlreadyExistsError{Kind: "personality", Name: personality.Name}
	}
	r.personalities[personality.Name] = personality
	return nil
}

func (r *MemoryRegistry) EditPersonality(_ context.Context, name string, description string) error {
	if err := validatePersonality(Personality{Name: name, Description: description}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	p, ok := r.personalities[name]
	if !ok {
		return &NotFoundError{Kind: "personality", Name: name}
	}
	p.Description = description
	r.personalities[name] = p
	return nil
}

func (r *MemoryRegistry) DeletePersonality(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, ok := r.personalities[name]; !ok {
		return &NotFoundError{Kind: "personality", Name: name}
	}
	delete(r.personalities, name)
	return nil
}

func (r *MemoryRegistry) DeleteModel(_ context.Context, provider string, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	k := modelKey{provider, model}
	if _, ok := r.models[k]; !ok {
		return &NotFoundError{Kind: "model", Name: provider + "/" + model}
	}
	delete(r.models, k)
	return nil
}

func (r *MemoryRegistry) DeleteConfig(_ context.Context, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if _, ok := r.configs[provider]; !ok {
		return &NotFoundError{Kind: "config", Name: provider}
	}
	delete(r.configs, provider)
	return nil
}

func (r *MemoryRegistry) ListProviders(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for p := range r.configs {
		seen[p] = true
	}
	for k := range r.models {
		seen[k.provider] = true
	}
	ret := make([]string, 0, len(seen))
	for p := range seen {
		ret = append(ret, p)
	}
	sort.Strings(ret)
	return ret, nil
}

func (r *MemoryRegistry) ListModels(_ context.Context, provider string) ([]ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	ret := []ModelEntry{}
	for _, m := range r.models {
		if provider == "" || m.Provider == provider {
			ret = append(ret, m)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Provider != ret[j].Provider {
			return ret[i].Provider < ret[j].Provider
		}
		return ret[i].ModelName < ret[j].ModelName
	})
	return ret, nil
}

func (r *MemoryRegistry) ListConfigs(_ context.Context) ([]ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	ret := make([]ProviderConfig, 0, len(r.configs))
	for _, c := range r.configs {
		ret = append(ret, c)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Provider < ret[j].Provider })
	return ret, nil
}

func (r *MemoryRegistry) ListPersonalities(_ context.Context) ([]Personality, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	ret := make([]Personality, 0, len(r.personalities))
	for _, p := range r.personalities {
		ret = append(ret, p)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret, nil
}

func (r *MemoryRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
