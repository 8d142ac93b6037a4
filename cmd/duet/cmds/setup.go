package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/duet/pkg/checkpoint"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/pipeline"
	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/duet/pkg/steps/ai"
	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/go-go-golems/duet/pkg/steps/ai/types"
	"github.com/go-go-golems/duet/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddPipelineFlags registers the flags that select models, personality and storage.
// Every flag can also be set in the config file or as a DUET_ environment variable.
func AddPipelineFlags(fs *pflag.FlagSet) {
	fs.String("settings", "", "Pipeline settings YAML file")
	fs.String("response-provider", "", "Provider of the model answering questions (openai, groq, together, fireworks, anyscale, ollama, echo)")
	fs.String("response-model", "", "Model answering questions")
	fs.String("reformulate-provider", "", "Provider of the model rewriting questions")
	fs.String("reformulate-model", "", "Model rewriting questions")
	fs.String("personality", "", "Personality (system directive) of the response model")
	fs.Duration("model-timeout", 0, "Timeout of a single model call (default 2m)")
	fs.Bool("no-stream", false, "Wait for the full answer instead of streaming it")
	fs.String("store", "", "Thread store (memory, sqlite, redis)")
	fs.String("store-path", "", "SQLite thread store file")
	fs.String("redis-addr", "", "Redis address of the thread store")
	fs.String("registry", "", "SQLite registry file with providers, models and personalities")
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "duet", name)
}

// LoadPipelineSettings reads the settings file, then applies config, environment and flag overrides.
func LoadPipelineSettings() (*settings.PipelineSettings, error) {
	var (
		ps  *settings.PipelineSettings
		err error
	)
	if path := viper.GetString("settings"); path != "" {
		ps, err = settings.LoadPipelineSettings(path)
		if err != nil {
			return nil, err
		}
	} else {
		ps = settings.NewPipelineSettings()
	}

	overrideStep(ps.Response, viper.GetString("response-provider"), viper.GetString("response-model"))
	overrideStep(ps.Reformulate, viper.GetString("reformulate-provider"), viper.GetString("reformulate-model"))

	if v := viper.GetString("personality"); v != "" {
		ps.Personality = v
	}
	if v := viper.GetDuration("model-timeout"); v > 0 {
		ps.ModelTimeout = v
	}
	if viper.GetBool("no-stream") {
		ps.Stream = false
	}
	if v := viper.GetString("store"); v != "" {
		ps.Store.Type = settings.StoreType(v)
	}
	if v := viper.GetString("store-path"); v != "" {
		ps.Store.Path = v
	}
	if v := viper.GetString("redis-addr"); v != "" {
		ps.Store.RedisAddr = v
	}
	if ps.Store.Type == settings.StoreTypeSQLite && ps.Store.Path == "" {
		ps.Store.Path = defaultDataPath("threads.db")
	}
	if v := viper.GetString("registry"); v != "" {
		ps.RegistryPath = v
	}
	if ps.RegistryPath == "" {
		ps.RegistryPath = defaultDataPath("registry.db")
	}

	return ps, nil
}

func overrideStep(ss *settings.StepSettings, provider string, model string) {
	if provider != "" {
		ss.Chat.Provider = provider
		ss.Chat.ApiType = nil
	}
	if model != "" {
		ss.Chat.Engine = &model
	}
	// the echo model needs no engine name
	if t, err := ss.Chat.ResolvedApiType(); err == nil && t == types.ApiTypeEcho && ss.Chat.EngineName() == "" {
		echo := string(types.ApiTypeEcho)
		ss.Chat.Engine = &echo
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// App holds what every pipeline command opens: settings, registry and thread store.
type App struct {
	Settings *settings.PipelineSettings
	Registry registry.Store
	Store    checkpoint.Store

	closers []func() error
}

// OpenRegistry opens only the registry, for the registry management commands.
func OpenRegistry() (registry.Store, error) {
	path := viper.GetString("registry")
	if path == "" {
		ps, err := LoadPipelineSettings()
		if err != nil {
			return nil, err
		}
		path = ps.RegistryPath
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	return registry.NewSQLiteRegistryFromFile(path)
}

func OpenApp(ctx context.Context, needModels bool) (*App, error) {
	ps, err := LoadPipelineSettings()
	if err != nil {
		return nil, err
	}
	if needModels {
		if err := ps.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid pipeline settings")
		}
	}

	app := &App{Settings: ps}

	if err := ensureParentDir(ps.RegistryPath); err != nil {
		return nil, err
	}
	reg, err := registry.NewSQLiteRegistryFromFile(ps.RegistryPath)
	if err != nil {
		return nil, err
	}
	app.Registry = reg
	app.closers = append(app.closers, reg.Close)

	store, closeStore, err := openStore(ctx, ps.Store)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	return app, nil
}

func openStore(ctx context.Context, ss *settings.StoreSettings) (checkpoint.Store, func() error, error) {
	switch ss.Type {
	case settings.StoreTypeMemory:
		s := checkpoint.NewInMemoryStore()
		return s, s.Close, nil

	case settings.StoreTypeSQLite:
		if err := ensureParentDir(ss.Path); err != nil {
			return nil, nil, err
		}
		dsn, err := checkpoint.SQLiteDSNForFile(ss.Path)
		if err != nil {
			return nil, nil, err
		}
		s, err := checkpoint.NewSQLiteStore(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case settings.StoreTypeRedis:
		options := []checkpoint.RedisStoreOption{}
		if ss.RedisPrefix != "" {
			options = append(options, checkpoint.WithRedisKeyPrefix(ss.RedisPrefix))
		}
		if ss.RedisTTL > 0 {
			options = append(options, checkpoint.WithRedisTTL(ss.RedisTTL))
		}
		s, err := checkpoint.NewRedisStore(ctx, ss.RedisAddr, options...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, errors.Errorf("unknown store type %q", ss.Type)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}

// BuildExecutor creates both models and wires them into a graph and an executor.
func (a *App) BuildExecutor(ctx context.Context, sinks ...events.EventSink) (*pipeline.Executor, error) {
	factory := ai.NewModelFactory(a.Registry)

	responseModel, err := factory.NewModel(ctx, a.Settings.Response)
	if err != nil {
		return nil, errors.Wrap(err, "could not create response model")
	}
	reformulateModel, err := factory.NewModel(ctx, a.Settings.Reformulate)
	if err != nil {
		return nil, errors.Wrap(err, "could not create reformulation model")
	}

	options := []pipeline.GraphOption{
		pipeline.WithResponseModel(responseModel),
		pipeline.WithReformulateModel(reformulateModel),
		pipeline.WithBuildContext(ctx),
	}
	if a.Settings.Personality != "" {
		options = append(options, pipeline.WithPersonality(a.Registry, a.Settings.Personality))
	}
	if counter, err := tokens.NewCounter(a.Settings.Response.Chat.EngineName()); err == nil {
		options = append(options, pipeline.WithTokenCounter(counter))
	} else {
		log.Debug().Err(err).Msg("token counting disabled")
	}

	graph, err := pipeline.NewGraph(options...)
	if err != nil {
		return nil, err
	}

	timeout := a.Settings.ModelTimeout
	if timeout <= 0 {
		timeout = settings.DefaultModelTimeout
	}
	return pipeline.NewExecutor(graph, a.Store,
		pipeline.WithModelTimeout(timeout),
		pipeline.WithEventSinks(sinks...),
	)
}

// Header names both models the way the registry displays them.
func (a *App) Header(ctx context.Context) string {
	return "Response: " + a.displayName(ctx, a.Settings.Response) +
		" | Context: " + a.displayName(ctx, a.Settings.Reformulate)
}

func (a *App) displayName(ctx context.Context, ss *settings.StepSettings) string {
	engine := ss.Chat.EngineName()
	provider := ss.Chat.Provider
	if provider == "" {
		if t, err := ss.Chat.ResolvedApiType(); err == nil {
			provider = string(t)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	name, ok, err := a.Registry.GetModelDisplayName(ctx, provider, engine)
	if err != nil || !ok {
		return engine
	}
	return name
}
