package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/duet/pkg/steps/ai/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineYAML = `
response:
  chat:
    provider: groq
    engine: llama-3.3-70b-versatile
    temperature: 0.2
  client:
    timeout: 30
reformulate:
  chat:
    provider: ollama
    engine: llama3.2
  ollama:
    num_ctx: 4096
personality: pirate
model_timeout: 45s
stream: false
store:
  type: redis
  redis_addr: localhost:6379
`

func TestNewPipelineSettingsFromYAML(t *testing.T) {
	ps, err := NewPipelineSettingsFromYAML(strings.NewReader(pipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, "llama-3.3-70b-versatile", ps.Response.Chat.EngineName())
	assert.Equal(t, 0.2, *ps.Response.Chat.Temperature)
	assert.Equal(t, 30*time.Second, *ps.Response.Client.Timeout)

	require.NotNil(t, ps.Reformulate.Chat.Temperature)
	assert.Equal(t, DefaultReformulateTemperature, *ps.Reformulate.Chat.Temperature)
	opts, err := ps.Reformulate.Ollama.ToOptions()
	require.NoError(t, err)
	assert.Equal(t, 4096, opts["num_ctx"])

	assert.Equal(t, "pirate", ps.Personality)
	assert.Equal(t, 45*time.Second, ps.ModelTimeout)
	assert.False(t, ps.Stream)
	assert.Equal(t, StoreTypeRedis, ps.Store.Type)
	require.NoError(t, ps.Validate())

	apiType, err := ps.Response.Chat.ResolvedApiType()
	require.NoError(t, err)
	assert.Equal(t, types.ApiTypeGroq, apiType)
	assert.True(t, apiType.IsOpenAICompatible())
}

func TestPipelineSettingsDefaults(t *testing.T) {
	ps := NewPipelineSettings()
	assert.Equal(t, DefaultResponseTemperature, *ps.Response.Chat.Temperature)
	assert.Equal(t, DefaultReformulateTemperature, *ps.Reformulate.Chat.Temperature)
	assert.True(t, ps.Stream)
	assert.Equal(t, DefaultModelTimeout, ps.ModelTimeout)

	err := ps.Validate()
	assert.Error(t, err, "models are not selected by default")
}

func TestPipelineSettingsCloneIsDeep(t *testing.T) {
	ps, err := NewPipelineSettingsFromYAML(strings.NewReader(pipelineYAML))
	require.NoError(t, err)

	cloned := ps.Clone()
	*cloned.Response.Chat.Temperature = 0.9
	cloned.Store.RedisAddr = "elsewhere:6379"

	assert.Equal(t, 0.2, *ps.Response.Chat.Temperature)
	assert.Equal(t, "localhost:6379", ps.Store.RedisAddr)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	ps := NewPipelineSettings()
	engine := "x"
	ps.Response.Chat.Engine = &engine
	ps.Response.Chat.Provider = "carrier-pigeon"
	ps.Reformulate.Chat.Engine = &engine
	ps.Reformulate.Chat.Provider = "echo"
	ps.Store.Type = StoreTypeMemory

	assert.Error(t, ps.Validate())

	ps.Response.Chat.Provider = "openai"
	assert.NoError(t, ps.Validate())
}

func TestValidateYAML(t *testing.T) {
	violations, err := ValidateYAML(strings.NewReader(pipelineYAML))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = ValidateYAML(strings.NewReader("respnse:\n  chat:\n    provider: groq\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	violations, err = ValidateYAML(strings.NewReader("stream: sometimes\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	violations, err = ValidateYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, violations)
}
