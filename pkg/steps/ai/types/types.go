package types

import "fmt"

type ApiType string

const (
	ApiTypeOpenAI    ApiType = "openai"
	ApiTypeGroq      ApiType = "groq"
	ApiTypeTogether  ApiType = "together"
	ApiTypeFireworks ApiType = "fireworks"
	ApiTypeAnyScale  ApiType = "anyscale"
	ApiTypeOllama    ApiType = "ollama"
	// ApiTypeEcho needs no network, it answers with the question
	ApiTypeEcho ApiType = "echo"
)

var openAICompatibleBaseURLs = map[ApiType]string{
	ApiTypeGroq:      "https://api.groq.com/openai/v1",
	ApiTypeTogether:  "https://api.together.xyz/v1",
	ApiTypeFireworks: "https://api.fireworks.ai/inference/v1",
	ApiTypeAnyScale:  "https://api.endpoints.anyscale.com/v1",
}

// ParseApiType accepts the provider names stored in the registry.
func ParseApiType(s string) (ApiType, error) {
	switch t := ApiType(s); t {
	case ApiTypeOpenAI, ApiTypeGroq, ApiTypeTogether, ApiTypeFireworks, ApiTypeAnyScale, ApiTypeOllama, ApiTypeEcho:
		return t, nil
	default:
		return "", fmt.Errorf("unknown api type %q", s)
	}
}

// IsOpenAICompatible reports whether t is served through the OpenAI chat completions API.
func (t ApiType) IsOpenAICompatible() bool {
	if t == ApiTypeOpenAI {
		return true
	}
	_, ok := openAICompatibleBaseURLs[t]
	return ok
}

// DefaultBaseURL returns the endpoint used when none is configured. Empty means the client default.
func (t ApiType) DefaultBaseURL() string {
	return openAICompatibleBaseURLs[t]
}

// DefaultAPIEnvName is the environment variable consulted when the registry has no key.
func (t ApiType) DefaultAPIEnvName() string {
	switch t {
	case ApiTypeOpenAI:
		return "OPENAI_API_KEY"
	case ApiTypeGroq:
		return "GROQ_API_KEY"
	case ApiTypeTogether:
		return "TOGETHER_API_KEY"
	case ApiTypeFireworks:
		return "FIREWORKS_API_KEY"
	case ApiTypeAnyScale:
		return "ANYSCALE_API_KEY"
	default:
		return ""
	}
}
