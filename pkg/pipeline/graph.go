package pipeline

import (
	"context"

	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/duet/pkg/steps/ai/chat"
	"github.com/go-go-golems/duet/pkg/tokens"
	"github.com/rs/zerolog/log"
)

// Graph is the fixed start -> reformulate -> respond -> end pipeline.
// It is immutable once built; changing a model or the personality means building a new graph.
type Graph struct {
	reformulate *ReformulateNode
	respond     *RespondNode
}

type graphConfig struct {
	responseModel    chat.Model
	reformulateModel chat.Model
	directive        string
	personality      string
	registry         registry.Registry
	counter          *tokens.Counter
	ctx              context.Context
}

type GraphOption func(*graphConfig)

func WithResponseModel(m chat.Model) GraphOption {
	return func(c *graphConfig) {
		c.responseModel = m
	}
}

func WithReformulateModel(m chat.Model) GraphOption {
	return func(c *graphConfig) {
		c.reformulateModel = m
	}
}

// WithDirective sets the system directive of the response model directly.
func WithDirective(directive string) GraphOption {
	return func(c *graphConfig) {
		c.directive = directive
	}
}

// WithPersonality looks up the directive named name in r when the graph is built.
// An unknown name means no directive.
func WithPersonality(r registry.Registry, name string) GraphOption {
	return func(c *graphConfig) {
		c.registry = r
		c.personality = name
	}
}

// WithTokenCounter attaches prompt token counts to the response events.
func WithTokenCounter(counter *tokens.Counter) GraphOption {
	return func(c *graphConfig) {
		c.counter = counter
	}
}

// WithBuildContext bounds the registry lookups done while building the graph.
func WithBuildContext(ctx context.Context) GraphOption {
	return func(c *graphConfig) {
		c.ctx = ctx
	}
}

func NewGraph(options ...GraphOption) (*Graph, error) {
	cfg := &graphConfig{
		ctx: context.Background(),
	}
	for _, o := range options {
		o(cfg)
	}

	if cfg.responseModel == nil {
		return nil, &ConfigurationError{Field: "response model", Reason: "is missing"}
	}
	if cfg.reformulateModel == nil {
		return nil, &ConfigurationError{Field: "reformulate model", Reason: "is missing"}
	}

	directive := cfg.directive
	if cfg.personality != "" {
		if cfg.registry == nil {
			return nil, &ConfigurationError{Field: "personality", Reason: "needs a registry"}
		}
		desc, ok, err := cfg.registry.GetPersonalityDescription(cfg.ctx, cfg.personality)
		if err != nil {
			return nil, &ConfigurationError{Field: "personality", Reason: "could not be looked up", Err: err}
		}
		if ok {
			directive = desc
		} else {
			log.Warn().Str("personality", cfg.personality).Msg("unknown personality, answering without a directive")
			directive = ""
		}
	}

	reformulate, err := NewReformulateNode(cfg.reformulateModel)
	if err != nil {
		return nil, err
	}
	respond, err := NewRespondNode(cfg.responseModel, directive, cfg.counter)
	if err != nil {
		return nil, err
	}

	return &Graph{
		reformulate: reformulate,
		respond:     respond,
	}, nil
}

// Nodes returns the nodes in execution order.
func (g *Graph) Nodes() []Node {
	return []Node{g.reformulate, g.respond}
}

func (g *Graph) Reformulate() *ReformulateNode {
	return g.reformulate
}

func (g *Graph) Respond() *RespondNode {
	return g.respond
}
