package llm

import (
	"context"
	"errors"
	"io"

	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/redact"
	"github.com/dshills/skinroutine/internal/routine"
	"github.com/dshills/skinroutine/internal/schema"
	"github.com/dshills/skinroutine/internal/schema/validate"
)

// Periods is a model-generated routine split by time of day.
type Periods struct {
	Morning []routine.Step
	Evening []routine.Step
	Model   string
}

// RoutineClient turns a profile into a model-generated routine with a single
// request. It never retries.
type RoutineClient struct {
	Provider    Provider
	IDs         routine.IDSource
	Temperature float64
	MaxTokens   int
	// Model overrides the provider's configured model when non-empty.
	Model string
}

// NewRoutineClient returns a client with the default temperature and token
// limit. A nil ids selects UUIDs.
func NewRoutineClient(p Provider, ids routine.IDSource) *RoutineClient {
	if ids == nil {
		ids = routine.UUIDs()
	}
	return &RoutineClient{
		Provider:    p,
		IDs:         ids,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Close releases the provider's resources when it holds any, such as the
// gemini client connection.
func (c *RoutineClient) Close() error {
	if cl, ok := c.Provider.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// BuildRequest returns the completion request for p. Free-text fields are
// redacted first.
func (c *RoutineClient) BuildRequest(p *profile.Profile) *Request {
	return &Request{
		SystemPrompt: BuildSystemPrompt(),
		UserPrompt:   BuildUserPrompt(redact.Profile(p)),
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		Model:        c.Model,
	}
}

// RequestRoutine asks the model for a routine. Every failure is returned as a
// *GenerationError. Empty periods are not an error here.
func (c *RoutineClient) RequestRoutine(ctx context.Context, p *profile.Profile) (*Periods, error) {
	resp, err := c.Provider.Complete(ctx, c.BuildRequest(p))
	if err != nil {
		var ge *GenerationError
		if errors.As(err, &ge) {
			return nil, ge
		}
		return nil, transportError("provider", err)
	}

	parsed, err := validate.Parse(resp.Content)
	if err != nil {
		kind := KindMalformedResponse
		if errors.Is(err, schema.ErrSchemaViolation) {
			kind = KindSchemaViolation
		}
		return nil, &GenerationError{Kind: kind, Err: err}
	}

	return &Periods{
		Morning: c.steps(parsed.Morning, routine.Morning),
		Evening: c.steps(parsed.Evening, routine.Evening),
		Model:   resp.Model,
	}, nil
}

func (c *RoutineClient) steps(specs []schema.Step, period routine.Period) []routine.Step {
	out := make([]routine.Step, len(specs))
	for i, s := range specs {
		out[i] = routine.NewStep(c.IDs, s.Name, s.Product, routine.Describe(s.Name, s.Product), period)
	}
	return out
}
