package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
)

type geminiProvider struct {
	model  string
	client *genai.Client
}

func newGeminiProvider(model, apiKey string) (*geminiProvider, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &geminiProvider{model: model, client: client}, nil
}

// Close releases the underlying client connection.
func (p *geminiProvider) Close() error { return p.client.Close() }

func (p *geminiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	name := p.model
	if req.Model != "" {
		name = req.Model
	}
	model := p.client.GenerativeModel(name)
	model.SetTemperature(float32(req.Temperature))
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, malformed("gemini", "no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return nil, malformed("gemini", "no text content in response")
	}
	return &Response{
		Content: sb.String(),
		Model:   fmt.Sprintf("gemini:%s", name),
	}, nil
}

// classifyGeminiError maps client errors onto generation kinds. HTTP status
// comes from the gax APIError when the transport exposes one.
func classifyGeminiError(ctx context.Context, err error) *GenerationError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTimeout, Err: fmt.Errorf("gemini: %w", err)}
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &GenerationError{Kind: KindMalformedResponse, Err: fmt.Errorf("gemini: %w", err)}
	}
	if ae, ok := apierror.FromError(err); ok {
		if code := ae.HTTPCode(); code > 0 {
			return &GenerationError{Kind: KindAPI, Status: code, Err: fmt.Errorf("gemini: %w", err)}
		}
		return &GenerationError{Kind: KindAPI, Err: fmt.Errorf("gemini: %w", err)}
	}
	return transportError("gemini", err)
}
