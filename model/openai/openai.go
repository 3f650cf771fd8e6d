// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts patientsim's normalized Request/Response
// structures into the SDK's message format and classifies API failures so
// the retry layer can tell rate limits and outages from permanent errors.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// APIKey is the construction-time key. A non-empty Request.Credential
	// overrides it per call.
	APIKey string
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate performs a single blocking completion.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	var callOpts []option.RequestOption
	if req.Credential != "" {
		callOpts = append(callOpts, option.WithAPIKey(req.Credential))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, model.Transient(fmt.Errorf("openai api error: no choices returned"))
	}

	ch0 := resp.Choices[0]
	out := &model.Response{
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	return out, nil
}

// buildMessages converts normalized messages into OpenAI chat messages with
// the instruction text as leading system message.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.SpeakerAgent:
			messages = append(messages, openai.AssistantMessage(msg.Text))
		case core.SpeakerSystem:
			messages = append(messages, openai.SystemMessage(msg.Text))
		default:
			messages = append(messages, openai.UserMessage(msg.Text))
		}
	}
	return messages
}

// classify maps SDK failures onto the retry taxonomy: 429 is rate limiting,
// 5xx and network timeouts are transient, everything else is fatal.
func classify(err error) error {
	wrapped := fmt.Errorf("openai api error: %w", err)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.FromStatus(apiErr.StatusCode, wrapped)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.Transient(wrapped)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Transient(wrapped)
	}

	return model.Fatal(wrapped)
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: "openai",
	}
}
