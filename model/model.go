package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/patientsim/core"
)

// Message is a single role-tagged text message sent to a provider.
type Message struct {
	Role core.Speaker `json:"role"`
	Text string       `json:"text"`
}

// Request captures the normalized model input produced by the simulation.
type Request struct {
	// Instructions is the system configuration prepended to the dialogue.
	Instructions string `json:"instructions,omitempty"`
	// Messages is the conversational context in order, oldest first.
	Messages []Message `json:"messages"`
	// Credential is the API key selected for this call. Providers fall back
	// to their construction-time key when empty. Never serialized.
	Credential string `json:"-"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed generation returned by a provider.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive one completion. Generate
// blocks until the provider answers or fails; failures carry an *Error
// classification where the provider can determine one.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Canned responses are keyed by the text of the last message; queued errors
// take precedence over responses, one per Generate call.
type MockModel struct {
	info      Info
	responses map[string]string
	errQueue  []error
	requests  []Request
	mu        sync.Mutex
}

// NewMockModel constructs an empty MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// EnqueueError schedules err to be returned by an upcoming Generate call
// before any canned response is considered. A nil entry yields a normal
// response, which makes fail-fail-succeed scripts easy to express.
func (m *MockModel) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueue = append(m.errQueue, err)
}

// Requests returns a copy of every request seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]Request, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// CallCount returns how many times Generate has been invoked.
func (m *MockModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model; returns the queued error or canned response.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.errQueue) > 0 {
		err := m.errQueue[0]
		m.errQueue = m.errQueue[1:]
		if err != nil {
			return nil, err
		}
	}
	var inputText string
	if len(req.Messages) > 0 {
		inputText = req.Messages[len(req.Messages)-1].Text
	}
	full := m.responses[inputText]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}
	return &Response{Text: full, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
