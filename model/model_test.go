package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/patientsim/core"
)

func TestMockModel_CannedResponses(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.SpeakerUser, Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp.Text != "hi there" {
		t.Errorf("expected canned response, got %q", resp.Text)
	}

	resp, err = m.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.SpeakerUser, Text: "unknown"}},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if resp.Text != "Mock response to: unknown" {
		t.Errorf("expected fallback response, got %q", resp.Text)
	}
	if m.CallCount() != 2 {
		t.Errorf("expected 2 recorded calls, got %d", m.CallCount())
	}
}

func TestMockModel_ErrorQueue(t *testing.T) {
	m := NewMockModel("mock", "mock")
	limited := RateLimited(errors.New("429"))
	m.EnqueueError(limited)
	m.EnqueueError(nil)

	_, err := m.Generate(context.Background(), Request{Messages: []Message{{Role: core.SpeakerUser, Text: "x"}}})
	if !errors.Is(err, limited) {
		t.Fatalf("expected queued error first, got %v", err)
	}

	resp, err := m.Generate(context.Background(), Request{Messages: []Message{{Role: core.SpeakerUser, Text: "x"}}})
	if err != nil || resp == nil {
		t.Fatalf("nil queue entry should answer normally, got %v", err)
	}

	reqs := m.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected both requests recorded, got %d", len(reqs))
	}
}
