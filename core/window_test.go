package core

import (
	"errors"
	"testing"
)

func TestWindow_AppendAndSize(t *testing.T) {
	w := NewWindow()
	if w.Size() != 0 {
		t.Fatalf("expected empty window, got size %d", w.Size())
	}
	if err := w.Append(NewUserTurn("hello")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := w.Append(NewAgentTurn("hello back")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if w.Size() != 2 {
		t.Fatalf("expected size 2, got %d", w.Size())
	}
}

func TestWindow_AppendRejectsInvalidTurns(t *testing.T) {
	w := NewWindow()
	if err := w.Append(Turn{Speaker: "narrator", Content: "x"}); !errors.Is(err, ErrInvalidTurn) {
		t.Errorf("expected ErrInvalidTurn for unknown speaker, got %v", err)
	}
	if err := w.Append(Turn{Speaker: SpeakerUser, Content: "   "}); !errors.Is(err, ErrInvalidTurn) {
		t.Errorf("expected ErrInvalidTurn for blank content, got %v", err)
	}
	if w.Size() != 0 {
		t.Errorf("rejected turns must not be stored, size %d", w.Size())
	}
}

func TestWindow_ContextSuffix(t *testing.T) {
	w := NewWindow()
	for _, content := range []string{"U1", "A1", "U2", "A2", "U3", "A3"} {
		speaker := SpeakerUser
		if content[0] == 'A' {
			speaker = SpeakerAgent
		}
		if err := w.Append(NewTurn(speaker, content)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	suffix := w.ContextSuffix(4)
	want := []string{"U2", "A2", "U3", "A3"}
	if len(suffix) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(suffix))
	}
	for i, turn := range suffix {
		if turn.Content != want[i] {
			t.Errorf("suffix[%d] = %q, want %q", i, turn.Content, want[i])
		}
	}

	all := w.ContextSuffix(100)
	if len(all) != 6 {
		t.Errorf("oversized k should return whole log, got %d turns", len(all))
	}
	if all[0].Content != "U1" {
		t.Errorf("expected whole log to start at U1, got %q", all[0].Content)
	}
}

func TestWindow_ContextSuffixEmptyCases(t *testing.T) {
	w := NewWindow()
	if got := w.ContextSuffix(5); got == nil || len(got) != 0 {
		t.Errorf("empty window should read as empty slice, got %#v", got)
	}
	if err := w.Append(NewUserTurn("hi")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if got := w.ContextSuffix(0); got == nil || len(got) != 0 {
		t.Errorf("k=0 should read as empty slice, got %#v", got)
	}
	if got := w.ContextSuffix(-3); got == nil || len(got) != 0 {
		t.Errorf("negative k should read as empty slice, got %#v", got)
	}
}

func TestWindow_ReadsAreCopies(t *testing.T) {
	w := NewWindow()
	if err := w.Append(NewUserTurn("original")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	turns := w.Turns()
	turns[0].Content = "mutated"
	if w.Turns()[0].Content != "original" {
		t.Error("Turns must return a defensive copy")
	}

	suffix := w.ContextSuffix(1)
	suffix[0].Content = "mutated"
	if w.ContextSuffix(1)[0].Content != "original" {
		t.Error("ContextSuffix must return a defensive copy")
	}
}

func TestSpeaker_Valid(t *testing.T) {
	for _, s := range []Speaker{SpeakerUser, SpeakerAgent, SpeakerSystem} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Speaker("assistant").Valid() {
		t.Error("undeclared speaker should be invalid")
	}
	if Speaker("").Valid() {
		t.Error("empty speaker should be invalid")
	}
}
