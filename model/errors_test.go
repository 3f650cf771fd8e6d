package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{429, KindRateLimited},
		{500, KindTransient},
		{502, KindTransient},
		{503, KindTransient},
		{400, KindFatal},
		{401, KindFatal},
		{404, KindFatal},
		{200, KindFatal},
	}
	for _, tc := range cases {
		if got := ClassifyStatus(tc.status); got != tc.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestErrorWrappingAndKindOf(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("calling provider: %w", RateLimited(cause))

	if KindOf(wrapped) != KindRateLimited {
		t.Errorf("KindOf should see through wrapping, got %s", KindOf(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Error("rate limited errors are retryable")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("underlying cause must stay reachable via errors.Is")
	}

	if IsRetryable(Fatal(cause)) {
		t.Error("fatal errors are not retryable")
	}
	if !IsRetryable(Transient(cause)) {
		t.Error("transient errors are retryable")
	}
	if KindOf(cause) != KindFatal {
		t.Errorf("unclassified errors default to fatal, got %s", KindOf(cause))
	}
	if IsRetryable(cause) {
		t.Error("unclassified errors are not retryable")
	}
}

func TestErrorKind_String(t *testing.T) {
	if KindRateLimited.String() != "rate_limited" || KindTransient.String() != "transient" || KindFatal.String() != "fatal" {
		t.Errorf("unexpected kind names: %s %s %s", KindRateLimited, KindTransient, KindFatal)
	}
}
