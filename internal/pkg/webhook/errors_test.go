package webhook

import (
	"errors"
	"strings"
	"testing"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "validation", err: Validationf("bad payload"), want: ClassValidation},
		{name: "transient", err: Transientf("timeout"), want: ClassTransient},
		{name: "conflict", err: Conflictf("exists"), want: ClassConflict},
		{name: "unclassified defaults transient", err: errors.New("who knows"), want: ClassTransient},
		{name: "wrapped keeps class", err: Classify(ClassTransient, Validationf("bad")), want: ClassValidation},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.err); got != tt.want {
			t.Fatalf("%s: ClassOf = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(Validationf("bad")) {
		t.Fatalf("validation errors must not be retried")
	}
	if !IsRetryable(Transientf("timeout")) {
		t.Fatalf("transient errors must be retried")
	}
	if !IsRetryable(errors.New("unknown")) {
		t.Fatalf("unclassified errors get the retry budget")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(ClassTransient, nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestSummarizeError(t *testing.T) {
	if got := summarizeError(nil); got != "" {
		t.Fatalf("summarizeError(nil) = %q", got)
	}
	if got := summarizeError(errors.New("line one\nline two")); strings.Contains(got, "\n") {
		t.Fatalf("expected single-line summary, got %q", got)
	}
	long := strings.Repeat("x", 1000)
	if got := summarizeError(errors.New(long)); len(got) != 500 {
		t.Fatalf("expected 500-char cap, got %d", len(got))
	}
}
