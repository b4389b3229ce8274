package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrTokenizerError, "encode failed").
		WithCause(root).
		WithHTTPStatus(500).
		WithRetryable(true)

	if GetErrorCode(err) != ErrTokenizerError {
		t.Fatalf("expected code %s, got %s", ErrTokenizerError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[TOKENIZER_ERROR] encode failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrInputTooLarge, "too large").WithHTTPStatus(413)
	wrapped := fmt.Errorf("handler: %w", inner)

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatalf("expected AsError to find *Error in chain")
	}
	if e.HTTPStatus != 413 {
		t.Fatalf("expected status 413, got %d", e.HTTPStatus)
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
	if IsRetryable(wrapped) {
		t.Fatalf("input errors are not retryable")
	}
}
