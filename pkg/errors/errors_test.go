package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeUnknownSession, "no session %q", "view-1")

	if err.Code != ErrCodeUnknownSession {
		t.Errorf("Code = %q, want UNKNOWN_SESSION", err.Code)
	}
	if err.Message != `no session "view-1"` {
		t.Errorf("Message = %q", err.Message)
	}
	if !strings.HasPrefix(err.Error(), "UNKNOWN_SESSION: ") {
		t.Errorf("Error() = %q, want code prefix", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("New should not carry a cause")
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeIndexCorrupt, cause, "session %q index corrupt", "s")

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeInvalidGeometry, "bad ring")

	if !Is(err, ErrCodeInvalidGeometry) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeInvalidInput) {
		t.Error("Is should not match a different code")
	}
	if Is(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("Is should not match a plain error")
	}
	if Is(nil, ErrCodeInternal) {
		t.Error("Is should not match nil")
	}

	// Matching through a wrapping chain.
	wrapped := fmt.Errorf("handler: %w", err)
	if !Is(wrapped, ErrCodeInvalidGeometry) {
		t.Error("Is should unwrap fmt.Errorf chains")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeSessionClosed, "closed")); got != ErrCodeSessionClosed {
		t.Errorf("GetCode = %q, want SESSION_CLOSED", got)
	}
	if got := GetCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCode of plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeInvalidInput, "zoom must be finite")
	if got := UserMessage(err); got != "zoom must be finite" {
		t.Errorf("UserMessage = %q, want the bare message", got)
	}
	if got := UserMessage(fmt.Errorf("plain")); got != "plain" {
		t.Errorf("UserMessage of plain error = %q", got)
	}
}
