package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SwapStatus
		want     bool
	}{
		{SwapPending, SwapAccepted, true},
		{SwapPending, SwapRejected, true},
		{SwapPending, SwapCancelled, true},
		{SwapPending, SwapCompleted, false},
		{SwapAccepted, SwapCompleted, true},
		{SwapAccepted, SwapCancelled, true},
		{SwapAccepted, SwapRejected, false},
		{SwapAccepted, SwapPending, false},
		{SwapRejected, SwapAccepted, false},
		{SwapCancelled, SwapPending, false},
		{SwapCompleted, SwapCancelled, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []SwapStatus{SwapRejected, SwapCancelled, SwapCompleted} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []SwapStatus{SwapPending, SwapAccepted} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestValidateMessage(t *testing.T) {
	if err := ValidateMessage(""); err != nil {
		t.Errorf("empty message should be valid: %v", err)
	}
	if err := ValidateMessage(strings.Repeat("x", MaxMessageLen)); err != nil {
		t.Errorf("message at limit should be valid: %v", err)
	}
	err := ValidateMessage(strings.Repeat("x", MaxMessageLen+1))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("accepting: %w", Errorf(KindInvalidTransition, "swap is %s", SwapRejected))

	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected wrapped error to match ErrInvalidTransition")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect match with ErrNotFound")
	}
	if KindOf(err) != KindInvalidTransition {
		t.Errorf("expected kind %s, got %s", KindInvalidTransition, KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for non-domain error")
	}
	if !errors.Is(ErrNotOwner, ErrNotAuthorized) {
		t.Error("expected ErrNotOwner to be a NotAuthorized error")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("x: %w", ErrSettlementFailed)) {
		t.Error("settlement failure should be retryable")
	}
	for _, err := range []error{ErrNotFound, ErrInsufficientPoints, ErrBalanceOverflow, errors.New("db")} {
		if IsRetryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
