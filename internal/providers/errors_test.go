package providers

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"429 rate":           ErrorRate,
		"context too long":   ErrorContext,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrorTransient) || !Retryable(ErrorRate) {
		t.Fatal("transient and rate errors should be retryable")
	}
	if Retryable(ErrorPermanent) || Retryable(ErrorQuota) {
		t.Fatal("permanent and quota errors should not be retryable")
	}
}
