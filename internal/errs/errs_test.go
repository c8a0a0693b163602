package errs

import (
	"errors"
	"testing"
)

func TestClassificationForCode(t *testing.T) {
	cases := []struct {
		code Code
		want Classification
	}{
		{CodeNetwork, ClassNetwork},
		{CodeTimeout, ClassNetwork},
		{CodeUnavailable, ClassNetwork},
		{CodeRateLimit, ClassRateLimit},
		{CodeAuth, ClassAuth},
		{CodeDataFormat, ClassDataFormat},
		{CodeCritical, ClassCritical},
		{CodeInvalid, ClassWarning},
	}
	for _, tc := range cases {
		if got := ClassificationForCode(tc.code); got != tc.want {
			t.Errorf("ClassificationForCode(%s) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New("connmgr", CodeTimeout)
	wrapped := New("connmgr", CodeTimeout, WithMessage("ping timed out"), WithCause(errors.New("deadline")))

	if !errors.Is(wrapped, base) {
		t.Fatalf("expected errors.Is to match on Code")
	}

	other := New("connmgr", CodeNetwork)
	if errors.Is(wrapped, other) {
		t.Fatalf("expected errors.Is to not match different Code")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New("publisher", CodeUnavailable, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}

func TestErrorMessageFormatting(t *testing.T) {
	err := New("adapter", CodeDataFormat, WithMessage("bad frame"), WithContext("stream", "btcusdt@trade"))
	got := err.Error()
	if got == "" {
		t.Fatalf("expected non-empty error string")
	}
}
