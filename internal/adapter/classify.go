package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/coachpo/feedgate/internal/errs"
)

// classify buckets an arbitrary error into the adapter's five-way error
// taxonomy (network, rateLimit, auth, dataFormat, critical; anything else
// falls back to warning). If err already carries an *errs.E, its Code is
// trusted directly; otherwise the error string is pattern-matched, mirroring
// the exchange venues' habit of encoding the reason in a free-text message.
func classify(err error) errs.Classification {
	if err == nil {
		return errs.ClassWarning
	}

	var e *errs.E
	if errors.As(err, &e) {
		return errs.ClassificationForCode(e.Code)
	}

	if errors.Is(err, context.Canceled) {
		return errs.ClassWarning
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "dial"), strings.Contains(msg, "websocket"),
		strings.Contains(msg, "remote closed"), strings.Contains(msg, "reconnect"),
		strings.Contains(msg, "network"), strings.Contains(msg, "timeout"):
		return errs.ClassNetwork
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return errs.ClassRateLimit
	case strings.Contains(msg, "auth"), strings.Contains(msg, "signature"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "forbidden"):
		return errs.ClassAuth
	case strings.Contains(msg, "decode"), strings.Contains(msg, "parse"),
		strings.Contains(msg, "unmarshal"), strings.Contains(msg, "malformed"):
		return errs.ClassDataFormat
	case strings.Contains(msg, "invariant"), strings.Contains(msg, "panic"),
		strings.Contains(msg, "corrupt"):
		return errs.ClassCritical
	default:
		return errs.ClassWarning
	}
}
