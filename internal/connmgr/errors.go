package connmgr

import (
	"strconv"

	"github.com/coachpo/feedgate/internal/errs"
)

const component = "connmgr"

func errTimeout(msg string) error {
	return errs.New(component, errs.CodeTimeout, errs.WithMessage(msg))
}

func errConnectFailed(cause error) error {
	return errs.New(component, errs.CodeNetwork, errs.WithMessage("connect failed"), errs.WithCause(cause))
}

func errInvalidConfig(msg string) error {
	return errs.New(component, errs.CodeInvalid, errs.WithMessage(msg))
}

func errNotOpen() error {
	return errs.New(component, errs.CodeUnavailable, errs.WithMessage("connection not open"))
}

func errNetworkIssue(cause error) error {
	return errs.New(component, errs.CodeNetwork, errs.WithMessage("network issue"), errs.WithCause(cause))
}

func errStreamLimitReached(limit int) error {
	return errs.New(component, errs.CodeResource, errs.WithMessage("stream limit reached"),
		errs.WithContext("maxStreams", strconv.Itoa(limit)))
}

func errReconnectExhausted() error {
	return errs.New(component, errs.CodeUnavailable, errs.WithMessage("reconnect attempts exhausted"))
}

func errCircuitOpen() error {
	return errs.New(component, errs.CodeUnavailable, errs.WithMessage("circuit breaker open"))
}

func errDestroyed() error {
	return errs.New(component, errs.CodeDestroyed, errs.WithMessage("connection manager destroyed"))
}
