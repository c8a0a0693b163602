// Package errs provides structured error types and helpers for feedgate.
package errs

import (
	"sort"
	"strconv"
	"strings"
)

// Code identifies a canonical error category shared across the connection
// manager, adapter, publisher, integration, and registry.
type Code string

const (
	// CodeNetwork indicates a transient transport failure: dial, read, write,
	// DNS, reset, or heartbeat timeout. Recoverable; drives reconnects.
	CodeNetwork Code = "network"
	// CodeRateLimit indicates the venue signaled an over-quota condition.
	CodeRateLimit Code = "rate_limit"
	// CodeAuth indicates invalid credentials or a signature failure. Fatal
	// per-instance; no auto-retry.
	CodeAuth Code = "auth"
	// CodeDataFormat indicates a malformed frame or JSON parse failure.
	// Never fatal; the record is dropped and a counter incremented.
	CodeDataFormat Code = "data_format"
	// CodeResource indicates a memory, goroutine, or connection-count limit
	// was exceeded.
	CodeResource Code = "resource"
	// CodeCritical indicates an internal invariant violation. The owning
	// instance is stopped and marked unhealthy.
	CodeCritical Code = "critical"
	// CodeInvalid indicates invalid input supplied by the caller.
	CodeInvalid Code = "invalid"
	// CodeNotFound indicates a missing resource (adapter, instance, route).
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a concurrent mutation conflict (already exists,
	// already running).
	CodeConflict Code = "conflict"
	// CodeUnavailable indicates the target is temporarily unusable (bus
	// closed, circuit open).
	CodeUnavailable Code = "unavailable"
	// CodeTimeout indicates a suspending operation exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeDestroyed indicates the operation raced a destroy() call.
	CodeDestroyed Code = "destroyed"
)

// Classification buckets errors the way spec §7 and §4.2 do for
// AdapterStatus.health and error(err, ctx) events.
type Classification string

const (
	ClassNetwork    Classification = "network"
	ClassRateLimit  Classification = "rateLimit"
	ClassAuth       Classification = "auth"
	ClassDataFormat Classification = "dataFormat"
	ClassCritical   Classification = "critical"
	ClassWarning    Classification = "warning"
)

// ClassificationForCode maps a Code onto the coarser AdapterStatus
// classification buckets used for health scoring.
func ClassificationForCode(code Code) Classification {
	switch code {
	case CodeNetwork, CodeTimeout, CodeUnavailable:
		return ClassNetwork
	case CodeRateLimit:
		return ClassRateLimit
	case CodeAuth:
		return ClassAuth
	case CodeDataFormat:
		return ClassDataFormat
	case CodeCritical:
		return ClassCritical
	default:
		return ClassWarning
	}
}

// E captures structured error information produced across the feedgate
// stack: which component raised it, what canonical code it belongs to, and
// (optionally) what caused it.
type E struct {
	Component string
	Code      Code
	Message   string
	Context   map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) { e.Message = trimmed }
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) { e.cause = err }
}

// WithContext attaches a single key/value of diagnostic context, e.g.
// operation name, timestamp, or stream name.
func WithContext(key, value string) Option {
	return func(e *E) {
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if e.Context == nil {
			e.Context = make(map[string]string, 1)
		}
		e.Context[key] = value
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "feedgate"
	}
	parts = append(parts, component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Context[k]))
		}
		parts = append(parts, strings.Join(pairs, " "))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Is reports whether target is an *E with the same Code, so that
// errors.Is(err, errs.New("", errs.CodeTimeout)) works for sentinel-style
// comparisons without pinning Component/Message.
func (e *E) Is(target error) bool {
	other, ok := target.(*E)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
