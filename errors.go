package agentv

import "fmt"

// Kind is an error category used across providers, evaluators, and the
// dispatcher (§7 of the spec). Kind is attached to a Go error via *Error so
// callers can switch on it with errors.As.
type Kind string

const (
	KindInvalidConfig     Kind = "invalid_config"
	KindProviderTimeout   Kind = "provider_timeout"
	KindProviderBackend   Kind = "provider_backend"
	KindProviderProtocol  Kind = "provider_protocol"
	KindEvaluatorParse    Kind = "evaluator_parse"
	KindEvaluatorScript   Kind = "evaluator_script"
	KindEvaluatorTimeout  Kind = "evaluator_timeout"
	KindWorkspace         Kind = "workspace_error"
	KindWriter            Kind = "writer_error"
	KindCancelled         Kind = "cancelled"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindUnknownEvaluator  Kind = "unknown_evaluator_kind"
)

// Error wraps an underlying cause with a Kind so the dispatcher and writers
// can decide how to surface it without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error, the usual way components in this module report
// a classified failure.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or something it wraps) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok { //nolint:errorlint // walking a manual chain below too
			e = ae
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
