// Package ferrors defines the machine-readable error taxonomy shared by the
// consensus, transport, registry, adapter, and resolver packages. Every
// user-visible failure carries a short Kind tag plus a human-readable
// message, so a caller across an RPC or CLI boundary can branch on Kind
// without parsing strings.
package ferrors

import "fmt"

// Kind tags the taxonomy of errors described in the orchestrator's error
// handling design: transport, persistence, consensus protocol, registry
// validation, and adapter errors.
type Kind string

const (
	// Transport
	KindTimeout           Kind = "timeout"
	KindConnectionRefused Kind = "connection_refused"
	KindHTTPStatus        Kind = "http_status"
	KindMalformedResponse Kind = "malformed_response"

	// Persistence
	KindIOError      Kind = "io_error"
	KindCorruptRecord Kind = "corrupt_record"
	KindDiskFull     Kind = "disk_full"

	// Consensus protocol
	KindNotLeader    Kind = "not_leader"
	KindTermChanged  Kind = "term_changed"
	KindLogMismatch  Kind = "log_mismatch"

	// Registry validation
	KindUnknownAdapter       Kind = "unknown_adapter"
	KindUnknownStore         Kind = "unknown_store"
	KindDuplicateStore       Kind = "duplicate_store"
	KindModalityNotSupported Kind = "modality_not_supported"

	// Adapter
	KindUnsupportedModality Kind = "unsupported_modality"
	KindBackendError        Kind = "backend_error"
	KindAuthFailed          Kind = "auth_failed"
	KindDecodeError         Kind = "decode_error"
	KindUnreachable         Kind = "unreachable"
	KindUnhealthy           Kind = "unhealthy"

	// Resolver
	KindMalformedRequest Kind = "malformed_request"
)

// Error is the structured error type returned across every package boundary
// in this module.
type Error struct {
	Kind    Kind
	Message string
	LeaderID string // set only for KindNotLeader, when the rejecting node knows the leader
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ferrors.New(kind, "")) to match purely on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error with the given kind wrapping a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotLeader constructs the not_leader error carrying the suggested leader,
// when known.
func NotLeader(leaderID string) *Error {
	return &Error{Kind: KindNotLeader, Message: "this node is not the Raft leader", LeaderID: leaderID}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
