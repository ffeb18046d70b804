package ledger

import (
	"errors"
	"fmt"

	dErrors "certchain/pkg/domain-errors"
)

// ErrorKind classifies ledger failures. None of them are retried by the
// gateway; retry is always a caller decision.
type ErrorKind string

const (
	// KindNetworkNotProvisioned: the deployment descriptor has no entry for
	// the network. Permanent until the user switches networks.
	KindNetworkNotProvisioned ErrorKind = "network_not_provisioned"

	// KindInvocationRejected: the provider or the contract refused a
	// state-changing call. The reason is attached.
	KindInvocationRejected ErrorKind = "invocation_rejected"

	// KindNetworkMismatch: the binding was created for a network identity
	// that is no longer current.
	KindNetworkMismatch ErrorKind = "network_mismatch"

	// KindQueryFailed: a read-only call failed. The binding stays valid.
	KindQueryFailed ErrorKind = "query_failed"
)

// Sentinels for errors.Is matching against *Error.
var (
	ErrNetworkNotProvisioned = &Error{Kind: KindNetworkNotProvisioned}
	ErrInvocationRejected    = &Error{Kind: KindInvocationRejected}
	ErrNetworkMismatch       = &Error{Kind: KindNetworkMismatch}
	ErrQueryFailed           = &Error{Kind: KindQueryFailed}
)

// Error is a categorized ledger failure.
type Error struct {
	Kind      ErrorKind
	Method    string
	NetworkID uint64
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Method != "" {
		msg = fmt.Sprintf("%s: %s", e.Method, msg)
	}
	if e.NetworkID != 0 {
		msg = fmt.Sprintf("%s (network %d)", msg, e.NetworkID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Reason returns the provider or contract reason for a failure, or the
// error text when no reason is attached.
func Reason(err error) string {
	var lerr *Error
	if errors.As(err, &lerr) && lerr.Err != nil {
		return lerr.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DomainCode maps a ledger failure onto the shared domain error codes.
func DomainCode(err error) dErrors.Code {
	var lerr *Error
	if !errors.As(err, &lerr) {
		return dErrors.CodeInternal
	}
	switch lerr.Kind {
	case KindNetworkNotProvisioned:
		return dErrors.CodeUnavailable
	case KindInvocationRejected:
		return dErrors.CodeLedgerRejected
	case KindNetworkMismatch:
		return dErrors.CodeNetworkMismatch
	case KindQueryFailed:
		return dErrors.CodeQueryFailed
	default:
		return dErrors.CodeInternal
	}
}

// AsDomainError wraps a ledger failure so transport layers can map it without
// knowing ledger kinds. The ledger reason is kept as the message.
func AsDomainError(err error) error {
	if err == nil {
		return nil
	}
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		return err
	}
	return dErrors.Wrap(err, DomainCode(err), Reason(err))
}

func newError(kind ErrorKind, method string, networkID uint64, err error) *Error {
	return &Error{Kind: kind, Method: method, NetworkID: networkID, Err: err}
}
