// Package errcode defines the error taxonomy shared by the relayer services
// and the HTTP layer. Services translate low-level failures into one of these
// kinds at their boundary; the HTTP layer maps kinds onto status codes.
package errcode

import (
	"github.com/pkg/errors"
)

// Kind classifies an error for API mapping and retry decisions.
type Kind string

const (
	// Validation indicates malformed input at the API boundary.
	Validation Kind = "VALIDATION"
	// NotFound indicates an unknown market or absent resource.
	NotFound Kind = "NOT_FOUND"
	// Conflict indicates a duplicate attestation or state transition.
	Conflict Kind = "CONFLICT"
	// SignatureInvalid indicates a signature that does not recover to the
	// claimed signer.
	SignatureInvalid Kind = "SIGNATURE_INVALID"
	// NotParticipant indicates a signer with no stake in the market.
	NotParticipant Kind = "NOT_PARTICIPANT"
	// OutcomeMismatch indicates an attested outcome differing from the
	// signer's stake or the active proposal.
	OutcomeMismatch Kind = "OUTCOME_MISMATCH"
	// NoActiveProposal indicates a market without a live proposal.
	NoActiveProposal Kind = "NO_ACTIVE_PROPOSAL"
	// ChainUnavailable indicates transport or timeout failure against the
	// chain RPC endpoint.
	ChainUnavailable Kind = "CHAIN_UNAVAILABLE"
	// ContractCall indicates a reverted or failed contract call.
	ContractCall Kind = "CONTRACT_CALL"
	// RateLimited indicates the client exceeded its request budget.
	RateLimited Kind = "RATE_LIMIT_EXCEEDED"
	// Internal is the fallback for anything unclassified.
	Internal Kind = "INTERNAL"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New returns an error of the given kind with a plain message.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Newf returns an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap annotates err with a message and tags it with the given kind. A nil
// err returns nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// KindOf extracts the kind from err, walking the wrap chain. Untagged errors
// report Internal.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
