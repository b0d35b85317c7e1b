package tendermint

import "errors"

var (
	// ErrStaleHeight is returned when a message or proposal targets a
	// height the driver has already moved past.
	ErrStaleHeight = errors.New("tendermint: message targets a stale height")
	// ErrInvalidProposer is returned when a proposal's signer does not
	// match the slot due to propose at this round.
	ErrInvalidProposer = errors.New("tendermint: proposal signer is not the due proposer")
	// ErrInvalidSignature is returned when a proposal or vote signature
	// fails verification.
	ErrInvalidSignature = errors.New("tendermint: invalid signature")
	// ErrLockedOnOtherValue is returned when this validator is locked on
	// a value and has not observed sufficient evidence to unlock.
	ErrLockedOnOtherValue = errors.New("tendermint: locked on a different value")
	// ErrDecidedBodyInvalid reports a protocol invariant violation: a
	// decided macro block failed verification at the blockchain layer, or
	// the decided hash has no proposal the driver knows. Run returns it
	// and stops, per spec.md §4.3.
	ErrDecidedBodyInvalid = errors.New("tendermint: decided body failed blockchain verification")
)
