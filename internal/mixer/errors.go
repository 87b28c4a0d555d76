// errors.go - Error taxonomy for the pool protocols.
//
// Every failure is a whole-call abort: when any of these is returned, no
// state has been committed. None of them is ever silently swallowed.

package mixer

import "errors"

var (
	// ErrUnauthorizedProof means the call was not countersigned by the
	// configured proof verifier identity.
	ErrUnauthorizedProof = errors.New("transaction is not signed by the proof verifier")

	// ErrInvalidPairedTransfer means the deposit's companion payment is
	// missing or does not match the claimed sender, receiver, or amount.
	ErrInvalidPairedTransfer = errors.New("paired payment missing or mismatched")

	// ErrTreeFull means the tree reached capacity; permanent for this pool.
	ErrTreeFull = errors.New("tree is full")

	// ErrAlreadySpent means the nullifier was registered before; permanent
	// for that nullifier.
	ErrAlreadySpent = errors.New("nullifier already exists")

	// ErrInvalidRoot means the proof references a root outside the retained
	// history window; retryable with a fresh proof.
	ErrInvalidRoot = errors.New("invalid root")

	// ErrFeeTooLow means the protocol fee does not cover the nullifier
	// record storage cost; retryable with a higher fee.
	ErrFeeTooLow = errors.New("fee too low")

	// ErrRecipientMismatch means the recipient public input does not equal
	// the recipient identity reduced modulo the curve order.
	ErrRecipientMismatch = errors.New("recipient address mod does not match")

	// ErrBudgetExhausted means the call group did not carry enough compute
	// budget; checked before any state is touched.
	ErrBudgetExhausted = errors.New("compute budget exhausted")

	// ErrMalformedCall means the call arguments could not be interpreted
	// (wrong method, missing public inputs, bad group position).
	ErrMalformedCall = errors.New("malformed application call")

	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNotCreator         = errors.New("sender is not the pool creator")
)
