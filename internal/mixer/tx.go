// tx.go - Transaction group model for pool entry points.
//
// The host platform delivers deposits and withdrawals as application calls
// inside an atomic group, with an optional adjacent payment. The pool reads
// the group, never the transport: method dispatch and wire encoding are the
// host's concern.

package mixer

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
)

// Method names of the pool entry points.
const (
	MethodDeposit  = "deposit"
	MethodWithdraw = "withdraw"
)

// Address is a 32-byte on-chain identity.
type Address [32]byte

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Txn is one operation in an atomic group.
type Txn interface {
	isTxn()
}

// Payment transfers value between two identities.
type Payment struct {
	Sender   Address
	Receiver Address
	Amount   uint64
}

func (*Payment) isTxn() {}

// AppCall is a proof-carrying call to a pool entry point. Signer is the
// top-level signer of the call; the pool treats a match with the configured
// verifier identity as evidence that the off-chain proof verification
// passed.
type AppCall struct {
	Method       string
	Signer       Address
	Proof        []byte
	PublicInputs [][]byte // ordered 32-byte field elements

	// Deposit: the claimed depositor, matched against the paired payment.
	Sender Address

	// Withdraw arguments.
	Recipient    Address
	FeeRecipient Address
	NoChange     bool
}

func (*AppCall) isTxn() {}

// Group is an atomic group of operations sharing one pre-purchased compute
// budget. All effects of a group commit together or not at all.
type Group struct {
	Txns   []Txn
	Budget uint64
}

// ensureBudget is the admission check: the group must carry enough compute
// budget before any state is touched. Fail fast, never partial progress.
func ensureBudget(g *Group, cost uint64) error {
	if g.Budget < cost {
		return ErrBudgetExhausted
	}
	g.Budget -= cost
	return nil
}

// appCallAt returns the app call at the given group position, checking the
// method name.
func appCallAt(g *Group, index int, method string) (*AppCall, error) {
	if index < 0 || index >= len(g.Txns) {
		return nil, ErrMalformedCall
	}
	call, ok := g.Txns[index].(*AppCall)
	if !ok || call.Method != method {
		return nil, ErrMalformedCall
	}
	return call, nil
}

// valueFromBytes32 reads a value from the low 8 bytes of a 32-byte field
// element. The high 24 bytes are not checked: the proof circuits constrain
// them to zero, so the pool trusts the truncation.
func valueFromBytes32(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[24:32])
}

// Uint64ToBytes32 encodes a value as a big-endian 32-byte field element,
// the inverse of valueFromBytes32 for in-range values.
func Uint64ToBytes32(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// RecipientMod reduces a 32-byte identity modulo the curve order and
// zero-pads the result back to 32 bytes. The proof can only commit to a
// field element, so this is the binding between the proved recipient and
// the identity funds are sent to.
func RecipientMod(recipient Address, curveOrder *big.Int) []byte {
	m := new(big.Int).SetBytes(recipient[:])
	m.Mod(m, curveOrder)
	out := make([]byte, 32)
	m.FillBytes(out)
	return out
}
