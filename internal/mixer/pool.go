// pool.go - Pool state machine: lifecycle, deposit and withdraw protocols.
//
// The pool binds externally verified proofs to the tree engine, the root
// history, and the nullifier registry. Execution is serialized: one
// state-mutating call at a time against the shared state, with all storage
// writes of a call committed in a single atomic batch.

package mixer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

// Identities are the deployment-time identities the pool checks calls
// against. The verifier identities are the external proof authorizers: the
// pool never runs proof verification itself.
type Identities struct {
	Pool               Address // the pool's own account, receiver of deposits
	Creator            Address // only the creator may initialize
	DepositVerifier    Address
	WithdrawalVerifier Address
}

// Pool is one deployed privacy pool instance.
type Pool struct {
	mu         sync.Mutex
	cfg        *Config
	store      Store
	nullifiers *NullifierRegistry
	ids        Identities

	// Cached copy of the persisted state record.
	initialized   bool
	leaves        uint64
	root          []byte
	nextRootIndex uint32
	treasury      Address
}

// DepositResult reports where the commitment landed.
type DepositResult struct {
	LeafIndex uint64
	Root      []byte
}

// WithdrawResult reports the inserted change position, the current root,
// and the outbound value transfers the host must apply.
type WithdrawResult struct {
	LeafIndex uint64
	Root      []byte
	Payouts   []Payment
}

// NewPool opens a pool over the store, creating the state record if this is
// a fresh deployment. A freshly created pool must be initialized with Init
// before accepting deposits or withdrawals.
func NewPool(cfg *Config, store Store, ids Identities) (*Pool, error) {
	p := &Pool{
		cfg:        cfg,
		store:      store,
		nullifiers: NewNullifierRegistry(store),
		ids:        ids,
	}
	raw, found, err := store.Get(KeyState)
	if err != nil {
		return nil, fmt.Errorf("read pool state: %w", err)
	}
	if found {
		if err := p.decodeState(raw); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err := store.WriteBatch([]KV{p.stateKV()}); err != nil {
		return nil, fmt.Errorf("create pool state: %w", err)
	}
	return p, nil
}

// Init performs the one-time initialization: it allocates the two fixed
// regions, seeds the frontier with the zero-hash table, records the empty
// root as the first history entry, and flips the irreversible initialized
// latch. Creator only.
func (p *Pool) Init(sender Address, treasury Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sender != p.ids.Creator {
		return ErrNotCreator
	}
	if p.initialized {
		return ErrAlreadyInitialized
	}

	tree := NewTree(p.cfg)
	history := NewRootHistory(p.cfg)
	history.Push(p.cfg.EmptyRoot)

	p.initialized = true
	p.leaves = 0
	p.root = p.cfg.EmptyRoot
	p.nextRootIndex = history.Next()
	p.treasury = treasury

	err := p.store.WriteBatch([]KV{
		{Key: KeySubtree, Value: tree.Frontier()},
		{Key: KeyRoots, Value: history.Slots()},
		p.stateKV(),
	})
	if err != nil {
		p.initialized = false
		return fmt.Errorf("initialize pool: %w", err)
	}
	return nil
}

// Deposit validates a proof-carrying deposit call at group position index
// and inserts the commitment. Public inputs: [amount, commitment]. The
// operation at index+1 must be the paired payment of exactly amount from
// the claimed sender to the pool.
//
// On any failure no state mutates.
func (p *Pool) Deposit(group *Group, index int) (*DepositResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, ErrNotInitialized
	}
	if err := ensureBudget(group, p.cfg.DepositBudget); err != nil {
		return nil, err
	}
	call, err := appCallAt(group, index, MethodDeposit)
	if err != nil {
		return nil, err
	}
	if len(call.PublicInputs) < 2 ||
		len(call.PublicInputs[0]) != 32 || len(call.PublicInputs[1]) != 32 {
		return nil, fmt.Errorf("%w: deposit needs [amount, commitment] public inputs", ErrMalformedCall)
	}
	amount := valueFromBytes32(call.PublicInputs[0])
	commitment := call.PublicInputs[1]

	if call.Signer != p.ids.DepositVerifier {
		return nil, ErrUnauthorizedProof
	}

	// The payment must be the immediately following operation in the group.
	if index+1 >= len(group.Txns) {
		return nil, fmt.Errorf("%w: no following payment", ErrInvalidPairedTransfer)
	}
	pay, ok := group.Txns[index+1].(*Payment)
	if !ok {
		return nil, fmt.Errorf("%w: following operation is not a payment", ErrInvalidPairedTransfer)
	}
	if pay.Receiver != p.ids.Pool {
		return nil, fmt.Errorf("%w: wrong receiver", ErrInvalidPairedTransfer)
	}
	if pay.Amount != amount {
		return nil, fmt.Errorf("%w: incorrect amount received", ErrInvalidPairedTransfer)
	}
	if pay.Amount < p.cfg.DepositMinimum {
		return nil, fmt.Errorf("%w: amount is less than minimum deposit", ErrInvalidPairedTransfer)
	}
	if pay.Sender != call.Sender {
		return nil, fmt.Errorf("%w: sender is not the expected one", ErrInvalidPairedTransfer)
	}

	if p.leaves >= p.cfg.MaxLeaves() {
		return nil, ErrTreeFull
	}

	tree, history, err := p.loadEngine()
	if err != nil {
		return nil, err
	}
	root, err := tree.Insert(commitment)
	if err != nil {
		return nil, err
	}
	history.Push(root)

	if err := p.commit(tree, history, root, nil); err != nil {
		return nil, err
	}
	return &DepositResult{LeafIndex: p.leaves - 1, Root: p.root}, nil
}

// Withdraw validates a proof-carrying withdrawal call at group position
// index, consumes the nullifier, emits the payouts, and re-inserts the
// change commitment(s) unless NoChange is set. Public inputs:
// [recipient_mod, withdrawal, fee, nullifier, root, commitment(s)...] with
// as many trailing commitments as the deployment's ChangeCommitments.
//
// On any failure no state mutates and no payout is emitted.
func (p *Pool) Withdraw(group *Group, index int) (*WithdrawResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, ErrNotInitialized
	}
	if err := ensureBudget(group, p.cfg.WithdrawalBudget); err != nil {
		return nil, err
	}
	call, err := appCallAt(group, index, MethodWithdraw)
	if err != nil {
		return nil, err
	}
	need := 5 + p.cfg.ChangeCommitments
	if len(call.PublicInputs) < need {
		return nil, fmt.Errorf("%w: withdraw needs %d public inputs, got %d",
			ErrMalformedCall, need, len(call.PublicInputs))
	}
	for i := 0; i < need; i++ {
		if len(call.PublicInputs[i]) != 32 {
			return nil, fmt.Errorf("%w: public input %d is not 32 bytes", ErrMalformedCall, i)
		}
	}
	recipientMod := call.PublicInputs[0]
	withdrawal := valueFromBytes32(call.PublicInputs[1])
	fee := valueFromBytes32(call.PublicInputs[2])
	nullifier := call.PublicInputs[3]
	root := call.PublicInputs[4]
	commitments := call.PublicInputs[5:need]

	// The proof commits to a field element, not an address: bind it to the
	// actual recipient before anything else.
	if !bytes.Equal(recipientMod, RecipientMod(call.Recipient, p.cfg.CurveOrder)) {
		return nil, ErrRecipientMismatch
	}

	if call.Signer != p.ids.WithdrawalVerifier {
		return nil, ErrUnauthorizedProof
	}

	// Test-and-set the nullifier before any irreversible transfer. The
	// staged record commits with the rest of the batch.
	nullifierKV, err := p.nullifiers.Register(nullifier)
	if err != nil {
		return nil, err
	}

	tree, history, err := p.loadEngine()
	if err != nil {
		return nil, err
	}
	if !history.Contains(root) {
		return nil, ErrInvalidRoot
	}

	if fee < p.cfg.NullifierMBR {
		return nil, ErrFeeTooLow
	}

	payouts := []Payment{{Sender: p.ids.Pool, Receiver: call.Recipient, Amount: withdrawal}}
	if fee > p.cfg.NullifierMBR {
		payouts = append(payouts, Payment{
			Sender:   p.ids.Pool,
			Receiver: call.FeeRecipient,
			Amount:   fee - p.cfg.NullifierMBR,
		})
	}

	newRoot := p.root
	if !call.NoChange {
		for _, commitment := range commitments {
			newRoot, err = tree.Insert(commitment)
			if err != nil {
				return nil, err
			}
			history.Push(newRoot)
		}
	} else if p.leaves == 0 {
		return nil, fmt.Errorf("%w: no leaves inserted", ErrMalformedCall)
	}

	if err := p.commit(tree, history, newRoot, &nullifierKV); err != nil {
		return nil, err
	}

	leafIndex := p.leaves - 1
	if !call.NoChange {
		leafIndex = p.leaves - uint64(len(commitments))
	}
	return &WithdrawResult{LeafIndex: leafIndex, Root: p.root, Payouts: payouts}, nil
}

// Initialized reports whether the one-way latch has flipped.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Leaves returns the inserted leaves count.
func (p *Pool) Leaves() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leaves
}

// Root returns the current tree root.
func (p *Pool) Root() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	root := make([]byte, len(p.root))
	copy(root, p.root)
	return root
}

// Treasury returns the treasury identity recorded at initialization. It is
// stored for reference by frontends; the pool itself does not use it.
func (p *Pool) Treasury() Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.treasury
}

// HasRoot reports whether root is within the retained history window.
func (p *Pool) HasRoot(root []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return false, ErrNotInitialized
	}
	_, history, err := p.loadEngine()
	if err != nil {
		return false, err
	}
	return history.Contains(root), nil
}

// Spent reports whether the nullifier was consumed.
func (p *Pool) Spent(nullifier []byte) (bool, error) {
	return p.nullifiers.Spent(nullifier)
}

// loadEngine restores the tree and the root history from the store regions.
func (p *Pool) loadEngine() (*Tree, *RootHistory, error) {
	frontier, found, err := p.store.Get(KeySubtree)
	if err != nil {
		return nil, nil, fmt.Errorf("read subtree region: %w", err)
	}
	if !found {
		return nil, nil, fmt.Errorf("subtree region missing")
	}
	tree, err := LoadTree(p.cfg, frontier, p.leaves)
	if err != nil {
		return nil, nil, err
	}
	slots, found, err := p.store.Get(KeyRoots)
	if err != nil {
		return nil, nil, fmt.Errorf("read roots region: %w", err)
	}
	if !found {
		return nil, nil, fmt.Errorf("roots region missing")
	}
	history, err := LoadRootHistory(p.cfg, slots, p.nextRootIndex)
	if err != nil {
		return nil, nil, err
	}
	return tree, history, nil
}

// commit applies one call's writes as a single batch, then refreshes the
// cached state. extra carries the staged nullifier record, if any.
func (p *Pool) commit(tree *Tree, history *RootHistory, root []byte, extra *KV) error {
	leaves, next, prevRoot := p.leaves, p.nextRootIndex, p.root
	p.leaves = tree.Leaves()
	p.nextRootIndex = history.Next()
	p.root = append([]byte(nil), root...)

	kvs := []KV{
		{Key: KeySubtree, Value: tree.Frontier()},
		{Key: KeyRoots, Value: history.Slots()},
		p.stateKV(),
	}
	if extra != nil {
		kvs = append(kvs, *extra)
	}
	if err := p.store.WriteBatch(kvs); err != nil {
		p.leaves, p.nextRootIndex, p.root = leaves, next, prevRoot
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// State record layout: initialized(1) | leaves(8) | root(32) |
// nextRootIndex(4) | treasury(32), big endian.
const stateRecordSize = 1 + 8 + 32 + 4 + 32

func (p *Pool) stateKV() KV {
	buf := make([]byte, stateRecordSize)
	if p.initialized {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:9], p.leaves)
	copy(buf[9:41], p.root)
	binary.BigEndian.PutUint32(buf[41:45], p.nextRootIndex)
	copy(buf[45:77], p.treasury[:])
	return KV{Key: KeyState, Value: buf}
}

func (p *Pool) decodeState(raw []byte) error {
	if len(raw) != stateRecordSize {
		return fmt.Errorf("pool state record must be %d bytes, got %d", stateRecordSize, len(raw))
	}
	p.initialized = raw[0] == 1
	p.leaves = binary.BigEndian.Uint64(raw[1:9])
	p.root = append([]byte(nil), raw[9:41]...)
	p.nextRootIndex = binary.BigEndian.Uint32(raw[41:45])
	copy(p.treasury[:], raw[45:77])
	return nil
}
