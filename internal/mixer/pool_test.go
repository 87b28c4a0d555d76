package mixer

import (
	"bytes"
	"errors"
	"testing"
)

func addr(b byte) Address {
	var a Address
	for i := range a {
		a[i] = b
	}
	return a
}

var (
	poolAddr     = addr(0x01)
	creatorAddr  = addr(0x02)
	depVerifier  = addr(0x03)
	witVerifier  = addr(0x04)
	treasuryAddr = addr(0x05)
	depositor    = addr(0x06)
	recipient    = addr(0x07)
	feeRecipient = addr(0x08)
)

func testIdentities() Identities {
	return Identities{
		Pool:               poolAddr,
		Creator:            creatorAddr,
		DepositVerifier:    depVerifier,
		WithdrawalVerifier: witVerifier,
	}
}

func newTestPool(t *testing.T, depth, rootsCount, changeCommitments int) (*Pool, *Config, *memStore) {
	t.Helper()
	cfg := testConfig(t, depth, rootsCount, changeCommitments)
	store := newMemStore()
	pool, err := NewPool(cfg, store, testIdentities())
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if err := pool.Init(creatorAddr, treasuryAddr); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return pool, cfg, store
}

func depositGroup(cfg *Config, amount uint64, commitment []byte) *Group {
	return &Group{
		Txns: []Txn{
			&AppCall{
				Method:       MethodDeposit,
				Signer:       depVerifier,
				PublicInputs: [][]byte{Uint64ToBytes32(amount), commitment},
				Sender:       depositor,
			},
			&Payment{Sender: depositor, Receiver: poolAddr, Amount: amount},
		},
		Budget: cfg.DepositBudget,
	}
}

func withdrawGroup(cfg *Config, withdrawal, fee uint64, nullifier, root []byte, commitments ...[]byte) *Group {
	inputs := [][]byte{
		RecipientMod(recipient, cfg.CurveOrder),
		Uint64ToBytes32(withdrawal),
		Uint64ToBytes32(fee),
		nullifier,
		root,
	}
	inputs = append(inputs, commitments...)
	return &Group{
		Txns: []Txn{
			&AppCall{
				Method:       MethodWithdraw,
				Signer:       witVerifier,
				PublicInputs: inputs,
				Recipient:    recipient,
				FeeRecipient: feeRecipient,
			},
		},
		Budget: cfg.WithdrawalBudget,
	}
}

func mustDeposit(t *testing.T, pool *Pool, cfg *Config, amount uint64, commitment []byte) *DepositResult {
	t.Helper()
	res, err := pool.Deposit(depositGroup(cfg, amount, commitment), 0)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	return res
}

func TestInitLifecycle(t *testing.T) {
	cfg := testConfig(t, 4, 4, 1)
	store := newMemStore()
	pool, err := NewPool(cfg, store, testIdentities())
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if pool.Initialized() {
		t.Fatal("fresh pool should not be initialized")
	}

	group := depositGroup(cfg, 1_000_000, testLeaf(cfg, 1))
	if _, err := pool.Deposit(group, 0); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := pool.Init(depositor, treasuryAddr); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if err := pool.Init(creatorAddr, treasuryAddr); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := pool.Init(creatorAddr, treasuryAddr); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	if !bytes.Equal(pool.Root(), cfg.EmptyRoot) {
		t.Error("fresh pool root should be the empty root")
	}
	if ok, err := pool.HasRoot(cfg.EmptyRoot); err != nil || !ok {
		t.Errorf("empty root should be in history: ok=%v err=%v", ok, err)
	}
	if pool.Treasury() != treasuryAddr {
		t.Error("treasury not recorded")
	}
}

func TestDepositInsertsCommitment(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)

	res := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))
	if res.LeafIndex != 0 {
		t.Errorf("first commitment should land at leaf 0, got %d", res.LeafIndex)
	}
	if pool.Leaves() != 1 {
		t.Errorf("leaves = %d, want 1", pool.Leaves())
	}
	if bytes.Equal(res.Root, cfg.EmptyRoot) {
		t.Error("root should change after insertion")
	}
	if ok, _ := pool.HasRoot(res.Root); !ok {
		t.Error("new root should be in history")
	}
	if ok, _ := pool.HasRoot(cfg.EmptyRoot); !ok {
		t.Error("empty root should still be in history")
	}
}

func TestDepositValidation(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	commitment := testLeaf(cfg, 1)

	cases := []struct {
		name   string
		mutate func(g *Group)
		want   error
	}{
		{"unauthorized signer", func(g *Group) {
			g.Txns[0].(*AppCall).Signer = depositor
		}, ErrUnauthorizedProof},
		{"missing payment", func(g *Group) {
			g.Txns = g.Txns[:1]
		}, ErrInvalidPairedTransfer},
		{"payment to wrong receiver", func(g *Group) {
			g.Txns[1].(*Payment).Receiver = depositor
		}, ErrInvalidPairedTransfer},
		{"payment amount mismatch", func(g *Group) {
			g.Txns[1].(*Payment).Amount = 999_999
		}, ErrInvalidPairedTransfer},
		{"payment from wrong sender", func(g *Group) {
			g.Txns[1].(*Payment).Sender = recipient
		}, ErrInvalidPairedTransfer},
		{"insufficient budget", func(g *Group) {
			g.Budget = cfg.DepositBudget - 1
		}, ErrBudgetExhausted},
		{"wrong method", func(g *Group) {
			g.Txns[0].(*AppCall).Method = MethodWithdraw
		}, ErrMalformedCall},
		{"malformed public inputs", func(g *Group) {
			g.Txns[0].(*AppCall).PublicInputs = [][]byte{Uint64ToBytes32(1_000_000)}
		}, ErrMalformedCall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			group := depositGroup(cfg, 1_000_000, commitment)
			tc.mutate(group)
			if _, err := pool.Deposit(group, 0); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if pool.Leaves() != 0 {
				t.Fatal("failed deposit must not mutate state")
			}
		})
	}

	// Amount below the deployment minimum, consistently paired.
	group := depositGroup(cfg, cfg.DepositMinimum-1, commitment)
	if _, err := pool.Deposit(group, 0); !errors.Is(err, ErrInvalidPairedTransfer) {
		t.Fatalf("expected ErrInvalidPairedTransfer for below-minimum amount, got %v", err)
	}
}

func TestDepositTreeFull(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 2, 8, 1)
	for i := 0; i < 4; i++ {
		mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, i))
	}
	group := depositGroup(cfg, 1_000_000, testLeaf(cfg, 4))
	if _, err := pool.Deposit(group, 0); !errors.Is(err, ErrTreeFull) {
		t.Fatalf("expected ErrTreeFull, got %v", err)
	}
}

func TestWithdrawLifecycle(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	nullifier := testLeaf(cfg, 2)
	change := testLeaf(cfg, 3)
	group := withdrawGroup(cfg, 400_000, cfg.NullifierMBR, nullifier, dep.Root, change)

	res, err := pool.Withdraw(group, 0)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if res.LeafIndex != 1 {
		t.Errorf("change leaf index = %d, want 1", res.LeafIndex)
	}
	if pool.Leaves() != 2 {
		t.Errorf("leaves = %d, want 2", pool.Leaves())
	}
	if len(res.Payouts) != 1 {
		t.Fatalf("payouts = %d, want 1", len(res.Payouts))
	}
	pay := res.Payouts[0]
	if pay.Sender != poolAddr || pay.Receiver != recipient || pay.Amount != 400_000 {
		t.Errorf("unexpected payout %+v", pay)
	}
	if spent, _ := pool.Spent(nullifier); !spent {
		t.Error("nullifier should be spent")
	}

	// A second spend of the same note must be rejected, even against the
	// newer root and with a fresh change commitment.
	replay := withdrawGroup(cfg, 400_000, cfg.NullifierMBR, nullifier, res.Root, testLeaf(cfg, 4))
	if _, err := pool.Withdraw(replay, 0); !errors.Is(err, ErrAlreadySpent) {
		t.Fatalf("expected ErrAlreadySpent, got %v", err)
	}
	if pool.Leaves() != 2 {
		t.Error("failed withdrawal must not mutate state")
	}
}

func TestWithdrawFeeSurplus(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR+250, testLeaf(cfg, 2), dep.Root, testLeaf(cfg, 3))
	res, err := pool.Withdraw(group, 0)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if len(res.Payouts) != 2 {
		t.Fatalf("payouts = %d, want 2", len(res.Payouts))
	}
	surplus := res.Payouts[1]
	if surplus.Receiver != feeRecipient || surplus.Amount != 250 {
		t.Errorf("unexpected fee payout %+v", surplus)
	}
}

func TestWithdrawRecipientBinding(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR, testLeaf(cfg, 2), dep.Root, testLeaf(cfg, 3))
	// Swap the recipient without updating the proved binding.
	group.Txns[0].(*AppCall).Recipient = depositor
	if _, err := pool.Withdraw(group, 0); !errors.Is(err, ErrRecipientMismatch) {
		t.Fatalf("expected ErrRecipientMismatch, got %v", err)
	}
	if pool.Leaves() != 1 {
		t.Error("failed withdrawal must not mutate state")
	}
}

func TestWithdrawValidation(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	cases := []struct {
		name   string
		mutate func(g *Group)
		want   error
	}{
		{"unauthorized signer", func(g *Group) {
			g.Txns[0].(*AppCall).Signer = depositor
		}, ErrUnauthorizedProof},
		{"unknown root", func(g *Group) {
			g.Txns[0].(*AppCall).PublicInputs[4] = testLeaf(cfg, 99)
		}, ErrInvalidRoot},
		{"fee below floor", func(g *Group) {
			g.Txns[0].(*AppCall).PublicInputs[2] = Uint64ToBytes32(cfg.NullifierMBR - 1)
		}, ErrFeeTooLow},
		{"insufficient budget", func(g *Group) {
			g.Budget = cfg.WithdrawalBudget - 1
		}, ErrBudgetExhausted},
		{"missing change commitment", func(g *Group) {
			call := g.Txns[0].(*AppCall)
			call.PublicInputs = call.PublicInputs[:5]
		}, ErrMalformedCall},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR,
				testLeaf(cfg, 10+i), dep.Root, testLeaf(cfg, 20+i))
			tc.mutate(group)
			if _, err := pool.Withdraw(group, 0); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if pool.Leaves() != 1 {
				t.Fatal("failed withdrawal must not mutate state")
			}
			if spent, _ := pool.Spent(testLeaf(cfg, 10+i)); spent {
				t.Fatal("failed withdrawal must not register the nullifier")
			}
		})
	}
}

func TestWithdrawRootEviction(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 3, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	// Each deposit pushes a root; three pushes evict dep.Root from the
	// three-slot window.
	for i := 2; i < 5; i++ {
		mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, i))
	}
	group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR, testLeaf(cfg, 10), dep.Root, testLeaf(cfg, 11))
	if _, err := pool.Withdraw(group, 0); !errors.Is(err, ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot for evicted root, got %v", err)
	}
}

func TestWithdrawNoChange(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	group := withdrawGroup(cfg, 1_000_000-cfg.NullifierMBR, cfg.NullifierMBR,
		testLeaf(cfg, 2), dep.Root, testLeaf(cfg, 3))
	group.Txns[0].(*AppCall).NoChange = true

	res, err := pool.Withdraw(group, 0)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if pool.Leaves() != 1 {
		t.Errorf("leaves = %d, want 1 (no change inserted)", pool.Leaves())
	}
	if !bytes.Equal(res.Root, dep.Root) {
		t.Error("root should not change on a full spend")
	}
}

func TestWithdrawTwoChangeCommitments(t *testing.T) {
	pool, cfg, _ := newTestPool(t, 4, 4, 2)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR, testLeaf(cfg, 2), dep.Root,
		testLeaf(cfg, 3), testLeaf(cfg, 4))
	res, err := pool.Withdraw(group, 0)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if pool.Leaves() != 3 {
		t.Errorf("leaves = %d, want 3", pool.Leaves())
	}
	if res.LeafIndex != 1 {
		t.Errorf("first change leaf index = %d, want 1", res.LeafIndex)
	}

	// The single-commitment input layout is short one element here.
	short := withdrawGroup(cfg, 100_000, cfg.NullifierMBR, testLeaf(cfg, 5), res.Root, testLeaf(cfg, 6))
	if _, err := pool.Withdraw(short, 0); !errors.Is(err, ErrMalformedCall) {
		t.Fatalf("expected ErrMalformedCall, got %v", err)
	}
}

func TestPoolReopenRestoresState(t *testing.T) {
	pool, cfg, store := newTestPool(t, 4, 4, 1)
	dep := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))

	reopened, err := NewPool(cfg, store, testIdentities())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !reopened.Initialized() {
		t.Fatal("reopened pool lost the initialized latch")
	}
	if reopened.Leaves() != 1 {
		t.Errorf("leaves = %d, want 1", reopened.Leaves())
	}
	if !bytes.Equal(reopened.Root(), dep.Root) {
		t.Error("reopened pool root differs")
	}

	group := withdrawGroup(cfg, 100_000, cfg.NullifierMBR, testLeaf(cfg, 2), dep.Root, testLeaf(cfg, 3))
	if _, err := reopened.Withdraw(group, 0); err != nil {
		t.Fatalf("withdraw on reopened pool failed: %v", err)
	}
}

func TestCommitFailureRollsBackCache(t *testing.T) {
	pool, cfg, store := newTestPool(t, 4, 4, 1)
	rootBefore := pool.Root()

	store.failWrites = true
	group := depositGroup(cfg, 1_000_000, testLeaf(cfg, 1))
	if _, err := pool.Deposit(group, 0); err == nil {
		t.Fatal("deposit should fail when the batch write fails")
	}
	if pool.Leaves() != 0 || !bytes.Equal(pool.Root(), rootBefore) {
		t.Fatal("cached state must roll back on commit failure")
	}

	store.failWrites = false
	res := mustDeposit(t, pool, cfg, 1_000_000, testLeaf(cfg, 1))
	if res.LeafIndex != 0 {
		t.Errorf("leaf index = %d, want 0 after rollback", res.LeafIndex)
	}
}
