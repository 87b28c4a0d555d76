// main.go - Mixer pool daemon: deployment lifecycle plus a full local scenario.
//
// Commands:
//   mixerd create [config.json]   create the pool database
//   mixerd init   [config.json]   one-time pool initialization (creator only)
//   mixerd stats  [config.json]   print pool state and component health
//   mixerd demo   [config.json]   run a complete deposit/withdraw cycle in memory
//
// The demo compiles both circuits, runs the trusted setup (or loads cached
// keys), proves a deposit and a withdrawal, verifies the proofs off-chain,
// and submits the resulting call groups to the pool. It is the end-to-end
// exercise of every layer below cmd/.
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gceddsa "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"

	"mixerpool/internal/encrypt"
	"mixerpool/internal/mixer"
	"mixerpool/internal/storage"
	"mixerpool/internal/transactions/deposit"
	"mixerpool/internal/transactions/notes"
	"mixerpool/internal/transactions/withdraw"
	"mixerpool/internal/verifier"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mixerd <create|init|stats|demo> [config.json]")
		os.Exit(2)
	}
	command := os.Args[1]

	configPath := "mixerd.json"
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := NewLogger(config.LogLevel, config.LogFile, auditPath(config))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	switch command {
	case "create":
		err = runCreate(config, logger)
	case "init":
		err = runInit(config, logger)
	case "stats":
		err = runStats(config, logger)
	case "demo":
		err = runDemo(config, logger)
	default:
		logger.Fatal("unknown command %q", command)
	}
	if err != nil {
		logger.Fatal("%s: %v", command, err)
	}
}

func auditPath(config *Config) string {
	if !config.EnableAudit {
		return ""
	}
	return config.AuditLogPath
}

// poolConfig builds the deployment parameters from the daemon configuration.
func poolConfig(config *Config) (*mixer.Config, error) {
	return mixer.NewConfig(mixer.Config{
		Curve:             mixer.DefaultConfig().Curve,
		Depth:             config.TreeDepth,
		RootsCount:        config.RootsCount,
		DepositMinimum:    config.DepositMinimum,
		NullifierMBR:      config.NullifierMBR,
		DepositBudget:     mixer.DepositBudget,
		WithdrawalBudget:  mixer.WithdrawalBudget,
		ChangeCommitments: config.ChangeCommitments,
	})
}

// identityFromLabel derives a stable 32-byte identity from a label. A real
// deployment reads identities from the host chain; the daemon derives them so
// create, init and stats agree across runs.
func identityFromLabel(cfg *mixer.Config, label string) mixer.Address {
	var a mixer.Address
	copy(a[:], cfg.Hash([]byte(label)))
	return a
}

func poolIdentities(cfg *mixer.Config) mixer.Identities {
	return mixer.Identities{
		Pool:               identityFromLabel(cfg, "pool"),
		Creator:            identityFromLabel(cfg, "creator"),
		DepositVerifier:    identityFromLabel(cfg, "deposit-verifier"),
		WithdrawalVerifier: identityFromLabel(cfg, "withdrawal-verifier"),
	}
}

func openPool(config *Config, path string) (*mixer.Pool, *mixer.Config, *storage.LevelStore, error) {
	cfg, err := poolConfig(config)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := mixer.NewPool(cfg, store, poolIdentities(cfg))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return pool, cfg, store, nil
}

func runCreate(config *Config, logger *Logger) error {
	pool, _, store, err := openPool(config, config.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("pool database created at %s (initialized=%v)", config.DataDir, pool.Initialized())
	logger.Audit("pool_create", map[string]interface{}{"data_dir": config.DataDir})
	return nil
}

func runInit(config *Config, logger *Logger) error {
	pool, cfg, store, err := openPool(config, config.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ids := poolIdentities(cfg)
	treasury := identityFromLabel(cfg, "treasury")
	if err := pool.Init(ids.Creator, treasury); err != nil {
		return err
	}
	logger.Info("pool initialized: depth=%d roots=%d root=%x", cfg.Depth, cfg.RootsCount, pool.Root())
	logger.Audit("pool_init", map[string]interface{}{"treasury": treasury.String()})
	return nil
}

func runStats(config *Config, logger *Logger) error {
	pool, cfg, store, err := openPool(config, config.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	health := NewHealthChecker(version)
	health.RegisterComponent("storage", func() error {
		_, _, err := store.Get(mixer.KeyState)
		return err
	})
	health.RegisterComponent("pool", func() error {
		if !pool.Initialized() {
			return mixer.ErrNotInitialized
		}
		return nil
	})

	stats := map[string]interface{}{
		"initialized": pool.Initialized(),
		"leaves":      pool.Leaves(),
		"capacity":    cfg.MaxLeaves(),
		"root":        fmt.Sprintf("%x", pool.Root()),
		"treasury":    pool.Treasury().String(),
		"health":      health.CheckHealth(),
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runDemo(config *Config, logger *Logger) error {
	metrics := NewMetricsCollector()
	limiter := NewSenderRateLimiter(config.RateLimitTokens, config.RateLimitRefill, time.Second)

	pool, cfg, store, err := openPool(config, "")
	if err != nil {
		return err
	}
	defer store.Close()

	ids := poolIdentities(cfg)
	if err := pool.Init(ids.Creator, identityFromLabel(cfg, "treasury")); err != nil {
		return err
	}
	logger.Info("demo pool initialized, root=%x", pool.Root())

	// Compile both circuits and load or generate the Groth16 keys.
	start := time.Now()
	depositCCS, err := deposit.Compile(cfg)
	if err != nil {
		return err
	}
	withdrawCCS, err := withdraw.Compile(cfg)
	if err != nil {
		return err
	}
	metrics.RecordCircuitCompile(time.Since(start))
	logger.Info("circuits compiled in %s", time.Since(start))

	depositPK, depositVK, err := verifier.SetupOrLoadKeys(cfg.Curve, depositCCS,
		filepath.Join(config.KeyDir, "deposit_pk.bin"), filepath.Join(config.KeyDir, "deposit_vk.bin"))
	if err != nil {
		return err
	}
	withdrawPK, withdrawVK, err := verifier.SetupOrLoadKeys(cfg.Curve, withdrawCCS,
		filepath.Join(config.KeyDir, "withdrawal_pk.bin"), filepath.Join(config.KeyDir, "withdrawal_vk.bin"))
	if err != nil {
		return err
	}

	depositVerifier, err := verifier.New(ids.DepositVerifier, mixer.MethodDeposit, cfg, depositVK)
	if err != nil {
		return err
	}
	withdrawVerifier, err := verifier.New(ids.WithdrawalVerifier, mixer.MethodWithdraw, cfg, withdrawVK)
	if err != nil {
		return err
	}

	// The user's spending key and first note.
	key, err := gceddsa.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate spending key: %w", err)
	}
	user := identityFromLabel(cfg, "demo-user")
	if !limiter.Allow(user.String()) {
		metrics.RecordRejected("rate_limited")
		return fmt.Errorf("submission rate limited for %s", user)
	}

	const depositAmount = 5_000_000
	note, err := notes.NewNote(depositAmount, key.PublicKey)
	if err != nil {
		return err
	}
	if err := backupNote(config, logger, note); err != nil {
		return err
	}

	// Deposit: prove, verify off-chain, submit the call group.
	start = time.Now()
	proof, inputs, err := deposit.Prove(cfg, note, depositCCS, depositPK)
	if err != nil {
		return err
	}
	metrics.RecordProofGeneration(time.Since(start))

	start = time.Now()
	call, err := depositVerifier.VerifyAndForward(proof, inputs, mixer.AppCall{Sender: user})
	if err != nil {
		metrics.RecordRejected("bad_deposit_proof")
		return err
	}
	metrics.RecordProofVerify(time.Since(start))

	group := &mixer.Group{
		Txns: []mixer.Txn{
			call,
			&mixer.Payment{Sender: user, Receiver: ids.Pool, Amount: depositAmount},
		},
		Budget: cfg.DepositBudget,
	}
	depositResult, err := pool.Deposit(group, 0)
	if err != nil {
		metrics.RecordError("deposit")
		return err
	}
	note.InsertedIndex = int64(depositResult.LeafIndex)
	metrics.RecordDeposit(pool.Leaves())
	logger.Info("deposit accepted: leaf=%d root=%x", depositResult.LeafIndex, depositResult.Root)
	logger.Audit("deposit", map[string]interface{}{"leaf": depositResult.LeafIndex})

	// Rebuild the wallet view of the tree to produce the membership proof.
	wallet := notes.NewWalletTree(cfg)
	wallet.AddLeaf(note.Commitment(cfg))
	path, err := wallet.Proof(note.LeafValue(cfg), int(note.InsertedIndex))
	if err != nil {
		return err
	}

	const withdrawal = 2_000_000
	fee := cfg.NullifierMBR + 700
	change, err := notes.NewNote(depositAmount-withdrawal-fee, key.PublicKey)
	if err != nil {
		return err
	}
	request := &withdraw.Request{
		Spend:      note,
		SpendKey:   key,
		Change:     change,
		Recipient:  identityFromLabel(cfg, "demo-recipient"),
		Withdrawal: withdrawal,
		Fee:        fee,
		Index:      uint64(note.InsertedIndex),
		Path:       path,
		Root:       wallet.Root(),
	}

	if !limiter.Allow(user.String()) {
		metrics.RecordRejected("rate_limited")
		return fmt.Errorf("submission rate limited for %s", user)
	}

	start = time.Now()
	proof, inputs, err = withdraw.Prove(cfg, request, withdrawCCS, withdrawPK)
	if err != nil {
		return err
	}
	metrics.RecordProofGeneration(time.Since(start))

	start = time.Now()
	call, err = withdrawVerifier.VerifyAndForward(proof, inputs, mixer.AppCall{
		Recipient:    request.Recipient,
		FeeRecipient: identityFromLabel(cfg, "demo-relayer"),
	})
	if err != nil {
		metrics.RecordRejected("bad_withdrawal_proof")
		return err
	}
	metrics.RecordProofVerify(time.Since(start))

	withdrawResult, err := pool.Withdraw(&mixer.Group{
		Txns:   []mixer.Txn{call},
		Budget: cfg.WithdrawalBudget,
	}, 0)
	if err != nil {
		metrics.RecordError("withdraw")
		return err
	}
	change.InsertedIndex = int64(withdrawResult.LeafIndex)
	metrics.RecordWithdrawal(pool.Leaves())

	logger.Info("withdrawal accepted: change leaf=%d root=%x", withdrawResult.LeafIndex, withdrawResult.Root)
	for _, payout := range withdrawResult.Payouts {
		logger.Info("payout: %d to %s", payout.Amount, payout.Receiver)
	}
	logger.Audit("withdraw", map[string]interface{}{
		"leaf":    withdrawResult.LeafIndex,
		"payouts": len(withdrawResult.Payouts),
	})

	summary, err := json.MarshalIndent(metrics.GetMetricsSummary(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(summary))
	return nil
}

// backupNote writes the note to disk encrypted under the backup password so
// the demo user could restore their spending data later.
func backupNote(config *Config, logger *Logger, note *notes.Note) error {
	password := []byte(config.BackupPassword)
	if len(password) == 0 {
		var err error
		password, err = encrypt.PromptPassword("note backup password: ")
		if err != nil {
			return err
		}
	}

	plaintext, err := json.Marshal(note)
	if err != nil {
		return err
	}
	envelope, err := encrypt.Encrypt(plaintext, password)
	if err != nil {
		return err
	}

	path := filepath.Join(config.KeyDir, "note_backup.enc")
	if err := os.MkdirAll(config.KeyDir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(envelope), 0600); err != nil {
		return err
	}

	// Round trip to catch a bad password before the note is spent.
	restored, err := encrypt.Decrypt(envelope, password)
	if err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}
	var check notes.Note
	if err := json.Unmarshal(restored, &check); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}
	logger.Info("note backup written to %s", path)
	return nil
}
