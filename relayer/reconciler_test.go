package relayer

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/chainwatch"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/htlc"
	"github.com/crosslock-io/bridge-go/state"
)

// in-memory secret channel
type mapVault struct {
	secrets map[ethcommon.Hash][]byte
}

func newMapVault() *mapVault {
	return &mapVault{secrets: make(map[ethcommon.Hash][]byte)}
}

func (v *mapVault) put(hash ethcommon.Hash, preimage []byte) {
	v.secrets[hash] = preimage
}

func (v *mapVault) LookupSecret(hash ethcommon.Hash) ([]byte, bool, error) {
	p, ok := v.secrets[hash]
	return p, ok, nil
}

// submitter wrapper that can be forced to fail
type flakySubmitter struct {
	inner agreement.CompletionSubmitter
	fail  bool
	calls int
}

func (f *flakySubmitter) SubmitCompletion(
	ctx context.Context,
	sourceChain agreement.ChainId,
	sourceAddress string,
	destination []byte,
	amount uint64,
	preimage []byte,
) error {
	f.calls++
	if f.fail {
		return errors.New("rpc timeout")
	}
	return f.inner.SubmitCompletion(ctx, sourceChain, sourceAddress, destination, amount, preimage)
}

type testRelayerEnv struct {
	sqlDB *sql.DB
	st    *state.StateDB
	vault *mapVault
	rec   *Reconciler

	machineA, machineB *htlc.Machine
	ledgerA, ledgerB   *htlc.SimulatedLedger

	owner     []byte
	relayer   []byte
	sender    []byte
	recipient []byte
	escrowA   []byte
	escrowB   []byte

	clockA *time.Time

	subToB *flakySubmitter
}

func getMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	return db
}

func newTestRelayerEnv(t *testing.T) *testRelayerEnv {
	env := &testRelayerEnv{
		sqlDB:     getMemoryDB(),
		vault:     newMapVault(),
		ledgerA:   htlc.NewSimulatedLedger(),
		ledgerB:   htlc.NewSimulatedLedger(),
		owner:     common.RandBytes(32),
		relayer:   common.RandBytes(32),
		sender:    common.RandBytes(32),
		recipient: common.RandBytes(32),
		escrowA:   common.RandBytes(32),
		escrowB:   common.RandBytes(32),
	}

	start := time.Unix(1_700_000_000, 0)
	env.clockA = &start

	var err error
	env.st, err = state.NewStateDB(env.sqlDB)
	assert.NoError(t, err)

	env.machineA, err = htlc.NewMachine(&htlc.MachineConfig{
		ChainName: "chain-a",
		Owner:     env.owner,
		Digest:    htlc.Sha3Digest,
		Ledger:    env.ledgerA,
		Escrow:    env.escrowA,
		Now:       func() time.Time { return *env.clockA },
	})
	assert.NoError(t, err)

	env.machineB, err = htlc.NewMachine(&htlc.MachineConfig{
		ChainName: "chain-b",
		Owner:     env.owner,
		Digest:    htlc.KeccakDigest,
		Ledger:    env.ledgerB,
		Escrow:    env.escrowB,
	})
	assert.NoError(t, err)

	assert.NoError(t, env.machineA.AddRelayer(env.owner, env.relayer))
	assert.NoError(t, env.machineB.AddRelayer(env.owner, env.relayer))
	assert.NoError(t, env.ledgerA.Mint(env.sender, 10_000))
	assert.NoError(t, env.ledgerB.Mint(env.escrowB, 10_000))

	env.rec = env.newReconciler(t)
	return env
}

// newReconciler builds a reconciler over the env's database, as a process
// start (or restart) would.
func (env *testRelayerEnv) newReconciler(t *testing.T) *Reconciler {
	env.subToB = &flakySubmitter{inner: NewMachineSubmitter(env.machineB, env.relayer)}

	legs := []*Leg{
		{
			Watcher: chainwatch.NewWatcher(env.machineA, &chainwatch.ChainWatchConfig{
				TargetChain: "chain-b",
				LookBack:    100,
			}),
			Dest:      env.subToB,
			DestChain: "chain-b",
		},
		{
			Watcher: chainwatch.NewWatcher(env.machineB, &chainwatch.ChainWatchConfig{
				TargetChain: "chain-a",
				LookBack:    100,
			}),
			Dest:      NewMachineSubmitter(env.machineA, env.relayer),
			DestChain: "chain-a",
		},
	}

	rec, err := New(&RelayerConfig{}, env.st, env.vault, legs)
	assert.NoError(t, err)
	return rec
}

func (env *testRelayerEnv) close() {
	env.st.Close()
	env.sqlDB.Close()
}

func (env *testRelayerEnv) initiateOnA(t *testing.T, amount uint64) ([htlc.SecretLen]byte, ethcommon.Hash, ethcommon.Hash) {
	secret, hash, err := htlc.GenerateSecret(htlc.Sha3Digest)
	assert.NoError(t, err)

	lockId, err := env.machineA.InitiateSwap(
		env.sender, hash[:], env.recipient, amount, 24*time.Hour, "chain-b", "0xbb")
	assert.NoError(t, err)
	return secret, hash, lockId
}

// Watcher observes an initiation at tick N; the secret arrives before tick
// N+2; the reconciler completes on chain B at tick N+2 and drops the entry.
func TestReconcileHappyPath(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, hash, lockId := env.initiateOnA(t, 1000)

	// tick N: swap tracked, secret not yet available
	assert.NoError(t, env.rec.Tick(ctx))
	pending, err := env.st.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, lockId, pending[0].Id)
	assert.Equal(t, uint64(0), env.ledgerB.BalanceOf(env.recipient))

	// tick N+1: still pending, no error
	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ = env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)

	// secret becomes available through the configured channel
	env.vault.put(hash, secret[:])

	// tick N+2: completion submitted on chain B, entry removed
	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ = env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(1000), env.ledgerB.BalanceOf(env.recipient))

	submitted, err := env.st.HasCompletionSubmitted(lockId)
	assert.NoError(t, err)
	assert.True(t, submitted)

	// checkpoint advanced past the initiation event
	pos, ok, err := env.st.GetPosition("chain-a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, pos, uint64(1))
}

// A preimage revealed by a withdrawal on the source chain is a secret source
// of its own: no vault entry is needed.
func TestReconcileLearnsSecretFromWithdrawal(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, _, lockId := env.initiateOnA(t, 700)

	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ := env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)

	// recipient claims the source lock, publishing the preimage on-chain
	assert.NoError(t, env.machineA.Withdraw(env.recipient, lockId, secret[:]))

	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ = env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(700), env.ledgerB.BalanceOf(env.recipient))
}

// Crash after submitting the completion but before removing the pending
// entry: the restarted relayer re-observes the swap inside the look-back
// window and must not credit the destination twice.
func TestReconcileCrashReplayNoDoubleCredit(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, hash, lockId := env.initiateOnA(t, 500)
	env.vault.put(hash, secret[:])

	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, uint64(500), env.ledgerB.BalanceOf(env.recipient))

	// simulate the crash window: completion submitted and dedup recorded,
	// but the pending entry resurfaces
	assert.NoError(t, env.st.InsertPendingSwap(&state.PendingSwap{
		Id:          lockId,
		SourceChain: "chain-a",
		DestChain:   "chain-b",
		Sender:      env.sender,
		Recipient:   env.recipient,
		Amount:      500,
		SecretHash:  hash,
		FirstSeenAt: time.Now().Unix(),
	}))

	// restart: fresh reconciler over the same database
	rec2 := env.newReconciler(t)
	assert.NoError(t, rec2.Tick(ctx))

	pending, _ := env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(500), env.ledgerB.BalanceOf(env.recipient))
	// the dedup row short-circuited before any submission
	assert.Equal(t, 0, env.subToB.calls)
}

// Submission failures keep the entry pending, clear the dedup row, and back
// off before the next attempt.
func TestReconcileRetriesFailedSubmission(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, hash, lockId := env.initiateOnA(t, 300)
	env.vault.put(hash, secret[:])
	env.subToB.fail = true

	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, 1, env.subToB.calls)

	pending, _ := env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)
	submitted, _ := env.st.HasCompletionSubmitted(lockId)
	assert.False(t, submitted)

	// within the backoff window nothing is attempted
	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, 1, env.subToB.calls)

	// past the backoff the attempt is retried and succeeds
	env.subToB.fail = false
	env.rec.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, 2, env.subToB.calls)

	pending, _ = env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(300), env.ledgerB.BalanceOf(env.recipient))
}

// A restart between ticks resumes from the persisted checkpoint instead of
// re-tracking completed swaps.
func TestReconcileRestartFromCheckpoint(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, hash, _ := env.initiateOnA(t, 400)
	env.vault.put(hash, secret[:])
	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, uint64(400), env.ledgerB.BalanceOf(env.recipient))

	rec2 := env.newReconciler(t)
	assert.NoError(t, rec2.Tick(ctx))

	// nothing new: no pending entries, no extra submissions, no double credit
	pending, _ := env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(400), env.ledgerB.BalanceOf(env.recipient))
	assert.Equal(t, 0, env.subToB.calls)
}

// A reveal observed on-chain must survive a restart even when the checkpoint
// has already moved past the withdrawal event: the submission fails once, the
// process dies, and the restarted reconciler (no vault entry, no look-back
// replay) completes from the preimage persisted on the pending row.
func TestReconcileRevealSurvivesRestart(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret, _, lockId := env.initiateOnA(t, 900)

	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ := env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)

	// recipient claims the source lock; the completion attempt in the same
	// tick fails, but the checkpoint still advances past the withdrawal
	assert.NoError(t, env.machineA.Withdraw(env.recipient, lockId, secret[:]))
	env.subToB.fail = true
	assert.NoError(t, env.rec.Tick(ctx))
	assert.Equal(t, 1, env.subToB.calls)
	assert.Equal(t, uint64(0), env.ledgerB.BalanceOf(env.recipient))

	// the reveal is already on the pending row
	pending, _ = env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)
	assert.Equal(t, secret[:], pending[0].Preimage)

	// restart: fresh reconciler, empty in-memory reveal cache, watcher seeded
	// past the withdrawal event
	rec2 := env.newReconciler(t)
	assert.NoError(t, rec2.Tick(ctx))

	pending, _ = env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(900), env.ledgerB.BalanceOf(env.recipient))
	assert.Equal(t, 1, env.subToB.calls)
}

// Two independent swaps complete independently.
func TestReconcileMultipleSwaps(t *testing.T) {
	env := newTestRelayerEnv(t)
	defer env.close()
	ctx := context.Background()

	secret1, hash1, _ := env.initiateOnA(t, 100)
	*env.clockA = env.clockA.Add(time.Second)
	secret2, hash2, _ := env.initiateOnA(t, 200)

	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ := env.st.ListPendingSwaps()
	assert.Len(t, pending, 2)

	env.vault.put(hash1, secret1[:])
	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ = env.st.ListPendingSwaps()
	assert.Len(t, pending, 1)
	assert.Equal(t, uint64(100), env.ledgerB.BalanceOf(env.recipient))

	env.vault.put(hash2, secret2[:])
	assert.NoError(t, env.rec.Tick(ctx))
	pending, _ = env.st.ListPendingSwaps()
	assert.Empty(t, pending)
	assert.Equal(t, uint64(300), env.ledgerB.BalanceOf(env.recipient))
}
