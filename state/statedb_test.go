package state

import (
	"database/sql"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/crosslock-io/bridge-go/common"
)

func getMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}
	return db
}

func newTestStateDB(t *testing.T) (*StateDB, func()) {
	sqlDB := getMemoryDB()
	st, err := NewStateDB(sqlDB)
	assert.NoError(t, err)

	return st, func() {
		st.Close()
		sqlDB.Close()
	}
}

func randPendingSwap() *PendingSwap {
	return &PendingSwap{
		Id:           ethcommon.Hash(common.RandBytes32()),
		SourceChain:  "chain-a",
		DestChain:    "chain-b",
		Sender:       common.RandBytes(32),
		Recipient:    common.RandBytes(20),
		Amount:       1000,
		SecretHash:   ethcommon.Hash(common.RandBytes32()),
		FirstSeenPos: 7,
		FirstSeenAt:  1_700_000_000,
	}
}

func TestPositionRoundTrip(t *testing.T) {
	st, close := newTestStateDB(t)
	defer close()

	_, ok, err := st.GetPosition("chain-a")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, st.SetPosition("chain-a", 42))
	assert.NoError(t, st.SetPosition("chain-b", 7))

	pos, ok, err := st.GetPosition("chain-a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), pos)

	// overwrite
	assert.NoError(t, st.SetPosition("chain-a", 43))
	pos, _, _ = st.GetPosition("chain-a")
	assert.Equal(t, uint64(43), pos)

	// per-chain isolation
	pos, _, _ = st.GetPosition("chain-b")
	assert.Equal(t, uint64(7), pos)
}

func TestPendingSwapLifecycle(t *testing.T) {
	st, close := newTestStateDB(t)
	defer close()

	ps := randPendingSwap()

	ok, err := st.HasPendingSwap(ps.Id)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, st.InsertPendingSwap(ps))

	ok, err = st.HasPendingSwap(ps.Id)
	assert.NoError(t, err)
	assert.True(t, ok)

	// duplicate insert violates the primary key
	assert.Error(t, st.InsertPendingSwap(ps))

	list, err := st.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, ps.Id, list[0].Id)
	assert.Equal(t, ps.SourceChain, list[0].SourceChain)
	assert.Equal(t, ps.DestChain, list[0].DestChain)
	assert.Equal(t, ps.Sender, list[0].Sender)
	assert.Equal(t, ps.Recipient, list[0].Recipient)
	assert.Equal(t, ps.Amount, list[0].Amount)
	assert.Equal(t, ps.SecretHash, list[0].SecretHash)
	assert.Equal(t, ps.FirstSeenPos, list[0].FirstSeenPos)
	assert.Equal(t, ps.FirstSeenAt, list[0].FirstSeenAt)

	assert.NoError(t, st.DeletePendingSwap(ps.Id))
	list, err = st.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Empty(t, list)
}

func TestPendingSwapPreimageRoundTrip(t *testing.T) {
	st, close := newTestStateDB(t)
	defer close()

	ps := randPendingSwap()
	assert.NoError(t, st.InsertPendingSwap(ps))

	list, err := st.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Empty(t, list[0].Preimage)

	preimage := common.RandBytes(32)
	assert.NoError(t, st.SetPendingSwapPreimage(ps.Id, preimage))

	list, err = st.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, preimage, list[0].Preimage)

	// a reveal for a swap no longer tracked is a no-op
	assert.NoError(t, st.SetPendingSwapPreimage(ethcommon.Hash(common.RandBytes32()), preimage))
	list, _ = st.ListPendingSwaps()
	assert.Len(t, list, 1)
}

func TestPendingSwapZeroAmountRejected(t *testing.T) {
	st, close := newTestStateDB(t)
	defer close()

	ps := randPendingSwap()
	ps.Amount = 0
	assert.Error(t, st.InsertPendingSwap(ps))
}

func TestCompletionDedup(t *testing.T) {
	st, close := newTestStateDB(t)
	defer close()

	id := ethcommon.Hash(common.RandBytes32())

	ok, err := st.HasCompletionSubmitted(id)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, st.MarkCompletionSubmitted(id, "chain-b", 1_700_000_000))
	ok, err = st.HasCompletionSubmitted(id)
	assert.NoError(t, err)
	assert.True(t, ok)

	// idempotent
	assert.NoError(t, st.MarkCompletionSubmitted(id, "chain-b", 1_700_000_001))

	assert.NoError(t, st.UnmarkCompletionSubmitted(id))
	ok, _ = st.HasCompletionSubmitted(id)
	assert.False(t, ok)
}

func TestStatePersistsAcrossHandles(t *testing.T) {
	sqlDB := getMemoryDB()
	defer sqlDB.Close()

	st, err := NewStateDB(sqlDB)
	assert.NoError(t, err)
	assert.NoError(t, st.SetPosition("chain-a", 99))
	ps := randPendingSwap()
	assert.NoError(t, st.InsertPendingSwap(ps))
	st.Close()

	// reopen over the same database, as a restart would
	st2, err := NewStateDB(sqlDB)
	assert.NoError(t, err)
	defer st2.Close()

	pos, ok, err := st2.GetPosition("chain-a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(99), pos)

	list, err := st2.ListPendingSwaps()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
}
