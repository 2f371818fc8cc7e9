// Durable relayer state: last-seen position per chain, the pending-swap
// table, and the submitted-completion table. Backed by sqlite. The store is
// mutated only from the reconciliation tick, so there is a single writer.

package state

import (
	"database/sql"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/database"
)

type StateDB struct {
	stmtCache *database.StmtCache
}

func NewStateDB(db *sql.DB) (*StateDB, error) {
	// 1. Create the tables.
	if _, err := db.Exec(kvTable + pendingSwapTable + completionTable); err != nil {
		return nil, err
	}

	// 2. A stmt cache + db.
	return &StateDB{
		stmtCache: database.NewStmtCache(db),
	}, nil
}

func (st *StateDB) Close() {
	st.stmtCache.Clear()
}

// GetPosition returns the checkpointed position for the chain,
// ok == false when no checkpoint exists yet (first run).
func (st *StateDB) GetPosition(chain agreement.ChainId) (uint64, bool, error) {
	query := `SELECT value FROM kv WHERE key = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return 0, false, err
	}

	var value string
	if err := stmt.QueryRow(positionKey(chain)).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}

	pos, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

func (st *StateDB) SetPosition(chain agreement.ChainId, pos uint64) error {
	query := `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(positionKey(chain), strconv.FormatUint(pos, 10))
	return err
}

func (st *StateDB) InsertPendingSwap(ps *PendingSwap) error {
	query := `INSERT INTO pendingswap
		(swapId, sourceChain, destChain, sender, recipient, amount, secretHash, preimage, firstSeenPos, firstSeenAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		hashHex(ps.Id),
		string(ps.SourceChain),
		string(ps.DestChain),
		common.ByteSliceToPureHexStr(ps.Sender),
		common.ByteSliceToPureHexStr(ps.Recipient),
		ps.Amount,
		hashHex(ps.SecretHash),
		common.ByteSliceToPureHexStr(ps.Preimage),
		ps.FirstSeenPos,
		ps.FirstSeenAt,
	)
	return err
}

// SetPendingSwapPreimage durably records a preimage revealed on-chain for a
// tracked swap. A reveal for an untracked (already completed) swap is a no-op.
func (st *StateDB) SetPendingSwapPreimage(id ethcommon.Hash, preimage []byte) error {
	query := `UPDATE pendingswap SET preimage = ? WHERE swapId = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(common.ByteSliceToPureHexStr(preimage), hashHex(id))
	return err
}

func (st *StateDB) HasPendingSwap(id ethcommon.Hash) (bool, error) {
	query := `SELECT COUNT(*) FROM pendingswap WHERE swapId = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}

	var count int
	if err := stmt.QueryRow(hashHex(id)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (st *StateDB) DeletePendingSwap(id ethcommon.Hash) error {
	query := `DELETE FROM pendingswap WHERE swapId = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(hashHex(id))
	return err
}

// ListPendingSwaps returns the table in first-seen order.
func (st *StateDB) ListPendingSwaps() ([]*PendingSwap, error) {
	query := `SELECT swapId, sourceChain, destChain, sender, recipient, amount, secretHash, preimage, firstSeenPos, firstSeenAt
		FROM pendingswap ORDER BY firstSeenAt, swapId`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PendingSwap
	for rows.Next() {
		var (
			idHex, srcChain, dstChain, senderHex, recipientHex string
			secretHashHex, preimageHex                         string
			amount, firstSeenPos                               uint64
			firstSeenAt                                        int64
		)
		if err := rows.Scan(
			&idHex, &srcChain, &dstChain, &senderHex, &recipientHex,
			&amount, &secretHashHex, &preimageHex, &firstSeenPos, &firstSeenAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &PendingSwap{
			Id:           ethcommon.Hash(common.HexStrToBytes32(idHex)),
			SourceChain:  agreement.ChainId(srcChain),
			DestChain:    agreement.ChainId(dstChain),
			Sender:       common.HexStrToByteSlice(senderHex),
			Recipient:    common.HexStrToByteSlice(recipientHex),
			Amount:       amount,
			SecretHash:   ethcommon.Hash(common.HexStrToBytes32(secretHashHex)),
			Preimage:     common.HexStrToByteSlice(preimageHex),
			FirstSeenPos: firstSeenPos,
			FirstSeenAt:  firstSeenAt,
		})
	}
	return out, rows.Err()
}

// MarkCompletionSubmitted records the dedup row for a swap. Idempotent.
func (st *StateDB) MarkCompletionSubmitted(id ethcommon.Hash, dest agreement.ChainId, at int64) error {
	query := `INSERT OR REPLACE INTO completion (swapId, destChain, submittedAt) VALUES (?, ?, ?)`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(hashHex(id), string(dest), at)
	return err
}

func (st *StateDB) HasCompletionSubmitted(id ethcommon.Hash) (bool, error) {
	query := `SELECT COUNT(*) FROM completion WHERE swapId = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return false, err
	}

	var count int
	if err := stmt.QueryRow(hashHex(id)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UnmarkCompletionSubmitted removes the dedup row after a synchronous
// submission failure (the call is known not to have executed).
func (st *StateDB) UnmarkCompletionSubmitted(id ethcommon.Hash) error {
	query := `DELETE FROM completion WHERE swapId = ?`
	stmt, err := st.stmtCache.Prepare(query)
	if err != nil {
		return err
	}

	_, err = stmt.Exec(hashHex(id))
	return err
}

func positionKey(chain agreement.ChainId) string {
	return "position:" + string(chain)
}

func hashHex(h ethcommon.Hash) string {
	return h.String()[2:]
}
