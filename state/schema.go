package state

import "strings"

var (
	strZeroBytes32 = strings.Repeat("0", 64)

	// key-value pairs; used for the last-seen position per chain
	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key VARCHAR(64) PRIMARY KEY NOT NULL,
		value VARCHAR(64) NOT NULL
	);`

	// one row per observed-but-not-yet-completed cross-chain swap.
	// preimage is empty until a withdrawal reveal is observed; it is persisted
	// here so a restart does not lose a reveal the checkpoint already passed.
	pendingSwapTable = `CREATE TABLE IF NOT EXISTS pendingswap (
		swapId CHAR(64) PRIMARY KEY NOT NULL,
		sourceChain VARCHAR(32) NOT NULL,
		destChain VARCHAR(32) NOT NULL,
		sender VARCHAR(128) NOT NULL,
		recipient VARCHAR(128) NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		secretHash CHAR(64) NOT NULL,
		preimage VARCHAR(128) NOT NULL DEFAULT '',
		firstSeenPos BIGINT UNSIGNED NOT NULL,
		firstSeenAt BIGINT NOT NULL,
		CONSTRAINT chk_amount CHECK (amount > 0),
		CONSTRAINT chk_swapId CHECK (swapId != '` + strZeroBytes32 + `'),
		CONSTRAINT chk_secretHash CHECK (secretHash != '` + strZeroBytes32 + `')
	);`

	// completions the reconciler has handed to the destination chain.
	// Written BEFORE submission so a crash-and-restart never submits twice.
	completionTable = `CREATE TABLE IF NOT EXISTS completion (
		swapId CHAR(64) PRIMARY KEY NOT NULL,
		destChain VARCHAR(32) NOT NULL,
		submittedAt BIGINT NOT NULL
	);`
)
