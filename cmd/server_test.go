package cmd_test

// The test includes:
// 1. Set up of a full relayer server with two in-process chain legs.
// 2. A user locks tokens on chain A targeting chain B.
// 3. The secret is dropped into the relayer's vault directory.
// 4. The reconciliation loop picks the swap up and credits chain B.

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslock-io/bridge-go/cmd"
	sharedcommon "github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/htlc"
	"github.com/crosslock-io/bridge-go/logconfig"
	"github.com/crosslock-io/bridge-go/reporter"
)

const (
	RETRY_TIMES = 15 // retry times for checking the completion

	CHAIN_A_NAME = "move-local"
	CHAIN_B_NAME = "evm-local"

	OWNER_ADDR   = "0x0101"
	RELAYER_ADDR = "0xdddd"
	ESCROW_ADDR  = "0xeeee"
	ESCROW_FUND  = 1_000_000

	SWAP_AMOUNT = 500

	HTTP_IP   = "127.0.0.1"
	HTTP_PORT = "8099"
)

// Random file name generator
func randFileName(prefix string, suffix string) string {
	return prefix + ethcommon.Hash(sharedcommon.RandBytes32()).String() + suffix
}

func MakeRelayerServerConfig(dbfile string, secretDir string) *cmd.RelayerServerConfig {
	return &cmd.RelayerServerConfig{
		// chain pairing
		ChainAName:   CHAIN_A_NAME,
		ChainBName:   CHAIN_B_NAME,
		ChainADigest: "sha3-256",
		ChainBDigest: "keccak256",
		// bridge accounts
		OwnerAddr:   OWNER_ADDR,
		RelayerAddr: RELAYER_ADDR,
		EscrowAddr:  ESCROW_ADDR,
		EscrowFund:  ESCROW_FUND,
		// state side
		DbFilePath: dbfile,
		// relayer side
		PollIntervalSec: 1,
		SecretDir:       secretDir,
		// Http side
		HttpIp:   HTTP_IP,
		HttpPort: HTTP_PORT,
	}
}

func TestEndToEnd(t *testing.T) {
	logconfig.ConfigDebugLogger()

	db_file_name := randFileName("test_", ".db")
	defer os.Remove(db_file_name)

	secret_dir, err := os.MkdirTemp("", "bridge_secrets")
	require.NoError(t, err)
	defer os.RemoveAll(secret_dir)

	rsc := MakeRelayerServerConfig(db_file_name, secret_dir)

	// Start the relayer server
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	rs, err := cmd.NewRelayerServer(rsc, ctx, &wg)
	require.NoError(t, err)

	// server is now created and up-running.

	// *** Check the http reporter is alive ***
	http_reader := reporter.NewHttpReader(HTTP_IP, HTTP_PORT)
	message, err := http_reader.GetHello()
	require.NoError(t, err)
	assert.True(t, strings.Contains(message, "world"))

	// *** A -> B swap ***

	user_a := []byte{0xaa, 0xaa} // sender on chain A
	user_b := []byte{0xbb, 0xbb} // recipient on chain B

	// fund the user on chain A
	require.NoError(t, rs.LedgerA.Mint(user_a, 10_000))

	// chain A runs the sha3-256 contract, so the commitment uses that digest
	secret, hash, err := htlc.GenerateSecret(htlc.Sha3Digest)
	require.NoError(t, err)

	// hand the secret to the relayer through the vault directory
	secret_file := filepath.Join(secret_dir, sharedcommon.Trim0xPrefix(hash.Hex())+".secret")
	require.NoError(t, os.WriteFile(secret_file, []byte(sharedcommon.ByteSliceToPureHexStr(secret[:])), 0600))

	lockId, err := rs.MachineA.InitiateSwap(
		user_a,
		hash[:],
		user_b,
		SWAP_AMOUNT,
		time.Hour,
		CHAIN_B_NAME,
		"0xbbbb",
	)
	require.NoError(t, err)
	t.Logf("lock id: %s", lockId.Hex())

	// the lock shows up on the reporter
	resp, err := http_reader.GetLock(CHAIN_A_NAME, lockId.Hex())
	require.NoError(t, err)
	assert.True(t, strings.Contains(resp, "locked"))

	// wait for the reconciliation loop to complete the swap on chain B
	credited := false
	for i := 0; i < RETRY_TIMES; i++ {
		if rs.LedgerB.BalanceOf(user_b) == SWAP_AMOUNT {
			credited = true
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.True(t, credited, "chain B recipient was never credited")

	// escrow on B paid out the completion
	assert.Equal(t, uint64(ESCROW_FUND-SWAP_AMOUNT), rs.LedgerB.BalanceOf(sharedcommon.HexStrToByteSlice(ESCROW_ADDR)))

	// the pending entry is gone once the completion is submitted
	time.Sleep(1 * time.Second)
	pending, err := rs.MyStateDb.ListPendingSwaps()
	require.NoError(t, err)
	assert.Empty(t, pending)

	cancel()  // cancel() signals ctx.Done(), so ends sub go routines politely.
	wg.Wait() // wait for all the routines to be completed then stop the main go routine.
}
