// This is a http type of reporter.
// It fetches data from the lock machines and the relayer statedb
// and publishes on the http routes.

package reporter

import (
	"net"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/htlc"
	"github.com/crosslock-io/bridge-go/state"
)

const (
	ROUTE_HELLO   = "/hello"
	ROUTE_SUMMARY = "/summary"
	ROUTE_LOCK    = "/lock"
	ROUTE_RELAYER = "/relayer"
	ROUTE_PENDING = "/pending"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	machines map[agreement.ChainId]*htlc.Machine
	statedb  *state.StateDB

	// set by Start; resolves port 0 to the actual listen address
	boundAddr string
}

func NewHttpReporter(serverIP string, serverPort string, machines map[agreement.ChainId]*htlc.Machine, statedb *state.StateDB) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		machines:   machines,
		statedb:    statedb,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Define routes & handlers
	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_SUMMARY, h.Summary)
	router.GET(ROUTE_LOCK, h.Lock)
	router.GET(ROUTE_RELAYER, h.Relayer)
	router.GET(ROUTE_PENDING, h.Pending)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

// Start binds the listen address, then serves in a background goroutine.
// When Start returns without error the port already accepts connections.
func (h *HttpReporter) Start() error {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	h.boundAddr = ln.Addr().String()

	go func() {
		if err := router.RunListener(ln); err != nil {
			panic(err)
		}
	}()
	return nil
}

// Addr returns the listen address after Start.
func (h *HttpReporter) Addr() string {
	return h.boundAddr
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

// Per-chain counts: owner, locks held, relayer set size.
func (h *HttpReporter) Summary(c *gin.Context) {
	out := gin.H{}
	for chain, m := range h.machines {
		owner, relayerCount, lockCount := m.ContractSummary()
		out[string(chain)] = gin.H{
			"owner":        common.Prepend0xPrefix(common.ByteSliceToPureHexStr(owner)),
			"lockCount":    lockCount,
			"relayerCount": relayerCount,
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Look up one lock by id: /lock?chain=<name>&id=<hex>
func (h *HttpReporter) Lock(c *gin.Context) {
	chain := c.Query("chain")
	id := c.Query("id")
	if chain == "" || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both chain and id must be provided"})
		return
	}

	m, ok := h.machines[agreement.ChainId(chain)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown chain"})
		return
	}

	rec, ok := m.FindLock(ethcommon.Hash(common.HexStrToBytes32(id)))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No lock found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"lockId":     rec.LockId.Hex(),
		"sender":     common.Prepend0xPrefix(common.ByteSliceToPureHexStr(rec.Sender)),
		"recipient":  common.Prepend0xPrefix(common.ByteSliceToPureHexStr(rec.Recipient)),
		"amount":     rec.Amount,
		"secretHash": rec.SecretHash.Hex(),
		"endTime":    rec.EndTime,
		"status":     rec.Status.String(),
	}})
}

// Check relayer membership: /relayer?chain=<name>&addr=<hex>
func (h *HttpReporter) Relayer(c *gin.Context) {
	chain := c.Query("chain")
	addr := c.Query("addr")
	if chain == "" || addr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both chain and addr must be provided"})
		return
	}

	m, ok := h.machines[agreement.ChainId(chain)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown chain"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"addr":      common.Prepend0xPrefix(common.Trim0xPrefix(addr)),
		"isRelayer": m.IsRelayer(common.HexStrToByteSlice(addr)),
	}})
}

// Swaps the relayer has noticed but not yet completed.
func (h *HttpReporter) Pending(c *gin.Context) {
	swaps, err := h.statedb.ListPendingSwaps()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(swaps))
	for _, s := range swaps {
		out = append(out, gin.H{
			"swapId":      s.Id.Hex(),
			"sourceChain": string(s.SourceChain),
			"destChain":   string(s.DestChain),
			"amount":      s.Amount,
			"firstSeenAt": s.FirstSeenAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
