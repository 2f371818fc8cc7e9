// The swap reconciler: turns normalized chain events into completions on the
// opposite chain. One tick = monitor both chains, reconcile pending swaps,
// persist the checkpoint. Ticks run strictly one after another.

package relayer

import (
	"context"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
	"github.com/crosslock-io/bridge-go/chainwatch"
	"github.com/crosslock-io/bridge-go/common"
	"github.com/crosslock-io/bridge-go/state"
)

// Leg is one direction of the bridge: watch sourceChain, complete on the
// destination. A full deployment runs two legs (A->B and B->A).
type Leg struct {
	Watcher   *chainwatch.Watcher
	Dest      agreement.CompletionSubmitter
	DestChain agreement.ChainId
}

type Reconciler struct {
	cfg   *RelayerConfig
	st    *state.StateDB
	vault SecretVault
	legs  []*Leg

	// preimages learned from SwapWithdrawn events, keyed by lock id.
	// A fast path for the current run only: every reveal is also persisted on
	// the pending-swap row, which is what a restart recovers from.
	revealed map[ethcommon.Hash][]byte

	// completion retry backoff, per pending swap
	attempts map[ethcommon.Hash]int
	nextTry  map[ethcommon.Hash]time.Time

	now func() time.Time
}

// New loads the checkpoint and seeds each leg's watcher. A checkpoint that
// cannot be read is fatal: proceeding with an inconsistent position could
// silently skip a range.
func New(cfg *RelayerConfig, st *state.StateDB, vault SecretVault, legs []*Leg) (*Reconciler, error) {
	for _, leg := range legs {
		pos, ok, err := st.GetPosition(leg.Watcher.ChainName())
		if err != nil {
			return nil, err
		}
		if ok {
			leg.Watcher.SeedPosition(pos)
		}
	}

	return &Reconciler{
		cfg:      cfg.withDefaults(),
		st:       st,
		vault:    vault,
		legs:     legs,
		revealed: make(map[ethcommon.Hash][]byte),
		attempts: make(map[ethcommon.Hash]int),
		nextTry:  make(map[ethcommon.Hash]time.Time),
		now:      time.Now,
	}, nil
}

// Run executes ticks on a fixed interval until ctx is cancelled. The tick
// body runs inline in the loop, so a slow tick delays the next one instead of
// overlapping it.
func (r *Reconciler) Run(ctx context.Context) error {
	logger.Info("starting swap reconciler")
	defer logger.Info("stopping swap reconciler")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				// transient; positions were not advanced for failed legs
				logger.Warnf("reconciliation tick failed: %v", err)
			}
		}
	}
}

// Tick runs one full pass: poll both legs, reconcile, persist and commit.
func (r *Reconciler) Tick(ctx context.Context) error {
	type polled struct {
		leg *Leg
		pos uint64
	}
	var done []polled

	for _, leg := range r.legs {
		events, pos, err := leg.Watcher.Poll()
		if err != nil {
			// retried next tick; position untouched
			continue
		}

		ok := true
		for _, ev := range events {
			if err := r.handleEvent(leg, ev); err != nil {
				logger.WithFields(logger.Fields{
					"chain": leg.Watcher.ChainName(),
					"kind":  ev.Kind().String(),
				}).Errorf("failed to record event, leg will re-poll: %v", err)
				ok = false
				break
			}
		}
		if ok {
			done = append(done, polled{leg: leg, pos: pos})
		}
	}

	r.completePending(ctx)

	// persist the checkpoint, then advance the in-memory positions
	for _, p := range done {
		if err := r.st.SetPosition(p.leg.Watcher.ChainName(), p.pos); err != nil {
			return err
		}
		p.leg.Watcher.Commit(p.pos)
	}

	return nil
}

func (r *Reconciler) handleEvent(leg *Leg, ev agreement.ChainEvent) error {
	switch e := ev.(type) {
	case *agreement.SwapInitiatedEvent:
		tracked, err := r.st.HasPendingSwap(e.LockId)
		if err != nil {
			return err
		}
		if tracked {
			return nil
		}
		// the look-back window may replay swaps we already completed
		completed, err := r.st.HasCompletionSubmitted(e.LockId)
		if err != nil {
			return err
		}
		if completed {
			return nil
		}

		ps := &state.PendingSwap{
			Id:           e.LockId,
			SourceChain:  leg.Watcher.ChainName(),
			DestChain:    leg.DestChain,
			Sender:       e.Sender,
			Recipient:    e.Recipient,
			Amount:       e.Amount,
			SecretHash:   e.SecretHash,
			FirstSeenPos: e.Pos,
			FirstSeenAt:  r.now().Unix(),
		}
		if err := r.st.InsertPendingSwap(ps); err != nil {
			return err
		}
		logger.WithFields(logger.Fields{
			"swapId":      e.LockId.String(),
			"sourceChain": ps.SourceChain,
			"destChain":   ps.DestChain,
			"amount":      ps.Amount,
		}).Info("tracking new pending swap")

	case *agreement.SwapWithdrawnEvent:
		// the preimage published on-chain is a secret source in its own right.
		// Persist it before the leg's position may be committed past this
		// event, or a restart would never see the reveal again.
		if err := r.st.SetPendingSwapPreimage(e.LockId, e.Preimage); err != nil {
			return err
		}
		r.revealed[e.LockId] = append([]byte(nil), e.Preimage...)
		logger.WithFields(logger.Fields{
			"swapId": e.LockId.String(),
		}).Debug("learned preimage from withdrawal event")
	}

	return nil
}

func (r *Reconciler) completePending(ctx context.Context) {
	pending, err := r.st.ListPendingSwaps()
	if err != nil {
		logger.Errorf("failed to list pending swaps: %v", err)
		return
	}

	for _, ps := range pending {
		newLogger := logger.WithFields(logger.Fields{
			"swapId":    ps.Id.String(),
			"destChain": ps.DestChain,
		})

		// a dedup row with the pending entry still present means we crashed
		// between submission and removal; just finish the removal
		submitted, err := r.st.HasCompletionSubmitted(ps.Id)
		if err != nil {
			newLogger.Errorf("failed to check completion dedup: %v", err)
			continue
		}
		if submitted {
			if err := r.st.DeletePendingSwap(ps.Id); err != nil {
				newLogger.Errorf("failed to drop completed pending swap: %v", err)
			}
			continue
		}

		if r.now().Before(r.nextTry[ps.Id]) {
			continue
		}

		preimage, ok := r.secretFor(ps)
		if !ok {
			// secret not available through any channel yet; retry next pass
			continue
		}

		leg := r.legByDest(ps.DestChain)
		if leg == nil {
			newLogger.Error("no leg configured for destination chain")
			continue
		}

		// dedup BEFORE submission: a crash from here on must not resubmit
		if err := r.st.MarkCompletionSubmitted(ps.Id, ps.DestChain, r.now().Unix()); err != nil {
			newLogger.Errorf("failed to record completion dedup: %v", err)
			continue
		}

		err = leg.Dest.SubmitCompletion(
			ctx,
			ps.SourceChain,
			common.Prepend0xPrefix(common.ByteSliceToPureHexStr(ps.Sender)),
			ps.Recipient,
			ps.Amount,
			preimage,
		)
		if err != nil {
			// synchronous failure: the call did not execute, clear the dedup
			// row and back off
			if uerr := r.st.UnmarkCompletionSubmitted(ps.Id); uerr != nil {
				newLogger.Errorf("failed to clear completion dedup after error: %v", uerr)
			}
			r.backoff(ps.Id)
			newLogger.Warnf("completion submission failed, will retry: %v", err)
			continue
		}

		if err := r.st.DeletePendingSwap(ps.Id); err != nil {
			// the dedup row protects against resubmission; next tick cleans up
			newLogger.Errorf("completed but failed to drop pending swap: %v", err)
			continue
		}
		delete(r.attempts, ps.Id)
		delete(r.nextTry, ps.Id)
		delete(r.revealed, ps.Id)

		newLogger.WithFields(logger.Fields{
			"amount": ps.Amount,
		}).Info("cross-chain completion submitted")
	}
}

// secretFor tries the on-chain reveal first, then the configured vault. A
// reveal persisted on the pending row survives restarts; the in-memory map
// only covers reveals from the current tick batch.
func (r *Reconciler) secretFor(ps *state.PendingSwap) ([]byte, bool) {
	if len(ps.Preimage) > 0 {
		return ps.Preimage, true
	}
	if preimage, ok := r.revealed[ps.Id]; ok {
		return preimage, true
	}
	preimage, ok, err := r.vault.LookupSecret(ps.SecretHash)
	if err != nil {
		logger.WithFields(logger.Fields{
			"swapId": ps.Id.String(),
		}).Warnf("secret vault lookup failed: %v", err)
		return nil, false
	}
	return preimage, ok
}

func (r *Reconciler) legByDest(chain agreement.ChainId) *Leg {
	for _, leg := range r.legs {
		if leg.DestChain == chain {
			return leg
		}
	}
	return nil
}

func (r *Reconciler) backoff(id ethcommon.Hash) {
	n := r.attempts[id]
	delay := r.cfg.BaseBackoff << n
	if delay > r.cfg.MaxBackoff || delay <= 0 {
		delay = r.cfg.MaxBackoff
	}
	r.attempts[id] = n + 1
	r.nextTry[id] = r.now().Add(delay)
}
