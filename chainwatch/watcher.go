// Per-chain event watcher. Polls a LedgerSource from the last committed
// position and hands normalized events to the reconciler. The watcher never
// persists anything itself: the reconciler commits the position only after
// its whole tick, including checkpoint persistence, has finished.

package chainwatch

import (
	logger "github.com/sirupsen/logrus"

	"github.com/crosslock-io/bridge-go/agreement"
)

type Watcher struct {
	cfg    *ChainWatchConfig
	source agreement.LedgerSource

	last   uint64
	seeded bool
}

func NewWatcher(source agreement.LedgerSource, cfg *ChainWatchConfig) *Watcher {
	return &Watcher{
		cfg:    cfg,
		source: source,
	}
}

func (w *Watcher) ChainName() agreement.ChainId {
	return w.source.ChainName()
}

// SeedPosition installs a checkpointed position loaded at startup.
// Without it, the first Poll seeds from latest - LookBack.
func (w *Watcher) SeedPosition(pos uint64) {
	w.last = pos
	w.seeded = true
}

// Poll fetches events past the committed position. It returns the events and
// the position they reach; the caller advances the watcher with Commit once
// the tick has been persisted. A transient source error is returned without
// touching the position, so no range is ever silently skipped.
func (w *Watcher) Poll() ([]agreement.ChainEvent, uint64, error) {
	latest, err := w.source.LatestPosition()
	if err != nil {
		logger.WithFields(logger.Fields{
			"chain": w.source.ChainName(),
		}).Warnf("failed to get latest position: %v", err)
		return nil, 0, err
	}

	if !w.seeded {
		lookBack := w.cfg.LookBack
		if lookBack == 0 {
			lookBack = DefaultLookBack
		}
		if latest > lookBack {
			w.last = latest - lookBack
		} else {
			w.last = 0
		}
		w.seeded = true
		logger.WithFields(logger.Fields{
			"chain": w.source.ChainName(),
			"start": w.last,
		}).Info("no checkpoint found, seeding watcher to recent position")
	}

	// not every poll interval produces new events
	if latest <= w.last {
		return nil, w.last, nil
	}

	events, err := w.source.EventsInRange(w.last+1, latest)
	if err != nil {
		logger.WithFields(logger.Fields{
			"chain": w.source.ChainName(),
			"from":  w.last + 1,
			"to":    latest,
		}).Warnf("failed to fetch events: %v", err)
		return nil, 0, err
	}

	return w.filter(events), latest, nil
}

// Commit advances the committed position. Call only after the reconciler has
// processed the events AND persisted the checkpoint.
func (w *Watcher) Commit(pos uint64) {
	if pos > w.last {
		w.last = pos
	}
}

// filter drops initiation events addressed to other bridge pairings.
func (w *Watcher) filter(events []agreement.ChainEvent) []agreement.ChainEvent {
	if w.cfg.TargetChain == "" {
		return events
	}
	out := make([]agreement.ChainEvent, 0, len(events))
	for _, ev := range events {
		if init, ok := ev.(*agreement.SwapInitiatedEvent); ok {
			if string(init.TargetChain) != w.cfg.TargetChain {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}
