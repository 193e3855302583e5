// Package synctracker tracks whether this node is in sync with the network.
// The validator API refuses duty fulfilment while catch-up is active.
package synctracker

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/zephyrlabs/zephyr/beacon-chain/p2p"
)

var log = logrus.WithField("prefix", "synctracker")

// State is the tracker's sync state.
type State int

const (
	// Pending is the startup state, before either verdict.
	Pending State = iota
	// InSync means the node follows the network head.
	InSync
	// Syncing means initial sync or catch-up is active.
	Syncing
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InSync:
		return "in_sync"
	case Syncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// StateChangedData is fanned out on every state transition.
type StateChangedData struct {
	From State
	To   State
}

// Config carries the tracker inputs.
type Config struct {
	Peers p2p.PeerCounter
	// Sync reports whether the sync service is actively catching up.
	Sync p2p.SyncChecker
	// TargetPeerCount is the peer threshold for declaring InSync at startup.
	TargetPeerCount int
	// StartupTimeout bounds how long the tracker stays Pending; after it
	// elapses any connected peer is enough to declare InSync.
	StartupTimeout time.Duration
	// PollInterval is how often the inputs are sampled.
	PollInterval time.Duration
}

// Tracker derives the sync state from the peer count and the sync service.
type Tracker struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config

	mu      sync.RWMutex
	state   State
	started time.Time

	feed event.Feed
}

// NewTracker instantiates the sync-state tracker.
func NewTracker(ctx context.Context, cfg *Config) *Tracker {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Tracker{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		state:  Pending,
	}
}

// Start launches the polling loop.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.started = time.Now()
	t.mu.Unlock()
	go t.pollLoop()
}

// Stop halts the polling loop.
func (t *Tracker) Stop() error {
	defer t.cancel()
	return nil
}

// Status always reports healthy; sync state is a condition, not an error.
func (t *Tracker) Status() error {
	return nil
}

// State returns the current sync state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsInSync reports whether duties may be fulfilled.
func (t *Tracker) IsInSync() bool {
	return t.State() == InSync
}

// SubscribeStateChanged registers a channel for state-transition fan-out.
func (t *Tracker) SubscribeStateChanged(ch chan<- *StateChangedData) event.Subscription {
	return t.feed.Subscribe(ch)
}

func (t *Tracker) pollLoop() {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.evaluate()
		case <-t.ctx.Done():
			return
		}
	}
}

// evaluate applies the transition rules against the sampled inputs. A node
// can oscillate between InSync and Syncing; there is no terminal state.
func (t *Tracker) evaluate() {
	peers := 0
	if t.cfg.Peers != nil {
		peers = t.cfg.Peers.PeerCount()
	}
	syncing := t.cfg.Sync != nil && t.cfg.Sync.Syncing()

	t.mu.Lock()
	from := t.state
	to := from
	switch from {
	case Pending:
		switch {
		case syncing:
			to = Syncing
		case peers >= t.cfg.TargetPeerCount:
			to = InSync
		case peers > 0 && t.cfg.StartupTimeout > 0 && time.Since(t.started) >= t.cfg.StartupTimeout:
			to = InSync
		}
	case InSync:
		if syncing {
			to = Syncing
		}
	case Syncing:
		if !syncing {
			to = InSync
		}
	}
	t.state = to
	t.mu.Unlock()

	if to != from {
		log.WithFields(logrus.Fields{
			"from":  from,
			"to":    to,
			"peers": peers,
		}).Info("Sync state changed")
		t.feed.Send(&StateChangedData{From: from, To: to})
	}
}
