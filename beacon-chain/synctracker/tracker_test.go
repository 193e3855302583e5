package synctracker

import (
	"context"
	"testing"
	"time"

	"github.com/zephyrlabs/zephyr/shared/testutil/assert"
	"github.com/zephyrlabs/zephyr/shared/testutil/require"
)

type fakePeers struct {
	count int
}

func (f *fakePeers) PeerCount() int {
	return f.count
}

type fakeSync struct {
	syncing bool
}

func (f *fakeSync) Syncing() bool {
	return f.syncing
}

func setupTracker(peers *fakePeers, syncSvc *fakeSync) *Tracker {
	return NewTracker(context.Background(), &Config{
		Peers:           peers,
		Sync:            syncSvc,
		TargetPeerCount: 5,
		StartupTimeout:  30 * time.Second,
		PollInterval:    time.Hour,
	})
}

func TestEvaluate_PendingUntilTargetPeers(t *testing.T) {
	peers := &fakePeers{count: 2}
	tracker := setupTracker(peers, &fakeSync{})
	tracker.started = time.Now()

	tracker.evaluate()
	assert.Equal(t, Pending, tracker.State())
	assert.Equal(t, false, tracker.IsInSync())

	peers.count = 5
	tracker.evaluate()
	assert.Equal(t, InSync, tracker.State())
	assert.Equal(t, true, tracker.IsInSync())
}

func TestEvaluate_PendingToSyncing(t *testing.T) {
	syncSvc := &fakeSync{syncing: true}
	tracker := setupTracker(&fakePeers{count: 8}, syncSvc)
	tracker.started = time.Now()

	tracker.evaluate()
	assert.Equal(t, Syncing, tracker.State())
}

func TestEvaluate_StartupTimeoutAcceptsAnyPeer(t *testing.T) {
	tracker := setupTracker(&fakePeers{count: 1}, &fakeSync{})
	tracker.started = time.Now().Add(-time.Minute)

	tracker.evaluate()
	assert.Equal(t, InSync, tracker.State())
}

func TestEvaluate_TimeoutWithoutPeersStaysPending(t *testing.T) {
	tracker := setupTracker(&fakePeers{count: 0}, &fakeSync{})
	tracker.started = time.Now().Add(-time.Minute)

	tracker.evaluate()
	assert.Equal(t, Pending, tracker.State())
}

func TestEvaluate_OscillatesBetweenInSyncAndSyncing(t *testing.T) {
	syncSvc := &fakeSync{}
	tracker := setupTracker(&fakePeers{count: 8}, syncSvc)
	tracker.started = time.Now()

	ch := make(chan *StateChangedData, 4)
	sub := tracker.SubscribeStateChanged(ch)
	defer sub.Unsubscribe()

	tracker.evaluate()
	require.Equal(t, InSync, tracker.State())

	syncSvc.syncing = true
	tracker.evaluate()
	require.Equal(t, Syncing, tracker.State())

	syncSvc.syncing = false
	tracker.evaluate()
	require.Equal(t, InSync, tracker.State())

	transitions := make([]*StateChangedData, 0, 3)
	for {
		select {
		case data := <-ch:
			transitions = append(transitions, data)
			continue
		default:
		}
		break
	}
	require.Equal(t, 3, len(transitions))
	assert.Equal(t, Pending, transitions[0].From)
	assert.Equal(t, InSync, transitions[0].To)
	assert.Equal(t, Syncing, transitions[1].To)
	assert.Equal(t, InSync, transitions[2].To)
}

func TestEvaluate_NoFeedWithoutTransition(t *testing.T) {
	tracker := setupTracker(&fakePeers{count: 0}, &fakeSync{})
	tracker.started = time.Now()

	ch := make(chan *StateChangedData, 1)
	sub := tracker.SubscribeStateChanged(ch)
	defer sub.Unsubscribe()

	tracker.evaluate()
	select {
	case <-ch:
		t.Fatal("a no-op evaluation must not fire the feed")
	default:
	}
}
