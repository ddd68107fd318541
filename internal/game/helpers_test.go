package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Scheduler ---

type scheduledTask struct {
	roomID     string
	generation uint64
	delay      time.Duration
	task       func()
}

// manualScheduler keeps tasks until the test fires them.
type manualScheduler struct {
	mu        sync.Mutex
	tasks     []scheduledTask
	cancelled []string
}

func (s *manualScheduler) Schedule(roomID string, generation uint64, delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, scheduledTask{roomID: roomID, generation: generation, delay: delay, task: task})
}

func (s *manualScheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, roomID)
}

func (s *manualScheduler) pending() []scheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduledTask(nil), s.tasks...)
}

// fire runs task i even if it was cancelled, the way a late timer would.
func (s *manualScheduler) fire(i int) {
	s.pending()[i].task()
}

// --- Notifier ---

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []internal.Message[any]
}

func (n *recordingNotifier) Broadcast(roomID string, msgs ...internal.Message[any]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Type
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = nil
}

// --- Archive ---

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) RecordMatch(ctx context.Context, result internal.MatchResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// --- Clock ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Engine ---

type testEnv struct {
	engine   *Engine
	sched    *manualScheduler
	notifier *recordingNotifier
	clock    *testClock
}

func newTestEnv(t *testing.T, archive Archive) *testEnv {
	t.Helper()
	env := &testEnv{
		sched:    &manualScheduler{},
		notifier: &recordingNotifier{},
		clock:    &testClock{now: t0},
	}
	env.engine = NewEngine(NewRegistry(), env.notifier, Options{
		RevealDelay: 3 * time.Second,
		Scheduler:   env.sched,
		Archive:     archive,
	})
	env.engine.now = env.clock.Now
	env.engine.randomLetter = func(bool) string { return "C" }
	return env
}

func messageTypes(msgs []internal.Message[any]) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

// roomWith creates a room hosted by the first id and seats the others.
func (env *testEnv) roomWith(t *testing.T, ids ...string) string {
	t.Helper()
	out, err := env.engine.CreateRoom(ids[0], "name-"+ids[0])
	require.NoError(t, err)
	for _, id := range ids[1:] {
		_, err := env.engine.JoinRoom(id, out.RoomID, "name-"+id)
		require.NoError(t, err)
	}
	return out.RoomID
}

// startedRoom returns a room whose first round letter has been revealed.
func (env *testEnv) startedRoom(t *testing.T, ids ...string) string {
	t.Helper()
	roomID := env.roomWith(t, ids...)
	for _, id := range ids {
		_, err := env.engine.SetReady(id, roomID, true)
		require.NoError(t, err)
	}
	_, err := env.engine.StartGame(ids[0], roomID)
	require.NoError(t, err)
	env.clock.Advance(3 * time.Second)
	return roomID
}

func (env *testEnv) room(t *testing.T, roomID string) *internal.Room {
	t.Helper()
	room, err := env.engine.registry.Get(roomID)
	require.NoError(t, err)
	return room
}
