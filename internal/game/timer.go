package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

// Scheduler runs delayed room tasks tagged with the room generation they were
// scheduled for. Cancel drops every pending task of a room.
type Scheduler interface {
	Schedule(roomID string, generation uint64, delay time.Duration, task func())
	Cancel(roomID string)
}

type TimerKey struct {
	RoomID     string
	Generation uint64
}

type phaseTimer struct {
	key    TimerKey
	cancel context.CancelFunc
}

// TimerScheduler backs every task with a context deadline and a goroutine.
// Scheduling for a newer generation cancels whatever the room still had
// pending from older ones.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string][]*phaseTimer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string][]*phaseTimer)}
}

func (s *TimerScheduler) Schedule(roomID string, generation uint64, delay time.Duration, task func()) {
	key := TimerKey{RoomID: roomID, Generation: generation}
	ctx, cancel := context.WithTimeout(context.Background(), delay)
	timer := &phaseTimer{key: key, cancel: cancel}

	s.mu.Lock()
	kept := s.timers[roomID][:0]
	for _, t := range s.timers[roomID] {
		if t.key.Generation < generation {
			t.cancel()
			continue
		}
		kept = append(kept, t)
	}
	s.timers[roomID] = append(kept, timer)
	s.mu.Unlock()

	log.Debug().Str("room", roomID).Uint64("generation", generation).Dur("delay", delay).Msg("[TimerScheduler.Schedule] timer armed")

	go func() {
		<-ctx.Done()
		s.forget(timer)

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Debug().Str("room", roomID).Uint64("generation", generation).Msg("[TimerScheduler] timer expired")
			task()
			return
		}
		log.Debug().Str("room", roomID).Uint64("generation", generation).Msg("[TimerScheduler] timer cancelled before expiry")
	}()
}

func (s *TimerScheduler) Cancel(roomID string) {
	s.mu.Lock()
	timers := s.timers[roomID]
	delete(s.timers, roomID)
	s.mu.Unlock()

	for _, t := range timers {
		t.cancel()
	}
	if len(timers) > 0 {
		log.Debug().Str("room", roomID).Int("count", len(timers)).Msg("[TimerScheduler.Cancel] timers cancelled")
	}
}

// Pending reports how many timers a room still has armed.
func (s *TimerScheduler) Pending(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers[roomID])
}

func (s *TimerScheduler) forget(timer *phaseTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timers := s.timers[timer.key.RoomID]
	for i, t := range timers {
		if t == timer {
			timers = append(timers[:i], timers[i+1:]...)
			break
		}
	}
	if len(timers) == 0 {
		delete(s.timers, timer.key.RoomID)
	} else {
		s.timers[timer.key.RoomID] = timers
	}
	timer.cancel()
}
