// ABOUTME: Tests for playback scheduler
// ABOUTME: Tests ordering, release window, late drops and unsynced drops
package player

import (
	"context"
	"testing"
	"time"

	internalsync "github.com/mariotaku/Sunshine/internal/sync"
)

// syncedClock returns a clock whose server time equals local time
func syncedClock(t *testing.T) *internalsync.ClockSync {
	t.Helper()
	cs := internalsync.NewClockSync()
	now := time.Now().UnixMicro()
	cs.ProcessSyncResponse(now, now, now, now)
	if !cs.Synced() {
		t.Fatal("clock did not sync")
	}
	return cs
}

func TestScheduleBeforeSyncDrops(t *testing.T) {
	s := NewScheduler(internalsync.NewClockSync(), 100*time.Millisecond)
	s.Schedule(Buffer{Sequence: 1, Timestamp: time.Now().UnixMicro()})

	stats := s.Stats()
	if stats.Received != 1 || stats.Dropped != 1 || s.Pending() != 0 {
		t.Errorf("stats = %+v, pending %d", stats, s.Pending())
	}
}

func TestPlayAtIncludesDelay(t *testing.T) {
	s := NewScheduler(syncedClock(t), 100*time.Millisecond)
	ts := time.Now().UnixMicro()
	s.Schedule(Buffer{Timestamp: ts})

	got := s.queue.Peek().PlayAt
	want := time.UnixMicro(ts).Add(100 * time.Millisecond)
	if d := got.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("PlayAt off by %v", d)
	}
}

func TestDueOrderingAndWindow(t *testing.T) {
	s := NewScheduler(syncedClock(t), 0)
	base := time.Now()

	// offsets from base in milliseconds, scheduled out of order
	for i, ms := range []int64{40, -200, 0, 300, 20} {
		s.Schedule(Buffer{
			Sequence:  uint32(i),
			Timestamp: base.Add(time.Duration(ms) * time.Millisecond).UnixMicro(),
		})
	}

	ready := s.due(base)
	var seqs []uint32
	for _, b := range ready {
		seqs = append(seqs, b.Sequence)
	}
	want := []uint32{2, 4, 0}
	if len(seqs) != len(want) {
		t.Fatalf("released %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("released %v, want %v", seqs, want)
			break
		}
	}

	if s.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1 late buffer", s.Stats().Dropped)
	}
	if s.Pending() != 1 {
		t.Errorf("pending = %d, want 1 future buffer", s.Pending())
	}
}

func TestRunReleasesToOutput(t *testing.T) {
	s := NewScheduler(syncedClock(t), 0)
	s.Schedule(Buffer{Sequence: 7, Timestamp: time.Now().UnixMicro(), Samples: []int16{1, 2}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case buf := <-s.Output():
		if buf.Sequence != 7 || len(buf.Samples) != 2 {
			t.Errorf("buffer = %+v", buf)
		}
	case <-time.After(time.Second):
		t.Fatal("buffer not released")
	}
}
