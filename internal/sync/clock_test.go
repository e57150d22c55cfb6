// ABOUTME: Tests for clock synchronization
// ABOUTME: Covers RTT and offset math, drift tracking, outliers and time conversion
package sync

import (
	"testing"
	"time"
)

// fixedClock lets tests move the local clock by hand
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestSync(start time.Time) (*ClockSync, *fixedClock) {
	fc := &fixedClock{t: start}
	cs := NewClockSync()
	cs.now = fc.now
	return cs, fc
}

func TestCalculateOffset(t *testing.T) {
	tests := []struct {
		name           string
		t1, t2, t3, t4 int64
		rtt, offset    int64
	}{
		{"symmetric", 1000000, 2000, 2500, 1005000, 4500, -1000250},
		{"server ahead", 0, 10100, 10100, 200, 200, 10000},
		{"no delay", 500, 500, 500, 500, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rtt, offset := calculateOffset(tt.t1, tt.t2, tt.t3, tt.t4)
			if rtt != tt.rtt || offset != tt.offset {
				t.Errorf("calculateOffset() = %d, %d; want %d, %d", rtt, offset, tt.rtt, tt.offset)
			}
		})
	}
}

func TestFirstSampleSetsOffset(t *testing.T) {
	start := time.UnixMicro(1_700_000_000_000_000)
	cs, _ := newTestSync(start)

	if cs.Synced() {
		t.Fatal("synced before any sample")
	}

	now := start.UnixMicro()
	cs.ProcessSyncResponse(now-2000, 5_000_000, 5_000_100, now)

	if !cs.Synced() {
		t.Fatal("not synced after first sample")
	}
	offset, rtt, quality := cs.GetStats()
	if rtt != 1900 {
		t.Errorf("rtt = %d, want 1900", rtt)
	}
	if quality != QualityGood {
		t.Errorf("quality = %v, want good", quality)
	}
	if want := int64(5_000_000+50) - (now - 1000); offset != want {
		t.Errorf("offset = %d, want %d", offset, want)
	}
}

func TestHighRTTDiscarded(t *testing.T) {
	cs, _ := newTestSync(time.Now())
	cs.ProcessSyncResponse(0, 1000, 1000, 200_000)

	if cs.Synced() {
		t.Error("sample with 200ms RTT was accepted")
	}
}

func TestDriftTracking(t *testing.T) {
	cs, _ := newTestSync(time.Now())

	// the server clock runs 100ppm fast and starts 1s ahead
	server := func(client int64) int64 { return 1_000_000 + client + client/10000 }
	for i := int64(0); i < 20; i++ {
		client := i * 1_000_000
		cs.ProcessSyncResponse(client, server(client), server(client), client)
	}

	cs.mu.RLock()
	drift := cs.drift
	cs.mu.RUnlock()
	if drift < 0.00009 || drift > 0.00011 {
		t.Errorf("drift = %.9f, want ~0.0001", drift)
	}
}

func TestOutlierDiscarded(t *testing.T) {
	cs, _ := newTestSync(time.Now())
	for i := int64(0); i < 3; i++ {
		c := i * 1_000_000
		cs.ProcessSyncResponse(c, c+500, c+500, c)
	}
	before, _, _ := cs.GetStats()

	c := int64(3_000_000)
	cs.ProcessSyncResponse(c, c+500+80_000, c+500+80_000, c)

	after, _, _ := cs.GetStats()
	if after != before {
		t.Errorf("offset moved from %d to %d on an outlier", before, after)
	}
}

func TestServerToLocalTime(t *testing.T) {
	start := time.UnixMicro(1_700_000_000_000_000)
	cs, fc := newTestSync(start)

	now := start.UnixMicro()
	cs.ProcessSyncResponse(now-1000, 5_000_000, 5_000_050, now)

	local := cs.ServerToLocalTime(5_000_000 + 100_000)
	want := time.UnixMicro(now + 100_000)
	if d := local.Sub(want); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("ServerToLocalTime off by %v", d)
	}

	fc.t = start.Add(250 * time.Millisecond)
	server := cs.ServerMicros()
	if d := server - (5_000_000 + 250_000); d < -1000 || d > 1000 {
		t.Errorf("ServerMicros off by %dus", d)
	}
}

func TestCheckQualityGoesStale(t *testing.T) {
	start := time.Now()
	cs, fc := newTestSync(start)
	now := start.UnixMicro()
	cs.ProcessSyncResponse(now-100, 10, 10, now)

	if q := cs.CheckQuality(); q != QualityGood {
		t.Fatalf("quality = %v, want good", q)
	}
	fc.t = start.Add(6 * time.Second)
	if q := cs.CheckQuality(); q != QualityLost {
		t.Errorf("quality = %v, want lost", q)
	}
}
