// ABOUTME: Clock synchronization against the server's monotonic clock
// ABOUTME: Tracks offset and drift from client/time exchanges to place packets in local time
package sync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mariotaku/Sunshine/internal/logging"
)

const (
	maxRTT         = 100 * time.Millisecond
	goodRTT        = 50 * time.Millisecond
	maxResidual    = 50000 // microseconds
	staleAfter     = 5 * time.Second
	smoothingRate  = 0.1
	verboseSamples = 10
)

// Quality represents sync quality
type Quality int

const (
	QualityLost Quality = iota
	QualityGood
	QualityDegraded
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	}
	return "lost"
}

// ClockSync estimates server time as
// client + offset + drift*(client - lastSync), all in microseconds.
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64
	drift          float64
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64
	sampleCount    int

	now func() time.Time
	log *slog.Logger
}

// NewClockSync creates a new clock synchronizer
func NewClockSync() *ClockSync {
	return &ClockSync{
		quality: QualityLost,
		now:     time.Now,
		log:     logging.L("clock"),
	}
}

// ClientMicros returns the local clock in microseconds
func (cs *ClockSync) ClientMicros() int64 {
	return cs.now().UnixMicro()
}

// ProcessSyncResponse folds one exchange into the estimate. t1 and t4 are
// client send/receive times, t2 and t3 server receive/send times.
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.lastSync = cs.now()

	if rtt > maxRTT.Microseconds() || rtt < 0 {
		cs.log.Debug("discarding sync sample", "rtt_us", rtt)
		return
	}

	switch cs.sampleCount {
	case 0:
		cs.offset = measured
	case 1:
		if dt := float64(t4 - cs.lastSyncMicros); dt > 0 {
			cs.drift = float64(measured-cs.offset) / dt
		}
		cs.offset = measured
	default:
		dt := float64(t4 - cs.lastSyncMicros)
		if dt <= 0 {
			cs.log.Debug("discarding sync sample: non-monotonic time")
			return
		}

		predicted := cs.offset + int64(cs.drift*dt)
		residual := measured - predicted
		if residual > maxResidual || residual < -maxResidual {
			cs.log.Debug("discarding sync sample", "residual_us", residual)
			return
		}

		cs.offset = predicted + int64(smoothingRate*float64(residual))
		cs.drift += smoothingRate * float64(residual) / dt
	}

	cs.lastSyncMicros = t4
	cs.sampleCount++
	if rtt < goodRTT.Microseconds() {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}

	if cs.sampleCount <= verboseSamples {
		cs.log.Debug("clock sync", "sample", cs.sampleCount, "offset_us", cs.offset, "drift", cs.drift, "rtt_us", rtt)
	}
}

// calculateOffset computes RTT and clock offset (positive = server ahead)
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// Synced reports whether at least one sample was accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// GetStats returns sync statistics
func (cs *ClockSync) GetStats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// CheckQuality marks the sync lost when no exchange succeeded recently
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.now().Sub(cs.lastSync) > staleAfter {
		cs.quality = QualityLost
	}
	return cs.quality
}

// ServerToLocalTime converts a server clock reading to local wall time
func (cs *ClockSync) ServerToLocalTime(serverMicros int64) time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return time.UnixMicro(serverMicros)
	}

	// server = client*(1+drift) + offset - drift*lastSync
	numerator := float64(serverMicros) - float64(cs.offset) + cs.drift*float64(cs.lastSyncMicros)
	return time.UnixMicro(int64(numerator / (1.0 + cs.drift)))
}

// ServerMicros returns the current time on the server clock
func (cs *ClockSync) ServerMicros() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	client := cs.now().UnixMicro()
	if cs.sampleCount == 0 {
		return client
	}
	return client + cs.offset + int64(cs.drift*float64(client-cs.lastSyncMicros))
}
