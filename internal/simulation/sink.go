package simulation

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/storage"
)

// sinkItem is either a snapshot or a progress sample.
type sinkItem struct {
	snapshot *domain.SimulationResult
	progress *domain.ProgressSample
}

// sinkStats counts snapshot write outcomes.
type sinkStats struct {
	attempted int
	written   int
	failed    int
}

// sink performs the I/O of one run on its own goroutine, in push order.
// Consecutive progress samples are coalesced so only the latest is written.
type sink struct {
	simulationID string
	results      storage.SimulationResultStore
	progress     storage.ProgressStore
	logger       *zap.Logger

	mu     sync.Mutex
	items  []sinkItem
	closed bool
	wake   chan struct{}
	done   chan struct{}

	stats sinkStats
}

func newSink(ctx context.Context, simulationID string, results storage.SimulationResultStore, progress storage.ProgressStore, logger *zap.Logger) *sink {
	s := &sink{
		simulationID: simulationID,
		results:      results,
		progress:     progress,
		logger:       logger,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go s.loop(ctx)
	return s
}

func (s *sink) pushSnapshot(r *domain.SimulationResult) {
	s.push(sinkItem{snapshot: r})
}

func (s *sink) pushProgress(p domain.ProgressSample) {
	s.push(sinkItem{progress: &p})
}

func (s *sink) push(item sinkItem) {
	s.mu.Lock()
	if n := len(s.items); item.progress != nil && n > 0 && s.items[n-1].progress != nil {
		s.items[n-1] = item
	} else {
		s.items = append(s.items, item)
	}
	s.mu.Unlock()

	s.signal()
}

func (s *sink) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close drains pending items and returns the snapshot counters.
func (s *sink) close() sinkStats {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()

	<-s.done
	return s.stats
}

func (s *sink) loop(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		batch := s.items
		s.items = nil
		closed := s.closed
		s.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-s.wake
			continue
		}

		for _, item := range batch {
			if item.snapshot != nil {
				s.writeSnapshot(ctx, item.snapshot)
			} else {
				s.writeProgress(ctx, *item.progress)
			}
		}
	}
}

func (s *sink) writeSnapshot(ctx context.Context, r *domain.SimulationResult) {
	s.stats.attempted++

	err := s.results.Insert(ctx, r)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Redelivered run wrote this snapshot already.
		err = nil
	}
	observability.RecordSnapshot(err)

	if err != nil {
		s.stats.failed++
		s.logger.Warn("snapshot write failed",
			zap.String("simulation_id", s.simulationID),
			zap.Int("seq", r.Seq),
			zap.Error(err))
		return
	}
	s.stats.written++
}

func (s *sink) writeProgress(ctx context.Context, p domain.ProgressSample) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Publish(ctx, s.simulationID, p); err != nil {
		s.logger.Debug("progress publish failed",
			zap.String("simulation_id", s.simulationID),
			zap.Float64("progress", p.Progress),
			zap.Error(err))
	}
}
