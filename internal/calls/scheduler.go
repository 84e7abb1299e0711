// Package calls admits scheduled outbound calls under a concurrency limit
// and hands them to the voice platform.
package calls

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonathan/talent-match/internal/db"
	"go.uber.org/zap"
)

// Store is the persistence the scheduler needs.
type Store interface {
	CountInFlightCalls(ctx context.Context, now time.Time) (int, error)
	ClaimNextDueCall(ctx context.Context, now time.Time, maxInFlight int) (*db.ScheduledCall, error)
	RecordDispatch(ctx context.Context, call *db.ScheduledCall, callID string) (*db.CallDetail, error)
	ListOrphanedClaims(ctx context.Context, claimedBefore time.Time) ([]db.ScheduledCall, error)
}

// Options tunes the scheduler.
type Options struct {
	TickInterval time.Duration
	MaxInFlight  int
	// OrphanAfter is how long a claim may go without a call id before it is reported.
	OrphanAfter time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TickInterval: time.Minute,
		MaxInFlight:  5,
		OrphanAfter:  5 * time.Minute,
	}
}

// TickResult summarizes one tick.
type TickResult struct {
	Skipped    bool `json:"skipped"`
	Claimed    int  `json:"claimed"`
	Dispatched int  `json:"dispatched"`
	Failed     int  `json:"failed"`
	Orphaned   int  `json:"orphaned"`
}

// Scheduler admits due calls while fewer than MaxInFlight are in flight.
type Scheduler struct {
	store   Store
	dialer  Dialer
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
	running atomic.Bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(store Store, dialer Dialer, opts Options, logger *zap.Logger) *Scheduler {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = def.MaxInFlight
	}
	if opts.OrphanAfter <= 0 {
		opts.OrphanAfter = def.OrphanAfter
	}
	return &Scheduler{store: store, dialer: dialer, opts: opts, logger: logger, now: time.Now}
}

// Run ticks until ctx is cancelled. A tick that is still running when the
// next one is due causes the later tick to be dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.logger.Info("call scheduler started",
		zap.Duration("interval", s.opts.TickInterval),
		zap.Int("max_in_flight", s.opts.MaxInFlight))

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		defer wg.Done()
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("call scheduler tick failed", zap.Error(err))
		}
	}

	wg.Add(1)
	go tick()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("call scheduler stopping")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go tick()
		}
	}
}

// Tick claims and dispatches due calls until the in-flight limit is reached
// or nothing is due. A failed dispatch consumes its claim.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("previous tick still running, skipping")
		res.Skipped = true
		return res, nil
	}
	defer s.running.Store(false)

	res.Orphaned = s.reportOrphans(ctx)

	for ctx.Err() == nil {
		now := s.now()

		inFlight, err := s.store.CountInFlightCalls(ctx, now)
		if err != nil {
			return res, err
		}
		if inFlight >= s.opts.MaxInFlight {
			s.logger.Debug("admission limit reached", zap.Int("in_flight", inFlight))
			break
		}

		call, err := s.store.ClaimNextDueCall(ctx, now, s.opts.MaxInFlight)
		if err != nil {
			return res, err
		}
		if call == nil {
			break
		}
		res.Claimed++

		if s.dispatch(ctx, call) {
			res.Dispatched++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (s *Scheduler) dispatch(ctx context.Context, call *db.ScheduledCall) bool {
	log := s.logger.With(
		zap.String("scheduled_call_id", call.ID.String()),
		zap.String("candidate_id", call.CandidateID.String()),
		zap.String("job_id", call.JobID.String()))

	callID, err := s.dialer.Dial(ctx, DialRequest{
		PhoneNumber: call.PhoneNumber,
		AssistantID: call.AssistantID,
		Metadata: map[string]string{
			"scheduled_call_id": call.ID.String(),
			"candidate_id":      call.CandidateID.String(),
			"job_id":            call.JobID.String(),
		},
	})
	if err != nil {
		log.Error("dial failed; claim consumed", zap.Error(err))
		return false
	}

	if _, err := s.store.RecordDispatch(ctx, call, callID); err != nil {
		log.Error("failed to record dispatched call", zap.String("call_id", callID), zap.Error(err))
		return false
	}

	log.Info("call dispatched", zap.String("call_id", callID))
	return true
}

func (s *Scheduler) reportOrphans(ctx context.Context) int {
	orphans, err := s.store.ListOrphanedClaims(ctx, s.now().Add(-s.opts.OrphanAfter))
	if err != nil {
		s.logger.Warn("failed to check orphaned calls", zap.Error(err))
		return 0
	}
	for _, c := range orphans {
		var claimedAt time.Time
		if c.ClaimedAt != nil {
			claimedAt = *c.ClaimedAt
		}
		s.logger.Warn("claimed call was never dispatched",
			zap.String("scheduled_call_id", c.ID.String()),
			zap.String("candidate_id", c.CandidateID.String()),
			zap.Time("claimed_at", claimedAt))
	}
	return len(orphans)
}
