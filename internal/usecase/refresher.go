package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
)

// RefreshTarget is the snapshot holder a Refresher reads from and commits to
type RefreshTarget interface {
	Current() *domain.Snapshot
	// ApplyRefresh swaps in prices only if the current version is still
	// baseVersion, otherwise it returns domain.ErrVersionConflict
	ApplyRefresh(ctx context.Context, baseVersion uint64, prices domain.PriceMatrix) error
}

// RefresherConfig holds configuration for the refresher
type RefresherConfig struct {
	Timeout time.Duration
}

// Refresher runs at most one refresh at a time. The new matrix is built as
// a separate value by the observation source and committed with a
// compare-and-swap, so readers never see a half-refreshed matrix and a
// result computed from a stale snapshot is discarded.
type Refresher struct {
	source  domain.ObservationSource
	target  RefreshTarget
	timeout time.Duration
	logger  *log.Entry

	mu        sync.Mutex
	job       *domain.RefreshJob
	running   bool
	cancelled bool
	// committing is set once the result is handed to the target; the
	// refresh can no longer be cancelled after that
	committing bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRefresher creates a refresher over the given source and target
func NewRefresher(source domain.ObservationSource, target RefreshTarget, config RefresherConfig) *Refresher {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	return &Refresher{
		source:  source,
		target:  target,
		timeout: timeout,
		logger:  log.WithField("component", "refresh"),
	}
}

// Start launches a refresh in the background. It returns
// domain.ErrRefreshInProgress while another refresh is running.
func (r *Refresher) Start(ctx context.Context) (domain.RefreshJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return *r.job, domain.ErrRefreshInProgress
	}

	base := r.target.Current()
	job := &domain.RefreshJob{
		ID:          uuid.NewString(),
		Status:      domain.RefreshRunning,
		BaseVersion: base.Version,
		StartedAt:   time.Now(),
	}

	// The refresh outlives the request that started it
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)

	r.job = job
	r.running = true
	r.cancelled = false
	r.committing = false
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.WithFields(log.Fields{"job": job.ID, "base_version": base.Version}).Info("refresh started")

	go r.run(runCtx, base, job.ID)

	return *job, nil
}

// Cancel aborts the running refresh; its result is discarded. A refresh
// that is already committing its result cannot be cancelled.
func (r *Refresher) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return domain.ErrNoRefreshInProgress
	}
	if r.committing {
		return fmt.Errorf("%w: refresh is committing", domain.ErrNoRefreshInProgress)
	}
	r.cancelled = true
	r.cancel()
	return nil
}

// Status returns the most recent job, if any
func (r *Refresher) Status() (domain.RefreshJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job == nil {
		return domain.RefreshJob{}, false
	}
	return *r.job, true
}

// Running reports whether a refresh is in flight
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until the current refresh finishes and returns its final job
func (r *Refresher) Wait(ctx context.Context) (domain.RefreshJob, error) {
	r.mu.Lock()
	if r.job == nil {
		r.mu.Unlock()
		return domain.RefreshJob{}, domain.ErrNoRefreshInProgress
	}
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return domain.RefreshJob{}, ctx.Err()
	}

	job, _ := r.Status()
	return job, nil
}

func (r *Refresher) run(ctx context.Context, base *domain.Snapshot, jobID string) {
	status, updated, failed, runErr := r.execute(ctx, base)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancel()

	now := time.Now()
	r.job.Status = status
	r.job.CompletedAt = &now
	r.job.Updated = updated
	r.job.Failed = failed
	if runErr != nil {
		r.job.Error = runErr.Error()
	}
	r.running = false
	close(r.done)

	entry := r.logger.WithFields(log.Fields{
		"job":      jobID,
		"status":   status,
		"updated":  updated,
		"failed":   failed,
		"duration": now.Sub(r.job.StartedAt).String(),
	})
	switch status {
	case domain.RefreshCompleted:
		if failed > 0 {
			entry.Warn("refresh completed with partial failures")
		} else {
			entry.Info("refresh completed")
		}
	case domain.RefreshFailed:
		entry.WithError(runErr).Error("refresh failed")
	default:
		entry.Warn("refresh discarded")
	}
}

func (r *Refresher) execute(ctx context.Context, base *domain.Snapshot) (domain.RefreshStatus, int, int, error) {
	result, err := r.source.RefreshAll(ctx, base)

	if !r.beginCommit() {
		return domain.RefreshCancelled, 0, 0, context.Canceled
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RefreshFailed, 0, 0, fmt.Errorf("refresh timed out after %s: %w", r.timeout, err)
		}
		return domain.RefreshFailed, 0, 0, err
	}

	if err := r.target.ApplyRefresh(ctx, base.Version, result.Prices); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return domain.RefreshSuperseded, 0, len(result.Failures), domain.ErrRefreshSuperseded
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.RefreshFailed, 0, len(result.Failures), fmt.Errorf("refresh timed out after %s: %w", r.timeout, err)
		}
		return domain.RefreshFailed, 0, len(result.Failures), err
	}

	return domain.RefreshCompleted, result.Updated, len(result.Failures), nil
}

// beginCommit closes the cancellation window. It reports false when the
// refresh was cancelled first.
func (r *Refresher) beginCommit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return false
	}
	r.committing = true
	return true
}
