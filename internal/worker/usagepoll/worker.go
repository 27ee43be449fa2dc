package usagepoll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/fulfillment/domain"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/providers/wholesale"
	"github.com/simroam/simroam/internal/ratelimit"
	"github.com/simroam/simroam/internal/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockKey = "simroam:worker:usagepoll"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Repo    domain.Repository
	Client  wholesale.Client
	Locker  *ratelimit.Locker `optional:"true"`
	Metrics *metrics.Metrics
}

// Worker refreshes usage counters for active and not-yet-active sims on a
// fixed interval. Usage fetches run concurrently under the pacer; database
// writes stay serial because a gorm transaction is not goroutine safe.
type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.UsagePollConfig
	repo    domain.Repository
	client  wholesale.Client
	locker  *ratelimit.Locker
	metrics *metrics.Metrics
	pacer   *ratelimit.Pacer
	running atomic.Bool
}

func New(p Params) *Worker {
	cfg := p.Config.UsagePoll
	return &Worker{
		db:      p.DB,
		log:     p.Log.Named("worker.usagepoll"),
		cfg:     cfg,
		repo:    p.Repo,
		client:  p.Client,
		locker:  p.Locker,
		metrics: p.Metrics,
		pacer:   ratelimit.NewPacer(cfg.Concurrency, 0),
	}
}

// RunForever polls immediately, then on every interval tick until ctx is
// cancelled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	result, err := w.Run(ctx)
	if err != nil {
		w.metrics.WorkerRuns.WithLabelValues("usage_poll", "error").Inc()
		w.log.Error("usage poll run failed", zap.Error(err))
		return
	}
	w.metrics.WorkerRuns.WithLabelValues("usage_poll", result).Inc()
}

const (
	RunCompleted = "ok"
	RunSkipped   = "skipped"
)

// Run executes a single poll pass. A pass is single-flight per process via
// the atomic guard and, when redis is configured, single-flight across
// processes via the lock. Overlapping calls return RunSkipped without work.
func (w *Worker) Run(ctx context.Context) (string, error) {
	if !w.running.CompareAndSwap(false, true) {
		return RunSkipped, nil
	}
	defer w.running.Store(false)

	if w.locker != nil {
		token, ok, err := w.locker.TryLock(ctx, lockKey, w.cfg.LockTTL)
		if err != nil {
			return "", err
		}
		if !ok {
			return RunSkipped, nil
		}
		defer func() {
			if err := w.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				w.log.Warn("usage poll lock release failed", zap.Error(err))
			}
		}()
	}

	if _, err := w.client.Authenticate(ctx); err != nil {
		return "", err
	}

	var polled, updated int
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var afterID snowflake.ID
		for {
			sims, err := w.repo.FindPollableSims(ctx, tx, afterID, w.cfg.BatchSize)
			if err != nil {
				return err
			}
			if len(sims) == 0 {
				return nil
			}
			afterID = sims[len(sims)-1].ID

			results := w.fetchBatch(ctx, sims)
			for i := range sims {
				if results[i].err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					w.metrics.SimsPolled.WithLabelValues("error").Inc()
					w.log.Warn("usage fetch failed, skipping sim",
						zap.String("iccid", sims[i].ICCID),
						zap.Error(results[i].err),
					)
					continue
				}
				polled++
				changed, err := w.applyUsage(ctx, tx, &sims[i], results[i].usage)
				if err != nil {
					return err
				}
				if changed {
					updated++
					w.metrics.SimsPolled.WithLabelValues("updated").Inc()
				} else {
					w.metrics.SimsPolled.WithLabelValues("unchanged").Inc()
				}
			}
			if len(sims) < w.cfg.BatchSize {
				return nil
			}
		}
	})
	if err != nil {
		return "", err
	}

	w.log.Info("usage poll complete",
		zap.Int("polled", polled),
		zap.Int("updated", updated),
	)
	return RunCompleted, nil
}

type fetchResult struct {
	usage wholesale.Usage
	err   error
}

func (w *Worker) fetchBatch(ctx context.Context, sims []domain.Sim) []fetchResult {
	results := make([]fetchResult, len(sims))
	policy := retry.Policy{MaxRetries: w.cfg.MaxRetries}

	var wg sync.WaitGroup
	for i := range sims {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := w.pacer.Do(ctx, func(ctx context.Context) error {
				return retry.Do(ctx, policy, func(ctx context.Context) error {
					usage, err := w.client.FetchUsage(ctx, sims[i].ICCID)
					if err != nil {
						return err
					}
					results[i].usage = usage
					return nil
				})
			})
			results[i].err = err
		}(i)
	}
	wg.Wait()
	return results
}

// applyUsage diffs the remote snapshot against the stored row and writes the
// changed columns only. A sim the remote reports active, or that shows any
// consumption, transitions NOT_ACTIVE to ACTIVE; a remote terminal state is
// applied as-is.
func (w *Worker) applyUsage(ctx context.Context, tx *gorm.DB, sim *domain.Sim, usage wholesale.Usage) (bool, error) {
	fields := map[string]any{}

	if usage.DataTotalMB > 0 && usage.DataTotalMB != sim.DataTotalMB {
		fields["data_total_mb"] = usage.DataTotalMB
	}
	if usage.DataRemaining != sim.DataRemainingMB {
		fields["data_remaining_mb"] = usage.DataRemaining
	}
	if usage.VoiceTotal > 0 && usage.VoiceTotal != sim.VoiceTotal {
		fields["voice_total"] = usage.VoiceTotal
	}
	if usage.VoiceRemaining != sim.VoiceRemaining {
		fields["voice_remaining"] = usage.VoiceRemaining
	}
	if usage.TextTotal > 0 && usage.TextTotal != sim.TextTotal {
		fields["text_total"] = usage.TextTotal
	}
	if usage.TextRemaining != sim.TextRemaining {
		fields["text_remaining"] = usage.TextRemaining
	}

	if next := nextStatus(sim, usage); next != sim.Status {
		fields["status"] = next
	}

	if len(fields) == 0 {
		return false, nil
	}
	fields["last_usage_fetch_at"] = time.Now().UTC()
	return true, w.repo.UpdateSimUsage(ctx, tx, sim.ID, fields)
}

var terminalStatuses = map[domain.SimStatus]struct{}{
	domain.SimStatusFinished:    {},
	domain.SimStatusDeactivated: {},
	domain.SimStatusExpired:     {},
	domain.SimStatusRecycled:    {},
}

// nextStatus folds the remote snapshot into the stored status. A remote
// terminal state always wins, so the sim leaves the pollable set; remote
// strings we do not recognize are ignored.
func nextStatus(sim *domain.Sim, usage wholesale.Usage) domain.SimStatus {
	remote := domain.SimStatus(usage.Status)
	if _, ok := terminalStatuses[remote]; ok {
		return remote
	}
	if sim.Status != domain.SimStatusNotActive {
		return sim.Status
	}
	if remote == domain.SimStatusActive {
		return domain.SimStatusActive
	}
	consumed := usage.DataTotalMB > 0 && usage.DataRemaining < usage.DataTotalMB
	if consumed {
		return domain.SimStatusActive
	}
	return sim.Status
}
