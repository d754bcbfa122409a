package monitor

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/dverbeek/sweeper/internal/store"
	"github.com/dverbeek/sweeper/internal/trash"
)

// eventRetention bounds how long raw cache events are kept.
const eventRetention = 30 * 24 * time.Hour

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

// SchedulerOptions wires the jobs to their collaborators.
type SchedulerOptions struct {
	Store         *store.Store
	Engine        *trash.Engine
	Watcher       *Watcher // may be nil when monitoring is disabled
	Mount         string
	SweepEvery    time.Duration
	SnapshotEvery time.Duration
}

// NewScheduler builds the job set. Start must be called to run it.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if opts.Engine != nil && opts.SweepEvery > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(opts.SweepEvery),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				purged, freed, err := opts.Engine.SweepExpired(ctx, time.Now())
				if err != nil {
					log.Warn().Err(err).Msg("scheduled trash sweep failed")
					return
				}
				if purged > 0 {
					log.Info().Int("purged", purged).Int64("freed", freed).Msg("scheduled trash sweep")
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	if opts.Store != nil && opts.SnapshotEvery > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(opts.SnapshotEvery),
			gocron.NewTask(func() {
				takeDiskSnapshot(opts.Store, opts.Mount)
				if opts.Watcher != nil {
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()
					opts.Watcher.Snapshot(ctx)
				}
				if err := opts.Store.PruneCacheEvents(time.Now().Add(-eventRetention)); err != nil {
					log.Warn().Err(err).Msg("cache event pruning failed")
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	return &Scheduler{sched: sched}, nil
}

// Start begins running jobs on their intervals.
func (s *Scheduler) Start() { s.sched.Start() }

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error { return s.sched.Shutdown() }

func takeDiskSnapshot(st *store.Store, mount string) {
	usage, err := disk.Usage(mount)
	if err != nil {
		log.Warn().Err(err).Str("mount", mount).Msg("disk snapshot failed")
		return
	}
	snap := &store.DiskSnapshot{
		Mount:     mount,
		Total:     usage.Total,
		Used:      usage.Used,
		Free:      usage.Free,
		Timestamp: time.Now(),
	}
	if err := st.AppendDiskSnapshot(snap); err != nil {
		log.Warn().Err(err).Msg("cannot record disk snapshot")
	}
}
