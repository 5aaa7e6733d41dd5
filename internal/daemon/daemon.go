package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"podscrub/internal/actions"
	"podscrub/internal/api"
	"podscrub/internal/command"
	"podscrub/internal/config"
	"podscrub/internal/llm"
	"podscrub/internal/logging"
	"podscrub/internal/preflight"
	"podscrub/internal/processor"
	"podscrub/internal/ratelimit"
	"podscrub/internal/scheduler"
	"podscrub/internal/store"
	"podscrub/internal/writer"
)

// Daemon owns the long-running process: the store, the single-writer
// goroutine, the job scheduler, and the flock that enforces one instance
// per data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	root   *slog.Logger

	st      *store.Store
	writer  *writer.Writer
	client  *command.Client
	limiter *ratelimit.Coordinator
	llm     *llm.Client
	sched   *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock
	logPath  string

	running      atomic.Bool
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New constructs a daemon. Heavy wiring happens in Start so a constructed
// daemon that never starts holds no file handles.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		root:     logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		logPath:  cfg.LogPath(),
		shutdown: make(chan struct{}),
	}, nil
}

// Start acquires the instance lock, opens the store, and brings up the
// writer and scheduler. Startup sweeps (clean slate, stale cleanup, pending
// enqueue) run before Start returns so the first poll sees a settled queue.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podscrub daemon instance is already running")
	}

	st, err := store.Open(d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("open store: %w", err)
	}
	d.st = st

	d.writer = writer.New(st, actions.NewRegistry(d.root), d.root)
	if err := d.writer.Start(ctx); err != nil {
		_ = st.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("start writer: %w", err)
	}

	clientOpts := []command.ClientOption{command.WithLogger(d.root)}
	if d.cfg.Scheduler.CommandTimeout > 0 {
		clientOpts = append(clientOpts, command.WithTimeout(time.Duration(d.cfg.Scheduler.CommandTimeout)*time.Second))
	}
	d.client = command.NewClient(d.writer.Queue(), d.writer.Closed(), clientOpts...)

	d.limiter = ratelimit.NewCoordinator(d.cfg.RateLimit, d.cfg.LLM.Model, d.root)
	d.llm = llm.NewClient(llmConfig(d.cfg), llm.WithLimiter(d.limiter))

	pipeline := processor.NewPipeline(d.cfg, d.llm, d.root)
	d.sched = scheduler.New(d.cfg, st, d.client, pipeline, d.root)
	if err := d.sched.Start(ctx); err != nil {
		d.writer.Stop()
		_ = st.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()),
	)

	// Preflight is advisory and may dial out; never hold up startup for it.
	go d.logPreflight(ctx)
	if err := d.runStartupSweeps(ctx); err != nil {
		d.logger.Error("startup sweeps failed", logging.Error(err))
	}
	return nil
}

// Stop halts the scheduler before the writer so the final status writes of
// an in-flight job still have a live writer to land on, then closes the
// store and releases the lock. Safe to call more than once.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.sched != nil {
		d.sched.Stop()
	}
	if d.writer != nil {
		d.writer.Stop()
	}
	if d.st != nil {
		if err := d.st.Close(); err != nil {
			d.logger.Warn("failed to close store", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// RequestShutdown asks the process supervising the daemon to exit. IPC Stop
// uses it; the daemon itself keeps running until the supervisor calls Stop.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
	})
}

// ShutdownRequests exposes the channel closed by RequestShutdown.
func (d *Daemon) ShutdownRequests() <-chan struct{} {
	return d.shutdown
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Scheduler exposes the job scheduler for IPC handlers.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.sched
}

// Store exposes the read side for IPC handlers.
func (d *Daemon) Store() *store.Store {
	return d.st
}

// SubmitCommand routes a write command from the IPC layer through the
// single-writer queue.
func (d *Daemon) SubmitCommand(ctx context.Context, commandType, model string, data map[string]any) (command.WriteResult, error) {
	if d.client == nil {
		return command.WriteResult{}, errors.New("command client unavailable")
	}
	typ, err := command.ParseType(commandType)
	if err != nil {
		return command.WriteResult{}, err
	}
	switch typ {
	case command.TypeCreate:
		return d.client.Create(ctx, model, data)
	case command.TypeUpdate:
		id, _ := data["id"].(string)
		return d.client.Update(ctx, model, id, data)
	case command.TypeDelete:
		id, _ := data["id"].(string)
		return d.client.Delete(ctx, model, id)
	case command.TypeAction:
		return d.client.Action(ctx, model, data)
	default:
		return command.WriteResult{}, fmt.Errorf("unsupported command type %q", commandType)
	}
}

// Status assembles the daemon status snapshot served over IPC.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
	}
	if d.sched != nil {
		status.WorkerRunning = d.sched.Running()
		if err := d.sched.LastError(); err != nil {
			status.LastError = err.Error()
		}
	}
	if d.st != nil {
		if counts, err := d.st.JobCounts(ctx); err == nil {
			status.JobCounts = api.MergeJobCounts(counts)
		}
		if run, err := d.st.Run(ctx); err == nil {
			status.Run = api.FromRun(run)
		}
	}
	if d.limiter != nil {
		rate := api.FromRateStats(d.limiter.Stats())
		status.Rate = &rate
	}
	status.Dependencies = api.FromDependencyStatuses(preflight.CheckSystemDeps(d.cfg))
	return status
}

// RateStats reports LLM token budget consumption.
func (d *Daemon) RateStats() (ratelimit.Stats, error) {
	if d.limiter == nil {
		return ratelimit.Stats{}, errors.New("rate limiter unavailable")
	}
	return d.limiter.Stats(), nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, res := range preflight.RunAll(ctx, d.cfg) {
		if res.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail),
			)
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(d.cfg) {
		if dep.Available {
			continue
		}
		d.logger.Warn("external tool unavailable",
			logging.String("tool", dep.Name),
			logging.String("detail", dep.Detail),
		)
	}
}

// runStartupSweeps settles the queue before the worker picks up its first
// job: optional clean slate, stale pending cleanup, requeue of jobs a
// previous daemon left running, and an enqueue pass for posts that still
// need processing. Recovery runs after the stale sweep so a requeued job is
// not failed for age in the same breath; it was mid-flight, not stuck.
func (d *Daemon) runStartupSweeps(ctx context.Context) error {
	if d.cfg.Daemon.CleanSlate {
		removed, err := d.sched.ClearAllJobs(ctx)
		if err != nil {
			return fmt.Errorf("clean slate: %w", err)
		}
		d.logger.Info("clean slate enabled; cleared job history", logging.Int("removed", removed))
	}

	if _, err := d.sched.CleanupStuckPending(ctx, 0); err != nil {
		return fmt.Errorf("cleanup stale jobs: %w", err)
	}

	if _, err := d.sched.RecoverOrphanedJobs(ctx); err != nil {
		return fmt.Errorf("recover orphaned jobs: %w", err)
	}

	if _, err := d.sched.EnqueuePendingJobs(ctx, "startup", "daemon startup sweep"); err != nil {
		return fmt.Errorf("enqueue pending posts: %w", err)
	}
	return nil
}

func llmConfig(cfg *config.Config) llm.Config {
	shared := cfg.GetLLM()
	return llm.Config{
		APIKey:         shared.APIKey,
		BaseURL:        shared.BaseURL,
		Model:          shared.Model,
		Referer:        shared.Referer,
		Title:          shared.Title,
		TimeoutSeconds: shared.TimeoutSeconds,
	}
}
