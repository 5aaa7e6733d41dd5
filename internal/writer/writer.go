package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"podscrub/internal/command"
	"podscrub/internal/logging"
	"podscrub/internal/store"
)

// DefaultQueueDepth bounds how many commands may sit in the inbound channel
// before producers block.
const DefaultQueueDepth = 64

// Writer is the only goroutine allowed to mutate the store. Producers hand
// it WriteCommands over Queue(); each command executes inside one guarded
// write transaction and its result travels back over the command's reply
// channel. Commands apply strictly in arrival order.
type Writer struct {
	st     *store.Store
	exec   command.Executor
	logger *slog.Logger

	queue  chan command.WriteCommand
	closed chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures optional Writer behavior.
type Option func(*Writer)

// WithQueueDepth overrides the inbound channel buffer size.
func WithQueueDepth(depth int) Option {
	return func(w *Writer) {
		if depth > 0 {
			w.queue = make(chan command.WriteCommand, depth)
		}
	}
}

// New constructs a writer bound to the store and executor.
func New(st *store.Store, exec command.Executor, logger *slog.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Writer{
		st:     st,
		exec:   exec,
		logger: logging.NewComponentLogger(logger, "writer"),
		queue:  make(chan command.WriteCommand, DefaultQueueDepth),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Queue exposes the inbound channel for command clients.
func (w *Writer) Queue() chan<- command.WriteCommand {
	return w.queue
}

// Closed is closed once the drain loop has exited; submissions racing a
// shutdown observe it and fail fast instead of blocking.
func (w *Writer) Closed() <-chan struct{} {
	return w.closed
}

// Start launches the drain loop. A writer runs at most once; after Stop it
// cannot be restarted.
func (w *Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("writer already running")
	}
	if w.stopped {
		return errors.New("writer already stopped")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)
	return nil
}

// Stop terminates the drain loop and waits for the in-flight command to
// finish. Queued commands that never reached the loop are not drained;
// their callers time out or observe Closed.
func (w *Writer) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.stopped = true
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.closed)

	w.logger.Info("write loop started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("write loop stopped")
			return
		case cmd := <-w.queue:
			res := w.apply(ctx, cmd)
			w.deliver(cmd, res)
		}
	}
}

// apply executes one command inside a guarded write transaction. Executor
// errors and panics become failed results; the loop itself never dies from
// a bad command.
func (w *Writer) apply(ctx context.Context, cmd command.WriteCommand) (res command.WriteResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("write command panicked",
				logging.String(logging.FieldCommandID, cmd.ID),
				logging.String("command", cmd.Describe()),
				logging.Any("panic", r))
			res = command.Failed(cmd.ID, fmt.Errorf("apply %s: panic: %v", cmd.Describe(), r))
		}
	}()

	var data map[string]any
	err := w.st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		var execErr error
		data, execErr = w.exec.Execute(ctx, tx, cmd)
		return execErr
	})
	if err != nil {
		w.logger.Error("write command failed",
			logging.String(logging.FieldCommandID, cmd.ID),
			logging.String("command", cmd.Describe()),
			logging.Error(err))
		return command.Failed(cmd.ID, err)
	}

	w.logApplied(cmd, data, time.Since(start))
	return command.Succeeded(cmd.ID, data)
}

// logApplied keeps polling noise out of the info log: a dequeue that found
// nothing logs at debug, every state-changing command at info.
func (w *Writer) logApplied(cmd command.WriteCommand, data map[string]any, elapsed time.Duration) {
	if cmd.ActionName() == "dequeue_job" {
		if _, claimed := data["job_id"]; !claimed {
			w.logger.Debug("dequeue found no work",
				logging.String(logging.FieldCommandID, cmd.ID))
			return
		}
	}
	w.logger.Info("write command applied",
		logging.String(logging.FieldCommandID, cmd.ID),
		logging.String("command", cmd.Describe()),
		logging.Duration("elapsed", elapsed))
}

func (w *Writer) deliver(cmd command.WriteCommand, res command.WriteResult) {
	if cmd.Reply == nil {
		return
	}
	// Reply channels are buffered; a blocked send means the caller already
	// timed out and abandoned the channel.
	select {
	case cmd.Reply <- res:
	default:
		w.logger.Debug("reply dropped, caller gone",
			logging.String(logging.FieldCommandID, cmd.ID),
			logging.String("command", cmd.Describe()))
	}
}
