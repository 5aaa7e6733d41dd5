package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/logging"
	"podscrub/internal/store"
)

// DefaultTimeout bounds how long a blocking call waits for its reply.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout reports that no reply arrived within the client's window.
	ErrTimeout = errors.New("write command timed out")
	// ErrWriterClosed reports that the writer loop no longer accepts work.
	ErrWriterClosed = errors.New("writer closed")
)

// Client submits WriteCommands. With a queue attached, commands travel to
// the writer goroutine and blocking calls wait for the correlated reply.
// With no queue (CLI fallback, tests), commands execute locally and
// synchronously against the same executor under the store's write guard, so
// callers cannot tell the two paths apart.
type Client struct {
	queue   chan<- WriteCommand
	closed  <-chan struct{}
	st      *store.Store
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithTimeout overrides the reply timeout for blocking calls.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a queued client bound to the writer's inbound channel.
// closed, when non-nil, makes submissions fail fast after writer shutdown.
func NewClient(queue chan<- WriteCommand, closed <-chan struct{}, opts ...ClientOption) *Client {
	c := &Client{
		queue:   queue,
		closed:  closed,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewLocalClient builds a client that executes commands in-process, without
// a writer loop. Serialization then rests on the store's exclusive write
// lock alone, which holds within a single process.
func NewLocalClient(st *store.Store, exec Executor, opts ...ClientOption) *Client {
	c := &Client{
		st:      st,
		exec:    exec,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create inserts a row of the named CRUD model.
func (c *Client) Create(ctx context.Context, model string, data map[string]any) (WriteResult, error) {
	return c.Submit(ctx, WriteCommand{Type: TypeCreate, Model: model, Data: cloneData(data)})
}

// Update mutates the identified row of the named CRUD model.
func (c *Client) Update(ctx context.Context, model, id string, data map[string]any) (WriteResult, error) {
	merged := cloneData(data)
	merged["id"] = id
	return c.Submit(ctx, WriteCommand{Type: TypeUpdate, Model: model, Data: merged})
}

// Delete removes the identified row of the named CRUD model.
func (c *Client) Delete(ctx context.Context, model, id string) (WriteResult, error) {
	return c.Submit(ctx, WriteCommand{Type: TypeDelete, Model: model, Data: map[string]any{"id": id}})
}

// Action invokes a named writer action and waits for its result.
func (c *Client) Action(ctx context.Context, name string, params map[string]any) (WriteResult, error) {
	merged := cloneData(params)
	merged["action"] = name
	return c.Submit(ctx, WriteCommand{Type: TypeAction, Data: merged})
}

// ActionAsync submits a named action without waiting for the result.
func (c *Client) ActionAsync(ctx context.Context, name string, params map[string]any) error {
	merged := cloneData(params)
	merged["action"] = name
	return c.SubmitAsync(ctx, WriteCommand{Type: TypeAction, Data: merged})
}

// Transaction applies the sub-commands atomically, in order.
func (c *Client) Transaction(ctx context.Context, commands ...WriteCommand) (WriteResult, error) {
	return c.Submit(ctx, WriteCommand{Type: TypeTransaction, Commands: commands})
}

// Submit sends one command and waits for its result. The timeout spans both
// queue admission and the reply wait, so a blocking call always terminates
// with a definitive result, a context error, or ErrTimeout; commands are
// never silently dropped.
func (c *Client) Submit(ctx context.Context, cmd WriteCommand) (WriteResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if c.queue == nil {
		return c.executeLocal(ctx, cmd)
	}

	reply := make(chan WriteResult, 1)
	cmd.Reply = reply
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case c.queue <- cmd:
	case <-c.closed:
		return WriteResult{}, fmt.Errorf("submit %s: %w", cmd.Describe(), ErrWriterClosed)
	case <-ctx.Done():
		return WriteResult{}, ctx.Err()
	case <-timer.C:
		return WriteResult{}, fmt.Errorf("submit %s: %w", cmd.Describe(), ErrTimeout)
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return WriteResult{}, ctx.Err()
	case <-timer.C:
		return WriteResult{}, fmt.Errorf("await %s: %w", cmd.Describe(), ErrTimeout)
	}
}

// SubmitAsync sends one command without a reply channel. The result is not
// observable; an error is returned only when the command cannot be handed
// to the writer at all.
func (c *Client) SubmitAsync(ctx context.Context, cmd WriteCommand) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.Reply = nil
	if c.queue == nil {
		res, err := c.executeLocal(ctx, cmd)
		if err != nil {
			return err
		}
		if !res.Success {
			c.logger.Debug("async command failed",
				logging.String(logging.FieldCommandID, res.CommandID),
				logging.String("command", cmd.Describe()),
				logging.String("error", res.Error))
		}
		return nil
	}

	select {
	case c.queue <- cmd:
		return nil
	case <-c.closed:
		return fmt.Errorf("submit %s: %w", cmd.Describe(), ErrWriterClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) executeLocal(ctx context.Context, cmd WriteCommand) (WriteResult, error) {
	if c.st == nil || c.exec == nil {
		return WriteResult{}, ErrWriterClosed
	}
	var data map[string]any
	err := c.st.WithWriteTx(ctx, func(ctx context.Context, tx *store.WriteTx) error {
		var execErr error
		data, execErr = c.exec.Execute(ctx, tx, cmd)
		return execErr
	})
	if err != nil {
		return Failed(cmd.ID, err), nil
	}
	return Succeeded(cmd.ID, data), nil
}

func cloneData(data map[string]any) map[string]any {
	cloned := make(map[string]any, len(data)+1)
	for key, value := range data {
		cloned[key] = value
	}
	return cloned
}
