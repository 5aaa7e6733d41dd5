package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"podscrub/internal/command"
	"podscrub/internal/logging"
	"podscrub/internal/services"
	"podscrub/internal/store"
)

type actionFunc func(ctx context.Context, tx *store.WriteTx, params map[string]any) (map[string]any, error)

type modelHandlers struct {
	create actionFunc
	update actionFunc
	remove actionFunc
}

// Registry resolves commands to handlers. Both tables are fixed at
// construction; there is no runtime registration and no reflection.
type Registry struct {
	logger  *slog.Logger
	actions map[string]actionFunc
	models  map[string]modelHandlers
}

// NewRegistry builds the executor with the full action and CRUD tables.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{logger: logging.NewComponentLogger(logger, "actions")}
	r.actions = map[string]actionFunc{
		"create_job":                 r.createJob,
		"dequeue_job":                r.dequeueJob,
		"update_job_status":          r.updateJobStatus,
		"mark_cancelled":             r.markCancelled,
		"cancel_existing_jobs":       r.cancelExistingJobs,
		"cleanup_stale_jobs":         r.cleanupStaleJobs,
		"recover_orphaned_jobs":      r.recoverOrphanedJobs,
		"clear_all_jobs":             r.clearAllJobs,
		"ensure_active_run":          r.ensureActiveRun,
		"reassign_pending_jobs":      r.reassignPendingJobs,
		"recalculate_run_counts":     r.recalculateRunCounts,
		"reset_run_counters":         r.resetRunCounters,
		"clear_post_processing_data": r.clearPostProcessingData,
		"complete_job_and_publish":   r.completeJobAndPublish,
	}
	r.models = map[string]modelHandlers{
		"post":    {create: r.createPost, update: r.updatePost, remove: r.deletePost},
		"feed":    {create: r.createFeed, update: r.updateFeed, remove: r.deleteFeed},
		"setting": {create: r.upsertSetting, update: r.upsertSetting, remove: r.deleteSetting},
	}
	return r
}

// ActionNames returns the registered action names, for diagnostics.
func (r *Registry) ActionNames() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	return names
}

// Execute applies one command inside the open write transaction.
func (r *Registry) Execute(ctx context.Context, tx *store.WriteTx, cmd command.WriteCommand) (map[string]any, error) {
	switch cmd.Type {
	case command.TypeCreate, command.TypeUpdate, command.TypeDelete:
		return r.executeCRUD(ctx, tx, cmd)
	case command.TypeAction:
		return r.executeAction(ctx, tx, cmd)
	case command.TypeTransaction:
		return r.executeTransaction(ctx, tx, cmd)
	default:
		return nil, services.Wrap(services.ErrValidation, "actions", "execute",
			fmt.Sprintf("unknown command type %q", cmd.Type), nil)
	}
}

func (r *Registry) executeCRUD(ctx context.Context, tx *store.WriteTx, cmd command.WriteCommand) (map[string]any, error) {
	op := strings.ToLower(string(cmd.Type))
	model := strings.ToLower(strings.TrimSpace(cmd.Model))
	handlers, ok := r.models[model]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "actions", op,
			fmt.Sprintf("unknown model %q", cmd.Model), nil)
	}
	var fn actionFunc
	switch cmd.Type {
	case command.TypeCreate:
		fn = handlers.create
	case command.TypeUpdate:
		fn = handlers.update
	default:
		fn = handlers.remove
	}
	return fn(ctx, tx, cmd.Data)
}

func (r *Registry) executeAction(ctx context.Context, tx *store.WriteTx, cmd command.WriteCommand) (map[string]any, error) {
	name := cmd.ActionName()
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "actions", "action", "action name required", nil)
	}
	fn, ok := r.actions[name]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "actions", "action",
			fmt.Sprintf("unknown action %q", name), nil)
	}
	return fn(ctx, tx, cmd.Data)
}

// executeTransaction runs the sub-commands in order inside the already-open
// transaction. The first failure aborts the batch and names the offending
// sub-command by index; the writer's rollback then discards all of it.
func (r *Registry) executeTransaction(ctx context.Context, tx *store.WriteTx, cmd command.WriteCommand) (map[string]any, error) {
	if len(cmd.Commands) == 0 {
		return nil, services.Wrap(services.ErrValidation, "actions", "transaction", "sub-commands required", nil)
	}
	results := make([]any, 0, len(cmd.Commands))
	for i, sub := range cmd.Commands {
		if sub.Type == command.TypeTransaction {
			return nil, services.Wrap(services.ErrValidation, "actions", "transaction",
				fmt.Sprintf("sub-command %d: nested transactions not supported", i), nil)
		}
		data, err := r.Execute(ctx, tx, sub)
		if err != nil {
			return nil, fmt.Errorf("sub-command %d (%s): %w", i, sub.Describe(), err)
		}
		results = append(results, data)
	}
	return map[string]any{"results": results}, nil
}
