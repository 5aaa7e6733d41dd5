package command_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"podscrub/internal/actions"
	"podscrub/internal/command"
	"podscrub/internal/logging"
	"podscrub/internal/store"
	"podscrub/internal/testsupport"
)

func newLocalClient(t *testing.T) (*store.Store, *command.Client) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	client := command.NewLocalClient(st, actions.NewRegistry(logging.NewNop()))
	return st, client
}

func TestLocalClientCRUDRoundTrip(t *testing.T) {
	st, client := newLocalClient(t)
	ctx := context.Background()

	res, err := client.Create(ctx, "post", map[string]any{
		"guid":  "local-1",
		"title": "First Draft",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !res.Success {
		t.Fatalf("create failed: %s", res.Error)
	}
	if res.CommandID == "" {
		t.Fatal("result should carry the generated command id")
	}

	res, err = client.Update(ctx, "post", "local-1", map[string]any{"title": "Final Cut"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.Success {
		t.Fatalf("update failed: %s", res.Error)
	}
	post, err := st.PostByGUID(ctx, "local-1")
	if err != nil {
		t.Fatalf("PostByGUID: %v", err)
	}
	if post == nil || post.Title != "Final Cut" {
		t.Fatalf("unexpected post after update: %+v", post)
	}

	res, err = client.Delete(ctx, "post", "local-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}
	post, err = st.PostByGUID(ctx, "local-1")
	if err != nil {
		t.Fatalf("PostByGUID after delete: %v", err)
	}
	if post != nil {
		t.Fatalf("post should be gone, got %+v", post)
	}
}

func TestLocalClientTransactionRollsBack(t *testing.T) {
	st, client := newLocalClient(t)
	ctx := context.Background()

	res, err := client.Transaction(ctx,
		command.WriteCommand{Type: command.TypeCreate, Model: "post", Data: map[string]any{"guid": "tx-1"}},
		command.WriteCommand{Type: command.TypeAction, Data: map[string]any{"action": "no_such_action"}},
	)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if res.Success {
		t.Fatal("transaction with a failing sub-command must fail")
	}
	if !strings.Contains(res.Error, "sub-command 1") {
		t.Fatalf("error should name the failing sub-command, got %q", res.Error)
	}

	// The first sub-command succeeded inside the transaction; the rollback
	// must discard it.
	post, err := st.PostByGUID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("PostByGUID: %v", err)
	}
	if post != nil {
		t.Fatalf("rolled-back post should not exist, got %+v", post)
	}
}

func TestLocalClientRejectsUnknownWork(t *testing.T) {
	_, client := newLocalClient(t)
	ctx := context.Background()

	res, err := client.Action(ctx, "no_such_action", nil)
	if err != nil {
		t.Fatalf("Action: %v", err)
	}
	if res.Success {
		t.Fatal("unknown action must fail")
	}
	if got := res.Err(); got == nil || !strings.Contains(got.Error(), "unknown action") {
		t.Fatalf("expected unknown-action error, got %v", got)
	}

	res, err = client.Create(ctx, "widget", map[string]any{"guid": "w-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Success {
		t.Fatal("unknown model must fail")
	}
	if !strings.Contains(res.Error, "unknown model") {
		t.Fatalf("expected unknown-model error, got %q", res.Error)
	}
}

func TestUpdateDoesNotMutateCallerData(t *testing.T) {
	_, client := newLocalClient(t)
	ctx := context.Background()

	if res, err := client.Create(ctx, "post", map[string]any{"guid": "iso-1"}); err != nil || !res.Success {
		t.Fatalf("seed post: %v %s", err, res.Error)
	}

	data := map[string]any{"title": "Untouched"}
	if res, err := client.Update(ctx, "post", "iso-1", data); err != nil || !res.Success {
		t.Fatalf("Update: %v %s", err, res.Error)
	}
	if _, ok := data["id"]; ok {
		t.Fatal("caller's data map gained an id key")
	}
	if len(data) != 1 {
		t.Fatalf("caller's data map changed: %+v", data)
	}
}

func TestSubmitTimesOutWithoutConsumer(t *testing.T) {
	// No reader on the queue, so admission blocks until the timeout fires.
	queue := make(chan command.WriteCommand)
	client := command.NewClient(queue, nil, command.WithTimeout(50*time.Millisecond))

	_, err := client.Create(context.Background(), "post", map[string]any{"guid": "stuck"})
	if !errors.Is(err, command.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSubmitHonorsContextCancellation(t *testing.T) {
	queue := make(chan command.WriteCommand)
	client := command.NewClient(queue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Create(ctx, "post", map[string]any{"guid": "cancelled"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubmitAsyncFailsAfterClose(t *testing.T) {
	queue := make(chan command.WriteCommand)
	closed := make(chan struct{})
	close(closed)
	client := command.NewClient(queue, closed)

	err := client.ActionAsync(context.Background(), "enqueue_pending_jobs", nil)
	if !errors.Is(err, command.ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

func TestClientWithoutQueueOrStoreRefusesWork(t *testing.T) {
	client := command.NewClient(nil, nil)

	_, err := client.Create(context.Background(), "post", map[string]any{"guid": "nowhere"})
	if !errors.Is(err, command.ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    command.Type
		wantErr bool
	}{
		{input: "create", want: command.TypeCreate},
		{input: " UPDATE ", want: command.TypeUpdate},
		{input: "Delete", want: command.TypeDelete},
		{input: "action", want: command.TypeAction},
		{input: "transaction", want: command.TypeTransaction},
		{input: "upsert", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := command.ParseType(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseType(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseType(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		cmd  command.WriteCommand
		want string
	}{
		{
			name: "crud with model",
			cmd:  command.WriteCommand{Type: command.TypeCreate, Model: "post"},
			want: "CREATE post",
		},
		{
			name: "crud without model",
			cmd:  command.WriteCommand{Type: command.TypeDelete},
			want: "DELETE",
		},
		{
			name: "named action",
			cmd:  command.WriteCommand{Type: command.TypeAction, Data: map[string]any{"action": "create_job"}},
			want: "ACTION create_job",
		},
		{
			name: "anonymous action",
			cmd:  command.WriteCommand{Type: command.TypeAction},
			want: "ACTION",
		},
		{
			name: "transaction",
			cmd:  command.WriteCommand{Type: command.TypeTransaction, Commands: make([]command.WriteCommand, 3)},
			want: "TRANSACTION (3 commands)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Describe(); got != tt.want {
				t.Fatalf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteResultErr(t *testing.T) {
	if err := command.Succeeded("id-1", nil).Err(); err != nil {
		t.Fatalf("successful result should convert to nil, got %v", err)
	}
	if err := command.Failed("id-2", errors.New("boom")).Err(); err == nil || err.Error() != "boom" {
		t.Fatalf("failed result should carry the message, got %v", err)
	}
	bare := command.WriteResult{CommandID: "id-3"}
	if err := bare.Err(); err == nil || err.Error() != "command failed" {
		t.Fatalf("empty failure should get a placeholder message, got %v", err)
	}
	if command.Failed("id-4", nil).Error != "unknown error" {
		t.Fatal("Failed(nil) should record an unknown error")
	}
}
