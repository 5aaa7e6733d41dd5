package ipc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podscrub/internal/daemon"
	"podscrub/internal/ipc"
	"podscrub/internal/logging"
	"podscrub/internal/testsupport"
)

func stubLLMServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.BaseURL = stubLLMServer(t).URL

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping RPC failed: %v", err)
	}
	if !ping.Pong || ping.PID != os.Getpid() {
		t.Fatalf("unexpected ping response: %+v", ping)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || !status.WorkerRunning {
		t.Fatalf("expected running daemon and worker, got %+v", status)
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path: %s", status.DatabasePath)
	}
	if status.Rate == nil {
		t.Fatal("expected rate stats in status")
	}

	// Create a post through the raw command passthrough, then queue it.
	created, err := client.Command(ipc.CommandRequest{
		Type:  "CREATE",
		Model: "post",
		Data:  map[string]any{"guid": "guid-ipc", "title": "Episode via IPC"},
	})
	if err != nil {
		t.Fatalf("Command RPC failed: %v", err)
	}
	if !created.Success {
		t.Fatalf("expected create to succeed: %+v", created)
	}

	queued, err := client.ProcessPost("guid-ipc")
	if err != nil {
		t.Fatalf("ProcessPost RPC failed: %v", err)
	}
	if queued.Job.ID == "" || queued.Job.PostGUID != "guid-ipc" {
		t.Fatalf("unexpected queued job: %+v", queued.Job)
	}

	got, err := client.JobGet(queued.Job.ID)
	if err != nil {
		t.Fatalf("JobGet RPC failed: %v", err)
	}
	if got.Job.ID != queued.Job.ID {
		t.Fatalf("JobGet returned wrong job: %+v", got.Job)
	}

	list, err := client.JobsList(nil, 0)
	if err != nil {
		t.Fatalf("JobsList RPC failed: %v", err)
	}
	if len(list.Jobs) == 0 {
		t.Fatal("expected at least one job in list")
	}

	if _, err := client.JobsList([]string{"bananas"}, 0); err == nil {
		t.Fatal("expected invalid status filter to error")
	}

	cancelled, err := client.CancelPost("guid-without-jobs")
	if err != nil {
		t.Fatalf("CancelPost RPC failed: %v", err)
	}
	if cancelled.Cancelled != 0 {
		t.Fatalf("expected no cancellations, got %d", cancelled.Cancelled)
	}

	rate, err := client.RateStats()
	if err != nil {
		t.Fatalf("RateStats RPC failed: %v", err)
	}
	if rate.Rate.Limit <= 0 {
		t.Fatalf("expected positive token limit, got %+v", rate.Rate)
	}

	if _, err := client.CleanupStale(3600); err != nil {
		t.Fatalf("CleanupStale RPC failed: %v", err)
	}

	stop, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stop.Stopped {
		t.Fatal("expected stop to be acknowledged")
	}
	select {
	case <-d.ShutdownRequests():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown request never surfaced")
	}
}

func TestIPCLogTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.BaseURL = stubLLMServer(t).URL

	logPath := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	lines := "first line\nsecond line\nthird line\n"
	if err := os.WriteFile(logPath, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail RPC failed: %v", err)
	}
	if len(resp.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %#v", len(resp.Lines), resp.Lines)
	}
	if resp.Lines[0] != "second line" || resp.Lines[1] != "third line" {
		t.Fatalf("unexpected tail lines: %#v", resp.Lines)
	}
	if resp.Offset <= 0 {
		t.Fatalf("expected positive offset, got %d", resp.Offset)
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("expected dial to fail for missing socket")
	}
}
