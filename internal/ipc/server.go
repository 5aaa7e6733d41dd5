package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"podscrub/internal/api"
	"podscrub/internal/daemon"
	"podscrub/internal/logging"
	"podscrub/internal/logs"
	"podscrub/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Daemon", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.WorkerRunning = status.WorkerRunning
	resp.LastError = status.LastError
	resp.JobCounts = status.JobCounts
	resp.Run = status.Run
	resp.Rate = status.Rate
	resp.Dependencies = status.Dependencies
	return nil
}

// Stop does not halt the daemon inline: tearing the process down from
// inside an RPC handler would close the socket under the reply. It flags
// the shutdown channel and lets the supervising process run the stop order.
func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.RequestShutdown()
	resp.Stopped = true
	s.logger.Info("daemon shutdown requested via IPC")
	return nil
}

func (s *service) JobsList(req JobsListRequest, resp *JobsListResponse) error {
	statuses := make([]store.JobStatus, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, err := store.ParseJobStatus(raw)
		if err != nil {
			return err
		}
		statuses = append(statuses, parsed)
	}
	st := s.daemon.Store()
	if st == nil {
		return errors.New("store unavailable")
	}
	jobs, err := st.ListJobs(s.ctx, req.Limit, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromJobs(jobs)
	return nil
}

func (s *service) JobGet(req JobGetRequest, resp *JobGetResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("job id is required")
	}
	st := s.daemon.Store()
	if st == nil {
		return errors.New("store unavailable")
	}
	job, err := st.JobByID(s.ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", id)
	}
	resp.Job = api.FromJob(job)
	return nil
}

func (s *service) ProcessPost(req ProcessPostRequest, resp *ProcessPostResponse) error {
	job, err := s.daemon.Scheduler().StartPostProcessing(s.ctx, req.PostGUID)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	s.logger.Info("post queued via IPC", logging.String("post_guid", req.PostGUID))
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		trigger = "manual"
	}
	created, err := s.daemon.Scheduler().EnqueuePendingJobs(s.ctx, trigger, req.Context)
	if err != nil {
		return err
	}
	resp.Created = created
	s.logger.Info("enqueue sweep requested via IPC",
		logging.String("trigger", trigger),
		logging.Int("created", created),
	)
	return nil
}

func (s *service) CancelJob(req CancelJobRequest, resp *CancelJobResponse) error {
	job, err := s.daemon.Scheduler().CancelJob(s.ctx, req.ID, req.Reason)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(job)
	s.logger.Info("job cancelled via IPC", logging.String("job_id", req.ID))
	return nil
}

func (s *service) CancelPost(req CancelPostRequest, resp *CancelPostResponse) error {
	cancelled, err := s.daemon.Scheduler().CancelPostJobs(s.ctx, req.PostGUID)
	if err != nil {
		return err
	}
	resp.Cancelled = cancelled
	s.logger.Info("post jobs cancelled via IPC",
		logging.String("post_guid", req.PostGUID),
		logging.Int("cancelled", cancelled),
	)
	return nil
}

func (s *service) ClearJobs(_ ClearJobsRequest, resp *ClearJobsResponse) error {
	removed, err := s.daemon.Scheduler().ClearAllJobs(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("job history cleared via IPC", logging.Int("removed", removed))
	return nil
}

func (s *service) CleanupStale(req CleanupStaleRequest, resp *CleanupStaleResponse) error {
	olderThan := time.Duration(req.OlderThanSeconds) * time.Second
	updated, err := s.daemon.Scheduler().CleanupStuckPending(s.ctx, olderThan)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) RateStats(_ RateStatsRequest, resp *RateStatsResponse) error {
	stats, err := s.daemon.RateStats()
	if err != nil {
		return err
	}
	resp.Rate = api.FromRateStats(stats)
	return nil
}

func (s *service) Command(req CommandRequest, resp *CommandResponse) error {
	result, err := s.daemon.SubmitCommand(s.ctx, req.Type, req.Model, req.Data)
	if err != nil {
		return err
	}
	resp.Success = result.Success
	resp.Data = result.Data
	resp.Error = result.Error
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
