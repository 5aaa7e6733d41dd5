package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Daemon.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Daemon.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Daemon.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobsList returns jobs optionally filtered by statuses.
func (c *Client) JobsList(statuses []string, limit int) (*JobsListResponse, error) {
	var resp JobsListResponse
	req := JobsListRequest{Statuses: statuses, Limit: limit}
	if err := c.client.Call("Daemon.JobsList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobGet returns details for a single job.
func (c *Client) JobGet(id string) (*JobGetResponse, error) {
	var resp JobGetResponse
	if err := c.client.Call("Daemon.JobGet", JobGetRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcessPost queues a post for ad removal.
func (c *Client) ProcessPost(postGUID string) (*ProcessPostResponse, error) {
	var resp ProcessPostResponse
	if err := c.client.Call("Daemon.ProcessPost", ProcessPostRequest{PostGUID: postGUID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue sweeps eligible posts into pending jobs.
func (c *Client) Enqueue(trigger, context string) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	req := EnqueueRequest{Trigger: trigger, Context: context}
	if err := c.client.Call("Daemon.Enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelJob cancels one job.
func (c *Client) CancelJob(id, reason string) (*CancelJobResponse, error) {
	var resp CancelJobResponse
	req := CancelJobRequest{ID: id, Reason: reason}
	if err := c.client.Call("Daemon.CancelJob", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelPost cancels all active jobs for a post.
func (c *Client) CancelPost(postGUID string) (*CancelPostResponse, error) {
	var resp CancelPostResponse
	if err := c.client.Call("Daemon.CancelPost", CancelPostRequest{PostGUID: postGUID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearJobs removes all job history.
func (c *Client) ClearJobs() (*ClearJobsResponse, error) {
	var resp ClearJobsResponse
	if err := c.client.Call("Daemon.ClearJobs", ClearJobsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CleanupStale fails pending jobs older than the threshold.
func (c *Client) CleanupStale(olderThanSeconds int) (*CleanupStaleResponse, error) {
	var resp CleanupStaleResponse
	req := CleanupStaleRequest{OlderThanSeconds: olderThanSeconds}
	if err := c.client.Call("Daemon.CleanupStale", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RateStats fetches the LLM token budget snapshot.
func (c *Client) RateStats() (*RateStatsResponse, error) {
	var resp RateStatsResponse
	if err := c.client.Call("Daemon.RateStats", RateStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Command routes a raw write command through the daemon's writer queue.
func (c *Client) Command(req CommandRequest) (*CommandResponse, error) {
	var resp CommandResponse
	if err := c.client.Call("Daemon.Command", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Daemon.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
