package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"podscrub/internal/actions"
	"podscrub/internal/command"
	"podscrub/internal/config"
	"podscrub/internal/ipc"
	"podscrub/internal/logging"
	"podscrub/internal/store"
)

type commandContext struct {
	socketFlag   *string
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		socketFlag:   socketFlag,
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return strings.TrimSpace(*c.socketFlag)
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return filepath.Join(os.TempDir(), "podscrub.sock")
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

// withFallback runs fn with a connected IPC client when the daemon is up, or
// with a directly opened store when it is not. Exactly one of the two
// arguments is non-nil.
func (c *commandContext) withFallback(fn func(client *ipc.Client, st *store.Store) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		defer client.Close()
		return fn(client, nil)
	}
	if !daemonUnavailable(err) {
		return wrapDialError(err, socket)
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	st, openErr := store.Open(cfg)
	if openErr != nil {
		return fmt.Errorf("open database: %w", openErr)
	}
	defer st.Close()
	return fn(nil, st)
}

// withReadStore opens the database directly for read-only commands that have
// no IPC equivalent. WAL mode makes these reads safe alongside a running
// daemon.
func (c *commandContext) withReadStore(fn func(st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// submit routes a write command through the daemon when it is up, or applies
// it with an in-process command client when it is not. The type/model/data
// contract matches the daemon's command passthrough.
func (c *commandContext) submit(goCtx context.Context, typ command.Type, model string, data map[string]any) (map[string]any, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		defer client.Close()
		resp, callErr := client.Command(ipc.CommandRequest{Type: string(typ), Model: model, Data: data})
		if callErr != nil {
			return nil, callErr
		}
		if !resp.Success {
			message := strings.TrimSpace(resp.Error)
			if message == "" {
				message = "command failed"
			}
			return nil, errors.New(message)
		}
		return resp.Data, nil
	}
	if !daemonUnavailable(err) {
		return nil, wrapDialError(err, socket)
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	st, openErr := store.Open(cfg)
	if openErr != nil {
		return nil, fmt.Errorf("open database: %w", openErr)
	}
	defer st.Close()

	local := localWriteClient(st)
	var result command.WriteResult
	switch typ {
	case command.TypeCreate:
		result, err = local.Create(goCtx, model, data)
	case command.TypeUpdate:
		id, _ := data["id"].(string)
		result, err = local.Update(goCtx, model, id, data)
	case command.TypeDelete:
		id, _ := data["id"].(string)
		result, err = local.Delete(goCtx, model, id)
	case command.TypeAction:
		result, err = local.Action(goCtx, model, data)
	default:
		return nil, fmt.Errorf("unsupported command type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// localWriteClient builds a command client that applies writes in-process,
// used when a write command must run without a daemon.
func localWriteClient(st *store.Store) *command.Client {
	return command.NewLocalClient(st, actions.NewRegistry(logging.NewNop()))
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `podscrub start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func daemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
