package main

import (
	"context"
	"log/slog"
	"time"
)

// effectEnv is what side effects run against.
type effectEnv struct {
	driver         ScanDriver
	credentials    map[string]string
	connectTimeout time.Duration

	// async receives results of effects that run off the daemon goroutine.
	async chan<- Event
}

// runEffect executes a single reducer-emitted Command against the radio and
// emits an observation Event via onEvent.
//
// Rules:
// - This function may perform I/O but must not block the daemon loop for long.
// - It never calls Reduce(); it only emits Events.
// - Connect runs in its own goroutine and reports through env.async.
func runEffect(ctx context.Context, env effectEnv, cmd Command, logger *slog.Logger, onEvent func(Event)) {
	if onEvent == nil {
		return
	}

	switch c := cmd.(type) {
	case CmdStartScan:
		if env.driver == nil {
			onEvent(ScanStartFailed{Err: errNoDriver{}, At: time.Now()})
			return
		}
		if err := env.driver.Start(ctx); err != nil {
			logger.Error("scan start failed", "error", err)
			onEvent(ScanStartFailed{Err: err, At: time.Now()})
			return
		}
		onEvent(ScanStarted{At: time.Now()})

	case CmdConnect:
		if env.driver == nil {
			onEvent(ConnectResult{Name: c.Name, HardwareAddr: c.HardwareAddr, Err: errNoDriver{}, At: time.Now()})
			return
		}
		req := ConnectRequest{
			Name:         c.Name,
			HardwareAddr: c.HardwareAddr,
			Auth:         c.Auth,
			Passphrase:   env.credentials[c.Name],
		}
		logger.Info("connecting", "ssid", c.Name, "bssid", c.HardwareAddr.String(), "auth", c.Auth.String())
		go runConnect(ctx, env, req, logger)

	case CmdPublishStateSnapshot:
		// Deliver reducer-produced snapshot to the requester.
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String(), "error", errUnknownCommand{cmd: cmd})
	}
}

// runConnect performs one association attempt and posts the ConnectResult.
// The result is never dropped; the reducer keeps the connect pending until it arrives.
func runConnect(ctx context.Context, env effectEnv, req ConnectRequest, logger *slog.Logger) {
	start := time.Now()

	cctx, cancel := ctx, context.CancelFunc(func() {})
	if env.connectTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, env.connectTimeout)
	}
	err := env.driver.Connect(cctx, req)
	cancel()

	elapsed := time.Since(start)
	if err != nil {
		logger.Warn("connect failed", "ssid", req.Name, "bssid", req.HardwareAddr.String(), "elapsed", elapsed, "error", err)
	} else {
		logger.Info("connected", "ssid", req.Name, "bssid", req.HardwareAddr.String(), "elapsed", elapsed)
	}

	res := ConnectResult{
		Name:         req.Name,
		HardwareAddr: req.HardwareAddr,
		Err:          err,
		Elapsed:      elapsed,
		At:           time.Now(),
	}
	select {
	case env.async <- res:
	case <-ctx.Done():
	}
}

// errNoDriver indicates a command arrived while no radio driver is configured.
type errNoDriver struct{}

func (errNoDriver) Error() string { return "no scan driver" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
