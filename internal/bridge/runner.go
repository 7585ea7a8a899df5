// Package bridge runs one protocol-bridge container per bot session.
//
// The bridge image embeds the actual chat-protocol engine (pairing
// cryptography, wire protocol). The supervisor talks to it over a
// websocket published on a host port; identity artifacts live on a named
// volume so a recycled container resumes the same messaging identity.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/transport"
)

const (
	bridgePort      = "8088/tcp"
	authMountPath   = "/var/lib/bridge/auth"
	stopTimeoutSecs = 10

	memoryLimitBytes = 768 * 1024 * 1024
	pidsLimit        = 512

	createRetryAttempts = 20
	createRetryDelay    = 250 * time.Millisecond
)

// Runner manages bridge containers and implements transport.Factory.
type Runner struct {
	cli *client.Client
	cfg config.BridgeConfig
}

// NewRunner creates a Docker-backed bridge runner.
func NewRunner(cfg config.BridgeConfig) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Bridge runner initialized", "image", cfg.Image)
	return &Runner{cli: cli, cfg: cfg}, nil
}

func containerName(sessionID string) string { return "bridge-" + sessionID }
func volumeName(sessionID string) string    { return "bridge-" + sessionID + "-auth" }

// New creates (or recycles) the session's bridge container and returns a
// transport client connected to it. Any lingering container for the same
// session is destroyed first: one live client per session.
func (r *Runner) New(ctx context.Context, sessionID string) (transport.Client, error) {
	name := containerName(sessionID)

	if inspect, err := r.cli.ContainerInspect(ctx, name); err == nil {
		slog.Info("Found lingering bridge container, recycling", "container_id", inspect.ID, "session_id", sessionID)
		if err := r.stopContainer(ctx, inspect.ID); err != nil {
			slog.Warn("Failed to stop lingering bridge before recreation", "error", err, "container_id", inspect.ID)
		}
	}

	// The identity volume is created up front so Purge always acts on a
	// known name, even when the container never came up.
	if err := r.EnsureVolume(ctx, sessionID); err != nil {
		return nil, err
	}

	id, err := r.createContainer(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := r.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if removeErr := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); removeErr != nil && !errors.Is(removeErr, context.Canceled) {
			slog.Warn("Failed to remove bridge after start failure", "container_id", id, "error", removeErr)
		}
		return nil, fmt.Errorf("start bridge container %s: %w", id, err)
	}

	url, err := r.endpoint(ctx, id)
	if err != nil {
		if stopErr := r.stopContainer(ctx, id); stopErr != nil {
			slog.Warn("Failed to stop bridge after endpoint failure", "container_id", id, "error", stopErr)
		}
		return nil, err
	}

	cl, err := r.dial(ctx, sessionID, id, url)
	if err != nil {
		if stopErr := r.stopContainer(ctx, id); stopErr != nil {
			slog.Warn("Failed to stop bridge after dial failure", "container_id", id, "error", stopErr)
		}
		return nil, err
	}

	slog.Info("Bridge container ready", "container_id", id, "session_id", sessionID, "url", url)
	return cl, nil
}

func (r *Runner) createContainer(ctx context.Context, sessionID string) (string, error) {
	name := containerName(sessionID)

	cfg := &container.Config{
		Image: r.cfg.Image,
		Env:   []string{"SESSION_ID=" + sessionID},
	}
	hostCfg := &container.HostConfig{
		NetworkMode:     container.NetworkMode(r.cfg.Network),
		PublishAllPorts: true,
		Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: volumeName(sessionID),
			Target: authMountPath,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	var resp container.CreateResponse
	var createErr error
	for i := 0; i < createRetryAttempts; i++ {
		resp, createErr = r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
		if createErr == nil {
			return resp.ID, nil
		}

		errStr := strings.ToLower(createErr.Error())
		if !strings.Contains(errStr, "is already in use") && !strings.Contains(errStr, "conflict") {
			return "", fmt.Errorf("create bridge container: %w", createErr)
		}

		// A delayed teardown can leave the old named container briefly.
		slog.Warn("Bridge name conflict during create, retrying",
			"session_id", sessionID, "attempt", i+1, "error", createErr)

		if inspect, inspectErr := r.cli.ContainerInspect(ctx, name); inspectErr == nil {
			if stopErr := r.stopContainer(ctx, inspect.ID); stopErr != nil {
				slog.Warn("Failed to stop conflicting bridge before retry", "container_id", inspect.ID, "error", stopErr)
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(createRetryDelay):
		}
	}
	return "", fmt.Errorf("create bridge container after retries: %w", createErr)
}

// endpoint resolves the host-published websocket URL of a bridge.
func (r *Runner) endpoint(ctx context.Context, containerID string) (string, error) {
	inspect, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspect bridge container %s: %w", containerID, err)
	}
	for port, bindings := range inspect.NetworkSettings.Ports {
		if string(port) != bridgePort || len(bindings) == 0 {
			continue
		}
		return fmt.Sprintf("ws://127.0.0.1:%s/ws", bindings[0].HostPort), nil
	}
	return "", fmt.Errorf("bridge container %s has no published port %s", containerID, bridgePort)
}

// dial connects to the bridge's websocket, retrying while the engine
// inside the container boots.
func (r *Runner) dial(ctx context.Context, sessionID, containerID, url string) (transport.Client, error) {
	deadline := time.Now().Add(r.cfg.DialTimeout)
	destroy := func(dctx context.Context) error {
		return r.stopContainer(dctx, containerID)
	}

	var lastErr error
	for time.Now().Before(deadline) {
		cl, err := transport.DialBridge(ctx, sessionID, url, destroy)
		if err == nil {
			return cl, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(createRetryDelay):
		}
	}
	return nil, fmt.Errorf("bridge %s did not accept connections: %w", sessionID, lastErr)
}

// Purge removes the session's identity volume (and any container using
// it) so the next client starts from a clean pairing.
func (r *Runner) Purge(ctx context.Context, sessionID string) error {
	if inspect, err := r.cli.ContainerInspect(ctx, containerName(sessionID)); err == nil {
		if stopErr := r.stopContainer(ctx, inspect.ID); stopErr != nil {
			slog.Warn("Failed to stop bridge before purge", "container_id", inspect.ID, "error", stopErr)
		}
	}

	if err := r.cli.VolumeRemove(ctx, volumeName(sessionID), true); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove bridge volume for %s: %w", sessionID, err)
	}
	slog.Info("Bridge identity purged", "session_id", sessionID)
	return nil
}

// stopContainer stops and removes a bridge container. It is idempotent
// and tolerates concurrent teardown.
func (r *Runner) stopContainer(ctx context.Context, containerID string) error {
	slog.Info("Stopping bridge container", "container_id", containerID)

	_, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Bridge container already removed", "container_id", containerID)
			return nil
		}
		return fmt.Errorf("inspect bridge container %s: %w", containerID, err)
	}

	timeout := stopTimeoutSecs
	if err := r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			slog.Debug("Bridge container already stopped", "container_id", containerID)
		} else if ctx.Err() != nil {
			slog.Debug("Context canceled during bridge stop, continuing with force removal", "container_id", containerID)
		} else {
			slog.Debug("Bridge stop returned error, continuing to remove", "container_id", containerID, "error", err)
		}
	}

	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		if strings.Contains(err.Error(), "is already in progress") {
			slog.Debug("Bridge removal already in progress", "container_id", containerID)
			return nil
		}
		if ctx.Err() != nil {
			slog.Debug("Context canceled during bridge remove", "container_id", containerID, "error", err)
			return nil
		}
		return fmt.Errorf("remove bridge container %s: %w", containerID, err)
	}

	slog.Info("Bridge container stopped and removed", "container_id", containerID)
	return nil
}

// EnsureNetwork creates the bridge network if it doesn't exist.
func (r *Runner) EnsureNetwork(ctx context.Context) (string, error) {
	networks, err := r.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list networks: %w", err)
	}
	for _, nw := range networks {
		if nw.Name == r.cfg.Network {
			return nw.ID, nil
		}
	}

	createResp, err := r.cli.NetworkCreate(ctx, r.cfg.Network, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: r.cfg.Subnet}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create network %s: %w", r.cfg.Network, err)
	}
	slog.Info("Bridge network created", "network_id", createResp.ID, "subnet", r.cfg.Subnet)
	return createResp.ID, nil
}

// EnsureVolume pre-creates the session's identity volume so restores and
// purges act on a known name.
func (r *Runner) EnsureVolume(ctx context.Context, sessionID string) error {
	if _, err := r.cli.VolumeCreate(ctx, volume.CreateOptions{Name: volumeName(sessionID)}); err != nil {
		return fmt.Errorf("create bridge volume for %s: %w", sessionID, err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
