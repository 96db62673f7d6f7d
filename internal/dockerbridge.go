package internal

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
)

// JoinDockerBridge connects the container this process runs in to docker's
// default bridge network, so test containers started from inside a dev
// container are reachable. Outside a container it does nothing.
func JoinDockerBridge(ctx context.Context) {
	if _, err := os.Stat("/.dockerenv"); err != nil {
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		return
	}

	// Fails harmlessly when already connected.
	if out, err := exec.CommandContext(ctx, "docker", "network", "connect", "bridge", hostname).CombinedOutput(); err != nil {
		slog.Debug("can't join docker bridge network", "host", hostname, "err", err, "output", string(out))
	}
}
