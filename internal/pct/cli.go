package pct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gpubridge/internal/errdefs"
	"gpubridge/internal/logging"
)

// CLI implements Client by shelling out to the pct binary.
type CLI struct {
	binary string
	logger *logging.Logger
}

// NewCLI creates a pct-backed client.
func NewCLI(logger *logging.Logger) *CLI {
	return &CLI{binary: "pct", logger: logger}
}

// Available checks whether the pct binary can be invoked.
func (c *CLI) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// List returns all containers with their live status.
func (c *CLI) List() ([]ContainerRecord, error) {
	out, err := c.run("list")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return parseList(out)
}

// Status returns the live status string for one container.
func (c *CLI) Status(id string) (string, error) {
	out, err := c.run("status", id)
	if err != nil {
		return "", fmt.Errorf("failed to get status of container %s: %w", id, err)
	}

	// Output format: "status: running"
	status := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "status:"))
	return strings.ToLower(status), nil
}

// Start starts a container. A non-zero exit is a lifecycle failure.
func (c *CLI) Start(id string) error {
	if _, err := c.run("start", id); err != nil {
		return fmt.Errorf("%w: start container %s: %v", errdefs.ErrLifecycle, id, err)
	}
	return nil
}

// Stop stops a container. A non-zero exit is a lifecycle failure.
func (c *CLI) Stop(id string) error {
	if _, err := c.run("stop", id); err != nil {
		return fmt.Errorf("%w: stop container %s: %v", errdefs.ErrLifecycle, id, err)
	}
	return nil
}

// Exec runs a command inside a running container and returns its stdout.
func (c *CLI) Exec(id string, command ...string) (string, error) {
	args := append([]string{"exec", id, "--"}, command...)
	return c.run(args...)
}

// ExecTimeout runs a command inside a running container, killing it after
// the given timeout.
func (c *CLI) ExecTimeout(id string, timeout time.Duration, command ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append([]string{"exec", id, "--"}, command...)

	// #nosec G204 -- container IDs are validated numeric VMIDs and commands are curated
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.String(), fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		return stdout.String(), fmt.Errorf("pct exec failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func (c *CLI) run(args ...string) (string, error) {
	// #nosec G204 -- arguments are curated pct subcommands and validated VMIDs
	cmd := exec.Command(c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if c.logger != nil {
		c.logger.Debug("pct.exec", "Running pct command", map[string]interface{}{
			"args": strings.Join(args, " "),
		})
	}

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("pct %s failed: %w, stderr: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
