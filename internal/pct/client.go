// Package pct wraps the Proxmox container-management CLI. All container
// state (list, status, start/stop, in-container execution) is queried live
// through it; nothing is cached across operations.
package pct

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// StatusRunning is the status string pct reports for a live container.
	StatusRunning = "running"
	// StatusStopped is the status string pct reports for a stopped container.
	StatusStopped = "stopped"
)

// ContainerRecord describes one container as reported by the CLI.
type ContainerRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Running reports whether the record's status was "running" when queried.
func (r ContainerRecord) Running() bool {
	return r.Status == StatusRunning
}

// Client is the container-management CLI surface gpubridge consumes.
type Client interface {
	// List returns all containers with their live status.
	List() ([]ContainerRecord, error)
	// Status returns the live status string for one container.
	Status(id string) (string, error)
	// Start starts a container.
	Start(id string) error
	// Stop stops a container.
	Stop(id string) error
	// Exec runs a command inside a running container and returns its stdout.
	Exec(id string, command ...string) (string, error)
	// ExecTimeout runs a command inside a running container, killing it
	// after the given timeout.
	ExecTimeout(id string, timeout time.Duration, command ...string) (string, error)
}

// ConfPath returns the configuration document path for a container.
func ConfPath(confDir, id string) string {
	return filepath.Join(confDir, id+".conf")
}

// parseList parses the tabular output of "pct list". The first line is a
// header; each following line is "VMID Status [Lock] Name" whitespace-split.
func parseList(output string) ([]ContainerRecord, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty container list output")
	}

	records := make([]ContainerRecord, 0, len(lines)-1)
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		record := ContainerRecord{
			ID:     fields[0],
			Status: strings.ToLower(fields[1]),
		}
		// The lock column is blank for unlocked containers, so the name is
		// simply the last field when more than two are present.
		if len(fields) > 2 {
			record.Name = fields[len(fields)-1]
		}
		records = append(records, record)
	}

	return records, nil
}
