package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Manager inspects the containers that make up the local telemetry stack
// (collector, Prometheus) through the docker CLI.
type Manager struct {
	Binary string
}

type ContainerStatus struct {
	Name    string
	Exists  bool
	Running bool
	Image   string
	Status  string
}

func NewManager() *Manager {
	return &Manager{Binary: "docker"}
}

func (m *Manager) IsDockerAvailable() bool {
	_, err := exec.LookPath(m.Binary)
	return err == nil
}

func (m *Manager) Status(ctx context.Context, name string) (*ContainerStatus, error) {
	out, err := m.dockerExec(ctx, "inspect", "--format", "{{json .}}", name)
	if err != nil {
		return &ContainerStatus{Name: name, Exists: false}, nil
	}
	return parseInspect(name, out), nil
}

// TailLogs returns the last n lines of the container's combined output.
func (m *Manager) TailLogs(ctx context.Context, name string, n int) (string, error) {
	out, err := m.dockerExec(ctx, logsArgs(name, n)...)
	if err != nil {
		return "", fmt.Errorf("docker logs %s: %w: %s", name, err, out)
	}
	return out, nil
}

func logsArgs(name string, n int) []string {
	args := []string{"logs"}
	if n > 0 {
		args = append(args, "--tail", strconv.Itoa(n))
	}
	return append(args, name)
}

func parseInspect(name, out string) *ContainerStatus {
	var inspect struct {
		State struct {
			Running bool   `json:"Running"`
			Status  string `json:"Status"`
		} `json:"State"`
		Config struct {
			Image string `json:"Image"`
		} `json:"Config"`
	}
	if err := json.Unmarshal([]byte(out), &inspect); err != nil {
		return &ContainerStatus{Name: name, Exists: true}
	}

	return &ContainerStatus{
		Name:    name,
		Exists:  true,
		Running: inspect.State.Running,
		Image:   inspect.Config.Image,
		Status:  inspect.State.Status,
	}
}

func (m *Manager) dockerExec(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, m.Binary, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
