package docker

import (
	"context"
	"slices"
	"testing"
)

func TestParseInspect(t *testing.T) {
	out := `{"State":{"Running":true,"Status":"running"},"Config":{"Image":"otel/opentelemetry-collector-contrib:0.98.0"}}`

	s := parseInspect("otel-collector", out)
	if !s.Exists || !s.Running {
		t.Fatalf("expected running container, got %+v", s)
	}
	if s.Status != "running" || s.Image != "otel/opentelemetry-collector-contrib:0.98.0" {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestParseInspect_UnreadableOutputStillExists(t *testing.T) {
	s := parseInspect("prometheus", "not json")
	if !s.Exists || s.Running {
		t.Fatalf("expected existing, not running: %+v", s)
	}
}

func TestLogsArgs(t *testing.T) {
	if got := logsArgs("otel-collector", 50); !slices.Equal(got, []string{"logs", "--tail", "50", "otel-collector"}) {
		t.Fatalf("unexpected args: %v", got)
	}
	if got := logsArgs("otel-collector", 0); !slices.Equal(got, []string{"logs", "otel-collector"}) {
		t.Fatalf("unexpected args: %v", got)
	}
}

func TestStatus_MissingBinaryReportsAbsent(t *testing.T) {
	m := &Manager{Binary: "definitely-not-docker-binary"}
	if m.IsDockerAvailable() {
		t.Fatalf("expected binary to be unavailable")
	}
	s, err := m.Status(context.Background(), "otel-collector")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Exists {
		t.Fatalf("expected container to be reported absent")
	}
	if _, err := m.TailLogs(context.Background(), "otel-collector", 10); err == nil {
		t.Fatalf("expected error from missing binary")
	}
}
