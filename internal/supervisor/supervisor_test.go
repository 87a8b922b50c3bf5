package supervisor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/corddev/cord/internal/graph"
)

func waitForExit(t *testing.T, s *Supervisor, want graph.ID) ExitEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range s.PollExits() {
			if ev.NodeID == want {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("node %s never exited", want.Display())
	return ExitEvent{}
}

func TestRegisterCapturesOutputAndExitCode(t *testing.T) {
	s := New(nil)
	cmd := exec.Command("sh", "-c", "echo out-line; echo err-line 1>&2")
	if err := s.Register(graph.ID(1), cmd); err != nil {
		t.Fatalf("register: %v", err)
	}

	ev := waitForExit(t, s, graph.ID(1))
	if ev.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", ev.ExitCode)
	}
	if ev.Stdout != "out-line\n" {
		t.Fatalf("unexpected stdout: %q", ev.Stdout)
	}
	if ev.Stderr != "err-line\n" {
		t.Fatalf("unexpected stderr: %q", ev.Stderr)
	}
}

func TestRegisterNonZeroExit(t *testing.T) {
	s := New(nil)
	cmd := exec.Command("sh", "-c", "exit 7")
	if err := s.Register(graph.ID(2), cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	ev := waitForExit(t, s, graph.ID(2))
	if ev.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", ev.ExitCode)
	}
}

func TestActiveCountAndCancelAll(t *testing.T) {
	s := New(nil)
	cmd := exec.Command("sh", "-c", "sleep 5")
	if err := s.Register(graph.ID(3), cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.ActiveCount() != 1 {
		t.Fatalf("expected 1 active process, got %d", s.ActiveCount())
	}

	s.CancelAll()
	ev := waitForExit(t, s, graph.ID(3))
	if ev.ExitCode == 0 {
		t.Fatalf("expected a non-zero exit code after cancellation")
	}
	if s.ActiveCount() != 0 {
		t.Fatalf("expected 0 active processes after cancellation and poll, got %d", s.ActiveCount())
	}
}

func TestPollExitsIsNonBlockingWhenNothingExited(t *testing.T) {
	s := New(nil)
	cmd := exec.Command("sh", "-c", "sleep 5")
	if err := s.Register(graph.ID(4), cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer s.CancelAll()

	events := s.PollExits()
	if len(events) != 0 {
		t.Fatalf("expected no exit events immediately after registering a long-running process")
	}
}
