//go:build unix

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func sh(script string, timeout time.Duration) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}, Timeout: timeout}
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := New(Config{})
	res, err := r.Run(context.Background(), sh("echo out; echo err >&2; exit 3", 5*time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
	if res.TimedOut || res.Cancelled {
		t.Errorf("TimedOut=%v Cancelled=%v, want both false", res.TimedOut, res.Cancelled)
	}
}

func TestRunDirEnvAndStdin(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})
	cmd := sh(`pwd; echo "$KATA_MARK"; cat`, 5*time.Second)
	cmd.Dir = dir
	cmd.Env = []string{"KATA_MARK=marked", "PATH=" + os.Getenv("PATH")}
	cmd.Stdin = strings.NewReader("from-stdin")

	res, err := r.Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(res.Stdout, "\n")
	if len(lines) < 3 {
		t.Fatalf("Stdout = %q, want three parts", res.Stdout)
	}
	if !strings.HasSuffix(lines[0], dirBase(dir)) {
		t.Errorf("pwd = %q, want %q", lines[0], dir)
	}
	if lines[1] != "marked" {
		t.Errorf("env = %q, want marked", lines[1])
	}
	if lines[2] != "from-stdin" {
		t.Errorf("stdin = %q, want from-stdin", lines[2])
	}
}

func TestRunTimeout(t *testing.T) {
	r := New(Config{GracePeriod: 100 * time.Millisecond})
	start := time.Now()
	res, err := r.Run(context.Background(), sh("echo started; sleep 30", 300*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if res.ExitCode == 0 {
		t.Error("ExitCode = 0, want non-zero for a killed process")
	}
	if !strings.Contains(res.Stdout, "started") {
		t.Errorf("partial stdout lost: %q", res.Stdout)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, want prompt termination", elapsed)
	}
	waitGone(t, res.PID)
}

func TestRunEscalatesToSIGKILL(t *testing.T) {
	r := New(Config{GracePeriod: 100 * time.Millisecond})
	start := time.Now()
	res, err := r.Run(context.Background(), sh("trap '' TERM; while true; do sleep 0.05; done", 200*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v, SIGTERM-ignoring child was not killed", elapsed)
	}
	waitGone(t, res.PID)
}

func TestRunKillsDescendantsOnTimeout(t *testing.T) {
	r := New(Config{GracePeriod: 100 * time.Millisecond})
	res, err := r.Run(context.Background(), sh("sleep 30 >/dev/null 2>&1 & echo $!; wait", 300*time.Millisecond))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	waitGone(t, childPID(t, res.Stdout))
}

func TestRunSweepsBackgroundChildrenAfterExit(t *testing.T) {
	r := New(Config{})
	res, err := r.Run(context.Background(), sh("sleep 30 >/dev/null 2>&1 & echo $!; exit 0", 5*time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Fatalf("ExitCode=%d TimedOut=%v, want clean exit", res.ExitCode, res.TimedOut)
	}
	waitGone(t, childPID(t, res.Stdout))
}

func TestRunCancellation(t *testing.T) {
	r := New(Config{GracePeriod: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx, sh("sleep 30", 0))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false for caller cancellation")
	}
	waitGone(t, res.PID)
}

func TestRunAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Config{}).Run(ctx, sh("true", time.Second)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	r := New(Config{MaxOutputBytes: 100})
	res, err := r.Run(context.Background(), sh("head -c 5000 /dev/zero | tr '\\000' a; head -c 50 /dev/zero | tr '\\000' b >&2", 5*time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 100 {
		t.Errorf("len(Stdout) = %d, want 100", len(res.Stdout))
	}
	if !res.StdoutTruncated {
		t.Error("StdoutTruncated = false, want true")
	}
	if res.StderrTruncated {
		t.Error("StderrTruncated = true, want false")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunStartFailure(t *testing.T) {
	r := New(Config{})
	if _, err := r.Run(context.Background(), Command{Path: "/nonexistent/dojo-binary"}); err == nil {
		t.Fatal("expected start error")
	}
	if _, err := r.Run(context.Background(), Command{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)
	for _, chunk := range []string{"ab", "cd", "efg", "h"} {
		n, err := b.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	got, truncated := b.snapshot()
	if got != "abcde" || !truncated {
		t.Errorf("snapshot = %q, %v; want abcde, true", got, truncated)
	}
}

func childPID(t *testing.T, stdout string) int {
	t.Helper()
	line := strings.TrimSpace(strings.SplitN(stdout, "\n", 2)[0])
	pid, err := strconv.Atoi(line)
	if err != nil {
		t.Fatalf("parsing child pid from %q: %v", stdout, err)
	}
	return pid
}

func dirBase(dir string) string {
	parts := strings.Split(strings.TrimRight(dir, "/"), "/")
	return parts[len(parts)-1]
}

// waitGone fails the test if pid is still running after a short grace.
// Zombies count as gone: they are waiting for a reaper, not running.
func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if processGone(pid) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("process %d still running", pid)
}

func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err == nil {
		i := bytes.LastIndexByte(data, ')')
		if i < 0 || i+2 >= len(data) {
			return false
		}
		state := data[i+2]
		return state == 'Z' || state == 'X'
	}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat("/proc/self/stat"); statErr == nil {
			return true
		}
	}
	return errors.Is(unix.Kill(pid, 0), unix.ESRCH)
}
