package consumer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/gopro-tools/gopro-webcam/config"
	"github.com/gopro-tools/gopro-webcam/internal/util"
)

const (
	startupGrace   = time.Second
	terminateGrace = 5 * time.Second
)

// commandFunc builds the external command; replaced in tests.
type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// process supervises one external transcode process. Liveness is always
// recomputed from the OS, never cached, so an out-of-band kill is observed
// on the next query.
type process struct {
	name string // log file stem

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	logFile *os.File

	newCommand commandFunc
}

func newProcess(name string) *process {
	return &process{name: name, newCommand: exec.CommandContext}
}

// start spawns the command and verifies it survives a short grace period.
// The stderr of decode/transcode tools is their diagnostic channel; it is
// captured to a per-consumer log file.
func (p *process) start(ctx context.Context, bin string, args []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.aliveLocked() {
		return errors.Errorf("%s process already running (pid %d)", p.name, p.cmd.Process.Pid)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := p.newCommand(procCtx, bin, args...)

	logger := logrus.New()
	logPath := filepath.Join(config.GetLogDir(), p.name+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err == nil {
		logger.SetOutput(f)
		p.logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}
	logger.WithFields(logrus.Fields{"bin": bin, "args": args}).Info("starting consumer process")

	if err := cmd.Start(); err != nil {
		cancel()
		p.closeLogLocked()
		return errors.Wrapf(err, "failed to start %s", bin)
	}

	p.cmd = cmd
	p.cancel = cancel

	// Reap in the background so ProcessState is populated when it exits.
	go cmd.Wait()

	// A transcode process that dies within the grace period never attached
	// to its input; surface that as a start failure.
	select {
	case <-ctx.Done():
		p.stopLocked()
		return ctx.Err()
	case <-time.After(startupGrace):
	}

	if !p.aliveLocked() {
		p.stopLocked()
		return errors.Errorf("%s exited immediately, see %s", bin, logPath)
	}

	util.GetLogger().Info("Consumer process started", "bin", bin, "pid", cmd.Process.Pid, "log", logPath)
	return nil
}

// stop terminates the process: SIGTERM, then SIGKILL after a grace period.
// Idempotent.
func (p *process) stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *process) stopLocked() error {
	defer p.closeLogLocked()

	if p.cmd == nil || p.cmd.Process == nil {
		p.cmd = nil
		return nil
	}
	if !p.aliveLocked() {
		p.cmd = nil
		return nil
	}

	pid := p.cmd.Process.Pid
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		util.GetLogger().Debug("SIGTERM failed, killing", "pid", pid, "err", err)
	}

	deadline := time.Now().Add(terminateGrace)
	for time.Now().Before(deadline) {
		if !p.aliveLocked() {
			p.cmd = nil
			if p.cancel != nil {
				p.cancel()
			}
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	util.GetLogger().Warn("Consumer process did not terminate gracefully, killing", "pid", pid)
	if p.cancel != nil {
		p.cancel() // CommandContext kill
	}
	p.cmd.Process.Kill()
	p.cmd = nil
	return nil
}

func (p *process) closeLogLocked() {
	if p.logFile != nil {
		p.logFile.Close()
		p.logFile = nil
	}
}

// alive reports whether the supervised process is currently running.
func (p *process) alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveLocked()
}

func (p *process) aliveLocked() bool {
	if p.cmd == nil || p.cmd.Process == nil {
		return false
	}
	if p.cmd.ProcessState != nil {
		return false // reaped
	}
	// Signal 0 probes existence without touching the process.
	return p.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// commandAvailable reports whether a tool is on PATH.
func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
