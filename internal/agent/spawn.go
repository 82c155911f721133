package agent

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/metaagentd/internal/log"
)

// Process is the minimal subprocess surface the run driver needs. The
// production implementation wraps os/exec.Cmd; tests substitute a fake,
// mirroring the teacher's WithCommandFactory test hook.
type Process struct {
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	Cmd    *exec.Cmd
}

// SpawnFunc starts a process for the given argv in workDir and returns
// handles to its pipes. It must leave the process already started
// (exec.Cmd.Start already called) so the caller can begin reading
// immediately.
type SpawnFunc func(program string, args []string, workDir string) (*Process, error)

// DefaultSpawn starts a real OS process via os/exec.
func DefaultSpawn(program string, args []string, workDir string) (*Process, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = workDir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agent: start: %w", err)
	}
	return &Process{Stdout: stdout, Stderr: stderr, Cmd: cmd}, nil
}

// run drives one SendPrompt invocation: spawns the process, fans its
// stdout/stderr into the adapter's event channel, and emits exactly one
// Completed event last.
type run struct {
	done atomic.Bool
}

// startRun spawns a process for args and drives it to completion in a
// background goroutine, preserving the strict Output/System-before-
// Completed ordering guarantee (spec.md 4.2, 5; P1 in 8).
func startRun(a *Adapter, args []string) *run {
	r := &run{}
	go func() {
		defer r.done.Store(true)

		proc, err := a.cfg.Spawn(a.cfg.Program, args, a.cfg.WorkDir)
		if err != nil {
			log.Error(log.CatAdapter, "spawn failed", "program", a.cfg.Program, "error", err)
			a.emit(System(fmt.Sprintf("failed to start %s: %v", a.cfg.Program, err)))
			a.emit(Completed(false, -1))
			return
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.readStdout(proc.Stdout)
		}()
		go func() {
			defer wg.Done()
			a.readStderr(proc.Stderr)
		}()

		waitErr := proc.Cmd.Wait()

		if !a.cfg.SkipReaderJoinAfterWait {
			wg.Wait()
		}

		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				code := exitErr.ExitCode()
				a.emit(Completed(false, code))
				a.emit(System(fmt.Sprintf("%s exited with status code %d", a.cfg.Program, code)))
				return
			}
			log.Error(log.CatAdapter, "wait failed", "program", a.cfg.Program, "error", waitErr)
			a.emit(System(fmt.Sprintf("%s wait failed: %v", a.cfg.Program, waitErr)))
			a.emit(Completed(false, -1))
			return
		}

		a.emit(Completed(true, 0))
	}()
	return r
}

func (a *Adapter) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		a.handleLine(scanner.Bytes())
	}
}

// readStderr folds stderr through the same path as stdout: both are part
// of the agent's one ordered output stream (spec.md 4.2, 2), and a session
// id can just as easily land on stderr as stdout.
func (a *Adapter) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		a.handleLine(scanner.Bytes())
	}
}

func (a *Adapter) handleLine(line []byte) {
	switch a.cfg.OutputMode {
	case JSONAssistantOnly:
		if id := extractSessionID(line); id != "" {
			a.recordSession(id)
		}
		if text, ok := extractAgentMessage(line); ok {
			a.emit(Output(text))
		}
	default:
		a.emit(Output(string(line)))
	}
}
