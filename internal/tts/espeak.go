// Package tts speaks through an external synthesizer process so a
// narration can be killed mid-sentence.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"swar/internal/speech"
)

// Ducker lowers other audio while the engine talks.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Engine runs one espeak-ng compatible command per utterance.
type Engine struct {
	command string
	voice   string
	rate    int
	ducker  Ducker

	mu      sync.Mutex
	playing int
}

func NewEngine(command, voice string, rate int) (*Engine, error) {
	if command == "" {
		command = "espeak-ng"
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return nil, err
	}
	return &Engine{command: resolved, voice: voice, rate: rate}, nil
}

// WithDucker ducks other streams while any utterance is playing.
func (e *Engine) WithDucker(d Ducker) *Engine {
	e.ducker = d
	return e
}

// args never carries the text itself. It is piped on stdin so long
// bodies fit and a leading "-" is not taken for an option.
func (e *Engine) args() []string {
	var args []string
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	if e.rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.rate))
	}
	return append(args, "--stdin")
}

// Synthesize starts speaking and returns at once.
func (e *Engine) Synthesize(text string) (speech.Handle, error) {
	text = strings.TrimSpace(text)
	p := &Process{done: make(chan struct{})}
	if text == "" {
		close(p.done)
		return p, nil
	}

	cmd := exec.Command(e.command, e.args()...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	e.hold()
	if err := cmd.Start(); err != nil {
		e.release()
		return nil, fmt.Errorf("start %s: %w", e.command, err)
	}
	p.cmd = cmd

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		killed := p.killed
		p.mu.Unlock()
		if err != nil && !killed {
			log.Warn("Synthesizer exited with error", "err", err)
		}
		e.release()
		close(p.done)
	}()

	return p, nil
}

func (e *Engine) hold() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing++
	if e.playing == 1 && e.ducker != nil {
		if err := e.ducker.Duck(context.Background()); err != nil {
			log.Warn("Failed to duck other audio", "err", err)
		}
	}
}

func (e *Engine) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing--
	if e.playing == 0 && e.ducker != nil {
		if err := e.ducker.Restore(context.Background()); err != nil {
			log.Warn("Failed to restore other audio", "err", err)
		}
	}
}

// Process is one running utterance.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	killed bool
}

func (p *Process) Active() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Process) Done() <-chan struct{} { return p.done }

// Cancel kills the process and waits for it to be reaped.
func (p *Process) Cancel() error {
	if !p.Active() {
		return nil
	}

	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill synthesizer: %w", err)
	}
	<-p.done
	return nil
}
