package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/daoservice/govsync/internal/domain/config"
	"github.com/daoservice/govsync/internal/usecase"
)

// SpinnerSink renders progress events with a spinner on stderr. Completed
// stages are printed with their duration when the next one starts.
type SpinnerSink struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	current *stageInfo
}

type stageInfo struct {
	Stage     string
	Message   string
	StartTime time.Time
}

// NewSpinnerSink creates a spinner-backed progress sink writing to out
func NewSpinnerSink(out io.Writer) *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false
	return &SpinnerSink{out: out, spinner: s}
}

// ProvideProgressSink picks the spinner for interactive runs and the
// no-op sink for --json and --non-interactive
func ProvideProgressSink(cfg *config.RuntimeConfig) usecase.ProgressSink {
	if cfg.JSON || cfg.NonInteractive {
		return usecase.NopProgress{}
	}
	return NewSpinnerSink(os.Stderr)
}

// OnProgress handles progress events
func (r *SpinnerSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.Stage != event.Stage {
		r.completeCurrentStage()
	}
	if r.current == nil {
		r.current = &stageInfo{Stage: event.Stage, StartTime: time.Now()}
	}
	r.current.Message = event.Message

	if event.Spinner {
		r.spinner.Suffix = " " + event.Message
		if !r.spinner.Active() {
			r.spinner.Start()
		}
	} else if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message, finishing the running stage first
func (r *SpinnerSink) Info(message string) {
	r.print(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerSink) Error(message string) {
	r.print(color.New(color.FgRed), message)
}

// Stop finishes the running stage
func (r *SpinnerSink) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCurrentStage()
}

func (r *SpinnerSink) print(c *color.Color, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCurrentStage()
	c.Fprintln(r.out, message)
}

// completeCurrentStage stops the spinner and prints the stage summary line
func (r *SpinnerSink) completeCurrentStage() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
	if r.current == nil {
		return
	}
	stage := r.current
	r.current = nil

	name := "Done"
	if stage.Stage != "" {
		name = strings.ToUpper(stage.Stage[:1]) + stage.Stage[1:]
	}
	duration := time.Since(stage.StartTime).Round(time.Millisecond)
	fmt.Fprintf(r.out, "%s %s %s\n",
		color.New(color.FgGreen).Sprint("✓"),
		color.New(color.FgWhite, color.Bold).Sprint(name),
		color.New(color.Faint).Sprintf("(%s)", duration))
}

var _ usecase.ProgressSink = (*SpinnerSink)(nil)
