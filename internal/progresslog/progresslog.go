// Package progresslog prints human-facing progress for the workflow
// engine's node transitions. Adapted from the teacher's
// internal/logger.Logger (phase banners, task timing, ETA).
package progresslog

import (
	"fmt"
	"sync"
	"time"
)

// Logger tracks phase/task progress across one workflow run.
type Logger struct {
	mu             sync.Mutex
	totalTasks     int
	completedTasks int
	startTime      time.Time
	currentPhase   string
	tasks          map[string]*taskProgress
	quiet          bool
}

type taskProgress struct {
	Name      string
	Status    string
	StartTime time.Time
	EndTime   time.Time
	Error     string
}

// New creates a Logger that expects totalTasks node transitions.
func New(totalTasks int) *Logger {
	return &Logger{
		totalTasks: totalTasks,
		startTime:  time.Now(),
		tasks:      make(map[string]*taskProgress),
	}
}

// SetQuiet suppresses all output.
func (l *Logger) SetQuiet(quiet bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = quiet
}

// Phase announces entry into a new workflow node.
func (l *Logger) Phase(phase string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentPhase = phase
	if l.quiet {
		return
	}
	fmt.Printf("\n=== %s ===\n", phase)
}

// StartTask marks a task (node invocation) as running.
func (l *Logger) StartTask(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks[name] = &taskProgress{Name: name, Status: "running", StartTime: time.Now()}
	if !l.quiet {
		fmt.Printf("[%s] started\n", name)
	}
}

// CompleteTask marks a task as finished successfully.
func (l *Logger) CompleteTask(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[name]
	if !ok {
		return
	}
	t.Status = "completed"
	t.EndTime = time.Now()
	l.completedTasks++
	if !l.quiet {
		fmt.Printf("[%s] completed (%.2fs)\n", name, t.EndTime.Sub(t.StartTime).Seconds())
		l.printProgress()
	}
}

// FailTask marks a task as failed.
func (l *Logger) FailTask(name string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[name]
	if !ok {
		return
	}
	t.Status = "failed"
	t.EndTime = time.Now()
	t.Error = err.Error()
	l.completedTasks++
	if !l.quiet {
		fmt.Printf("[%s] failed: %v\n", name, err)
		l.printProgress()
	}
}

func (l *Logger) printProgress() {
	if l.totalTasks == 0 {
		return
	}
	pct := float64(l.completedTasks) / float64(l.totalTasks) * 100
	fmt.Printf("progress: %d/%d (%.1f%%) elapsed %s\n",
		l.completedTasks, l.totalTasks, pct, time.Since(l.startTime).Round(time.Millisecond))
}

// Info prints an informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.quiet {
		fmt.Printf("info: "+format+"\n", args...)
	}
}

// Warn prints a warning line.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.quiet {
		fmt.Printf("warn: "+format+"\n", args...)
	}
}
