// Package scheduler implements the single-threaded tick loop that moves
// Tasks between five pools, consulting the Monitor for admission and
// each Task for liveness, and writes the final report.
package scheduler

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Yurzi/cirno/internal/inputlist"
	"github.com/Yurzi/cirno/internal/monitor"
	"github.com/Yurzi/cirno/internal/rundir"
	"github.com/Yurzi/cirno/internal/task"
)

// StopFlag is the one-shot, monotonic false→true boolean shared between
// the tick thread and a signal.Notify handler.
type StopFlag struct {
	flag atomic.Bool
}

// Set asserts the flag. Safe to call from a signal handler.
func (s *StopFlag) Set() { s.flag.Store(true) }

// IsSet reports whether the flag has been asserted.
func (s *StopFlag) IsSet() bool { return s.flag.Load() }

// Config is the subset of CLI flags the Scheduler needs. MaxWorkers and
// ForceWorkers are mutable at runtime via the control file (step 7 of
// the tick); everything else is fixed for the life of the run.
type Config struct {
	MaxWorkers   int
	ForceWorkers int
	Timeout      time.Duration
	TimeoutWait  time.Duration
	TickTime     time.Duration
}

// Scheduler owns the five pools and drives the tick loop. All pool
// mutation happens on the single goroutine that calls Run; the only
// concurrent access is the StopFlag (written from a signal handler) and
// the control file (written by an external process).
type Scheduler struct {
	cfg Config
	mon *monitor.Monitor
	dir *rundir.Dir

	stop *StopFlag

	controlPath string
	selfPid     int

	waiting   []*task.Task
	running   []*task.Task
	timeout   []*task.Task
	forceStop []*task.Task
	exited    []*task.Task
}

// New constructs a Scheduler with an empty waiting queue. Call Submit to
// populate it before Run.
func New(cfg Config, mon *monitor.Monitor, dir *rundir.Dir, stop *StopFlag, selfPid int) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		mon:         mon,
		dir:         dir,
		stop:        stop,
		controlPath: dir.ControlPath(selfPid),
		selfPid:     selfPid,
	}
}

// Submit builds one Waiting Task per input-list entry and appends it to
// the back of the waiting queue, preserving input order (I4: at most one
// Task per entry).
func (s *Scheduler) Submit(entries []inputlist.Entry) {
	for _, e := range entries {
		t := task.New(e.Name, e.Program, e.Args, s.dir.LogPath(e.Name), s.dir.ErrPath(e.Name))
		s.waiting = append(s.waiting, t)
	}
}

// Run drives the tick loop until pending work drains to zero or the
// stop flag is asserted, then stops every Task still holding a handle
// (the Go equivalent of a destructor contract) and writes the
// final report before returning.
func (s *Scheduler) Run() (err error) {
	defer func() {
		s.shutdownRemainingTasks()
		if werr := s.WriteReport(); werr != nil && err == nil {
			err = fmt.Errorf("scheduler: write final report: %w", werr)
		}
	}()

	for {
		start := time.Now()

		if s.pending() == 0 || s.stop.IsSet() {
			return nil
		}

		if err := s.writeReportBestEffort(); err != nil {
			return err
		}

		s.drainRunning()
		s.admit()
		s.drainForceStop()
		s.drainTimeout()

		if err := s.reconfigure(); err != nil {
			return err
		}

		elapsed := time.Since(start)
		if remaining := s.cfg.TickTime - elapsed; remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (s *Scheduler) pending() int {
	return len(s.waiting) + len(s.running) + len(s.timeout)
}

// drainRunning is tick phase 3.
func (s *Scheduler) drainRunning() {
	var stillRunning []*task.Task
	for _, t := range s.running {
		done, err := t.TryWait()
		if err != nil {
			continue // task-observation error: drop silently
		}
		if done {
			t.Status = task.Exited
			s.exited = append(s.exited, t)
			continue
		}
		if s.cfg.Timeout > 0 && t.RunningTime() >= s.cfg.Timeout {
			t.Status = task.Timeout
			t.ResetWaitingTime()
			s.timeout = append(s.timeout, t)
			continue
		}
		stillRunning = append(stillRunning, t)
	}
	s.running = stillRunning
}

// admit is tick phase 4.
func (s *Scheduler) admit() {
	workers := len(s.running) + len(s.timeout)

	if workers < s.cfg.ForceWorkers {
		s.admitOne()
		return
	}

	state, err := s.mon.IsOK(workers)
	if err != nil {
		return
	}

	switch state {
	case monitor.Health:
		if workers < s.cfg.MaxWorkers && len(s.waiting) > 0 {
			s.admitOne()
		}
	case monitor.Normal:
		// admit nothing, evict nothing
	case monitor.Bad:
		if workers > s.cfg.ForceWorkers && len(s.running) > 0 {
			last := len(s.running) - 1
			victim := s.running[last]
			s.running = s.running[:last]

			_ = victim.Stop()
			victim.Status = task.Waiting
			s.waiting = append(s.waiting, victim)
		}
	}
}

func (s *Scheduler) admitOne() {
	if len(s.waiting) == 0 {
		return
	}
	t := s.waiting[0]
	s.waiting = s.waiting[1:]

	if t.Spawn() {
		s.running = append(s.running, t)
	} else {
		s.waiting = append(s.waiting, t) // back of waiting, retried later
	}
}

// drainForceStop is tick phase 5.
func (s *Scheduler) drainForceStop() {
	for _, t := range s.forceStop {
		done, err := t.TryWait()
		if err != nil {
			continue
		}
		if !done {
			_ = t.Stop() // kills synchronously
		}
		t.Status = task.Killed
		s.exited = append(s.exited, t)
	}
	s.forceStop = nil
}

// drainTimeout is tick phase 6.
func (s *Scheduler) drainTimeout() {
	var stillWaiting []*task.Task
	for _, t := range s.timeout {
		done, err := t.TryWait()
		if err != nil {
			continue
		}
		if done {
			t.Status = task.Exited
			s.exited = append(s.exited, t)
			continue
		}
		if t.WaitingTime() >= s.cfg.TimeoutWait {
			_ = t.Signal(syscall.SIGINT, false)
			_ = t.Signal(syscall.SIGALRM, true)
			s.forceStop = append(s.forceStop, t)
		} else {
			_ = t.Signal(syscall.SIGALRM, true)
			stillWaiting = append(stillWaiting, t)
		}
	}
	s.timeout = stillWaiting
}

// shutdownRemainingTasks implements the Scheduler side of the destructor
// contract: every Task still holding a handle when the loop exits is
// stopped synchronously so no descendant survives the supervisor.
func (s *Scheduler) shutdownRemainingTasks() {
	for _, t := range s.running {
		_ = t.Close()
	}
	for _, t := range s.timeout {
		_ = t.Close()
	}
	for _, t := range s.forceStop {
		_ = t.Close()
	}
}

func (s *Scheduler) writeReportBestEffort() error {
	if err := s.WriteReport(); err != nil {
		return fmt.Errorf("scheduler: write report: %w", err)
	}
	return nil
}
