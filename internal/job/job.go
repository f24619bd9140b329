// Package job implements the job manager (spec.md §4.7): a table of
// background/foreground jobs keyed by a monotonic id, process-group based
// suspend/resume/terminate, and the %N/%+/%- designator grammar.
package job

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Status is a Job's lifecycle state (spec.md §3: "Running ⇄ Stopped → Done").
type Status int

const (
	Running Status = iota
	Stopped
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Job mirrors spec.md §3's Job record.
type Job struct {
	ID        uint32
	Pgid      int
	LeaderPid int
	Command   string
	Status    Status
	Background bool
	ExitCode  *int
	StartTime time.Time

	notifyDone chan struct{}
}

// Table tracks all jobs for one shell lifetime. Every Table method locks
// t.mu, so calls on the table may come from several goroutines (the main
// loop and the SIGCHLD reaper, spec.md §5).
type Table struct {
	mu      sync.Mutex
	jobs    []*Job
	nextID  uint32
	current uint32 // job id, 0 = none
	previous uint32
}

// NewTable creates an empty job table with next_job_id starting at 1.
func NewTable() *Table {
	return &Table{nextID: 1}
}

// Add registers a newly spawned command as a Running job and returns it. The
// id is guaranteed greater than every previously assigned id in this table
// (spec.md §8: "every background command registers exactly one job whose id
// is > all previously assigned ids").
func (t *Table) Add(pgid, leaderPid int, command string, background bool) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	j := &Job{
		ID:         t.nextID,
		Pgid:       pgid,
		LeaderPid:  leaderPid,
		Command:    command,
		Status:     Running,
		Background: background,
		StartTime:  time.Now(),
		notifyDone: make(chan struct{}),
	}
	t.nextID++
	t.jobs = append(t.jobs, j)
	t.setCurrent(j.ID)
	return j
}

func (t *Table) setCurrent(id uint32) {
	if t.current != id {
		t.previous = t.current
		t.current = id
	}
}

// All returns a snapshot of all tracked jobs (Done jobs included until
// reaped), ordered by id.
func (t *Table) All() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// Get returns the job with the given id, or nil.
func (t *Table) Get(id uint32) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// GetByPgid finds the job owning pgid, used by the SIGCHLD reaper which only
// knows the pid/pgid that changed state.
func (t *Table) GetByPgid(pgid int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.Pgid == pgid {
			return j
		}
	}
	return nil
}

// Resolve parses a job designator per spec.md §4.7 (%N, %+/+ current, %-/-
// previous) and returns the matching Job.
func (t *Table) Resolve(designator string) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := strings.TrimPrefix(designator, "%")
	switch d {
	case "+", "":
		if t.current == 0 {
			return nil, fmt.Errorf("no current job")
		}
		return t.findLocked(t.current)
	case "-":
		if t.previous == 0 {
			return nil, fmt.Errorf("no previous job")
		}
		return t.findLocked(t.previous)
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return nil, fmt.Errorf("%s: no such job", designator)
	}
	j, ferr := t.findLocked(uint32(n))
	if ferr != nil {
		return nil, fmt.Errorf("%s: no such job", designator)
	}
	return j, nil
}

func (t *Table) findLocked(id uint32) (*Job, error) {
	for _, j := range t.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("no such job %d", id)
}

// MarkDone transitions a job to Done with the given exit code, recomputing
// current/previous if needed, and closes its notifyDone channel so any
// Wait callers unblock.
func (t *Table) MarkDone(id uint32, exitCode int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, err := t.findLocked(id)
	if err != nil {
		return
	}
	if j.Status == Done {
		return
	}
	j.Status = Done
	ec := exitCode
	j.ExitCode = &ec
	close(j.notifyDone)
	t.recomputeCurrentLocked()
}

func (t *Table) recomputeCurrentLocked() {
	if t.current != 0 {
		if j, _ := t.findLocked(t.current); j != nil && j.Status != Done {
			return
		}
	}
	t.current = 0
	t.previous = 0
	for i := len(t.jobs) - 1; i >= 0; i-- {
		if t.jobs[i].Status != Done {
			if t.current == 0 {
				t.current = t.jobs[i].ID
			} else {
				t.previous = t.jobs[i].ID
				break
			}
		}
	}
}

// Disown removes a job from the table outright (spec.md §4.7: "a Done job
// may be disowned").
func (t *Table) Disown(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j.ID == id {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			t.recomputeCurrentLocked()
			return
		}
	}
}

// Reap drops all Done jobs from the table and returns them, for the
// REPL's pre-prompt "reaped and announced" step (spec.md §4.7).
func (t *Table) Reap() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var reaped []*Job
	kept := t.jobs[:0]
	for _, j := range t.jobs {
		if j.Status == Done {
			reaped = append(reaped, j)
		} else {
			kept = append(kept, j)
		}
	}
	t.jobs = kept
	return reaped
}

// Suspend sends SIGTSTP to the job's process group (spec.md §4.7:
// "suspend(id) → Stopped by sending SIGTSTP to the process group").
func Suspend(j *Job) error {
	if err := unix.Kill(-j.Pgid, syscall.SIGTSTP); err != nil {
		return err
	}
	j.Status = Stopped
	return nil
}

// ResumeBackground sends SIGCONT and marks the job Running without claiming
// the terminal.
func ResumeBackground(j *Job) error {
	if err := unix.Kill(-j.Pgid, syscall.SIGCONT); err != nil {
		return err
	}
	j.Status = Running
	return nil
}

// Terminate delivers sig to the job's process group.
func Terminate(j *Job, sig syscall.Signal) error {
	return unix.Kill(-j.Pgid, sig)
}

// WaitDone blocks until the job reaches Done, returning its final exit
// code. Safe to call only after the job has been registered; the main loop
// (not this function) performs the actual wait4/SIGCHLD-driven transition
// into Done via MarkDone.
func WaitDone(j *Job) int {
	<-j.notifyDone
	if j.ExitCode != nil {
		return *j.ExitCode
	}
	return 0
}
