// Package procprobe reads /proc to enumerate processes, build descendant
// trees, and signal them. It is the lowest-level component in cirno: the
// Monitor and Task packages both depend on it, and nothing in it depends
// on them.
//
// The /proc/<pid>/stat parsing follows the same approach as
// ja7ad-consumption's pkg/system/proc.ReadProcStat and
// skobkin-amdgputop-web's internal/procscan field readers: split on the
// *last* ")" because comm can itself contain spaces and parentheses.
package procprobe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrProcessNotFound is returned when a pid's /proc entry disappears
// between being discovered and being read.
var ErrProcessNotFound = errors.New("procprobe: process not found")

// Process is a stable identity for a system process: (pid, create_time)
// survives pid reuse because create_time is taken from the 22nd field of
// /proc/<pid>/stat, which the kernel never repeats for two different
// processes at the same pid in quick succession.
type Process struct {
	Pid        int
	PPid       *int // nil for init/swapper's children with ppid == 0
	Comm       string
	CreateTime uint64 // boot-clock ticks, field 22 of /proc/<pid>/stat
}

// ReadStat parses /proc/<pid>/stat and returns the Process it describes.
func ReadStat(pid int) (Process, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return Process{}, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
		}
		return Process{}, err
	}

	line := strings.TrimRight(string(data), "\n")

	open := strings.IndexByte(line, '(')
	close := strings.LastIndexByte(line, ')')
	if open < 0 || close < 0 || close < open {
		return Process{}, fmt.Errorf("procprobe: malformed stat line for pid %d", pid)
	}
	comm := line[open+1 : close]

	fields := strings.Fields(line[close+1:])
	// fields[0] = state, fields[1] = ppid, ..., fields[19] = starttime:
	// pid and comm are already consumed above, so these indices are
	// offset by 3 from the standard 1-based /proc/<pid>/stat field
	// numbers (state is field 3, ppid field 4, starttime field 22).
	const ppidIdx = 1
	const starttimeIdx = 19
	if len(fields) <= starttimeIdx {
		return Process{}, fmt.Errorf("procprobe: short stat line for pid %d", pid)
	}

	ppidVal, err := strconv.Atoi(fields[ppidIdx])
	if err != nil {
		return Process{}, fmt.Errorf("procprobe: parse ppid for pid %d: %w", pid, err)
	}

	startTime, err := strconv.ParseUint(fields[starttimeIdx], 10, 64)
	if err != nil {
		return Process{}, fmt.Errorf("procprobe: parse starttime for pid %d: %w", pid, err)
	}

	p := Process{Pid: pid, Comm: comm, CreateTime: startTime}
	if ppidVal != 0 {
		ppid := ppidVal
		p.PPid = &ppid
	}
	return p, nil
}

// ReadResidentBytes returns the resident set size of pid, in bytes, parsed
// from field 1 (RSS, in pages) of /proc/<pid>/statm. A process that no
// longer exists reports 0, nil: transient /proc races contribute 0 bytes
// rather than erroring.
func ReadResidentBytes(pid int) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, nil
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 2 {
		return 0, nil
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, nil
	}
	return pages * uint64(os.Getpagesize()), nil
}

// EnumerateProcesses lists every process currently visible in /proc.
// Entries that vanish between the directory read and the stat read are
// silently dropped (they lost a race with process exit, not an error).
func EnumerateProcesses() ([]Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("procprobe: read /proc: %w", err)
	}

	procs := make([]Process, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		p, err := ReadStat(pid)
		if err != nil {
			continue
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// DescendantTree returns the reflexive-transitive closure of the
// parent-of relation rooted at root, as a single DFS pre-order over one
// /proc snapshot. Races during traversal (a child exiting mid-scan) are
// accepted: a stale snapshot is preferable to blocking signal delivery.
func DescendantTree(root int) ([]Process, error) {
	snapshot, err := EnumerateProcesses()
	if err != nil {
		return nil, err
	}

	byPid := make(map[int]Process, len(snapshot))
	childrenOf := make(map[int][]int)
	for _, p := range snapshot {
		byPid[p.Pid] = p
		if p.PPid != nil {
			childrenOf[*p.PPid] = append(childrenOf[*p.PPid], p.Pid)
		}
	}

	rootProc, ok := byPid[root]
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, root)
	}

	var out []Process
	worklist := []int{root}
	visited := map[int]bool{}
	for len(worklist) > 0 {
		pid := worklist[0]
		worklist = worklist[1:]
		if visited[pid] {
			continue
		}
		visited[pid] = true

		p := rootProc
		if pid != root {
			p = byPid[pid]
		}
		out = append(out, p)

		// Prepend children so the overall order stays DFS pre-order: push
		// this node's children to the front of the remaining worklist.
		kids := childrenOf[pid]
		worklist = append(append([]int{}, kids...), worklist...)
	}

	return out, nil
}

// IsAlive reports whether p is still the same process: its pid must exist
// in /proc with the identical CreateTime. A matching pid with a different
// CreateTime means the pid was reused by an unrelated process.
func IsAlive(p Process) bool {
	current, err := ReadStat(p.Pid)
	if err != nil {
		return false
	}
	return current.CreateTime == p.CreateTime
}

// KillTree signals every live member of root's descendant tree, children
// before ancestors so a parent never outlives the children it might
// otherwise reap into zombies first. When includeSelf is false, root
// itself is skipped. Individual send failures (a process that already
// exited) are not fatal — signalling a tree always succeeds as long as
// the tree itself could be enumerated.
func KillTree(root int, sig syscall.Signal, includeSelf bool) error {
	tree, err := DescendantTree(root)
	if err != nil {
		if errors.Is(err, ErrProcessNotFound) {
			return nil
		}
		return err
	}

	for i := len(tree) - 1; i >= 0; i-- {
		p := tree[i]
		if !includeSelf && p.Pid == root {
			continue
		}
		if !IsAlive(p) {
			continue
		}
		_ = syscall.Kill(p.Pid, sig) // best-effort: target may have just exited
	}
	return nil
}
