// Package rundir creates the runtime directory and resolves the four
// path shapes cirno writes into it: per-task logs, the final report,
// and the per-run control file.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Yurzi/cirno/internal/types"
)

// Dir is a resolved runtime directory.
type Dir struct {
	path string
}

// Ensure creates path (and any missing parents) and returns a Dir handle
// for resolving task log/err/report/control paths. Failure is
// setup-fatal: the run cannot proceed without a writable directory.
func Ensure(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("rundir: create %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// LogPath resolves <run_dir>/<name>.log.
func (d *Dir) LogPath(name string) string {
	return filepath.Join(d.path, name+".log")
}

// ErrPath resolves <run_dir>/<name>.err.
func (d *Dir) ErrPath(name string) string {
	return filepath.Join(d.path, name+".err")
}

// ReportPath resolves <run_dir>/cirno_task_pair.log.
func (d *Dir) ReportPath() string {
	return filepath.Join(d.path, types.TaskPairLogName)
}

// ControlPath resolves <run_dir>/cirno_<pid>.sock for the supervisor's
// own pid.
func (d *Dir) ControlPath(pid int) string {
	return filepath.Join(d.path, fmt.Sprintf(types.ControlFilePattern, pid))
}

// Path returns the resolved runtime directory itself.
func (d *Dir) Path() string {
	return d.path
}
