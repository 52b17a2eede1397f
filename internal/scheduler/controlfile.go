package scheduler

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadControlFile reads path linearly, parsing key=value lines.
// Blank lines and lines beginning with "#" are ignored; the file is
// truncated after reading so external writers always append into a
// drained file. A missing file is not an error (no reconfiguration was
// requested this tick).
func ReadControlFile(path string) (map[string]string, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("scheduler: open control file: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scheduler: read control file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		return nil, fmt.Errorf("scheduler: truncate control file: %w", err)
	}

	return values, nil
}

// reconfigure is tick phase 7: read the control file and apply any
// recognized keys. Unknown keys are silently ignored.
func (s *Scheduler) reconfigure() error {
	values, err := ReadControlFile(s.controlPath)
	if err != nil {
		return err
	}

	if v, ok := values["workers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.MaxWorkers = n
		}
	}
	if v, ok := values["force_workers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.cfg.ForceWorkers = n
		}
	}
	if v, ok := values["per-task-mem"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			s.mon.SetPerTaskMem(n)
		}
	}

	return nil
}
