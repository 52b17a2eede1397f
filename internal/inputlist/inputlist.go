// Package inputlist parses the static list of shell commands a run is
// submitted with: UTF-8, LF-separated lines, one task per line.
package inputlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Yurzi/cirno/internal/utils"
	"github.com/google/uuid"
)

// Entry is one parsed line: a task name paired with its command.
type Entry struct {
	Name    string
	Program string
	Args    []string
}

// Parse reads r line by line and builds one Entry per non-empty line.
// Lines that are empty or only whitespace are skipped in both modes.
// When withTaskName is set, the first whitespace token of each line is
// taken as the task's name and the remainder is split into a command;
// a line with a name but no command after it is a setup-fatal error.
// When withTaskName is false, the whole line is the command and a
// time-ordered UUID becomes the name.
func Parse(r io.Reader, withTaskName bool) ([]Entry, error) {
	var entries []Entry

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var name, command string
		if withTaskName {
			first, rest, ok := utils.FirstToken(line)
			if !ok {
				return nil, fmt.Errorf("inputlist: line %d: no task name token found", lineNo)
			}
			if rest == "" {
				return nil, fmt.Errorf("inputlist: line %d: task %q has no command", lineNo, first)
			}
			name, command = first, rest
		} else {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, fmt.Errorf("inputlist: generate task name: %w", err)
			}
			name, command = id.String(), strings.TrimSpace(line)
		}

		program, args, ok := splitCommand(command)
		if !ok {
			return nil, fmt.Errorf("inputlist: line %d: empty command", lineNo)
		}
		entries = append(entries, Entry{Name: name, Program: program, Args: args})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("inputlist: read: %w", err)
	}

	return entries, nil
}

func splitCommand(command string) (program string, args []string, ok bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}
