package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Nukesor/encarne/internal/logging"
)

// runFunc executes a pueue subcommand and returns its stdout.
type runFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Pueue drives a local pueue daemon through its CLI.
type Pueue struct {
	binary string
	run    runFunc
}

// NewPueue returns a Pueue adapter using binary, defaulting to "pueue".
func NewPueue(binary string) *Pueue {
	if binary == "" {
		binary = "pueue"
	}
	return &Pueue{binary: binary, run: runCommand}
}

// Jobs returns every task pueue knows about.
func (p *Pueue) Jobs(ctx context.Context) (jobs []Job, err error) {
	defer func() { recordRequest("pueue", "status", err) }()

	out, err := p.run(ctx, p.binary, "status", "--json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	jobs, err = parsePueueStatus(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return jobs, nil
}

// Add submits command to run in dir. pueue runs the string through a shell,
// so command must already be quoted.
func (p *Pueue) Add(ctx context.Context, command, dir string) (err error) {
	defer func() { recordRequest("pueue", "add", err) }()

	logging.Info("Adding pueue task:\n %s", command)
	if _, err = p.run(ctx, p.binary, "add", "--working-directory", dir, "--", command); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

type pueueState struct {
	Tasks map[string]pueueTask `json:"tasks"`
}

type pueueTask struct {
	ID      *int64          `json:"id"`
	Command string          `json:"command"`
	Status  json.RawMessage `json:"status"`
	// Older releases kept the result next to the status
	Result json.RawMessage `json:"result"`
}

func parsePueueStatus(data []byte) ([]Job, error) {
	var state pueueState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse pueue status: %w", err)
	}

	jobs := make([]Job, 0, len(state.Tasks))
	for key, t := range state.Tasks {
		var id int64
		if t.ID != nil {
			id = *t.ID
		} else {
			parsed, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid pueue task id %q", key)
			}
			id = parsed
		}

		status, err := parsePueueTaskStatus(t.Status, t.Result)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", id, err)
		}
		jobs = append(jobs, Job{ID: id, Command: t.Command, Status: status})
	}
	return jobs, nil
}

// parsePueueTaskStatus maps the status encodings pueue has used over time:
// plain strings ("Running", "Done"), single-key objects carrying the result
// ({"Done": "Success"}, {"Done": {"Failed": 1}}), and objects with a nested
// result ({"Done": {"start": ..., "result": "Success"}}).
func parsePueueTaskStatus(raw, result json.RawMessage) (Status, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if strings.EqualFold(name, "done") && len(result) > 0 {
			return pueueResult(result), nil
		}
		return pueueStatusName(name)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return "", fmt.Errorf("unknown status encoding %s", string(raw))
	}

	for name, inner := range obj {
		if !strings.EqualFold(name, "done") {
			return pueueStatusName(name)
		}

		var nested struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(inner, &nested); err == nil && len(nested.Result) > 0 {
			return pueueResult(nested.Result), nil
		}
		return pueueResult(inner), nil
	}
	return "", fmt.Errorf("unknown status encoding %s", string(raw))
}

func pueueStatusName(name string) (Status, error) {
	switch strings.ToLower(name) {
	case "queued", "stashed", "locked":
		return StatusQueued, nil
	case "running", "paused":
		return StatusRunning, nil
	case "done", "success":
		return StatusDone, nil
	case "failed", "killed", "errored", "failedtospawn", "dependencyfailed":
		return StatusFailed, nil
	}
	return "", fmt.Errorf("unknown status %q", name)
}

// pueueResult maps a task result; only "Success" counts as done.
func pueueResult(raw json.RawMessage) Status {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil && strings.EqualFold(name, "success") {
		return StatusDone
	}
	return StatusFailed
}
