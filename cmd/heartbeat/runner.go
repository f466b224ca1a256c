package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/boshu2/heartbeat/internal/external"
	"github.com/boshu2/heartbeat/internal/heartbeat"
	"github.com/boshu2/heartbeat/internal/queue"
)

// intentEnv builds the INTENT_TASK_* and INTENT_VAULT_ROOT variables the
// runner contract promises a spawned task subprocess, on top of ChildEnv's
// depth counter and CLAUDECODE strip.
func intentEnv(task queue.Task, vaultRoot string, depth int) []string {
	env := heartbeat.ChildEnv(depth)
	env = append(env,
		"INTENT_TASK_ID="+task.TaskID,
		"INTENT_TASK_TARGET="+task.Target,
		"INTENT_TASK_SOURCE="+task.SourcePath,
		"INTENT_TASK_PHASE="+string(task.Phase),
		"INTENT_VAULT_ROOT="+vaultRoot,
	)
	return env
}

var execCommandContext = exec.CommandContext

// subprocessRunner invokes an external command per task: the task is
// marshaled to JSON on stdin, stdout/stderr are captured, and a non-zero
// exit is treated as failure. This is the CLI's concrete TaskRunner; the
// engine itself never shells out.
type subprocessRunner struct {
	command   string
	depth     int
	vaultRoot string
}

func (r *subprocessRunner) Run(ctx context.Context, task queue.Task) (external.RunResult, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return external.RunResult{}, err
	}

	fields := strings.Fields(r.command)
	if len(fields) == 0 {
		return external.RunResult{}, nil
	}
	cmd := execCommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = intentEnv(task, r.vaultRoot, r.depth)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := external.RunResult{
		Success: runErr == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if runErr != nil {
		result.ErrorMsg = runErr.Error()
	}
	return result, nil
}

// subprocessLLM sends prompt on stdin to an external command and returns
// its stdout, for morning-brief and working-memory synthesis.
type subprocessLLM struct {
	command string
}

func (l *subprocessLLM) Complete(ctx context.Context, prompt string) (string, error) {
	fields := strings.Fields(l.command)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := execCommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
