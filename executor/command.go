package executor

import (
	"bytes"
	"context"
	"os/exec"

	"golang.org/x/xerrors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/CelestialCrafter/xuehua/planner"
)

// EnvPair is one entry of a CommandRequest's ordered environment list.
type EnvPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CommandRequest is the command/sandbox executor's request shape, decoded
// from a DispatchRequest payload.
type CommandRequest struct {
	Program     string    `json:"program"`
	WorkingDir  string    `json:"working_dir,omitempty"`
	Arguments   []string  `json:"arguments,omitempty"`
	Environment []EnvPair `json:"environment,omitempty"`
	ShareNet    bool      `json:"share_net,omitempty"`
	CapAdd      []string  `json:"cap_add,omitempty"`
	CapDrop     []string  `json:"cap_drop,omitempty"`
}

// CommandExecutor runs a command inside a bubblewrap sandbox rooted at the
// per-build environment directory.
//
// internal/build/build.go shells out to "unshare --user --map-root-user
// --mount ..." to sandbox distri's own package builds; bwrap is the
// bubblewrap equivalent spec.md §4.C calls for, and this executor
// assembles bwrap's argv the same way build.go assembles unshare's: one
// flag per isolation concern, appended in a fixed, auditable order.
type CommandExecutor struct {
	init *InitContext
}

// NewCommandExecutor is a Factory constructing the sandboxed command
// executor.
func NewCommandExecutor(init *InitContext) (Executor, error) {
	return &CommandExecutor{init: init}, nil
}

func (e *CommandExecutor) Name() planner.ExecutorName {
	return planner.ExecutorName{Identifier: "command"}
}

func (e *CommandExecutor) Execute(ctx context.Context, payload *structpb.Value) error {
	var req CommandRequest
	if err := decodePayload(payload, &req); err != nil {
		return xerrors.Errorf("decode command request: %w", err)
	}

	args := []string{
		"--unshare-all",
		"--die-with-parent",
		"--new-session",
		"--clearenv",
		"--bind", e.init.EnvironmentRoot, "/",
		"--ro-bind", e.init.BusyboxPath, "/busybox",
		"--dev", "/dev",
		"--proc", "/proc",
	}
	if req.ShareNet {
		args = append(args, "--share-net")
	}
	for _, c := range req.CapAdd {
		args = append(args, "--cap-add", c)
	}
	for _, c := range req.CapDrop {
		args = append(args, "--cap-drop", c)
	}
	if req.WorkingDir != "" {
		args = append(args, "--chdir", req.WorkingDir)
	}
	for _, pair := range req.Environment {
		args = append(args, "--setenv", pair.Key, pair.Value)
	}
	args = append(args, "--", req.Program)
	args = append(args, req.Arguments...)

	cmd := exec.CommandContext(ctx, e.init.BwrapPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return xerrors.Errorf("run %s: %w", e.init.BwrapPath, err)
		}
		return &CommandError{
			Program:     req.Program,
			Status:      exitErr.ExitCode(),
			Stderr:      append([]byte(nil), stderr.Bytes()...),
			SandboxHint: sandboxHint(),
		}
	}
	return nil
}
