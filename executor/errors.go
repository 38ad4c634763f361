package executor

import (
	"fmt"

	"github.com/CelestialCrafter/xuehua/report"
)

// CommandError is returned by the command executor when the sandboxed
// process exits non-zero.
type CommandError struct {
	Program string
	Status  int
	Stderr  []byte
	// SandboxHint carries remediation text when the sandbox itself looks
	// misconfigured (e.g. unprivileged user namespaces disabled), rather
	// than the program itself having simply failed. Empty when nothing
	// looks wrong at the kernel level.
	SandboxHint string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Status)
}

func (e *CommandError) ToReport() *report.Report {
	r := report.New(report.LevelError, "command executor failed").
		WithContext("program", e.Program).
		WithContext("status", fmt.Sprintf("%d", e.Status)).
		WithAttachment("stderr", e.Stderr)
	if e.SandboxHint != "" {
		r = r.WithSuggestion(e.SandboxHint)
	}
	return r
}

// InvalidPathError is returned by the HTTP and compression executors when a
// request path resolves outside the per-build environment root -- spec.md
// §4.C names this case InvalidPath for the HTTP executor's path field.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: escapes the build environment", e.Path)
}

func (e *InvalidPathError) ToReport() *report.Report {
	return report.New(report.LevelError, "invalid path").
		WithContext("path", e.Path).
		WithSuggestion("use a relative path with no parent components")
}

// UnsupportedAlgorithmError is returned by the compression executor for any
// algorithm other than zstd.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported compression algorithm %q", e.Algorithm)
}

func (e *UnsupportedAlgorithmError) ToReport() *report.Report {
	return report.New(report.LevelError, "unsupported compression algorithm").
		WithContext("algorithm", e.Algorithm).
		WithSuggestion("use \"zstd\"")
}
