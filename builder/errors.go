package builder

import (
	"fmt"

	"github.com/CelestialCrafter/xuehua/planner"
	"github.com/CelestialCrafter/xuehua/report"
)

// UnregisteredExecutorError is returned by Build when a DispatchRequest
// names an executor no registered factory produces.
type UnregisteredExecutorError struct {
	Name planner.ExecutorName
}

func (e *UnregisteredExecutorError) Error() string {
	return fmt.Sprintf("no registered executor named %s", e.Name)
}

func (e *UnregisteredExecutorError) ToReport() *report.Report {
	return report.New(report.LevelError, "unregistered executor").
		WithContext("executor", e.Name.String()).
		WithSuggestion("register a factory producing this executor before building")
}

// EnvironmentExistsError is returned by Build when the scratch environment
// directory for a BuildId is already present -- BuildIds must be unique
// per spec.md §5's shared-resource policy.
type EnvironmentExistsError struct {
	Path string
}

func (e *EnvironmentExistsError) Error() string {
	return fmt.Sprintf("build environment %s already exists", e.Path)
}

func (e *EnvironmentExistsError) ToReport() *report.Report {
	return report.New(report.LevelError, "build environment already exists").
		WithContext("path", e.Path).
		WithSuggestion("choose a fresh, unused build id")
}
