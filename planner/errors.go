package planner

import (
	"fmt"

	"github.com/CelestialCrafter/xuehua/report"
)

// ConflictError is returned by register when a package of identical name
// already exists.
type ConflictError struct {
	Name PackageName
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("package %s already registered", e.Name)
}

func (e *ConflictError) ToReport() *report.Report {
	return report.New(report.LevelError, "package name conflict").
		WithContext("package", e.Name.String()).
		WithSuggestion("choose a distinct name, or register under a different namespace")
}

// UnregisteredDependencyError is returned at freeze time when a Dependency
// names a package that was never registered.
type UnregisteredDependencyError struct {
	From PackageName
	Dep  PackageName
}

func (e *UnregisteredDependencyError) Error() string {
	return fmt.Sprintf("%s depends on unregistered package %s", e.From, e.Dep)
}

func (e *UnregisteredDependencyError) ToReport() *report.Report {
	return report.New(report.LevelError, "unregistered dependency").
		WithContext("package", e.From.String()).
		WithContext("dependency", e.Dep.String()).
		WithSuggestion("register the dependency before freezing, or remove the reference")
}

// UntrackedConfigError is returned by (*ConfigManager).Configure when asked
// to derive a variant from a package that was never tracked.
type UntrackedConfigError struct {
	Name PackageName
}

func (e *UntrackedConfigError) Error() string {
	return fmt.Sprintf("package %s has no tracked config", e.Name)
}

func (e *UntrackedConfigError) ToReport() *report.Report {
	return report.New(report.LevelError, "untracked config").
		WithContext("package", e.Name.String()).
		WithSuggestion("call Track before deriving variants with Configure")
}

// CycleError is returned at freeze time when adding an edge would create a
// cycle in the dependency graph.
type CycleError struct {
	From PackageName
	To   PackageName
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s -> %s", e.From, e.To)
}

func (e *CycleError) ToReport() *report.Report {
	return report.New(report.LevelError, "dependency cycle detected").
		WithContext("from", e.From.String()).
		WithContext("to", e.To.String()).
		WithSuggestion("break the cycle by removing or restructuring one of these dependencies")
}
