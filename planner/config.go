package planner

import "google.golang.org/protobuf/types/known/structpb"

// Config is a front-end variant recipe: a current value plus the function
// that turns a value into a concrete Package. ConfigManager tracks one of
// these per registered node so that later callers can derive parametrized
// variants without re-deriving the whole recipe from scratch.
type Config struct {
	Current *structpb.Value
	Apply   func(*structpb.Value) *Package
}

// ConfigManager is the front-end helper described in spec.md §3: it sits on
// top of an Unfrozen planner and turns register+clone boilerplate into a
// single configure() call, the same convenience internal/build/build.go's
// (*Ctx).Clone gives distri's own per-package build contexts before a
// recursive sub-build mutates one field and re-enters the builder.
type ConfigManager struct {
	planner *Unfrozen
	configs map[string]Config
}

// NewConfigManager returns a ConfigManager layered over p.
func NewConfigManager(p *Unfrozen) *ConfigManager {
	return &ConfigManager{
		planner: p,
		configs: make(map[string]Config),
	}
}

// Track records cfg as name's current config, registering its initial
// Package with the underlying planner.
func (m *ConfigManager) Track(name PackageName, cfg Config) (*Node, error) {
	pkg := cfg.Apply(cfg.Current)
	pkg.Name = name
	node, err := m.planner.Register(pkg)
	if err != nil {
		return nil, err
	}
	m.configs[name.Key()] = cfg
	return node, nil
}

// Configure clones source's tracked config, transforms its value with
// modify, re-applies it, and registers the result under dest -- spec.md
// §3's "clones source's config, transforms its value, re-applies, and
// registers under dest_name". The derived node is itself tracked under
// dest, so it can serve as a source for further variants.
func (m *ConfigManager) Configure(source, dest PackageName, modify func(*structpb.Value) *structpb.Value) (*Node, error) {
	cfg, ok := m.configs[source.Key()]
	if !ok {
		return nil, &UntrackedConfigError{Name: source}
	}

	nextValue := modify(cfg.Current)
	pkg := cfg.Apply(nextValue)
	pkg.Name = dest

	node, err := m.planner.Register(pkg)
	if err != nil {
		return nil, err
	}

	m.configs[dest.Key()] = Config{Current: nextValue, Apply: cfg.Apply}
	return node, nil
}
