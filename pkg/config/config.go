// Package config loads declarative agent-process configuration from YAML,
// the way the teacher prefers data over code for anything that varies
// between deployments (grounded on
// integration_tests/framework.LoadScenarios: a flat, yaml-tagged struct
// read with os.ReadFile + yaml.Unmarshal). It covers the subset of
// process.Options that is meaningfully serializable — planner selection,
// verbosity, retry policy, and remote collaborator endpoints — leaving
// Go-only values (OutputChannel, Listeners, Blackboard, Callbacks, Logger)
// to be supplied by the caller after ApplyTo.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/embabel/agent-core-go/pkg/process"
	"github.com/embabel/agent-core-go/pkg/qos"
)

// PlannerType names process.GOAP or process.UTILITY in YAML.
type PlannerType string

const (
	PlannerGOAP    PlannerType = "goap"
	PlannerUtility PlannerType = "utility"
)

// RetryPolicy mirrors qos.Policy with YAML-friendly duration strings.
type RetryPolicy struct {
	MaxAttempts    int     `yaml:"maxAttempts"`
	InitialBackoff string  `yaml:"initialBackoff"`
	MaxBackoff     string  `yaml:"maxBackoff"`
	Multiplier     float64 `yaml:"multiplier"`
	Jitter         float64 `yaml:"jitter"`
	Timeout        string  `yaml:"timeout"`
}

// RemoteCollaborator names a remote action server a process may dispatch
// actions to, announced under Name in pkg/remoteaction's register/discover
// protocol.
type RemoteCollaborator struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseUrl"`
}

// File is the top-level shape of a process configuration document.
type File struct {
	// Planner selects the planning algorithm; defaults to "goap" if empty.
	Planner PlannerType `yaml:"planner"`
	// Verbosity controls how much detail the process reports via events.
	Verbosity int `yaml:"verbosity"`
	// ForUser identifies the end user on whose behalf the process runs.
	ForUser string `yaml:"forUser"`
	// Retry configures action execution's QoS retry policy. A zero value
	// leaves process.Options.RetryPolicy unset (no retries).
	Retry *RetryPolicy `yaml:"retry"`
	// RemoteCollaborators lists known remote action servers.
	RemoteCollaborators []RemoteCollaborator `yaml:"remoteCollaborators"`
}

// Load reads and parses a File from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- caller-provided configuration path
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return &f, nil
}

// ApplyTo copies the file's settings onto opts. PlannerType (GOAP when the
// file names no planner), Verbosity and ForUser are always overwritten, even
// when the file leaves them unspecified; RetryPolicy is set only when the
// file has a retry section. Callers typically start
// from a zero process.Options, call ApplyTo, then fill in the
// OutputChannel/Listeners/Blackboard/Callbacks/Logger fields this package
// cannot express in YAML.
func (f *File) ApplyTo(opts *process.Options) error {
	switch f.Planner {
	case "", PlannerGOAP:
		opts.PlannerType = process.GOAP
	case PlannerUtility:
		opts.PlannerType = process.UTILITY
	default:
		return fmt.Errorf("config: unknown planner %q", f.Planner)
	}
	opts.Verbosity = f.Verbosity
	opts.ForUser = f.ForUser

	if f.Retry != nil {
		policy, err := f.Retry.toPolicy()
		if err != nil {
			return err
		}
		opts.RetryPolicy = policy
	}
	return nil
}

func (r *RetryPolicy) toPolicy() (qos.Policy, error) {
	initial, err := parseDuration(r.InitialBackoff)
	if err != nil {
		return qos.Policy{}, fmt.Errorf("config: retry.initialBackoff: %w", err)
	}
	maxBackoff, err := parseDuration(r.MaxBackoff)
	if err != nil {
		return qos.Policy{}, fmt.Errorf("config: retry.maxBackoff: %w", err)
	}
	timeout, err := parseDuration(r.Timeout)
	if err != nil {
		return qos.Policy{}, fmt.Errorf("config: retry.timeout: %w", err)
	}
	return qos.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		Multiplier:     r.Multiplier,
		Jitter:         r.Jitter,
		Timeout:        timeout,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
