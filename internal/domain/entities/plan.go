package entities

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// VersionSourceDescriptor is one version's resolved fetch metadata
type VersionSourceDescriptor struct {
	Component    string
	Version      string
	URL          string
	Checksum     string
	Algorithm    digest.Algorithm
	ExtractPath  string // relative to the extraction directory
	SignatureURL string
	KeysURL      string
}

// Digest returns the checksum in "algorithm:hex" form
func (d *VersionSourceDescriptor) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(d.Algorithm, d.Checksum)
}

// ArchiveName is the file name the source is stored under once fetched
func (d *VersionSourceDescriptor) ArchiveName() string {
	name := d.URL
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	if j := strings.IndexAny(name, "?#"); j >= 0 {
		name = name[:j]
	}
	if name == "" {
		name = d.Component + "-" + d.Version
	}
	return name
}

// Stage is a state of a single build run
type Stage string

// Stages in execution order. Failed is terminal and reachable from any
// non-terminal stage.
const (
	StagePlanned     Stage = "planned"
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageConfiguring Stage = "configuring"
	StageCompiling   Stage = "compiling"
	StageInstalling  Stage = "installing"
	StageCleaningUp  Stage = "cleaning-up"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

var stageOrder = []Stage{
	StagePlanned,
	StageFetching,
	StageExtracting,
	StageConfiguring,
	StageCompiling,
	StageInstalling,
	StageCleaningUp,
	StageDone,
}

// Ordinal returns the position of s in the run order, or -1 for Failed
func (s Stage) Ordinal() int {
	return slices.Index(stageOrder, s)
}

// StepAction tells the executor how to carry out a step
type StepAction string

const (
	ActionFetch   StepAction = "fetch"
	ActionExtract StepAction = "extract"
	ActionCommand StepAction = "command"
	ActionRemove  StepAction = "remove"
)

// RetryPolicy bounds re-execution of a single step. The zero value means
// the step runs once.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// MaxAttempts is the total number of runs allowed, at least one
func (p RetryPolicy) MaxAttempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// BuildStep is one executable unit of a plan
type BuildStep struct {
	Name       string
	Stage      Stage
	Action     StepAction
	Command    []string
	Env        Environment
	WorkDir    string
	Retry      RetryPolicy
	BestEffort bool

	Source   *VersionSourceDescriptor // fetch
	Archive  string                   // fetch destination / extract input
	Patterns []string                 // remove, relative to the installation root
}

// String renders the step for logs and dry runs
func (s BuildStep) String() string {
	switch s.Action {
	case ActionFetch:
		return fmt.Sprintf("fetch %s -> %s", s.Source.URL, s.Archive)
	case ActionExtract:
		return fmt.Sprintf("extract %s -> %s", s.Archive, s.WorkDir)
	case ActionRemove:
		return "remove " + strings.Join(s.Patterns, " ")
	default:
		return strings.Join(s.Command, " ")
	}
}

// BuildPlan is an ordered, immutable sequence of steps for one run
type BuildPlan struct {
	component    string
	version      string
	platform     PlatformDescriptor
	category     PlatformCategory
	installRoot  string
	dependencies []string
	steps        []BuildStep
}

// PlanHeader carries the identifying metadata of a plan
type PlanHeader struct {
	Component    string
	Version      string
	Platform     PlatformDescriptor
	Category     PlatformCategory
	InstallRoot  string
	Dependencies []string
}

// NewBuildPlan copies steps into a new plan. Steps must be in non-decreasing
// stage order and may not use the Planned, Done or Failed stages.
func NewBuildPlan(header PlanHeader, steps []BuildStep) (*BuildPlan, error) {
	last := StagePlanned.Ordinal()
	for i, step := range steps {
		ord := step.Stage.Ordinal()
		if ord <= StagePlanned.Ordinal() || ord >= StageDone.Ordinal() {
			return nil, fmt.Errorf("step %d (%s): stage %q cannot hold steps", i, step.Name, step.Stage)
		}
		if ord < last {
			return nil, fmt.Errorf("step %d (%s): stage %s after %s", i, step.Name, step.Stage, stageOrder[last])
		}
		last = ord
	}

	plan := &BuildPlan{
		component:    header.Component,
		version:      header.Version,
		platform:     header.Platform,
		category:     header.Category,
		installRoot:  header.InstallRoot,
		dependencies: slices.Clone(header.Dependencies),
		steps:        make([]BuildStep, len(steps)),
	}
	for i, step := range steps {
		plan.steps[i] = cloneStep(step)
	}
	return plan, nil
}

func cloneStep(s BuildStep) BuildStep {
	s.Command = slices.Clone(s.Command)
	s.Patterns = slices.Clone(s.Patterns)
	if s.Source != nil {
		src := *s.Source
		s.Source = &src
	}
	return s
}

// Component returns the name of the component the plan builds
func (p *BuildPlan) Component() string { return p.component }

// Version returns the resolved version being built
func (p *BuildPlan) Version() string { return p.version }

// Platform returns the target platform the plan was made for
func (p *BuildPlan) Platform() PlatformDescriptor { return p.platform }

// Category returns the category of the selected platform profile
func (p *BuildPlan) Category() PlatformCategory { return p.category }

// InstallRoot returns the absolute installation root
func (p *BuildPlan) InstallRoot() string { return p.installRoot }

// Len returns the number of steps
func (p *BuildPlan) Len() int { return len(p.steps) }

// Dependencies returns the system dependencies the selected profile requires
func (p *BuildPlan) Dependencies() []string {
	return slices.Clone(p.dependencies)
}

// Steps returns a copy of the planned steps
func (p *BuildPlan) Steps() []BuildStep {
	out := make([]BuildStep, len(p.steps))
	for i, step := range p.steps {
		out[i] = cloneStep(step)
	}
	return out
}

// Environment is an immutable, key-sorted set of environment variables
type Environment struct {
	keys   []string
	values map[string]string
}

// NewEnvironment builds an Environment from m
func NewEnvironment(m map[string]string) Environment {
	return Environment{
		keys:   slices.Sorted(maps.Keys(m)),
		values: maps.Clone(m),
	}
}

// Get returns the value for key
func (e Environment) Get(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Keys returns the variable names in sorted order
func (e Environment) Keys() []string {
	return slices.Clone(e.keys)
}

// Len returns the number of variables
func (e Environment) Len() int {
	return len(e.keys)
}

// Map returns a copy of the variables
func (e Environment) Map() map[string]string {
	return maps.Clone(e.values)
}

// Environ formats the variables as sorted KEY=VALUE pairs
func (e Environment) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}
