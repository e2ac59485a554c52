package entities

import "time"

// StepResult records the outcome of one executed step
type StepResult struct {
	Name     string
	Stage    Stage
	Attempts int
	ExitCode int
	Duration time.Duration
	Err      error
}

// Result is the structured outcome of executing a BuildPlan
type Result struct {
	Component  string
	Version    string
	Platform   PlatformDescriptor
	State      Stage // StageDone or StageFailed once execution returns
	FailedAt   Stage // stage that was running when the run failed
	FailedStep string
	ExitCode   int
	Output     string
	Steps      []StepResult
	Warnings   []error
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the plan ran to completion
func (r *Result) Succeeded() bool {
	return r.State == StageDone && r.Err == nil
}
