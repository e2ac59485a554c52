package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ochairo/cauldron/internal/config"
	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
)

// PlanCmd prints what a build would do
type PlanCmd struct {
	Recipe  string `arg:"" help:"Recipe name (e.g. python3)."`
	Version string `arg:"" optional:"" help:"Version to plan, or 'latest'; the recipe default when omitted."`
	JSON    bool   `name:"json" help:"Print the plan as JSON."`
}

// PlanReport is the JSON form of a plan
type PlanReport struct {
	Component    string            `json:"component"`
	Version      string            `json:"version"`
	Platform     string            `json:"platform"`
	Category     string            `json:"category"`
	InstallRoot  string            `json:"install_root"`
	Source       string            `json:"source"`
	Checksum     string            `json:"checksum"`
	Dependencies []string          `json:"dependencies"`
	Env          map[string]string `json:"env"`
	Steps        []PlanStep        `json:"steps"`
}

// PlanStep is one step of a PlanReport
type PlanStep struct {
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Action     string `json:"action"`
	Detail     string `json:"detail"`
	WorkDir    string `json:"workdir,omitempty"`
	BestEffort bool   `json:"best_effort,omitempty"`
}

// Run executes the plan command
func (c *PlanCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	req, err := a.request(c.Recipe, c.Version)
	if err != nil {
		return err
	}

	prep, err := a.orchestrator.Prepare(ctx, req)
	if err != nil {
		return err
	}
	report := newPlanReport(prep)

	if c.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		out.printf("%s\n", data)
		return nil
	}

	out.printf("Component:    %s %s\n", report.Component, report.Version)
	out.printf("Platform:     %s (%s)\n", report.Platform, report.Category)
	out.printf("Install root: %s\n", report.InstallRoot)
	if prep.Profile.Noop {
		out.printf("\nNo profile matches this platform; nothing would be built.\n")
		return nil
	}
	out.printf("Source:       %s\n", report.Source)
	out.printf("Checksum:     %s\n", report.Checksum)
	if len(report.Dependencies) > 0 {
		out.printf("Dependencies: %s\n", strings.Join(report.Dependencies, ", "))
	}
	if keys := prep.Env.Keys(); len(keys) > 0 {
		out.printf("\nEnvironment:\n")
		for _, kv := range prep.Env.Environ() {
			out.printf("  %s\n", kv)
		}
	}
	out.printf("\nSteps:\n")
	for i, step := range report.Steps {
		suffix := ""
		if step.BestEffort {
			suffix = " (best effort)"
		}
		out.printf("  %d. [%s] %s%s\n", i+1, step.Stage, step.Detail, suffix)
	}
	return nil
}

func newPlanReport(prep *orchestrators.Preparation) PlanReport {
	plan := prep.Plan
	report := PlanReport{
		Component:    plan.Component(),
		Version:      plan.Version(),
		Platform:     plan.Platform().String(),
		Category:     string(plan.Category()),
		InstallRoot:  plan.InstallRoot(),
		Source:       prep.Source.URL,
		Checksum:     prep.Source.Digest().String(),
		Dependencies: plan.Dependencies(),
		Env:          prep.Env.Map(),
		Steps:        []PlanStep{},
	}
	for _, step := range plan.Steps() {
		report.Steps = append(report.Steps, PlanStep{
			Name:       step.Name,
			Stage:      string(step.Stage),
			Action:     string(step.Action),
			Detail:     step.String(),
			WorkDir:    step.WorkDir,
			BestEffort: step.BestEffort,
		})
	}
	return report
}
