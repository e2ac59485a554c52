package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// BuildExecutor runs the steps of a BuildPlan in order against the
// external collaborators. One Execute call owns the installation root for
// its whole duration.
type BuildExecutor struct {
	fetcher    gateways.SourceFetcher
	extractor  gateways.Extractor
	runner     gateways.CommandRunner
	remover    gateways.ArtifactRemover
	signatures gateways.SignatureVerifier
	logger     interfaces.Logger
	config     BuildExecutorConfig
}

// BuildExecutorConfig holds executor settings
type BuildExecutorConfig struct {
	// VerifySignatures enables detached signature checks for sources that declare one
	VerifySignatures bool
	// CommandTimeout bounds each external command; zero uses the runner default
	CommandTimeout time.Duration
}

// NewBuildExecutor creates a new executor. signatures may be nil when
// signature verification is disabled.
func NewBuildExecutor(
	fetcher gateways.SourceFetcher,
	extractor gateways.Extractor,
	runner gateways.CommandRunner,
	remover gateways.ArtifactRemover,
	signatures gateways.SignatureVerifier,
	logger interfaces.Logger,
	config BuildExecutorConfig,
) *BuildExecutor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &BuildExecutor{
		fetcher:    fetcher,
		extractor:  extractor,
		runner:     runner,
		remover:    remover,
		signatures: signatures,
		logger:     logger,
		config:     config,
	}
}

// Execute runs every step of plan. The first failing step that is not
// best-effort stops the run: the result is Failed at that step's stage and
// no later step runs. Best-effort failures become warnings, except when ctx
// is done, which fails the run at whatever step it reached.
func (e *BuildExecutor) Execute(ctx context.Context, plan *entities.BuildPlan) *entities.Result {
	return e.ExecuteThrough(ctx, plan, entities.StageCleaningUp)
}

// ExecuteThrough runs the steps of plan up to and including stage last.
// The result reaches Done only when every remaining step was skipped
// because of last, never because of a failure.
func (e *BuildExecutor) ExecuteThrough(ctx context.Context, plan *entities.BuildPlan, last entities.Stage) *entities.Result {
	start := time.Now()
	result := &entities.Result{
		Component: plan.Component(),
		Version:   plan.Version(),
		Platform:  plan.Platform(),
		State:     entities.StagePlanned,
	}

	logger := e.logger
	logger.Info("starting build",
		interfaces.F("component", plan.Component()),
		interfaces.F("version", plan.Version()),
		interfaces.F("platform", plan.Platform().String()),
		interfaces.F("steps", plan.Len()))

	for _, step := range plan.Steps() {
		if step.Stage.Ordinal() > last.Ordinal() {
			break
		}
		if result.State != step.Stage {
			logger.Info("entering stage", interfaces.F("stage", string(step.Stage)))
		}
		result.State = step.Stage

		var (
			stepResult entities.StepResult
			stepErr    *entities.StepError
		)
		if err := ctx.Err(); err != nil {
			stepResult = entities.StepResult{Name: step.Name, Stage: step.Stage, ExitCode: -1, Err: err}
			stepErr = &entities.StepError{Stage: step.Stage, Step: step.Name, ExitCode: -1, Err: err}
		} else {
			stepResult, stepErr = e.runStep(ctx, plan, step)
		}
		result.Steps = append(result.Steps, stepResult)

		if stepErr == nil {
			continue
		}
		// cancellation abandons the plan even during best-effort steps
		if step.BestEffort && ctx.Err() == nil {
			logger.Warn("best-effort step failed",
				interfaces.F("step", step.Name), interfaces.F("error", stepErr))
			result.Warnings = append(result.Warnings, stepErr)
			continue
		}

		stepErr.BestEffort = false
		logger.Error("build step failed",
			interfaces.F("stage", string(step.Stage)),
			interfaces.F("step", step.Name),
			interfaces.F("exit_code", stepErr.ExitCode),
			interfaces.F("error", stepErr.Err))

		result.State = entities.StageFailed
		result.FailedAt = step.Stage
		result.FailedStep = step.Name
		result.ExitCode = stepErr.ExitCode
		result.Output = stepErr.Output
		result.Err = stepErr
		result.Duration = time.Since(start)
		return result
	}

	result.State = entities.StageDone
	result.Duration = time.Since(start)
	logger.Info("build finished",
		interfaces.F("component", plan.Component()),
		interfaces.F("version", plan.Version()),
		interfaces.F("warnings", len(result.Warnings)),
		interfaces.F("duration", result.Duration))
	return result
}

func (e *BuildExecutor) runStep(ctx context.Context, plan *entities.BuildPlan, step entities.BuildStep) (entities.StepResult, *entities.StepError) {
	start := time.Now()
	sr := entities.StepResult{Name: step.Name, Stage: step.Stage, Attempts: 1}
	var (
		err      error
		exitCode int
		output   string
	)

	switch step.Action {
	case entities.ActionFetch:
		sr.Attempts, err = e.fetch(ctx, step)

	case entities.ActionExtract:
		err = e.extractor.Extract(ctx, step.Archive, step.WorkDir)

	case entities.ActionCommand:
		res := e.runner.Run(ctx, gateways.CommandSpec{
			Args:       step.Command,
			Env:        step.Env.Environ(),
			WorkingDir: step.WorkDir,
			Timeout:    e.config.CommandTimeout,
			Retry:      step.Retry,
		})
		sr.Attempts = max(res.Attempts, 1)
		exitCode = res.ExitCode
		output = combinedOutput(res)
		if !res.Success {
			err = res.Error
			if err == nil {
				err = fmt.Errorf("%s exited with status %d", step.Command[0], res.ExitCode)
			}
		}

	case entities.ActionRemove:
		var removed []string
		removed, err = e.remover.Remove(ctx, plan.InstallRoot(), step.Patterns)
		if len(removed) > 0 {
			e.logger.Info("removed artifacts", interfaces.F("paths", removed))
		}

	default:
		err = fmt.Errorf("unknown step action %q", step.Action)
	}

	sr.Duration = time.Since(start)
	sr.ExitCode = exitCode
	sr.Err = err
	if err == nil {
		return sr, nil
	}
	if exitCode == 0 {
		exitCode = -1
		sr.ExitCode = -1
	}
	return sr, &entities.StepError{
		Stage:      step.Stage,
		Step:       step.Name,
		ExitCode:   exitCode,
		Output:     output,
		BestEffort: step.BestEffort,
		Err:        err,
	}
}

// fetch downloads and verifies the source, retrying transient failures per
// the step's policy. It returns the number of attempts made.
func (e *BuildExecutor) fetch(ctx context.Context, step entities.BuildStep) (int, error) {
	if step.Source == nil {
		return 0, errors.New("fetch step has no source")
	}

	maxAttempts := step.Retry.MaxAttempts()
	attempt := 0
	for {
		attempt++
		_, err := e.fetcher.Fetch(ctx, step.Source, step.Archive)
		if err == nil {
			break
		}
		if attempt >= maxAttempts || !entities.Retryable(err) {
			return attempt, err
		}

		e.logger.Warn("fetch failed, retrying",
			interfaces.F("url", step.Source.URL),
			interfaces.F("attempt", attempt),
			interfaces.F("error", err))

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(step.Retry.Delay):
		}
	}

	if err := e.verifySignature(ctx, step); err != nil {
		// an archive that fails its signature must not be reused from cache
		_ = os.Remove(step.Archive)
		return attempt, err
	}
	return attempt, nil
}

func (e *BuildExecutor) verifySignature(ctx context.Context, step entities.BuildStep) error {
	src := step.Source
	if !e.config.VerifySignatures || src.SignatureURL == "" {
		return nil
	}
	if e.signatures == nil {
		return fmt.Errorf("%w: no signature verifier configured", entities.ErrSignatureInvalid)
	}
	if src.KeysURL != "" {
		if err := e.signatures.ImportKeysFromURL(ctx, src.KeysURL); err != nil {
			return fmt.Errorf("%w: %w", entities.ErrSignatureInvalid, err)
		}
	}
	if err := e.signatures.VerifySignature(ctx, step.Archive, src.SignatureURL); err != nil {
		return err
	}
	e.logger.Info("signature verified", interfaces.F("archive", step.Archive))
	return nil
}

func combinedOutput(res *gateways.CommandResult) string {
	switch {
	case res.Stdout == "":
		return res.Stderr
	case res.Stderr == "":
		return res.Stdout
	}
	return strings.TrimRight(res.Stdout, "\n") + "\n" + res.Stderr
}
