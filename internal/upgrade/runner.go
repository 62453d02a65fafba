package upgrade

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	worktreeCheckErrorTemplateConstant = "unable to check working tree: %w"
	currentBranchErrorTemplateConstant = "unable to determine current branch: %w"
	listOutdatedErrorTemplateConstant  = "unable to list outdated packages: %w"
	restoreBranchErrorTemplateConstant = "unable to restore branch %s: %w"
	rollbackDisabledMessageConstant    = "Rollback detection disabled because changes are not committed"
	packageIgnoredMessageConstant      = "Package not eligible"
	packagePreviewedMessageConstant    = "Dry run, package left unchanged"
	packageProcessedMessageConstant    = "Package processed"
	runStartedMessageConstant          = "Upgrade run started"
	runCompletedMessageConstant        = "Upgrade run completed"
	logFieldRepositoryPathConstant     = "repository_path"
	logFieldOutdatedCountConstant      = "outdated"
	logFieldUpgradedCountConstant      = "upgraded"
	logFieldRolledBackCountConstant    = "rolled_back"
	logFieldPreviewedCountConstant     = "previewed"
	logFieldIgnoredCountConstant       = "ignored"
)

// Dependencies enumerates collaborators required by Runner.
type Dependencies struct {
	VersionControl VersionControl
	PackageManager PackageManager
	ReviewPlatform ReviewPlatform
	Reporter       Reporter
	Logger         *zap.Logger
}

// PackageResult pairs a package with its outcome.
type PackageResult struct {
	Package poetry.Package
	Outcome PackageOutcome
}

// Summary lists the outdated packages of a run in the order they were reported.
type Summary struct {
	Results []PackageResult
}

// Count returns the number of packages with the given outcome.
func (summary Summary) Count(outcome PackageOutcome) int {
	count := 0
	for _, result := range summary.Results {
		if result.Outcome == outcome {
			count++
		}
	}
	return count
}

// Runner drives an upgrade run over every outdated package.
type Runner struct {
	dependencies Dependencies
}

// NewRunner validates dependencies and constructs a Runner.
func NewRunner(dependencies Dependencies) (*Runner, error) {
	if dependencies.VersionControl == nil {
		return nil, ErrVersionControlNotConfigured
	}
	if dependencies.PackageManager == nil {
		return nil, ErrPackageManagerNotConfigured
	}
	if dependencies.ReviewPlatform == nil {
		return nil, ErrReviewPlatformNotConfigured
	}
	if dependencies.Reporter == nil {
		return nil, ErrReporterNotConfigured
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	return &Runner{dependencies: dependencies}, nil
}

// Run upgrades every eligible outdated package and returns to the starting branch.
// A collaborator failure aborts the run immediately.
func (runner *Runner) Run(executionContext context.Context, options Options) (Summary, error) {
	if validationError := options.Validate(); validationError != nil {
		return Summary{}, validationError
	}

	logger := runner.dependencies.Logger
	versionControl := runner.dependencies.VersionControl
	repositoryPath := options.RepositoryPath

	clean, cleanError := versionControl.CheckCleanWorktree(executionContext, repositoryPath)
	if cleanError != nil {
		return Summary{}, fmt.Errorf(worktreeCheckErrorTemplateConstant, cleanError)
	}
	if !clean {
		return Summary{}, PreconditionError{RepositoryPath: repositoryPath, Cause: ErrWorkingTreeDirty}
	}

	if options.branchSwitchRequested() && !options.Commit {
		logger.Warn(rollbackDisabledMessageConstant)
	}

	originalBranch, branchError := versionControl.GetCurrentBranch(executionContext, repositoryPath)
	if branchError != nil {
		return Summary{}, fmt.Errorf(currentBranchErrorTemplateConstant, branchError)
	}

	outdatedPackages, listError := runner.dependencies.PackageManager.ListOutdated(executionContext, repositoryPath)
	if listError != nil {
		return Summary{}, fmt.Errorf(listOutdatedErrorTemplateConstant, listError)
	}

	logger.Info(runStartedMessageConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldOriginalBranchConstant, originalBranch),
		zap.Int(logFieldOutdatedCountConstant, len(outdatedPackages)),
	)

	summary := Summary{Results: make([]PackageResult, 0, len(outdatedPackages))}
	for _, outdatedPackage := range outdatedPackages {
		outcome, upgradeError := runner.processPackage(executionContext, outdatedPackage, options, originalBranch)
		if upgradeError != nil {
			return summary, upgradeError
		}
		summary.Results = append(summary.Results, PackageResult{Package: outdatedPackage, Outcome: outcome})
	}

	currentBranch, currentBranchError := versionControl.GetCurrentBranch(executionContext, repositoryPath)
	if currentBranchError != nil {
		return summary, fmt.Errorf(currentBranchErrorTemplateConstant, currentBranchError)
	}
	if currentBranch != originalBranch {
		if switchError := versionControl.SwitchBranch(executionContext, repositoryPath, gitrepo.SwitchOptions{Branch: originalBranch}); switchError != nil {
			return summary, fmt.Errorf(restoreBranchErrorTemplateConstant, originalBranch, switchError)
		}
	}

	logger.Info(runCompletedMessageConstant,
		zap.Int(logFieldUpgradedCountConstant, summary.Count(OutcomeUpgraded)),
		zap.Int(logFieldRolledBackCountConstant, summary.Count(OutcomeRolledBack)),
		zap.Int(logFieldPreviewedCountConstant, summary.Count(OutcomePreviewed)),
		zap.Int(logFieldIgnoredCountConstant, summary.Count(OutcomeIgnored)),
	)
	return summary, nil
}

func (runner *Runner) processPackage(executionContext context.Context, outdatedPackage poetry.Package, options Options, originalBranch string) (PackageOutcome, error) {
	packageUpgrade := NewPackageUpgrade(outdatedPackage, options, originalBranch, runner.dependencies)
	packageFields := []zap.Field{
		zap.String(logFieldPackageConstant, outdatedPackage.Name),
		zap.String(logFieldOldVersionConstant, outdatedPackage.OldVersion),
		zap.String(logFieldNewVersionConstant, outdatedPackage.NewVersion),
		zap.Bool(logFieldCompatibleConstant, outdatedPackage.Compatible),
	}

	if !packageUpgrade.Eligible() {
		runner.dependencies.Logger.Debug(packageIgnoredMessageConstant, packageFields...)
		return OutcomeIgnored, nil
	}

	packageUpgrade.Show()
	if options.DryRun {
		runner.dependencies.Logger.Debug(packagePreviewedMessageConstant, packageFields...)
		return OutcomePreviewed, nil
	}

	outcome, runError := packageUpgrade.Run(executionContext)
	if runError != nil {
		return "", runError
	}
	runner.dependencies.Logger.Info(packageProcessedMessageConstant, append(packageFields,
		zap.String(logFieldBranchConstant, packageUpgrade.Branch),
		zap.String(logFieldOutcomeConstant, string(outcome)),
	)...)
	return outcome, nil
}
