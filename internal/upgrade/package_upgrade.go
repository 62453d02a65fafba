package upgrade

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	programNameConstant            = "poetry-up"
	branchNameTemplateConstant     = "%s/%s-%s"
	titleTemplateConstant          = "Bump %s from %s to %s"
	actionSkippedMessageConstant   = "Action not required"
	actionStartedMessageConstant   = "Running action"
	logFieldPackageConstant        = "package"
	logFieldBranchConstant         = "branch"
	logFieldActionConstant         = "action"
	logFieldOldVersionConstant     = "old_version"
	logFieldNewVersionConstant     = "new_version"
	logFieldOutcomeConstant        = "outcome"
	logFieldCompatibleConstant     = "compatible"
	logFieldOriginalBranchConstant = "original_branch"
)

// PackageOutcome records what happened to a single outdated package.
type PackageOutcome string

// Package outcomes.
const (
	OutcomeIgnored    PackageOutcome = PackageOutcome("ignored")
	OutcomePreviewed  PackageOutcome = PackageOutcome("previewed")
	OutcomeUpgraded   PackageOutcome = PackageOutcome("upgraded")
	OutcomeRolledBack PackageOutcome = PackageOutcome("rolled_back")
)

// PackageUpgrade carries the state of one package through the action sequence.
type PackageUpgrade struct {
	Package        poetry.Package
	Options        Options
	OriginalBranch string
	Branch         string
	Title          string
	Description    string

	versionControl VersionControl
	packageManager PackageManager
	reviewPlatform ReviewPlatform
	reporter       Reporter
	logger         *zap.Logger
}

// NewPackageUpgrade derives the branch name, title, and description for pkg.
func NewPackageUpgrade(pkg poetry.Package, options Options, originalBranch string, dependencies Dependencies) *PackageUpgrade {
	title := fmt.Sprintf(titleTemplateConstant, pkg.Name, pkg.OldVersion, pkg.NewVersion)
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackageUpgrade{
		Package:        pkg,
		Options:        options,
		OriginalBranch: originalBranch,
		Branch:         fmt.Sprintf(branchNameTemplateConstant, programNameConstant, pkg.Name, pkg.NewVersion),
		Title:          title,
		Description:    title,
		versionControl: dependencies.VersionControl,
		packageManager: dependencies.PackageManager,
		reviewPlatform: dependencies.ReviewPlatform,
		reporter:       dependencies.Reporter,
		logger:         logger,
	}
}

// CommitMessage joins the title and description the way the commit step records them.
func (upgrade *PackageUpgrade) CommitMessage() string {
	return formatCommitMessage(upgrade.Title, upgrade.Description)
}

// Eligible reports whether the package passes the allow-list and the compatibility filter.
func (upgrade *PackageUpgrade) Eligible() bool {
	if !upgrade.Options.includesPackage(upgrade.Package.Name) {
		return false
	}
	return upgrade.Options.Latest || upgrade.Package.Compatible
}

// Show prints the status line for the package.
func (upgrade *PackageUpgrade) Show() {
	upgrade.reporter.ReportPackage(upgrade.Package)
}

// Run executes the action sequence. The sequence ends early when the rollback step fires.
func (upgrade *PackageUpgrade) Run(executionContext context.Context) (PackageOutcome, error) {
	for _, action := range actionSequence {
		actionFields := []zap.Field{
			zap.String(logFieldPackageConstant, upgrade.Package.Name),
			zap.String(logFieldBranchConstant, upgrade.Branch),
			zap.String(logFieldActionConstant, string(action.Name())),
		}

		required, requiredError := action.Required(executionContext, upgrade)
		if requiredError != nil {
			return "", ActionError{Action: action.Name(), Package: upgrade.Package.Name, Cause: requiredError}
		}
		if !required {
			upgrade.logger.Debug(actionSkippedMessageConstant, actionFields...)
			continue
		}

		upgrade.logger.Debug(actionStartedMessageConstant, actionFields...)
		if executionError := action.Execute(executionContext, upgrade); executionError != nil {
			return "", ActionError{Action: action.Name(), Package: upgrade.Package.Name, Cause: executionError}
		}

		if action.Name() == ActionRollbackUpgrade {
			return OutcomeRolledBack, nil
		}
	}
	return OutcomeUpgraded, nil
}
