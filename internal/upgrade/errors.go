package upgrade

import (
	"errors"
	"fmt"
)

const (
	workingTreeDirtyMessageConstant      = "working tree is not clean"
	preconditionErrorTemplateConstant    = "precondition failed in %s: %v"
	actionErrorTemplateConstant          = "%s failed for %s: %v"
	versionControlMissingMessageConstant = "version control not configured"
	packageManagerMissingMessageConstant = "package manager not configured"
	reviewPlatformMissingMessageConstant = "review platform not configured"
	reporterMissingMessageConstant       = "reporter not configured"
)

var (
	// ErrWorkingTreeDirty indicates uncommitted changes were found before the run started.
	ErrWorkingTreeDirty = errors.New(workingTreeDirtyMessageConstant)
	// ErrVersionControlNotConfigured indicates Dependencies.VersionControl was nil.
	ErrVersionControlNotConfigured = errors.New(versionControlMissingMessageConstant)
	// ErrPackageManagerNotConfigured indicates Dependencies.PackageManager was nil.
	ErrPackageManagerNotConfigured = errors.New(packageManagerMissingMessageConstant)
	// ErrReviewPlatformNotConfigured indicates Dependencies.ReviewPlatform was nil.
	ErrReviewPlatformNotConfigured = errors.New(reviewPlatformMissingMessageConstant)
	// ErrReporterNotConfigured indicates Dependencies.Reporter was nil.
	ErrReporterNotConfigured = errors.New(reporterMissingMessageConstant)
)

// PreconditionError reports a repository state that prevents the run from starting.
type PreconditionError struct {
	RepositoryPath string
	Cause          error
}

// Error describes the failed precondition.
func (preconditionError PreconditionError) Error() string {
	return fmt.Sprintf(preconditionErrorTemplateConstant, preconditionError.RepositoryPath, preconditionError.Cause)
}

// Unwrap exposes the underlying cause.
func (preconditionError PreconditionError) Unwrap() error {
	return preconditionError.Cause
}

// ActionError attributes a collaborator failure to the action and package being processed.
type ActionError struct {
	Action  ActionName
	Package string
	Cause   error
}

// Error describes the failed action.
func (actionError ActionError) Error() string {
	return fmt.Sprintf(actionErrorTemplateConstant, actionError.Action, actionError.Package, actionError.Cause)
}

// Unwrap exposes the underlying cause.
func (actionError ActionError) Unwrap() error {
	return actionError.Cause
}
