package upgrade

import (
	"context"

	"github.com/temirov/poetry-up/internal/githubcli"
	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
)

// VersionControl exposes the git operations an upgrade needs.
type VersionControl interface {
	GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	CheckCleanWorktree(executionContext context.Context, repositoryPath string, paths ...string) (bool, error)
	BranchExists(executionContext context.Context, repositoryPath string, branch string) (bool, error)
	SwitchBranch(executionContext context.Context, repositoryPath string, options gitrepo.SwitchOptions) error
	ResolveBranch(executionContext context.Context, repositoryPath string, branch string) (string, error)
	DeleteBranch(executionContext context.Context, repositoryPath string, branch string) error
	StageFiles(executionContext context.Context, repositoryPath string, paths ...string) error
	Commit(executionContext context.Context, repositoryPath string, message string) error
	PushBranch(executionContext context.Context, repositoryPath string, remote string, branch string, mergeRequest *gitrepo.MergeRequest) error
}

// PackageManager lists and updates project dependencies.
type PackageManager interface {
	ListOutdated(executionContext context.Context, projectPath string) ([]poetry.Package, error)
	Update(executionContext context.Context, projectPath string, packageName string, lockOnly bool) error
	UpdateConstraint(executionContext context.Context, projectPath string, pkg poetry.Package) error
}

// ReviewPlatform manages pull requests on the hosting service.
type ReviewPlatform interface {
	PullRequestExists(executionContext context.Context, repositoryPath string, branch string) (bool, error)
	CreatePullRequest(executionContext context.Context, repositoryPath string, options githubcli.PullRequestCreateOptions) error
}

// Reporter prints the user-facing lines of a run.
type Reporter interface {
	ReportPackage(pkg poetry.Package)
	ReportSkipped(pkg poetry.Package)
}
