package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/poetry-up/internal/githubcli"
	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	fakeInitialCommitConstant       = "commit-0"
	fakeCommitTemplateConstant      = "commit-%d"
	fakeUnknownBranchTemplate       = "unknown branch %s"
	fakeBranchExistsTemplate        = "branch %s already exists"
	fakeDeleteCurrentTemplate       = "cannot delete checked out branch %s"
	fakeNothingToCommitMessage      = "nothing to commit"
	fakeOperationSwitchConstant     = "switch"
	fakeOperationDeleteConstant     = "delete"
	fakeOperationStageConstant      = "stage"
	fakeOperationCommitConstant     = "commit"
	fakeOperationPushConstant       = "push"
	fakeOperationUpdateConstant     = "update"
	fakeOperationConstraintConstant = "constraint"
	fakeOperationCreatePRConstant   = "create_pull_request"
)

type fakePush struct {
	Remote       string
	Branch       string
	MergeRequest *gitrepo.MergeRequest
}

type fakeUpdate struct {
	Name     string
	LockOnly bool
}

// fakeRepository simulates a git checkout managed by Poetry and hosted on GitHub.
type fakeRepository struct {
	branches             map[string]string
	currentBranch        string
	dirty                bool
	pendingChanges       bool
	updateChangesFiles   bool
	commitCounter        int
	outdated             []poetry.Package
	existingPullRequests map[string]bool
	failures             map[string]error

	mutations        []string
	commitMessages   []string
	pushes           []fakePush
	updates          []fakeUpdate
	constraints      []string
	pullRequests     []githubcli.PullRequestCreateOptions
	reportedPackages []string
	skippedPackages  []string
}

func newFakeRepository(outdated ...poetry.Package) *fakeRepository {
	return &fakeRepository{
		branches:             map[string]string{defaultUpstreamBranchConstant: fakeInitialCommitConstant},
		currentBranch:        defaultUpstreamBranchConstant,
		updateChangesFiles:   true,
		outdated:             outdated,
		existingPullRequests: map[string]bool{},
		failures:             map[string]error{},
	}
}

func (repository *fakeRepository) dependencies() Dependencies {
	return Dependencies{
		VersionControl: repository,
		PackageManager: repository,
		ReviewPlatform: repository,
		Reporter:       repository,
	}
}

func (repository *fakeRepository) record(operation string) error {
	repository.mutations = append(repository.mutations, operation)
	return repository.failures[operation]
}

func (repository *fakeRepository) GetCurrentBranch(context.Context, string) (string, error) {
	return repository.currentBranch, nil
}

func (repository *fakeRepository) CheckCleanWorktree(_ context.Context, _ string, paths ...string) (bool, error) {
	if len(paths) == 0 {
		return !repository.dirty && !repository.pendingChanges, nil
	}
	return !repository.pendingChanges, nil
}

func (repository *fakeRepository) BranchExists(_ context.Context, _ string, branch string) (bool, error) {
	_, exists := repository.branches[branch]
	return exists, nil
}

func (repository *fakeRepository) SwitchBranch(_ context.Context, _ string, options gitrepo.SwitchOptions) error {
	if failure := repository.record(fakeOperationSwitchConstant); failure != nil {
		return failure
	}
	_, exists := repository.branches[options.Branch]
	if options.Create {
		if exists {
			return fmt.Errorf(fakeBranchExistsTemplate, options.Branch)
		}
		startCommit, startExists := repository.branches[options.StartPoint]
		if !startExists {
			return fmt.Errorf(fakeUnknownBranchTemplate, options.StartPoint)
		}
		repository.branches[options.Branch] = startCommit
	} else if !exists {
		return fmt.Errorf(fakeUnknownBranchTemplate, options.Branch)
	}
	repository.currentBranch = options.Branch
	return nil
}

func (repository *fakeRepository) ResolveBranch(_ context.Context, _ string, branch string) (string, error) {
	commit, exists := repository.branches[branch]
	if !exists {
		return "", fmt.Errorf(fakeUnknownBranchTemplate, branch)
	}
	return commit, nil
}

func (repository *fakeRepository) DeleteBranch(_ context.Context, _ string, branch string) error {
	if failure := repository.record(fakeOperationDeleteConstant); failure != nil {
		return failure
	}
	if branch == repository.currentBranch {
		return fmt.Errorf(fakeDeleteCurrentTemplate, branch)
	}
	if _, exists := repository.branches[branch]; !exists {
		return fmt.Errorf(fakeUnknownBranchTemplate, branch)
	}
	delete(repository.branches, branch)
	return nil
}

func (repository *fakeRepository) StageFiles(context.Context, string, ...string) error {
	return repository.record(fakeOperationStageConstant)
}

func (repository *fakeRepository) Commit(_ context.Context, _ string, message string) error {
	if failure := repository.record(fakeOperationCommitConstant); failure != nil {
		return failure
	}
	if !repository.pendingChanges {
		return errors.New(fakeNothingToCommitMessage)
	}
	repository.commitCounter++
	repository.branches[repository.currentBranch] = fmt.Sprintf(fakeCommitTemplateConstant, repository.commitCounter)
	repository.pendingChanges = false
	repository.commitMessages = append(repository.commitMessages, message)
	return nil
}

func (repository *fakeRepository) PushBranch(_ context.Context, _ string, remote string, branch string, mergeRequest *gitrepo.MergeRequest) error {
	if failure := repository.record(fakeOperationPushConstant); failure != nil {
		return failure
	}
	repository.pushes = append(repository.pushes, fakePush{Remote: remote, Branch: branch, MergeRequest: mergeRequest})
	return nil
}

func (repository *fakeRepository) ListOutdated(context.Context, string) ([]poetry.Package, error) {
	return repository.outdated, nil
}

func (repository *fakeRepository) Update(_ context.Context, _ string, packageName string, lockOnly bool) error {
	if failure := repository.record(fakeOperationUpdateConstant); failure != nil {
		return failure
	}
	repository.updates = append(repository.updates, fakeUpdate{Name: packageName, LockOnly: lockOnly})
	if repository.updateChangesFiles {
		repository.pendingChanges = true
	}
	return nil
}

func (repository *fakeRepository) UpdateConstraint(_ context.Context, _ string, pkg poetry.Package) error {
	if failure := repository.record(fakeOperationConstraintConstant); failure != nil {
		return failure
	}
	repository.constraints = append(repository.constraints, pkg.Name)
	return nil
}

func (repository *fakeRepository) PullRequestExists(_ context.Context, _ string, branch string) (bool, error) {
	return repository.existingPullRequests[branch], nil
}

func (repository *fakeRepository) CreatePullRequest(_ context.Context, _ string, options githubcli.PullRequestCreateOptions) error {
	if failure := repository.record(fakeOperationCreatePRConstant); failure != nil {
		return failure
	}
	repository.pullRequests = append(repository.pullRequests, options)
	repository.existingPullRequests[options.HeadBranch] = true
	return nil
}

func (repository *fakeRepository) ReportPackage(pkg poetry.Package) {
	repository.reportedPackages = append(repository.reportedPackages, pkg.Name)
}

func (repository *fakeRepository) ReportSkipped(pkg poetry.Package) {
	repository.skippedPackages = append(repository.skippedPackages, pkg.Name)
}
