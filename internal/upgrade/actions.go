package upgrade

import (
	"context"
	"fmt"

	"github.com/temirov/poetry-up/internal/githubcli"
	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	commitMessageTemplateConstant = "%s\n\n%s\n"
)

// ActionName identifies a step of the upgrade sequence.
type ActionName string

// Upgrade steps in execution order.
const (
	ActionSwitchBranch      ActionName = ActionName("switch_branch")
	ActionApplyUpdate       ActionName = ActionName("apply_update")
	ActionCommitChanges     ActionName = ActionName("commit_changes")
	ActionRollbackUpgrade   ActionName = ActionName("rollback_upgrade")
	ActionPushBranch        ActionName = ActionName("push_branch")
	ActionOpenReviewRequest ActionName = ActionName("open_review_request")
)

// Action is one guarded step of a package upgrade. Implementations hold no state;
// everything they need is read from the PackageUpgrade they receive.
type Action interface {
	Name() ActionName
	Required(executionContext context.Context, upgrade *PackageUpgrade) (bool, error)
	Execute(executionContext context.Context, upgrade *PackageUpgrade) error
}

var (
	upgradedFiles  = []string{poetry.ManifestFileName, poetry.LockFileName}
	actionSequence = []Action{
		switchBranchAction{},
		applyUpdateAction{},
		commitChangesAction{},
		rollbackUpgradeAction{},
		pushBranchAction{},
		openReviewRequestAction{},
	}
)

type switchBranchAction struct{}

func (switchBranchAction) Name() ActionName {
	return ActionSwitchBranch
}

func (switchBranchAction) Required(_ context.Context, upgrade *PackageUpgrade) (bool, error) {
	return upgrade.Options.branchSwitchRequested(), nil
}

func (switchBranchAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	branchExists, existsError := upgrade.versionControl.BranchExists(executionContext, upgrade.Options.RepositoryPath, upgrade.Branch)
	if existsError != nil {
		return existsError
	}

	switchOptions := gitrepo.SwitchOptions{Branch: upgrade.Branch}
	if !branchExists {
		switchOptions.Create = true
		switchOptions.StartPoint = upgrade.Options.Upstream
	}
	return upgrade.versionControl.SwitchBranch(executionContext, upgrade.Options.RepositoryPath, switchOptions)
}

type applyUpdateAction struct{}

func (applyUpdateAction) Name() ActionName {
	return ActionApplyUpdate
}

func (applyUpdateAction) Required(context.Context, *PackageUpgrade) (bool, error) {
	return true, nil
}

func (applyUpdateAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	if !upgrade.Package.Compatible {
		if constraintError := upgrade.packageManager.UpdateConstraint(executionContext, upgrade.Options.RepositoryPath, upgrade.Package); constraintError != nil {
			return constraintError
		}
	}
	return upgrade.packageManager.Update(executionContext, upgrade.Options.RepositoryPath, upgrade.Package.Name, !upgrade.Options.Install)
}

type commitChangesAction struct{}

func (commitChangesAction) Name() ActionName {
	return ActionCommitChanges
}

func (commitChangesAction) Required(executionContext context.Context, upgrade *PackageUpgrade) (bool, error) {
	if !upgrade.Options.Commit {
		return false, nil
	}
	clean, cleanError := upgrade.versionControl.CheckCleanWorktree(executionContext, upgrade.Options.RepositoryPath, upgradedFiles...)
	if cleanError != nil {
		return false, cleanError
	}
	return !clean, nil
}

func (commitChangesAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	if stageError := upgrade.versionControl.StageFiles(executionContext, upgrade.Options.RepositoryPath, upgradedFiles...); stageError != nil {
		return stageError
	}
	return upgrade.versionControl.Commit(executionContext, upgrade.Options.RepositoryPath, upgrade.CommitMessage())
}

type rollbackUpgradeAction struct{}

func (rollbackUpgradeAction) Name() ActionName {
	return ActionRollbackUpgrade
}

// Required detects an upgrade branch that gained no commit over upstream. Without
// committing there is nothing to compare, so the guard never fires.
func (rollbackUpgradeAction) Required(executionContext context.Context, upgrade *PackageUpgrade) (bool, error) {
	switchRequired, switchError := switchBranchAction{}.Required(executionContext, upgrade)
	if switchError != nil || !switchRequired || !upgrade.Options.Commit {
		return false, switchError
	}

	branchCommit, branchError := upgrade.versionControl.ResolveBranch(executionContext, upgrade.Options.RepositoryPath, upgrade.Branch)
	if branchError != nil {
		return false, branchError
	}
	upstreamCommit, upstreamError := upgrade.versionControl.ResolveBranch(executionContext, upgrade.Options.RepositoryPath, upgrade.Options.Upstream)
	if upstreamError != nil {
		return false, upstreamError
	}
	return branchCommit == upstreamCommit, nil
}

func (rollbackUpgradeAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	upgrade.reporter.ReportSkipped(upgrade.Package)

	switchError := upgrade.versionControl.SwitchBranch(executionContext, upgrade.Options.RepositoryPath, gitrepo.SwitchOptions{Branch: upgrade.OriginalBranch})
	if switchError != nil {
		return switchError
	}
	return upgrade.versionControl.DeleteBranch(executionContext, upgrade.Options.RepositoryPath, upgrade.Branch)
}

type pushBranchAction struct{}

func (pushBranchAction) Name() ActionName {
	return ActionPushBranch
}

func (pushBranchAction) Required(_ context.Context, upgrade *PackageUpgrade) (bool, error) {
	return upgrade.Options.Push, nil
}

func (pushBranchAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	var mergeRequest *gitrepo.MergeRequest
	if upgrade.Options.MergeRequest {
		mergeRequest = &gitrepo.MergeRequest{Title: upgrade.Title, Description: upgrade.Description}
	}
	return upgrade.versionControl.PushBranch(executionContext, upgrade.Options.RepositoryPath, upgrade.Options.Remote, upgrade.Branch, mergeRequest)
}

type openReviewRequestAction struct{}

func (openReviewRequestAction) Name() ActionName {
	return ActionOpenReviewRequest
}

func (openReviewRequestAction) Required(executionContext context.Context, upgrade *PackageUpgrade) (bool, error) {
	if !upgrade.Options.PullRequest {
		return false, nil
	}
	exists, existsError := upgrade.reviewPlatform.PullRequestExists(executionContext, upgrade.Options.RepositoryPath, upgrade.Branch)
	if existsError != nil {
		return false, existsError
	}
	return !exists, nil
}

func (openReviewRequestAction) Execute(executionContext context.Context, upgrade *PackageUpgrade) error {
	return upgrade.reviewPlatform.CreatePullRequest(executionContext, upgrade.Options.RepositoryPath, githubcli.PullRequestCreateOptions{
		Title:      upgrade.Title,
		Body:       upgrade.Description,
		HeadBranch: upgrade.Branch,
	})
}

func formatCommitMessage(title string, description string) string {
	return fmt.Sprintf(commitMessageTemplateConstant, title, description)
}
