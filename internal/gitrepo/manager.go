package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/poetry-up/internal/execshell"
)

const (
	gitRevParseSubcommandConstant                 = "rev-parse"
	gitAbbrevRefFlagConstant                      = "--abbrev-ref"
	gitHeadReferenceConstant                      = "HEAD"
	gitDiffSubcommandConstant                     = "diff"
	gitQuietFlagConstant                          = "--quiet"
	gitExitCodeFlagConstant                       = "--exit-code"
	gitPathSeparatorConstant                      = "--"
	gitShowRefSubcommandConstant                  = "show-ref"
	gitVerifyFlagConstant                         = "--verify"
	gitSwitchSubcommandConstant                   = "switch"
	gitCreateFlagConstant                         = "--create"
	gitBranchSubcommandConstant                   = "branch"
	gitDeleteFlagConstant                         = "--delete"
	gitAddSubcommandConstant                      = "add"
	gitCommitSubcommandConstant                   = "commit"
	gitMessageFlagTemplateConstant                = "--message=%s"
	gitPushSubcommandConstant                     = "push"
	gitSetUpstreamFlagConstant                    = "--set-upstream"
	gitPushOptionTemplateConstant                 = "--push-option=%s"
	mergeRequestCreateOptionConstant              = "merge_request.create"
	mergeRequestTitleOptionTemplateConstant       = "merge_request.title=%s"
	mergeRequestDescriptionOptionTemplateConstant = "merge_request.description=%s"
	headsReferenceTemplateConstant                = "refs/heads/%s"
	gitTerminalPromptEnvironmentNameConstant      = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledValueConstant        = "0"
	dirtyWorktreeExitCodeConstant                 = 1
	missingReferenceExitCodeConstant              = 1
	executorNotConfiguredMessageConstant          = "git executor not configured"
	requiredValueMessageConstant                  = "value required"
	invalidInputErrorTemplateConstant             = "%s: %s"
	operationErrorMessageTemplateConstant         = "%s operation failed"
	operationErrorWithCauseTemplateConstant       = "%s operation failed: %s"
	branchFieldNameConstant                       = "branch"
	remoteFieldNameConstant                       = "remote"
	messageFieldNameConstant                      = "message"
	pathsFieldNameConstant                        = "paths"
	currentBranchOperationNameConstant            = OperationName("GetCurrentBranch")
	cleanWorktreeOperationNameConstant            = OperationName("CheckCleanWorktree")
	branchExistsOperationNameConstant             = OperationName("BranchExists")
	switchBranchOperationNameConstant             = OperationName("SwitchBranch")
	resolveBranchOperationNameConstant            = OperationName("ResolveBranch")
	deleteBranchOperationNameConstant             = OperationName("DeleteBranch")
	stageFilesOperationNameConstant               = OperationName("StageFiles")
	commitOperationNameConstant                   = OperationName("Commit")
	pushBranchOperationNameConstant               = OperationName("PushBranch")
)

// OperationName identifies a git workflow performed by RepositoryManager.
type OperationName string

// ErrGitExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// GitExecutor is the subset of execshell.ShellExecutor used by RepositoryManager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// MergeRequest carries the title and description passed to the remote as push options.
type MergeRequest struct {
	Title       string
	Description string
}

// SwitchOptions configures SwitchBranch.
type SwitchOptions struct {
	Branch     string
	Create     bool
	StartPoint string
}

// InvalidInputError reports a missing or malformed argument.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps git failures with the operation that triggered them.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// RepositoryManager performs git operations inside a working tree.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// GetCurrentBranch returns the abbreviated name of HEAD.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.run(executionContext, repositoryPath, gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitHeadReferenceConstant)
	if executionError != nil {
		return "", OperationError{Operation: currentBranchOperationNameConstant, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// CheckCleanWorktree reports whether the given paths, or the whole tree when none are given, have no unstaged changes.
func (manager *RepositoryManager) CheckCleanWorktree(executionContext context.Context, repositoryPath string, paths ...string) (bool, error) {
	arguments := []string{gitDiffSubcommandConstant, gitQuietFlagConstant, gitExitCodeFlagConstant}
	if len(paths) > 0 {
		arguments = append(arguments, gitPathSeparatorConstant)
		arguments = append(arguments, paths...)
	}

	_, executionError := manager.run(executionContext, repositoryPath, arguments...)
	if executionError == nil {
		return true, nil
	}
	if exitCode, failed := execshell.ExitCode(executionError); failed && exitCode == dirtyWorktreeExitCodeConstant {
		return false, nil
	}
	return false, OperationError{Operation: cleanWorktreeOperationNameConstant, Cause: executionError}
}

// BranchExists reports whether a local branch with the given name exists.
func (manager *RepositoryManager) BranchExists(executionContext context.Context, repositoryPath string, branch string) (bool, error) {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return false, InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.run(executionContext, repositoryPath, gitShowRefSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, fmt.Sprintf(headsReferenceTemplateConstant, trimmedBranch))
	if executionError == nil {
		return true, nil
	}
	if exitCode, failed := execshell.ExitCode(executionError); failed && exitCode == missingReferenceExitCodeConstant {
		return false, nil
	}
	return false, OperationError{Operation: branchExistsOperationNameConstant, Cause: executionError}
}

// SwitchBranch checks out a branch, creating it from StartPoint when Create is set.
func (manager *RepositoryManager) SwitchBranch(executionContext context.Context, repositoryPath string, options SwitchOptions) error {
	trimmedBranch := strings.TrimSpace(options.Branch)
	if len(trimmedBranch) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{gitSwitchSubcommandConstant, gitQuietFlagConstant}
	if options.Create {
		arguments = append(arguments, gitCreateFlagConstant)
	}
	arguments = append(arguments, trimmedBranch)
	if options.Create && len(strings.TrimSpace(options.StartPoint)) > 0 {
		arguments = append(arguments, strings.TrimSpace(options.StartPoint))
	}

	if _, executionError := manager.run(executionContext, repositoryPath, arguments...); executionError != nil {
		return OperationError{Operation: switchBranchOperationNameConstant, Cause: executionError}
	}
	return nil
}

// ResolveBranch returns the commit hash a local branch points to.
func (manager *RepositoryManager) ResolveBranch(executionContext context.Context, repositoryPath string, branch string) (string, error) {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := manager.run(executionContext, repositoryPath, gitRevParseSubcommandConstant, fmt.Sprintf(headsReferenceTemplateConstant, trimmedBranch))
	if executionError != nil {
		return "", OperationError{Operation: resolveBranchOperationNameConstant, Cause: executionError}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// DeleteBranch removes a fully merged local branch.
func (manager *RepositoryManager) DeleteBranch(executionContext context.Context, repositoryPath string, branch string) error {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if _, executionError := manager.run(executionContext, repositoryPath, gitBranchSubcommandConstant, gitQuietFlagConstant, gitDeleteFlagConstant, trimmedBranch); executionError != nil {
		return OperationError{Operation: deleteBranchOperationNameConstant, Cause: executionError}
	}
	return nil
}

// StageFiles adds the given paths to the index.
func (manager *RepositoryManager) StageFiles(executionContext context.Context, repositoryPath string, paths ...string) error {
	if len(paths) == 0 {
		return InvalidInputError{FieldName: pathsFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := append([]string{gitAddSubcommandConstant, gitPathSeparatorConstant}, paths...)
	if _, executionError := manager.run(executionContext, repositoryPath, arguments...); executionError != nil {
		return OperationError{Operation: stageFilesOperationNameConstant, Cause: executionError}
	}
	return nil
}

// Commit records the staged changes with the given message.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	if len(strings.TrimSpace(message)) == 0 {
		return InvalidInputError{FieldName: messageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if _, executionError := manager.run(executionContext, repositoryPath, gitCommitSubcommandConstant, gitQuietFlagConstant, fmt.Sprintf(gitMessageFlagTemplateConstant, message)); executionError != nil {
		return OperationError{Operation: commitOperationNameConstant, Cause: executionError}
	}
	return nil
}

// PushBranch pushes a branch and sets its upstream. A non-nil mergeRequest asks the remote to open a merge request.
func (manager *RepositoryManager) PushBranch(executionContext context.Context, repositoryPath string, remote string, branch string, mergeRequest *MergeRequest) error {
	trimmedRemote := strings.TrimSpace(remote)
	if len(trimmedRemote) == 0 {
		return InvalidInputError{FieldName: remoteFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{gitPushSubcommandConstant, gitSetUpstreamFlagConstant}
	if mergeRequest != nil {
		arguments = append(arguments,
			fmt.Sprintf(gitPushOptionTemplateConstant, mergeRequestCreateOptionConstant),
			fmt.Sprintf(gitPushOptionTemplateConstant, fmt.Sprintf(mergeRequestTitleOptionTemplateConstant, mergeRequest.Title)),
			fmt.Sprintf(gitPushOptionTemplateConstant, fmt.Sprintf(mergeRequestDescriptionOptionTemplateConstant, mergeRequest.Description)),
		)
	}
	arguments = append(arguments, trimmedRemote, trimmedBranch)

	if _, executionError := manager.run(executionContext, repositoryPath, arguments...); executionError != nil {
		return OperationError{Operation: pushBranchOperationNameConstant, Cause: executionError}
	}
	return nil
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     strings.TrimSpace(repositoryPath),
		EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptDisabledValueConstant},
	})
}
