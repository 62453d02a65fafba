package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	allFilesLabelConstant                   = "all files"
	pathListSeparatorConstant               = ", "
)

const (
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitAbbrevRefFlagConstant          = "--abbrev-ref"
	gitHeadReferenceConstant          = "HEAD"
	gitDiffSubcommandNameConstant     = "diff"
	gitShowRefSubcommandNameConstant  = "show-ref"
	gitSwitchSubcommandNameConstant   = "switch"
	gitCreateFlagConstant             = "--create"
	gitBranchSubcommandNameConstant   = "branch"
	gitDeleteFlagConstant             = "--delete"
	gitPushSubcommandNameConstant     = "push"
	gitPushOptionFlagPrefixConstant   = "--push-option="
	gitAddSubcommandNameConstant      = "add"
	gitCommitSubcommandNameConstant   = "commit"
	gitMessageFlagPrefixConstant      = "--message="
	gitHeadsReferencePrefixConstant   = "refs/heads/"
	gitPathSeparatorArgumentConstant  = "--"
)

const (
	gitCurrentBranchStartTemplateConstant             = "Identifying current branch in %s"
	gitCurrentBranchSuccessTemplateConstant           = "Current branch in %s is %s"
	gitCurrentBranchDetachedSuccessTemplateConstant   = "%s is in a detached HEAD state"
	gitCurrentBranchFailureTemplateConstant           = "Failed to identify current branch in %s (exit code %d%s)"
	gitCurrentBranchExecutionFailureTemplateConstant  = "Unable to identify current branch in %s: %s"
	gitRevisionStartTemplateConstant                  = "Resolving %s in %s"
	gitRevisionSuccessTemplateConstant                = "%s in %s resolved to %s"
	gitRevisionFailureTemplateConstant                = "Failed to resolve %s in %s (exit code %d%s)"
	gitRevisionExecutionFailureTemplateConstant       = "Unable to resolve %s in %s: %s"
	gitDiffStartTemplateConstant                      = "Checking %s for uncommitted changes in %s"
	gitDiffSuccessTemplateConstant                    = "No uncommitted changes to %s in %s"
	gitDiffFailureTemplateConstant                    = "Uncommitted changes to %s in %s (exit code %d%s)"
	gitDiffExecutionFailureTemplateConstant           = "Unable to check %s for changes in %s: %s"
	gitShowRefStartTemplateConstant                   = "Looking up branch %s in %s"
	gitShowRefSuccessTemplateConstant                 = "Branch %s exists in %s"
	gitShowRefFailureTemplateConstant                 = "Branch %s not found in %s (exit code %d%s)"
	gitShowRefExecutionFailureTemplateConstant        = "Unable to look up branch %s in %s: %s"
	gitSwitchStartTemplateConstant                    = "Switching %s to branch %s"
	gitSwitchSuccessTemplateConstant                  = "%s now on branch %s"
	gitSwitchFailureTemplateConstant                  = "Failed to switch %s to branch %s (exit code %d%s)"
	gitSwitchExecutionFailureTemplateConstant         = "Unable to switch %s to branch %s: %s"
	gitBranchCreationStartTemplateConstant            = "Creating branch %s from %s in %s"
	gitBranchCreationSuccessTemplateConstant          = "Created branch %s from %s in %s"
	gitBranchCreationFailureTemplateConstant          = "Failed to create branch %s from %s in %s (exit code %d%s)"
	gitBranchCreationExecutionFailureTemplateConstant = "Unable to create branch %s from %s in %s: %s"
	gitBranchDeletionStartTemplateConstant            = "Removing local branch %s in %s"
	gitBranchDeletionSuccessTemplateConstant          = "Removed local branch %s in %s"
	gitBranchDeletionFailureTemplateConstant          = "Failed to remove local branch %s in %s (exit code %d%s)"
	gitBranchDeletionExecutionFailureTemplateConstant = "Unable to remove local branch %s in %s: %s"
	gitPushStartTemplateConstant                      = "Pushing %s to %s from %s"
	gitPushMergeRequestStartTemplateConstant          = "Pushing %s to %s from %s and requesting a merge request"
	gitPushSuccessTemplateConstant                    = "Pushed %s to %s from %s"
	gitPushFailureTemplateConstant                    = "Failed to push %s to %s from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant           = "Unable to push %s to %s from %s: %s"
	gitAddStartTemplateConstant                       = "Staging %s in %s"
	gitAddSuccessTemplateConstant                     = "Staged %s in %s"
	gitAddFailureTemplateConstant                     = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant            = "Unable to stage %s in %s: %s"
	gitCommitStartTemplateConstant                    = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant                  = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant                  = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant         = "Unable to create commit in %s with message %q: %s"
)

const (
	githubPullRequestSubcommandNameConstant       = "pr"
	githubPullRequestListSubcommandNameConstant   = "list"
	githubPullRequestCreateSubcommandNameConstant = "create"
	githubHeadFlagConstant                        = "--head"
	githubTitleFlagPrefixConstant                 = "--title="
)

const (
	githubPullRequestListStartTemplateConstant              = "Looking for open pull requests from %s in %s"
	githubPullRequestListSuccessTemplateConstant            = "Listed open pull requests from %s in %s"
	githubPullRequestListFailureTemplateConstant            = "Failed to list pull requests from %s in %s (exit code %d%s)"
	githubPullRequestListExecutionFailureTemplateConstant   = "Unable to list pull requests from %s in %s: %s"
	githubPullRequestCreateStartTemplateConstant            = "Opening pull request %q from %s in %s"
	githubPullRequestCreateSuccessTemplateConstant          = "Opened pull request %q from %s in %s"
	githubPullRequestCreateFailureTemplateConstant          = "Failed to open pull request %q from %s in %s (exit code %d%s)"
	githubPullRequestCreateExecutionFailureTemplateConstant = "Unable to open pull request %q from %s in %s: %s"
)

const (
	poetryShowSubcommandNameConstant   = "show"
	poetryOutdatedFlagConstant         = "--outdated"
	poetryUpdateSubcommandNameConstant = "update"
	poetryLockFlagConstant             = "--lock"
)

const (
	poetryOutdatedStartTemplateConstant            = "Listing outdated packages in %s"
	poetryOutdatedSuccessTemplateConstant          = "Listed outdated packages in %s"
	poetryOutdatedFailureTemplateConstant          = "Failed to list outdated packages in %s (exit code %d%s)"
	poetryOutdatedExecutionFailureTemplateConstant = "Unable to list outdated packages in %s: %s"
	poetryUpdateStartTemplateConstant              = "Updating %s in %s"
	poetryUpdateLockStartTemplateConstant          = "Updating %s in the lock file of %s"
	poetryUpdateSuccessTemplateConstant            = "Updated %s in %s"
	poetryUpdateFailureTemplateConstant            = "Failed to update %s in %s (exit code %d%s)"
	poetryUpdateExecutionFailureTemplateConstant   = "Unable to update %s in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildCompletionMessage formats the success message using the command output.
func (formatter CommandMessageFormatter) BuildCompletionMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

// shouldLogStartMessage suppresses descriptive start messages for read-only GitHub queries.
func (formatter CommandMessageFormatter) shouldLogStartMessage(command ShellCommand) bool {
	if command.Name != CommandGitHub {
		return true
	}
	return !formatter.isGitHubPullRequestListCommand(command.Details.Arguments)
}

func (formatter CommandMessageFormatter) isGitHubPullRequestListCommand(arguments []string) bool {
	if len(arguments) < 2 {
		return false
	}
	return strings.TrimSpace(arguments[0]) == githubPullRequestSubcommandNameConstant && strings.TrimSpace(arguments[1]) == githubPullRequestListSubcommandNameConstant
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	case CommandPoetry:
		return formatter.describePoetryMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	subcommand := strings.TrimSpace(command.Details.Arguments[0])
	switch subcommand {
	case gitRevParseSubcommandNameConstant:
		return formatter.describeGitRevParseMessage(command, result, failure, stage)
	case gitDiffSubcommandNameConstant:
		return formatter.describeGitDiffMessage(command, result, failure, stage)
	case gitShowRefSubcommandNameConstant:
		return formatter.describeGitShowRefMessage(command, result, failure, stage)
	case gitSwitchSubcommandNameConstant:
		return formatter.describeGitSwitchMessage(command, result, failure, stage)
	case gitBranchSubcommandNameConstant:
		return formatter.describeGitBranchMessage(command, result, failure, stage)
	case gitPushSubcommandNameConstant:
		return formatter.describeGitPushMessage(command, result, failure, stage)
	case gitAddSubcommandNameConstant:
		return formatter.describeGitAddMessage(command, result, failure, stage)
	case gitCommitSubcommandNameConstant:
		return formatter.describeGitCommitMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitRevParseMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	if containsArgument(arguments, gitAbbrevRefFlagConstant) {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCurrentBranchStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			trimmed := strings.TrimSpace(result.StandardOutput)
			if strings.EqualFold(trimmed, gitHeadReferenceConstant) || len(trimmed) == 0 {
				return fmt.Sprintf(gitCurrentBranchDetachedSuccessTemplateConstant, workingDirectory)
			}
			return fmt.Sprintf(gitCurrentBranchSuccessTemplateConstant, workingDirectory, trimmed)
		case messageStageFailure:
			return fmt.Sprintf(gitCurrentBranchFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCurrentBranchExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	}

	reference := strings.TrimPrefix(formatter.resolveRevisionReference(arguments), gitHeadsReferencePrefixConstant)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitRevisionStartTemplateConstant, reference, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitRevisionSuccessTemplateConstant, reference, workingDirectory, formatter.ensureValue(result.StandardOutput))
	case messageStageFailure:
		return fmt.Sprintf(gitRevisionFailureTemplateConstant, reference, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitRevisionExecutionFailureTemplateConstant, reference, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitDiffMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	paths := formatter.describePaths(formatter.extractPathArguments(command.Details.Arguments))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitDiffStartTemplateConstant, paths, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitDiffSuccessTemplateConstant, paths, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitDiffFailureTemplateConstant, paths, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitDiffExecutionFailureTemplateConstant, paths, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitShowRefMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	branchName := strings.TrimPrefix(formatter.extractBranchName(command.Details.Arguments), gitHeadsReferencePrefixConstant)
	trimmedBranch := formatter.ensureValue(branchName)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitShowRefStartTemplateConstant, trimmedBranch, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitShowRefSuccessTemplateConstant, trimmedBranch, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitShowRefFailureTemplateConstant, trimmedBranch, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitShowRefExecutionFailureTemplateConstant, trimmedBranch, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitSwitchMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	arguments := command.Details.Arguments
	positionalArguments := formatter.extractPositionalArguments(arguments[1:])

	if containsArgument(arguments, gitCreateFlagConstant) && len(positionalArguments) > 0 {
		branchName := formatter.ensureValue(positionalArguments[0])
		startPoint := gitHeadReferenceConstant
		if len(positionalArguments) > 1 {
			startPoint = formatter.ensureValue(positionalArguments[1])
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitBranchCreationStartTemplateConstant, branchName, startPoint, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitBranchCreationSuccessTemplateConstant, branchName, startPoint, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitBranchCreationFailureTemplateConstant, branchName, startPoint, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitBranchCreationExecutionFailureTemplateConstant, branchName, startPoint, workingDirectory, formatter.describeFailure(failure))
		}
	}

	branchName := formatter.ensureValue(formatter.extractBranchName(arguments[1:]))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitSwitchStartTemplateConstant, workingDirectory, branchName)
	case messageStageSuccess:
		return fmt.Sprintf(gitSwitchSuccessTemplateConstant, workingDirectory, branchName)
	case messageStageFailure:
		return fmt.Sprintf(gitSwitchFailureTemplateConstant, workingDirectory, branchName, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitSwitchExecutionFailureTemplateConstant, workingDirectory, branchName, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitBranchMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if !containsArgument(arguments, gitDeleteFlagConstant) {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	branchName := formatter.ensureValue(formatter.extractBranchName(arguments[1:]))
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitBranchDeletionStartTemplateConstant, branchName, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitBranchDeletionSuccessTemplateConstant, branchName, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitBranchDeletionFailureTemplateConstant, branchName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitBranchDeletionExecutionFailureTemplateConstant, branchName, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitPushMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	arguments := command.Details.Arguments
	positionalArguments := formatter.extractPositionalArguments(arguments[1:])
	remoteName := fallbackUnknownValueLabelConstant
	branchName := fallbackUnknownValueLabelConstant
	if len(positionalArguments) > 0 {
		remoteName = formatter.ensureValue(positionalArguments[0])
	}
	if len(positionalArguments) > 1 {
		branchName = formatter.ensureValue(positionalArguments[1])
	}

	switch stage {
	case messageStageStart:
		if formatter.hasArgumentPrefix(arguments, gitPushOptionFlagPrefixConstant) {
			return fmt.Sprintf(gitPushMergeRequestStartTemplateConstant, branchName, remoteName, workingDirectory)
		}
		return fmt.Sprintf(gitPushStartTemplateConstant, branchName, remoteName, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitPushSuccessTemplateConstant, branchName, remoteName, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitPushFailureTemplateConstant, branchName, remoteName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, branchName, remoteName, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitAddMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	paths := formatter.describePaths(formatter.extractPathArguments(command.Details.Arguments))

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitAddStartTemplateConstant, paths, workingDirectory)
	case messageStageSuccess:
		return fmt.Sprintf(gitAddSuccessTemplateConstant, paths, workingDirectory)
	case messageStageFailure:
		return fmt.Sprintf(gitAddFailureTemplateConstant, paths, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, paths, workingDirectory, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitCommitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	commitSubject := formatter.extractCommitSubject(command.Details.Arguments)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitSubject)
	case messageStageSuccess:
		return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitSubject)
	case messageStageFailure:
		return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitSubject, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitSubject, formatter.describeFailure(failure))
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) < 2 || strings.TrimSpace(arguments[0]) != githubPullRequestSubcommandNameConstant {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	headBranch := formatter.ensureValue(findFlagValue(arguments, githubHeadFlagConstant))

	switch strings.TrimSpace(arguments[1]) {
	case githubPullRequestListSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestListStartTemplateConstant, headBranch, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestListSuccessTemplateConstant, headBranch, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(githubPullRequestListFailureTemplateConstant, headBranch, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(githubPullRequestListExecutionFailureTemplateConstant, headBranch, workingDirectory, formatter.describeFailure(failure))
		}
	case githubPullRequestCreateSubcommandNameConstant:
		title := formatter.ensureValue(findPrefixedValue(arguments, githubTitleFlagPrefixConstant))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestCreateStartTemplateConstant, title, headBranch, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestCreateSuccessTemplateConstant, title, headBranch, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(githubPullRequestCreateFailureTemplateConstant, title, headBranch, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(githubPullRequestCreateExecutionFailureTemplateConstant, title, headBranch, workingDirectory, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describePoetryMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	switch strings.TrimSpace(arguments[0]) {
	case poetryShowSubcommandNameConstant:
		if !containsArgument(arguments, poetryOutdatedFlagConstant) {
			break
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(poetryOutdatedStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(poetryOutdatedSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(poetryOutdatedFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(poetryOutdatedExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	case poetryUpdateSubcommandNameConstant:
		packageName := formatter.ensureValue(formatter.extractBranchName(arguments[1:]))
		switch stage {
		case messageStageStart:
			if containsArgument(arguments, poetryLockFlagConstant) {
				return fmt.Sprintf(poetryUpdateLockStartTemplateConstant, packageName, workingDirectory)
			}
			return fmt.Sprintf(poetryUpdateStartTemplateConstant, packageName, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(poetryUpdateSuccessTemplateConstant, packageName, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(poetryUpdateFailureTemplateConstant, packageName, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(poetryUpdateExecutionFailureTemplateConstant, packageName, workingDirectory, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) describePaths(paths []string) string {
	if len(paths) == 0 {
		return allFilesLabelConstant
	}
	return strings.Join(paths, pathListSeparatorConstant)
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func (formatter CommandMessageFormatter) hasArgumentPrefix(arguments []string, prefix string) bool {
	for _, argument := range arguments {
		if strings.HasPrefix(strings.TrimSpace(argument), prefix) {
			return true
		}
	}
	return false
}

func (formatter CommandMessageFormatter) resolveRevisionReference(arguments []string) string {
	if len(arguments) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	lastArgument := strings.TrimSpace(arguments[len(arguments)-1])
	if len(lastArgument) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return lastArgument
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) extractBranchName(arguments []string) string {
	for index := len(arguments) - 1; index >= 0; index-- {
		argument := strings.TrimSpace(arguments[index])
		if len(argument) == 0 {
			continue
		}
		if strings.HasPrefix(argument, "-") {
			continue
		}
		return argument
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) extractPositionalArguments(arguments []string) []string {
	positionalArguments := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		positionalArguments = append(positionalArguments, trimmed)
	}
	return positionalArguments
}

// extractPathArguments returns the arguments following "--", or the positional ones when no separator exists.
func (formatter CommandMessageFormatter) extractPathArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}
	for index, argument := range arguments {
		if strings.TrimSpace(argument) == gitPathSeparatorArgumentConstant {
			return formatter.extractPositionalArguments(arguments[index+1:])
		}
	}
	return formatter.extractPositionalArguments(arguments[1:])
}

func (formatter CommandMessageFormatter) extractCommitSubject(arguments []string) string {
	commitMessage := findPrefixedValue(arguments, gitMessageFlagPrefixConstant)
	if len(commitMessage) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	subject, _, _ := strings.Cut(commitMessage, "\n")
	return strings.TrimSpace(subject)
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}

func findPrefixedValue(arguments []string, prefix string) string {
	for _, argument := range arguments {
		if strings.HasPrefix(argument, prefix) {
			return strings.TrimPrefix(argument, prefix)
		}
	}
	return emptyStringConstant
}
