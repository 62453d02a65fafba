package upgrade

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/poetry-up/internal/execshell"
	"github.com/temirov/poetry-up/internal/githubcli"
	"github.com/temirov/poetry-up/internal/gitrepo"
	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	testMarshmallowNameConstant     = "marshmallow"
	testMarshmallowOldConstant      = "3.0.0"
	testMarshmallowNewConstant      = "3.5.1"
	testMarshmallowBranchConstant   = "poetry-up/marshmallow-3.5.1"
	testMarshmallowTitleConstant    = "Bump marshmallow from 3.0.0 to 3.5.1"
	testMarshmallowCommitConstant   = testMarshmallowTitleConstant + "\n\n" + testMarshmallowTitleConstant + "\n"
	testAttrsNameConstant           = "attrs"
	testAttrsOldConstant            = "19.3.0"
	testAttrsNewConstant            = "20.1.0"
	testAttrsBranchConstant         = "poetry-up/attrs-20.1.0"
	testCustomRemoteConstant        = "upstream-remote"
	testCollaboratorFailureConstant = "poetry update exited with code 1"
	testRollbackWarningMessage      = "Rollback detection disabled because changes are not committed"
	testRunCompletedMessageConstant = "Upgrade run completed"
	testPackageProcessedMessage     = "Package processed"
)

func marshmallowPackage() poetry.Package {
	return poetry.NewPackage(testMarshmallowNameConstant, testMarshmallowOldConstant, testMarshmallowNewConstant)
}

func attrsPackage() poetry.Package {
	return poetry.NewPackage(testAttrsNameConstant, testAttrsOldConstant, testAttrsNewConstant)
}

func runWithFake(testInstance *testing.T, repository *fakeRepository, options Options) (Summary, error) {
	testInstance.Helper()
	runner, runnerError := NewRunner(repository.dependencies())
	require.NoError(testInstance, runnerError)
	return runner.Run(context.Background(), options)
}

func TestRunnerUpgradesPackageOnDedicatedBranch(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())

	summary, runError := runWithFake(testInstance, repository, DefaultOptions())
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []PackageResult{{Package: marshmallowPackage(), Outcome: OutcomeUpgraded}}, summary.Results)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
	require.Contains(testInstance, repository.branches, testMarshmallowBranchConstant)
	require.NotEqual(testInstance, repository.branches[defaultUpstreamBranchConstant], repository.branches[testMarshmallowBranchConstant])
	require.Equal(testInstance, []string{testMarshmallowCommitConstant}, repository.commitMessages)
	require.Equal(testInstance, []fakeUpdate{{Name: testMarshmallowNameConstant, LockOnly: false}}, repository.updates)
	require.Empty(testInstance, repository.constraints)
	require.Empty(testInstance, repository.pushes)
	require.Empty(testInstance, repository.pullRequests)
	require.Equal(testInstance, []string{testMarshmallowNameConstant}, repository.reportedPackages)
	require.Empty(testInstance, repository.skippedPackages)
}

func TestRunnerRollsBackNoOpUpdate(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())
	repository.updateChangesFiles = false

	options := DefaultOptions()
	options.Push = true
	summary, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, summary.Count(OutcomeRolledBack))
	require.Equal(testInstance, []string{testMarshmallowNameConstant}, repository.skippedPackages)
	require.NotContains(testInstance, repository.branches, testMarshmallowBranchConstant)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
	require.Empty(testInstance, repository.commitMessages)
	require.Empty(testInstance, repository.pushes)
	require.NotContains(testInstance, repository.mutations, fakeOperationStageConstant)
}

func TestRunnerPushesAndOpensPullRequestWithoutCommit(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())

	options := DefaultOptions()
	options.Commit = false
	options.Push = true
	options.PullRequest = true
	summary, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, summary.Count(OutcomeUpgraded))
	require.Equal(testInstance, []fakePush{{Remote: defaultRemoteNameConstant, Branch: testMarshmallowBranchConstant}}, repository.pushes)
	require.Equal(testInstance, []githubcli.PullRequestCreateOptions{{
		Title:      testMarshmallowTitleConstant,
		Body:       testMarshmallowTitleConstant,
		HeadBranch: testMarshmallowBranchConstant,
	}}, repository.pullRequests)
	require.Empty(testInstance, repository.commitMessages)
	require.Empty(testInstance, repository.skippedPackages)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
}

func TestRunnerRejectsDirtyWorkingTree(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())
	repository.dirty = true

	summary, runError := runWithFake(testInstance, repository, DefaultOptions())
	require.Error(testInstance, runError)
	require.ErrorIs(testInstance, runError, ErrWorkingTreeDirty)

	var preconditionError PreconditionError
	require.ErrorAs(testInstance, runError, &preconditionError)
	require.Equal(testInstance, defaultRepositoryPathConstant, preconditionError.RepositoryPath)

	require.Empty(testInstance, summary.Results)
	require.Empty(testInstance, repository.mutations)
	require.Empty(testInstance, repository.reportedPackages)
}

func TestRunnerSkipsPackagesOutsideAllowList(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage(), attrsPackage())

	options := DefaultOptions()
	options.Packages = []string{"Marshmallow"}
	summary, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []PackageResult{
		{Package: marshmallowPackage(), Outcome: OutcomeUpgraded},
		{Package: attrsPackage(), Outcome: OutcomeIgnored},
	}, summary.Results)
	require.Equal(testInstance, []string{testMarshmallowNameConstant}, repository.reportedPackages)
	require.NotContains(testInstance, repository.branches, testAttrsBranchConstant)
	for _, update := range repository.updates {
		require.NotEqual(testInstance, testAttrsNameConstant, update.Name)
	}
}

func TestRunnerDryRunLeavesRepositoryUntouched(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage(), attrsPackage())

	options := DefaultOptions()
	options.DryRun = true
	options.Push = true
	options.PullRequest = true
	summary, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 2, summary.Count(OutcomePreviewed))
	require.Equal(testInstance, []string{testMarshmallowNameConstant, testAttrsNameConstant}, repository.reportedPackages)
	require.Empty(testInstance, repository.mutations)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
}

func TestRunnerWidensConstraintForIncompatibleRelease(testInstance *testing.T) {
	testCases := []struct {
		name                string
		latest              bool
		expectedOutcome     PackageOutcome
		expectedConstraints []string
	}{
		{
			name:                "latest_enabled",
			latest:              true,
			expectedOutcome:     OutcomeUpgraded,
			expectedConstraints: []string{testAttrsNameConstant},
		},
		{
			name:                "latest_disabled",
			latest:              false,
			expectedOutcome:     OutcomeIgnored,
			expectedConstraints: nil,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeRepository(attrsPackage())

			options := DefaultOptions()
			options.Latest = testCase.latest
			summary, runError := runWithFake(testInstance, repository, options)
			require.NoError(testInstance, runError)

			require.Equal(testInstance, 1, summary.Count(testCase.expectedOutcome))
			require.Equal(testInstance, testCase.expectedConstraints, repository.constraints)
		})
	}
}

func TestRunnerUpdatesLockOnlyWhenInstallDisabled(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())

	options := DefaultOptions()
	options.Install = false
	options.Commit = false
	_, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []fakeUpdate{{Name: testMarshmallowNameConstant, LockOnly: true}}, repository.updates)
	require.NotContains(testInstance, repository.mutations, fakeOperationSwitchConstant)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
}

func TestRunnerPassesMergeRequestPushOptions(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())

	options := DefaultOptions()
	options.Push = true
	options.MergeRequest = true
	options.Remote = testCustomRemoteConstant
	_, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Len(testInstance, repository.pushes, 1)
	require.Equal(testInstance, testCustomRemoteConstant, repository.pushes[0].Remote)
	require.Equal(testInstance, &gitrepo.MergeRequest{Title: testMarshmallowTitleConstant, Description: testMarshmallowTitleConstant}, repository.pushes[0].MergeRequest)
}

func TestRunnerSkipsExistingPullRequest(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())
	repository.existingPullRequests[testMarshmallowBranchConstant] = true

	options := DefaultOptions()
	options.Push = true
	options.PullRequest = true
	_, runError := runWithFake(testInstance, repository, options)
	require.NoError(testInstance, runError)

	require.Len(testInstance, repository.pushes, 1)
	require.Empty(testInstance, repository.pullRequests)
}

func TestRunnerReusesExistingUpgradeBranch(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage())
	repository.branches[testMarshmallowBranchConstant] = fakeInitialCommitConstant

	_, runError := runWithFake(testInstance, repository, DefaultOptions())
	require.NoError(testInstance, runError)
	require.Len(testInstance, repository.commitMessages, 1)
	require.Equal(testInstance, defaultUpstreamBranchConstant, repository.currentBranch)
}

func TestRunnerAbortsOnCollaboratorFailure(testInstance *testing.T) {
	repository := newFakeRepository(marshmallowPackage(), attrsPackage())
	repository.failures[fakeOperationUpdateConstant] = errors.New(testCollaboratorFailureConstant)

	summary, runError := runWithFake(testInstance, repository, DefaultOptions())
	require.Error(testInstance, runError)

	var actionError ActionError
	require.ErrorAs(testInstance, runError, &actionError)
	require.Equal(testInstance, ActionApplyUpdate, actionError.Action)
	require.Equal(testInstance, testMarshmallowNameConstant, actionError.Package)
	require.Empty(testInstance, summary.Results)
	require.Equal(testInstance, testMarshmallowBranchConstant, repository.currentBranch)
	require.Equal(testInstance, []string{testMarshmallowNameConstant}, repository.reportedPackages)
}

func TestRunnerRejectsInvalidOptionsBeforeTouchingRepository(testInstance *testing.T) {
	testCases := []struct {
		name          string
		mutate        func(options *Options)
		expectedField string
	}{
		{
			name: "merge_request_without_push",
			mutate: func(options *Options) {
				options.MergeRequest = true
			},
			expectedField: mergeRequestFieldNameConstant,
		},
		{
			name: "empty_upstream",
			mutate: func(options *Options) {
				options.Upstream = " "
			},
			expectedField: upstreamFieldNameConstant,
		},
		{
			name: "push_without_remote",
			mutate: func(options *Options) {
				options.Push = true
				options.Remote = ""
			},
			expectedField: remoteFieldNameConstant,
		},
		{
			name: "empty_repository_path",
			mutate: func(options *Options) {
				options.RepositoryPath = ""
			},
			expectedField: repositoryPathFieldNameConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeRepository(marshmallowPackage())
			repository.dirty = true

			options := DefaultOptions()
			testCase.mutate(&options)
			_, runError := runWithFake(testInstance, repository, options)

			var optionsError InvalidOptionsError
			require.ErrorAs(testInstance, runError, &optionsError)
			require.Equal(testInstance, testCase.expectedField, optionsError.FieldName)
			require.NotErrorIs(testInstance, runError, ErrWorkingTreeDirty)
			require.Empty(testInstance, repository.mutations)
		})
	}
}

func TestRunnerLogsSummaryAndRollbackWarning(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	repository := newFakeRepository(marshmallowPackage())
	dependencies := repository.dependencies()
	dependencies.Logger = zap.New(observerCore)

	runner, runnerError := NewRunner(dependencies)
	require.NoError(testInstance, runnerError)

	options := DefaultOptions()
	options.Commit = false
	options.Push = true
	_, runError := runner.Run(context.Background(), options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, observedLogs.FilterMessage(testRollbackWarningMessage).Len())

	processedEntries := observedLogs.FilterMessage(testPackageProcessedMessage).All()
	require.Len(testInstance, processedEntries, 1)
	processedFields := processedEntries[0].ContextMap()
	require.Equal(testInstance, testMarshmallowNameConstant, processedFields[logFieldPackageConstant])
	require.Equal(testInstance, testMarshmallowBranchConstant, processedFields[logFieldBranchConstant])
	require.Equal(testInstance, string(OutcomeUpgraded), processedFields[logFieldOutcomeConstant])

	completedEntries := observedLogs.FilterMessage(testRunCompletedMessageConstant).All()
	require.Len(testInstance, completedEntries, 1)
	require.Equal(testInstance, int64(1), completedEntries[0].ContextMap()[logFieldUpgradedCountConstant])
}

func TestRollbackGuardIsIdempotent(testInstance *testing.T) {
	testCases := []struct {
		name             string
		branchCommit     string
		expectedRequired bool
	}{
		{name: "branch_at_upstream", branchCommit: fakeInitialCommitConstant, expectedRequired: true},
		{name: "branch_ahead_of_upstream", branchCommit: "commit-7", expectedRequired: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			repository := newFakeRepository(marshmallowPackage())
			repository.branches[testMarshmallowBranchConstant] = testCase.branchCommit
			packageUpgrade := NewPackageUpgrade(marshmallowPackage(), DefaultOptions(), defaultUpstreamBranchConstant, repository.dependencies())

			firstRequired, firstError := rollbackUpgradeAction{}.Required(context.Background(), packageUpgrade)
			require.NoError(testInstance, firstError)
			secondRequired, secondError := rollbackUpgradeAction{}.Required(context.Background(), packageUpgrade)
			require.NoError(testInstance, secondError)

			require.Equal(testInstance, testCase.expectedRequired, firstRequired)
			require.Equal(testInstance, firstRequired, secondRequired)
			require.Empty(testInstance, repository.mutations)
		})
	}
}

func TestNewRunnerRequiresDependencies(testInstance *testing.T) {
	repository := newFakeRepository()

	testCases := []struct {
		name          string
		mutate        func(dependencies *Dependencies)
		expectedError error
	}{
		{name: "version_control", mutate: func(dependencies *Dependencies) { dependencies.VersionControl = nil }, expectedError: ErrVersionControlNotConfigured},
		{name: "package_manager", mutate: func(dependencies *Dependencies) { dependencies.PackageManager = nil }, expectedError: ErrPackageManagerNotConfigured},
		{name: "review_platform", mutate: func(dependencies *Dependencies) { dependencies.ReviewPlatform = nil }, expectedError: ErrReviewPlatformNotConfigured},
		{name: "reporter", mutate: func(dependencies *Dependencies) { dependencies.Reporter = nil }, expectedError: ErrReporterNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			dependencies := repository.dependencies()
			testCase.mutate(&dependencies)
			runner, runnerError := NewRunner(dependencies)
			require.Nil(testInstance, runner)
			require.ErrorIs(testInstance, runnerError, testCase.expectedError)
		})
	}
}

type manifestBackedPackageManager struct {
	*fakeRepository
	manifestClient *poetry.Client
}

func (manager manifestBackedPackageManager) UpdateConstraint(executionContext context.Context, projectPath string, pkg poetry.Package) error {
	return manager.manifestClient.UpdateConstraint(executionContext, projectPath, pkg)
}

type unusedPoetryExecutor struct{}

func (unusedPoetryExecutor) ExecutePoetry(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return execshell.ExecutionResult{}, errors.New("poetry is not available in tests")
}

func TestRunnerUpgradesTransitiveDependencyMissingFromManifest(testInstance *testing.T) {
	projectDirectory := testInstance.TempDir()
	manifestContent := "[tool.poetry.dependencies]\npython = \"^3.7\"\nrequests = \"^2.25.0\"\n"
	manifestPath := filepath.Join(projectDirectory, poetry.ManifestFileName)
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(manifestContent), 0o644))

	transitivePackage := poetry.NewPackage("urllib3", "1.26.0", "2.0.7")
	require.False(testInstance, transitivePackage.Compatible)

	manifestClient, clientError := poetry.NewClient(unusedPoetryExecutor{}, nil)
	require.NoError(testInstance, clientError)

	repository := newFakeRepository(transitivePackage)
	dependencies := repository.dependencies()
	dependencies.PackageManager = manifestBackedPackageManager{fakeRepository: repository, manifestClient: manifestClient}
	runner, runnerError := NewRunner(dependencies)
	require.NoError(testInstance, runnerError)

	options := DefaultOptions()
	options.RepositoryPath = projectDirectory
	summary, runError := runner.Run(context.Background(), options)
	require.NoError(testInstance, runError)

	require.Equal(testInstance, 1, summary.Count(OutcomeUpgraded))
	require.Equal(testInstance, []fakeUpdate{{Name: "urllib3", LockOnly: false}}, repository.updates)
	unchangedContent, readError := os.ReadFile(manifestPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, manifestContent, string(unchangedContent))
}
