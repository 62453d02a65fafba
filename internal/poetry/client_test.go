package poetry_test

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
	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	testProjectPathConstant     = "/workspace/project"
	testOutdatedOutputConstant  = "marshmallow 3.0.0 3.5.1 A lightweight library\n"
	testInitialManifestConstant = "[tool.poetry]\nname = \"example\"\n\n[tool.poetry.dependencies]\npython = \"^3.7\"\nmarshmallow = \"^3.0.0\"\n"
)

type stubPoetryExecutor struct {
	result          execshell.ExecutionResult
	err             error
	recordedDetails []execshell.CommandDetails
}

func (executor *stubPoetryExecutor) ExecutePoetry(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	return executor.result, executor.err
}

func TestNewClientRequiresExecutor(testInstance *testing.T) {
	client, creationError := poetry.NewClient(nil, zap.NewNop())
	require.ErrorIs(testInstance, creationError, poetry.ErrExecutorNotConfigured)
	require.Nil(testInstance, client)
}

func TestListOutdated(testInstance *testing.T) {
	executor := &stubPoetryExecutor{result: execshell.ExecutionResult{StandardOutput: testOutdatedOutputConstant}}
	client, creationError := poetry.NewClient(executor, nil)
	require.NoError(testInstance, creationError)

	packages, listError := client.ListOutdated(context.Background(), testProjectPathConstant)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []poetry.Package{{Name: "marshmallow", OldVersion: "3.0.0", NewVersion: "3.5.1", Compatible: true}}, packages)

	require.Len(testInstance, executor.recordedDetails, 1)
	require.Equal(testInstance, []string{"show", "--outdated", "--no-ansi"}, executor.recordedDetails[0].Arguments)
	require.Equal(testInstance, testProjectPathConstant, executor.recordedDetails[0].WorkingDirectory)
	require.Equal(testInstance, "1", executor.recordedDetails[0].EnvironmentVariables["POETRY_NO_INTERACTION"])
}

func TestListOutdatedWrapsFailures(testInstance *testing.T) {
	executor := &stubPoetryExecutor{err: execshell.CommandFailedError{Command: execshell.ShellCommand{Name: execshell.CommandPoetry}, Result: execshell.ExecutionResult{ExitCode: 1}}}
	client, creationError := poetry.NewClient(executor, nil)
	require.NoError(testInstance, creationError)

	packages, listError := client.ListOutdated(context.Background(), testProjectPathConstant)
	require.Nil(testInstance, packages)
	require.IsType(testInstance, poetry.OperationError{}, listError)
}

func TestUpdateArguments(testInstance *testing.T) {
	testCases := []struct {
		name              string
		lockOnly          bool
		expectedArguments []string
	}{
		{name: "install", expectedArguments: []string{"update", "marshmallow"}},
		{name: "lock_only", lockOnly: true, expectedArguments: []string{"update", "--lock", "marshmallow"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubPoetryExecutor{}
			client, creationError := poetry.NewClient(executor, nil)
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, client.Update(context.Background(), testProjectPathConstant, "marshmallow", testCase.lockOnly))
			require.Equal(testInstance, testCase.expectedArguments, executor.recordedDetails[0].Arguments)
		})
	}
}

func TestUpdateValidationAndFailure(testInstance *testing.T) {
	executor := &stubPoetryExecutor{err: errors.New("boom")}
	client, creationError := poetry.NewClient(executor, nil)
	require.NoError(testInstance, creationError)

	require.IsType(testInstance, poetry.InvalidInputError{}, client.Update(context.Background(), testProjectPathConstant, " ", false))
	require.Empty(testInstance, executor.recordedDetails)

	updateError := client.Update(context.Background(), testProjectPathConstant, "marshmallow", false)
	require.IsType(testInstance, poetry.OperationError{}, updateError)
}

func TestUpdateConstraintRewritesManifest(testInstance *testing.T) {
	projectDirectory := testInstance.TempDir()
	manifestPath := filepath.Join(projectDirectory, poetry.ManifestFileName)
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(testInitialManifestConstant), 0o644))

	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	client, creationError := poetry.NewClient(&stubPoetryExecutor{}, zap.New(observerCore))
	require.NoError(testInstance, creationError)

	pkg := poetry.NewPackage("marshmallow", "3.0.0", "4.0.0")
	require.False(testInstance, pkg.Compatible)
	require.NoError(testInstance, client.UpdateConstraint(context.Background(), projectDirectory, pkg))

	rewrittenContent, readError := os.ReadFile(manifestPath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(rewrittenContent), "marshmallow = \"^4.0.0\"\n")
	require.Contains(testInstance, string(rewrittenContent), "python = \"^3.7\"\n")

	entries := observedLogs.FilterMessage("Widened version constraint").All()
	require.Len(testInstance, entries, 1)
	diff, found := entries[0].ContextMap()["diff"].(string)
	require.True(testInstance, found)
	require.Contains(testInstance, diff, "-marshmallow = \"^3.0.0\"")
	require.Contains(testInstance, diff, "+marshmallow = \"^4.0.0\"")
}

func TestUpdateConstraintMissingManifest(testInstance *testing.T) {
	client, creationError := poetry.NewClient(&stubPoetryExecutor{}, nil)
	require.NoError(testInstance, creationError)

	updateError := client.UpdateConstraint(context.Background(), testInstance.TempDir(), poetry.Package{Name: "marshmallow", NewVersion: "3.5.1"})
	var manifestError poetry.ManifestError
	require.ErrorAs(testInstance, updateError, &manifestError)
	require.ErrorIs(testInstance, updateError, os.ErrNotExist)
}

func TestUpdateConstraintLeavesTransitiveDependencyUntouched(testInstance *testing.T) {
	projectDirectory := testInstance.TempDir()
	manifestPath := filepath.Join(projectDirectory, poetry.ManifestFileName)
	manifestContent := "[tool.poetry.dependencies]\npython = \"^3.7\"\nrequests = \"^2.25.0\"\n"
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(manifestContent), 0o644))

	observerCore, observedLogs := observer.New(zapcore.DebugLevel)
	client, creationError := poetry.NewClient(&stubPoetryExecutor{}, zap.New(observerCore))
	require.NoError(testInstance, creationError)

	pkg := poetry.NewPackage("urllib3", "1.26.0", "2.0.7")
	require.False(testInstance, pkg.Compatible)
	require.NoError(testInstance, client.UpdateConstraint(context.Background(), projectDirectory, pkg))

	unchangedContent, readError := os.ReadFile(manifestPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, manifestContent, string(unchangedContent))
	require.Len(testInstance, observedLogs.FilterMessage("Version constraint left unchanged").All(), 1)
}
