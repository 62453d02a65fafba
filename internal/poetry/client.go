package poetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"go.uber.org/zap"

	"github.com/temirov/poetry-up/internal/execshell"
)

const (
	showSubcommandConstant                  = "show"
	outdatedFlagConstant                    = "--outdated"
	noAnsiFlagConstant                      = "--no-ansi"
	updateSubcommandConstant                = "update"
	lockFlagConstant                        = "--lock"
	noInteractionEnvironmentNameConstant    = "POETRY_NO_INTERACTION"
	noInteractionEnvironmentValueConstant   = "1"
	executorNotConfiguredMessageConstant    = "poetry executor not configured"
	requiredValueMessageConstant            = "value required"
	invalidInputErrorTemplateConstant       = "%s: %s"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	packageNameFieldNameConstant            = "package_name"
	newVersionFieldNameConstant             = "new_version"
	readManifestMessageConstant             = "unable to read manifest"
	writeManifestMessageConstant            = "unable to write manifest"
	constraintRewrittenMessageConstant      = "Widened version constraint"
	constraintUnchangedMessageConstant      = "Version constraint left unchanged"
	logFieldPackageConstant                 = "package"
	logFieldConstraintConstant              = "constraint"
	logFieldManifestConstant                = "manifest"
	logFieldDiffConstant                    = "diff"
	listOutdatedOperationNameConstant       = OperationName("ListOutdated")
	updateOperationNameConstant             = OperationName("Update")
)

// OperationName identifies a Poetry workflow performed by Client.
type OperationName string

// ErrExecutorNotConfigured indicates the client was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// PoetryCommandExecutor is the subset of execshell.ShellExecutor used by Client.
type PoetryCommandExecutor interface {
	ExecutePoetry(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for Poetry operations.
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

// Client runs Poetry commands and edits the project manifest.
type Client struct {
	executor PoetryCommandExecutor
	logger   *zap.Logger
}

// NewClient constructs a Client. A nil logger discards manifest diagnostics.
func NewClient(executor PoetryCommandExecutor, logger *zap.Logger) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{executor: executor, logger: logger}, nil
}

// ListOutdated returns the packages poetry reports as outdated, in output order.
func (client *Client) ListOutdated(executionContext context.Context, projectPath string) ([]Package, error) {
	executionResult, executionError := client.run(executionContext, projectPath, showSubcommandConstant, outdatedFlagConstant, noAnsiFlagConstant)
	if executionError != nil {
		return nil, OperationError{Operation: listOutdatedOperationNameConstant, Cause: executionError}
	}
	return ParseOutdated(executionResult.StandardOutput), nil
}

// Update upgrades a single package. With lockOnly the environment is left untouched.
func (client *Client) Update(executionContext context.Context, projectPath string, packageName string, lockOnly bool) error {
	trimmedName := strings.TrimSpace(packageName)
	if len(trimmedName) == 0 {
		return InvalidInputError{FieldName: packageNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	arguments := []string{updateSubcommandConstant}
	if lockOnly {
		arguments = append(arguments, lockFlagConstant)
	}
	arguments = append(arguments, trimmedName)

	if _, executionError := client.run(executionContext, projectPath, arguments...); executionError != nil {
		return OperationError{Operation: updateOperationNameConstant, Cause: executionError}
	}
	return nil
}

// UpdateConstraint rewrites the manifest so the package constraint becomes ^NewVersion.
func (client *Client) UpdateConstraint(executionContext context.Context, projectPath string, pkg Package) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if len(strings.TrimSpace(pkg.Name)) == 0 {
		return InvalidInputError{FieldName: packageNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(pkg.NewVersion)) == 0 {
		return InvalidInputError{FieldName: newVersionFieldNameConstant, Message: requiredValueMessageConstant}
	}

	manifestPath := filepath.Join(projectPath, ManifestFileName)
	manifestInfo, statError := os.Stat(manifestPath)
	if statError != nil {
		return ManifestError{Path: manifestPath, Message: readManifestMessageConstant, Cause: statError}
	}
	originalContent, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return ManifestError{Path: manifestPath, Message: readManifestMessageConstant, Cause: readError}
	}

	rewrittenContent, changed, rewriteError := RewriteConstraint(manifestPath, originalContent, pkg)
	if rewriteError != nil {
		return rewriteError
	}

	constraint := fmt.Sprintf(caretConstraintTemplateConstant, pkg.NewVersion)
	if !changed {
		client.logger.Debug(constraintUnchangedMessageConstant,
			zap.String(logFieldPackageConstant, pkg.Name),
			zap.String(logFieldManifestConstant, manifestPath),
		)
		return nil
	}

	if writeError := os.WriteFile(manifestPath, rewrittenContent, manifestInfo.Mode().Perm()); writeError != nil {
		return ManifestError{Path: manifestPath, Message: writeManifestMessageConstant, Cause: writeError}
	}

	client.logger.Debug(constraintRewrittenMessageConstant,
		zap.String(logFieldPackageConstant, pkg.Name),
		zap.String(logFieldConstraintConstant, constraint),
		zap.String(logFieldManifestConstant, manifestPath),
		zap.String(logFieldDiffConstant, udiff.Unified(ManifestFileName, ManifestFileName, string(originalContent), string(rewrittenContent))),
	)
	return nil
}

func (client *Client) run(executionContext context.Context, projectPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return client.executor.ExecutePoetry(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     strings.TrimSpace(projectPath),
		EnvironmentVariables: map[string]string{noInteractionEnvironmentNameConstant: noInteractionEnvironmentValueConstant},
	})
}
