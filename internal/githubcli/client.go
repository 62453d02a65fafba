package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/poetry-up/internal/execshell"
)

const (
	pullRequestSubcommandConstant           = "pr"
	listSubcommandConstant                  = "list"
	createSubcommandConstant                = "create"
	jsonFlagConstant                        = "--json"
	headFlagConstant                        = "--head"
	stateFlagConstant                       = "--state"
	limitFlagConstant                       = "--limit"
	titleFlagTemplateConstant               = "--title=%s"
	bodyFlagTemplateConstant                = "--body=%s"
	headBranchFieldNameConstant             = "head_branch"
	titleFieldNameConstant                  = "title"
	stateFieldNameConstant                  = "state"
	requiredValueMessageConstant            = "value required"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	pullRequestLimitDefaultValueConstant    = 100
	pullRequestJSONFieldsConstant           = "number,title,headRefName"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	listPullRequestsOperationNameConstant   = OperationName("ListPullRequests")
	createPullRequestOperationNameConstant  = OperationName("CreatePullRequest")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// PullRequestState describes acceptable GitHub pull request states.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateMerged PullRequestState = PullRequestState("merged")
)

// PullRequest represents minimal PR details returned by GitHub CLI.
type PullRequest struct {
	Number      int
	Title       string
	HeadRefName string
}

// PullRequestListOptions configures ListPullRequests queries.
type PullRequestListOptions struct {
	State       PullRequestState
	HeadBranch  string
	ResultLimit int
}

// PullRequestCreateOptions describes a pull request to open.
type PullRequestCreateOptions struct {
	Title      string
	Body       string
	HeadBranch string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor GitHubCommandExecutor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
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

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

// ListPullRequests enumerates pull requests of the repository checked out at repositoryPath using gh pr list.
func (client *Client) ListPullRequests(executionContext context.Context, repositoryPath string, options PullRequestListOptions) ([]PullRequest, error) {
	if len(options.State) == 0 {
		return nil, InvalidInputError{FieldName: stateFieldNameConstant, Message: requiredValueMessageConstant}
	}

	resultLimit := options.ResultLimit
	if resultLimit <= 0 {
		resultLimit = pullRequestLimitDefaultValueConstant
	}

	arguments := []string{pullRequestSubcommandConstant, listSubcommandConstant}
	if headBranch := strings.TrimSpace(options.HeadBranch); len(headBranch) > 0 {
		arguments = append(arguments, headFlagConstant, headBranch)
	}
	arguments = append(arguments,
		stateFlagConstant,
		string(options.State),
		jsonFlagConstant,
		pullRequestJSONFieldsConstant,
		limitFlagConstant,
		strconv.Itoa(resultLimit),
	)

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: strings.TrimSpace(repositoryPath),
	})
	if executionError != nil {
		return nil, OperationError{Operation: listPullRequestsOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		HeadRefName string `json:"headRefName"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: decodingError}
	}

	pullRequests := make([]PullRequest, 0, len(response))
	for _, pullRequestEntry := range response {
		pullRequests = append(pullRequests, PullRequest{
			Number:      pullRequestEntry.Number,
			Title:       pullRequestEntry.Title,
			HeadRefName: pullRequestEntry.HeadRefName,
		})
	}

	return pullRequests, nil
}

// PullRequestExists reports whether an open pull request already uses branch as its head.
func (client *Client) PullRequestExists(executionContext context.Context, repositoryPath string, branch string) (bool, error) {
	headBranch := strings.TrimSpace(branch)
	if len(headBranch) == 0 {
		return false, InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	pullRequests, listError := client.ListPullRequests(executionContext, repositoryPath, PullRequestListOptions{
		State:      PullRequestStateOpen,
		HeadBranch: headBranch,
	})
	if listError != nil {
		return false, listError
	}

	return len(pullRequests) > 0, nil
}

// CreatePullRequest opens a pull request for the head branch using gh pr create.
func (client *Client) CreatePullRequest(executionContext context.Context, repositoryPath string, options PullRequestCreateOptions) error {
	headBranch := strings.TrimSpace(options.HeadBranch)
	if len(headBranch) == 0 {
		return InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.Title)) == 0 {
		return InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			createSubcommandConstant,
			headFlagConstant,
			headBranch,
			fmt.Sprintf(titleFlagTemplateConstant, options.Title),
			fmt.Sprintf(bodyFlagTemplateConstant, options.Body),
		},
		WorkingDirectory: strings.TrimSpace(repositoryPath),
	}

	if _, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails); executionError != nil {
		return OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}
	return nil
}
