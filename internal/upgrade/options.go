package upgrade

import (
	"fmt"
	"strings"

	"github.com/temirov/poetry-up/internal/poetry"
)

const (
	defaultUpstreamBranchConstant       = "master"
	defaultRemoteNameConstant           = "origin"
	defaultRepositoryPathConstant       = "."
	invalidOptionsErrorTemplateConstant = "invalid options: %s %s"
	mergeRequestFieldNameConstant       = "merge_request"
	upstreamFieldNameConstant           = "upstream"
	remoteFieldNameConstant             = "remote"
	repositoryPathFieldNameConstant     = "cwd"
	requiresPushMessageConstant         = "requires push"
	requiredValueMessageConstant        = "must not be empty"
)

// Options controls a single upgrade run. It is built once and never mutated afterwards.
type Options struct {
	Install        bool
	Commit         bool
	Push           bool
	MergeRequest   bool
	PullRequest    bool
	Latest         bool
	Upstream       string
	Remote         string
	DryRun         bool
	Packages       []string
	RepositoryPath string
}

// DefaultOptions mirrors the command line defaults.
func DefaultOptions() Options {
	return Options{
		Install:        true,
		Commit:         true,
		Latest:         true,
		Upstream:       defaultUpstreamBranchConstant,
		Remote:         defaultRemoteNameConstant,
		RepositoryPath: defaultRepositoryPathConstant,
	}
}

// InvalidOptionsError reports an option combination that cannot be executed.
type InvalidOptionsError struct {
	FieldName string
	Message   string
}

// Error describes the invalid option.
func (optionsError InvalidOptionsError) Error() string {
	return fmt.Sprintf(invalidOptionsErrorTemplateConstant, optionsError.FieldName, optionsError.Message)
}

// Validate rejects option combinations that would fail halfway through a run.
func (options Options) Validate() error {
	if options.MergeRequest && !options.Push {
		return InvalidOptionsError{FieldName: mergeRequestFieldNameConstant, Message: requiresPushMessageConstant}
	}
	if len(strings.TrimSpace(options.Upstream)) == 0 {
		return InvalidOptionsError{FieldName: upstreamFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if options.Push && len(strings.TrimSpace(options.Remote)) == 0 {
		return InvalidOptionsError{FieldName: remoteFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(options.RepositoryPath)) == 0 {
		return InvalidOptionsError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return nil
}

// branchSwitchRequested reports whether upgrades happen on a dedicated branch.
func (options Options) branchSwitchRequested() bool {
	return options.Commit || options.Push || options.PullRequest
}

// includesPackage applies the allow-list; an empty list admits every package.
func (options Options) includesPackage(packageName string) bool {
	if len(options.Packages) == 0 {
		return true
	}
	canonicalName := poetry.CanonicalizeName(packageName)
	for _, allowedName := range options.Packages {
		if poetry.CanonicalizeName(strings.TrimSpace(allowedName)) == canonicalName {
			return true
		}
	}
	return false
}
