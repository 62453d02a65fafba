package upgrade

import (
	"strings"

	pathutils "github.com/temirov/poetry-up/internal/utils/path"
)

var upgradeConfigurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	configurationInstallKeyConstant        = "install"
	configurationCommitKeyConstant         = "commit"
	configurationPushKeyConstant           = "push"
	configurationMergeRequestKeyConstant   = "merge_request"
	configurationPullRequestKeyConstant    = "pull_request"
	configurationLatestKeyConstant         = "latest"
	configurationUpstreamKeyConstant       = "upstream"
	configurationRemoteKeyConstant         = "remote"
	configurationDryRunKeyConstant         = "dry_run"
	configurationPackagesKeyConstant       = "packages"
	configurationRepositoryPathKeyConstant = "cwd"
	configurationKeySeparatorConstant      = "."
)

// CommandConfiguration captures persisted defaults for the upgrade command.
type CommandConfiguration struct {
	Install        bool     `mapstructure:"install"`
	Commit         bool     `mapstructure:"commit"`
	Push           bool     `mapstructure:"push"`
	MergeRequest   bool     `mapstructure:"merge_request"`
	PullRequest    bool     `mapstructure:"pull_request"`
	Latest         bool     `mapstructure:"latest"`
	Upstream       string   `mapstructure:"upstream"`
	Remote         string   `mapstructure:"remote"`
	DryRun         bool     `mapstructure:"dry_run"`
	Packages       []string `mapstructure:"packages"`
	RepositoryPath string   `mapstructure:"cwd"`
}

// DefaultConfiguration supplies baseline values for the upgrade command.
func DefaultConfiguration() CommandConfiguration {
	defaultOptions := DefaultOptions()
	return CommandConfiguration{
		Install:        defaultOptions.Install,
		Commit:         defaultOptions.Commit,
		Push:           defaultOptions.Push,
		MergeRequest:   defaultOptions.MergeRequest,
		PullRequest:    defaultOptions.PullRequest,
		Latest:         defaultOptions.Latest,
		Upstream:       defaultOptions.Upstream,
		Remote:         defaultOptions.Remote,
		DryRun:         defaultOptions.DryRun,
		RepositoryPath: defaultOptions.RepositoryPath,
	}
}

// DefaultConfigurationValues flattens DefaultConfiguration into Viper default keys under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	keyPrefix := strings.TrimSpace(prefix)
	if len(keyPrefix) > 0 {
		keyPrefix += configurationKeySeparatorConstant
	}
	return map[string]any{
		keyPrefix + configurationInstallKeyConstant:        defaults.Install,
		keyPrefix + configurationCommitKeyConstant:         defaults.Commit,
		keyPrefix + configurationPushKeyConstant:           defaults.Push,
		keyPrefix + configurationMergeRequestKeyConstant:   defaults.MergeRequest,
		keyPrefix + configurationPullRequestKeyConstant:    defaults.PullRequest,
		keyPrefix + configurationLatestKeyConstant:         defaults.Latest,
		keyPrefix + configurationUpstreamKeyConstant:       defaults.Upstream,
		keyPrefix + configurationRemoteKeyConstant:         defaults.Remote,
		keyPrefix + configurationDryRunKeyConstant:         defaults.DryRun,
		keyPrefix + configurationPackagesKeyConstant:       []string{},
		keyPrefix + configurationRepositoryPathKeyConstant: defaults.RepositoryPath,
	}
}

// Sanitize trims configured values, expands the home directory in cwd, and drops empty package names.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Upstream = strings.TrimSpace(configuration.Upstream)
	sanitized.Remote = strings.TrimSpace(configuration.Remote)
	sanitized.RepositoryPath = upgradeConfigurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.RepositoryPath))
	sanitized.Packages = sanitizePackageNames(configuration.Packages)
	return sanitized
}

// Options converts the configuration into run options.
func (configuration CommandConfiguration) Options() Options {
	return Options{
		Install:        configuration.Install,
		Commit:         configuration.Commit,
		Push:           configuration.Push,
		MergeRequest:   configuration.MergeRequest,
		PullRequest:    configuration.PullRequest,
		Latest:         configuration.Latest,
		Upstream:       configuration.Upstream,
		Remote:         configuration.Remote,
		DryRun:         configuration.DryRun,
		Packages:       configuration.Packages,
		RepositoryPath: configuration.RepositoryPath,
	}
}

func sanitizePackageNames(candidateNames []string) []string {
	sanitizedNames := make([]string, 0, len(candidateNames))
	for _, candidateName := range candidateNames {
		trimmedName := strings.TrimSpace(candidateName)
		if len(trimmedName) == 0 {
			continue
		}
		sanitizedNames = append(sanitizedNames, trimmedName)
	}
	if len(sanitizedNames) == 0 {
		return nil
	}
	return sanitizedNames
}
