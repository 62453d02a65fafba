// Package poetry drives the Poetry package manager for upgrade runs.
//
// Client lists outdated packages, updates a single package either in the
// environment or in the lock file only, and widens the version constraint of
// a package in pyproject.toml when the available version falls outside it.
package poetry
