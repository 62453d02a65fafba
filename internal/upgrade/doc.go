// Package upgrade implements the per-package dependency upgrade workflow.
//
// Runner validates the working tree, lists outdated packages, and drives a
// PackageUpgrade for each eligible one. A PackageUpgrade walks a fixed
// sequence of actions (switch branch, apply update, commit, roll back, push,
// open pull request), evaluating each action's guard just before it would
// run. CommandBuilder exposes the workflow as the poetry-up root command.
package upgrade
