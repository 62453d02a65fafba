// Package gitrepo wraps the git operations an upgrade run needs.
//
// RepositoryManager reads and moves the current branch, detects uncommitted
// changes, stages and commits files, and pushes branches with optional merge
// request push options. All calls go through a GitExecutor so tests can
// record the issued commands.
package gitrepo
