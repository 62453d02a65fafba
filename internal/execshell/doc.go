// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions poetry-up uses to run
// git, gh, and poetry in a testable manner.
package execshell
