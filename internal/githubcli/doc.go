// Package githubcli talks to GitHub through the gh command line tool.
//
// Client lists the open pull requests of a branch and opens new ones for
// pushed upgrade branches. It relies on execshell for process execution
// and decodes gh JSON output into typed values.
package githubcli
