package poetry

import (
	"regexp"
	"strings"
)

const (
	canonicalNameSeparatorConstant    = "-"
	versionComponentSeparatorConstant = "."
	caretConstraintTemplateConstant   = "^%s"
)

var (
	canonicalNamePattern = regexp.MustCompile(`[-_.]+`)
	outdatedLinePattern  = regexp.MustCompile(`^([a-z][-a-z0-9]*) +[ (!)]*([0-9][.0-9a-z]*) +([0-9][.0-9a-z]*) +`)
	leadingDigitsPattern = regexp.MustCompile(`^[0-9]+`)
)

// Package describes an installed dependency with a newer version available.
type Package struct {
	Name       string
	OldVersion string
	NewVersion string
	Compatible bool
}

// NewPackage builds a Package and derives Compatible from the caret range of oldVersion.
func NewPackage(name string, oldVersion string, newVersion string) Package {
	return Package{
		Name:       name,
		OldVersion: oldVersion,
		NewVersion: newVersion,
		Compatible: IsCaretCompatible(oldVersion, newVersion),
	}
}

// CanonicalizeName normalizes a distribution name so that "Foo_Bar" and "foo-bar" compare equal.
func CanonicalizeName(name string) string {
	return strings.ToLower(canonicalNamePattern.ReplaceAllString(name, canonicalNameSeparatorConstant))
}

// IsCaretCompatible reports whether newVersion satisfies ^oldVersion.
//
// Release components are compared up to and including the leftmost non-zero
// component of oldVersion; an all-zero oldVersion pins every component.
func IsCaretCompatible(oldVersion string, newVersion string) bool {
	oldComponents := releaseComponents(oldVersion)
	newComponents := releaseComponents(newVersion)
	if len(oldComponents) == 0 || len(newComponents) == 0 {
		return false
	}

	significantIndex := len(oldComponents) - 1
	for index, component := range oldComponents {
		if component != "0" {
			significantIndex = index
			break
		}
	}

	for index := 0; index <= significantIndex; index++ {
		newComponent := "0"
		if index < len(newComponents) {
			newComponent = newComponents[index]
		}
		if newComponent != oldComponents[index] {
			return false
		}
	}
	return true
}

// releaseComponents returns the leading numeric part of each dot-separated component, stripped of leading zeros.
func releaseComponents(version string) []string {
	rawComponents := strings.Split(strings.TrimSpace(version), versionComponentSeparatorConstant)
	components := make([]string, 0, len(rawComponents))
	for _, rawComponent := range rawComponents {
		digits := leadingDigitsPattern.FindString(rawComponent)
		if len(digits) == 0 {
			break
		}
		trimmed := strings.TrimLeft(digits, "0")
		if len(trimmed) == 0 {
			trimmed = "0"
		}
		components = append(components, trimmed)
		if len(digits) != len(rawComponent) {
			break
		}
	}
	return components
}

// ParseOutdated extracts packages from the output of poetry show --outdated --no-ansi.
// Lines that do not describe a package are skipped.
func ParseOutdated(output string) []Package {
	var packages []Package
	for _, line := range strings.Split(output, "\n") {
		match := outdatedLinePattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if match == nil {
			continue
		}
		packages = append(packages, NewPackage(match[1], match[2], match[3]))
	}
	return packages
}
