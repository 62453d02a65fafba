package poetry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestFileName is the Poetry project manifest.
	ManifestFileName = "pyproject.toml"
	// LockFileName is the Poetry lock file.
	LockFileName = "poetry.lock"
)

const (
	toolTableNameConstant                       = "tool"
	poetryTableNameConstant                     = "poetry"
	dependenciesTableNameConstant               = "dependencies"
	devDependenciesTableNameConstant            = "dev-dependencies"
	groupTableNameConstant                      = "group"
	versionKeyConstant                          = "version"
	keyPathSeparatorConstant                    = '.'
	keyValueSeparatorConstant                   = "="
	arrayTableHeaderPrefixConstant              = "[["
	tableHeaderPrefixConstant                   = "["
	tableHeaderSuffixConstant                   = "]"
	commentPrefixConstant                       = "#"
	inlineTablePrefixConstant                   = "{"
	lineSeparatorConstant                       = "\n"
	manifestErrorTemplateConstant               = "%s: %s"
	manifestErrorCauseTemplateConstant          = "%s: %s: %v"
	invalidManifestMessageConstant              = "invalid TOML"
	missingPoetryTableMessageConstant           = "no [tool.poetry] table"
	unlocatedConstraintMessageTemplateConstant  = "constraint of %s could not be located"
	unexpectedConstraintMessageTemplateConstant = "constraint of %s is %v after rewrite, want %s"
)

var inlineVersionPattern = regexp.MustCompile(`(?:^|[{,\s])(version\s*=\s*)("[^"]*"|'[^']*')`)

// ManifestError reports a pyproject.toml that cannot be read, parsed, or rewritten.
type ManifestError struct {
	Path    string
	Message string
	Cause   error
}

// Error describes the manifest failure.
func (manifestError ManifestError) Error() string {
	if manifestError.Cause == nil {
		return fmt.Sprintf(manifestErrorTemplateConstant, manifestError.Path, manifestError.Message)
	}
	return fmt.Sprintf(manifestErrorCauseTemplateConstant, manifestError.Path, manifestError.Message, manifestError.Cause)
}

// Unwrap exposes the underlying cause.
func (manifestError ManifestError) Unwrap() error {
	return manifestError.Cause
}

type constraintShape int

const (
	constraintShapeString constraintShape = iota
	constraintShapeTable
	constraintShapeOther
)

type constraintLocation struct {
	tablePath []string
	key       string
	shape     constraintShape
}

// RewriteConstraint sets the version constraint of pkg to ^NewVersion.
//
// The first dependency table declaring the package wins: dependencies, then
// dev-dependencies, then each group in name order. Entries that are neither a
// string nor a table with a version key are left untouched, as are packages
// no table declares, such as transitive dependencies. The boolean result
// reports whether content changed. Formatting and comments are preserved.
func RewriteConstraint(manifestPath string, content []byte, pkg Package) ([]byte, bool, error) {
	var document map[string]any
	if decodeError := toml.Unmarshal(content, &document); decodeError != nil {
		return nil, false, ManifestError{Path: manifestPath, Message: invalidManifestMessageConstant, Cause: decodeError}
	}

	location, locateError := locateConstraint(manifestPath, document, pkg.Name)
	if locateError != nil {
		return nil, false, locateError
	}
	if location.shape == constraintShapeOther {
		return content, false, nil
	}

	constraint := fmt.Sprintf(caretConstraintTemplateConstant, pkg.NewVersion)
	rewritten, located := rewriteConstraintLines(string(content), location, constraint)
	if !located {
		return nil, false, ManifestError{Path: manifestPath, Message: fmt.Sprintf(unlocatedConstraintMessageTemplateConstant, pkg.Name)}
	}

	var rewrittenDocument map[string]any
	if decodeError := toml.Unmarshal([]byte(rewritten), &rewrittenDocument); decodeError != nil {
		return nil, false, ManifestError{Path: manifestPath, Message: invalidManifestMessageConstant, Cause: decodeError}
	}
	if actual := constraintValue(rewrittenDocument, location); actual != constraint {
		return nil, false, ManifestError{Path: manifestPath, Message: fmt.Sprintf(unexpectedConstraintMessageTemplateConstant, pkg.Name, actual, constraint)}
	}

	return []byte(rewritten), rewritten != string(content), nil
}

func locateConstraint(manifestPath string, document map[string]any, packageName string) (constraintLocation, error) {
	poetryTable, found := lookupTable(document, toolTableNameConstant, poetryTableNameConstant)
	if !found {
		return constraintLocation{}, ManifestError{Path: manifestPath, Message: missingPoetryTableMessageConstant}
	}

	canonicalName := CanonicalizeName(packageName)
	for _, tablePath := range dependencyTablePaths(poetryTable) {
		dependencyTable, tableFound := lookupTable(poetryTable, tablePath...)
		if !tableFound {
			continue
		}
		for _, key := range sortedKeys(dependencyTable) {
			if CanonicalizeName(key) != canonicalName {
				continue
			}
			location := constraintLocation{
				tablePath: append([]string{toolTableNameConstant, poetryTableNameConstant}, tablePath...),
				key:       key,
				shape:     constraintShapeOther,
			}
			switch value := dependencyTable[key].(type) {
			case string:
				location.shape = constraintShapeString
			case map[string]any:
				if _, hasVersion := value[versionKeyConstant]; hasVersion {
					location.shape = constraintShapeTable
				}
			}
			return location, nil
		}
	}

	return constraintLocation{shape: constraintShapeOther}, nil
}

func dependencyTablePaths(poetryTable map[string]any) [][]string {
	tablePaths := [][]string{{dependenciesTableNameConstant}, {devDependenciesTableNameConstant}}
	if groups, found := lookupTable(poetryTable, groupTableNameConstant); found {
		for _, groupName := range sortedKeys(groups) {
			tablePaths = append(tablePaths, []string{groupTableNameConstant, groupName, dependenciesTableNameConstant})
		}
	}
	return tablePaths
}

func constraintValue(document map[string]any, location constraintLocation) any {
	dependencyTable, found := lookupTable(document, location.tablePath...)
	if !found {
		return nil
	}
	switch value := dependencyTable[location.key].(type) {
	case map[string]any:
		return value[versionKeyConstant]
	default:
		return value
	}
}

func lookupTable(table map[string]any, path ...string) (map[string]any, bool) {
	current := table
	for _, segment := range path {
		next, found := current[segment].(map[string]any)
		if !found {
			return nil, false
		}
		current = next
	}
	return current, true
}

func sortedKeys(table map[string]any) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// rewriteConstraintLines edits the single line that holds the constraint, following the
// dependency as a key/value pair, an inline table, a dotted key, or its own sub-table.
func rewriteConstraintLines(content string, location constraintLocation, constraint string) (string, bool) {
	lines := strings.Split(content, lineSeparatorConstant)
	dependencySubTablePath := append(append([]string{}, location.tablePath...), location.key)

	var currentSection []string
	for index, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 || strings.HasPrefix(trimmedLine, commentPrefixConstant) {
			continue
		}
		if strings.HasPrefix(trimmedLine, arrayTableHeaderPrefixConstant) {
			currentSection = nil
			continue
		}
		if strings.HasPrefix(trimmedLine, tableHeaderPrefixConstant) {
			currentSection = parseTableHeader(trimmedLine)
			continue
		}

		keyText, valueText, isKeyValue := strings.Cut(line, keyValueSeparatorConstant)
		if !isKeyValue {
			continue
		}
		keyPath := parseKeyPath(keyText)
		valueOffset := len(keyText) + len(keyValueSeparatorConstant)

		var rewrittenValue string
		var rewritten bool
		switch {
		case equalPaths(currentSection, location.tablePath) && equalPaths(keyPath, []string{location.key}):
			if location.shape == constraintShapeString {
				rewrittenValue, rewritten = replaceLeadingString(valueText, constraint)
			} else if strings.HasPrefix(strings.TrimSpace(valueText), inlineTablePrefixConstant) {
				rewrittenValue, rewritten = replaceInlineVersion(valueText, constraint)
			}
		case location.shape == constraintShapeTable && equalPaths(currentSection, location.tablePath) && equalPaths(keyPath, []string{location.key, versionKeyConstant}):
			rewrittenValue, rewritten = replaceLeadingString(valueText, constraint)
		case location.shape == constraintShapeTable && equalPaths(currentSection, dependencySubTablePath) && equalPaths(keyPath, []string{versionKeyConstant}):
			rewrittenValue, rewritten = replaceLeadingString(valueText, constraint)
		}
		if rewritten {
			lines[index] = line[:valueOffset] + rewrittenValue
			return strings.Join(lines, lineSeparatorConstant), true
		}
	}
	return content, false
}

func parseTableHeader(trimmedLine string) []string {
	closingIndex := strings.LastIndex(trimmedLine, tableHeaderSuffixConstant)
	if closingIndex <= 0 {
		return nil
	}
	return parseKeyPath(trimmedLine[len(tableHeaderPrefixConstant):closingIndex])
}

// parseKeyPath splits a TOML key on dots outside quotes and strips quoting.
func parseKeyPath(keyText string) []string {
	var segments []string
	var segment strings.Builder
	var quote byte
	for index := 0; index < len(keyText); index++ {
		character := keyText[index]
		switch {
		case quote != 0:
			if character == quote {
				quote = 0
				continue
			}
			segment.WriteByte(character)
		case character == '"' || character == '\'':
			quote = character
		case character == keyPathSeparatorConstant:
			segments = append(segments, strings.TrimSpace(segment.String()))
			segment.Reset()
		default:
			segment.WriteByte(character)
		}
	}
	return append(segments, strings.TrimSpace(segment.String()))
}

func equalPaths(left []string, right []string) bool {
	if len(left) != len(right) {
		return false
	}
	for index := range left {
		if left[index] != right[index] {
			return false
		}
	}
	return true
}

// replaceLeadingString swaps the contents of the string literal that starts the value.
func replaceLeadingString(valueText string, replacement string) (string, bool) {
	trimmedValue := strings.TrimLeft(valueText, " \t")
	if len(trimmedValue) == 0 {
		return valueText, false
	}
	quote := trimmedValue[0]
	if quote != '"' && quote != '\'' {
		return valueText, false
	}
	closingIndex := strings.IndexByte(trimmedValue[1:], quote)
	if closingIndex < 0 {
		return valueText, false
	}
	leadingWhitespace := valueText[:len(valueText)-len(trimmedValue)]
	remainder := trimmedValue[closingIndex+2:]
	return leadingWhitespace + string(quote) + replacement + string(quote) + remainder, true
}

func replaceInlineVersion(valueText string, replacement string) (string, bool) {
	matchIndexes := inlineVersionPattern.FindStringSubmatchIndex(valueText)
	if matchIndexes == nil {
		return valueText, false
	}
	literalStart, literalEnd := matchIndexes[4], matchIndexes[5]
	quote := valueText[literalStart]
	return valueText[:literalStart] + string(quote) + replacement + string(quote) + valueText[literalEnd:], true
}
