package flags

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const (
	testLogFormatFlagNameConstant   = "log-format"
	testLogFormatDescription        = "Override the configured log format."
	testStructuredChoiceConstant    = "structured"
	testConsoleChoiceConstant       = "console"
	testConsoleUpperChoiceConstant  = "CONSOLE"
	testUnknownChoiceConstant       = "xml"
	testChoiceErrorMessageConstant  = "invalid value \"xml\", expected one of [structured, console]"
	testExpectedChoiceUsageConstant = "`<STRUCTURED|console>` Override the configured log format."
)

func TestFormatChoiceUsage(testInstance *testing.T) {
	testCases := []struct {
		name           string
		defaultChoice  string
		choices        []string
		description    string
		expectedOutput string
	}{
		{
			name:           "log_format_default_first",
			defaultChoice:  testStructuredChoiceConstant,
			choices:        []string{testStructuredChoiceConstant, testConsoleChoiceConstant},
			description:    testLogFormatDescription,
			expectedOutput: testExpectedChoiceUsageConstant,
		},
		{
			name:           "log_level_default_in_middle",
			defaultChoice:  "info",
			choices:        []string{"debug", "info", "warn", "error"},
			description:    "Override the configured log level.",
			expectedOutput: "`<debug|INFO|warn|error>` Override the configured log level.",
		},
		{
			name:           "empty_description",
			defaultChoice:  "warn",
			choices:        []string{"warn", "error"},
			expectedOutput: "`<WARN|error>`",
		},
		{
			name:           "duplicates_and_whitespace_collapsed",
			defaultChoice:  " Console ",
			choices:        []string{" console ", "CONSOLE", "structured", ""},
			description:    testLogFormatDescription,
			expectedOutput: "`<CONSOLE|structured>` Override the configured log format.",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedOutput, FormatChoiceUsage(testCase.defaultChoice, testCase.choices, testCase.description))
		})
	}
}

func TestAddChoiceFlag(testInstance *testing.T) {
	testCases := []struct {
		name          string
		arguments     []string
		expectedValue string
		expectedError string
	}{
		{name: "unset_keeps_target", arguments: []string{}, expectedValue: ""},
		{name: "lower_case_choice", arguments: []string{"--log-format", testConsoleChoiceConstant}, expectedValue: testConsoleChoiceConstant},
		{name: "upper_case_choice", arguments: []string{"--log-format=" + testConsoleUpperChoiceConstant}, expectedValue: testConsoleChoiceConstant},
		{name: "unknown_choice", arguments: []string{"--log-format", testUnknownChoiceConstant}, expectedError: testChoiceErrorMessageConstant},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			flagSet := pflag.NewFlagSet(testCase.name, pflag.ContinueOnError)
			var target string
			AddChoiceFlag(flagSet, &target, testLogFormatFlagNameConstant, testStructuredChoiceConstant, []string{testStructuredChoiceConstant, testConsoleChoiceConstant}, testLogFormatDescription)

			parseError := flagSet.Parse(testCase.arguments)
			if len(testCase.expectedError) > 0 {
				require.Error(testInstance, parseError)
				require.Contains(testInstance, parseError.Error(), testCase.expectedError)
				return
			}

			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedValue, target)
			require.Equal(testInstance, testExpectedChoiceUsageConstant, flagSet.Lookup(testLogFormatFlagNameConstant).Usage)
		})
	}
}
