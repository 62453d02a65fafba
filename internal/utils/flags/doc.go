// Package flags provides pflag helpers for yes/no toggles and enumerated choices.
package flags
