// Package ui turns command execution events into short console log lines.
//
// Poetry and git invocations are rendered as "Updating marshmallow in /path"
// style messages when console logging is selected, while the structured
// format keeps the raw command telemetry.
package ui
