package upgrade

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/temirov/poetry-up/internal/poetry"
	"github.com/temirov/poetry-up/internal/utils"
)

const (
	statusLineTemplateConstant  = "%s: %s → %s\n"
	skippedLineTemplateConstant = "Skipping %s %s (Poetry refused upgrade)\n"
)

// ConsoleReporter writes status lines and skip notices, optionally colored.
type ConsoleReporter struct {
	writer            io.Writer
	nameColor         *color.Color
	oldVersionColor   *color.Color
	compatibleColor   *color.Color
	incompatibleColor *color.Color
}

// NewConsoleReporter constructs a reporter writing to writer.
func NewConsoleReporter(writer io.Writer, colorize bool) *ConsoleReporter {
	reporter := &ConsoleReporter{
		writer:            utils.NewFlushingWriter(writer),
		nameColor:         color.New(color.FgHiGreen),
		oldVersionColor:   color.New(color.FgBlue),
		compatibleColor:   color.New(color.FgRed),
		incompatibleColor: color.New(color.FgYellow),
	}
	for _, palette := range []*color.Color{reporter.nameColor, reporter.oldVersionColor, reporter.compatibleColor, reporter.incompatibleColor} {
		if colorize {
			palette.EnableColor()
		} else {
			palette.DisableColor()
		}
	}
	return reporter
}

// ReportPackage prints "name: old → new"; the new version is red when compatible and yellow otherwise.
func (reporter *ConsoleReporter) ReportPackage(pkg poetry.Package) {
	newVersionColor := reporter.incompatibleColor
	if pkg.Compatible {
		newVersionColor = reporter.compatibleColor
	}
	fmt.Fprintf(reporter.writer, statusLineTemplateConstant,
		reporter.nameColor.Sprint(pkg.Name),
		reporter.oldVersionColor.Sprint(pkg.OldVersion),
		newVersionColor.Sprint(pkg.NewVersion),
	)
}

// ReportSkipped prints the notice for an upgrade Poetry declined to perform.
func (reporter *ConsoleReporter) ReportSkipped(pkg poetry.Package) {
	fmt.Fprintf(reporter.writer, skippedLineTemplateConstant, pkg.Name, pkg.NewVersion)
}
