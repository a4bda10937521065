// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/story-manager/internal/db"
	"github.com/jonathan/story-manager/internal/story"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fitLine(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fitLine(line))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// fitLine truncates or pads line to the box's inner width, counting runes.
func fitLine(line string) string {
	width := boxWidth - 4
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return line + strings.Repeat(" ", width-len(runes))
}

// PrintMigrationStatus outputs the schema version and dirty flag.
func (p *Printer) PrintMigrationStatus(version uint, dirty bool) {
	var sb strings.Builder
	if version == 0 {
		sb.WriteString("Version:  none (no migrations applied)\n")
	} else {
		sb.WriteString(fmt.Sprintf("Version:  %d\n", version))
	}
	state := "clean"
	if dirty {
		state = "DIRTY (fix by hand, then run 'migrate force')"
	}
	sb.WriteString(fmt.Sprintf("State:    %s", state))

	p.printBox("SCHEMA MIGRATIONS", sb.String())
}

// PrintStories outputs each story with its languages and content formats.
func (p *Printer) PrintStories(stories []story.Story) {
	if len(stories) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total stories: %d\n\n", len(stories)))

	count := min(len(stories), maxItemsToShow)
	for i := 0; i < count; i++ {
		st := stories[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", st.ID, st.Title))

		formatType := make(map[int64]string, len(st.Formats))
		for _, f := range st.Formats {
			formatType[f.ID] = f.Type
		}
		for _, lang := range st.Languages {
			types := make([]string, 0, len(lang.Contents))
			for _, c := range lang.Contents {
				types = append(types, formatType[c.FormatID])
			}
			sb.WriteString(fmt.Sprintf("    %s: %s\n", lang.Code, strings.Join(types, ", ")))
		}
		if len(st.Languages) == 0 {
			sb.WriteString("    (no languages)\n")
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(stories) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more stories", len(stories)-maxItemsToShow))
	}

	p.printBox("STORIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintOpeners outputs openers with their weighted continue options.
func (p *Printer) PrintOpeners(openers []db.Opener) {
	if len(openers) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total openers: %d\n\n", len(openers)))

	count := min(len(openers), maxItemsToShow)
	for i := 0; i < count; i++ {
		o := openers[i]
		sb.WriteString(fmt.Sprintf("#%d  %s [%s]\n", o.ID, o.Text, o.Context))
		for _, opt := range o.ContinueOptions {
			sb.WriteString(fmt.Sprintf("    • %s (%.2f)\n", opt.Text, opt.Weight))
		}
	}

	if len(openers) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more openers", len(openers)-maxItemsToShow))
	}

	p.printBox("OPENERS", strings.TrimSuffix(sb.String(), "\n"))
}
