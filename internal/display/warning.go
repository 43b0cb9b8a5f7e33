package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// MaxListed bounds how many items a warning prints before summarizing the rest.
const MaxListed = 10

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Items      []string // Related items or files (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning to out, in yellow when enableColor is set.
func (w Warning) Display(out io.Writer, enableColor bool) {
	var b strings.Builder

	b.WriteString("Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Items) > 0 {
		if len(w.Items) == 1 {
			b.WriteString("    Affected item:\n")
		} else {
			fmt.Fprintf(&b, "    Affected items (%d):\n", len(w.Items))
		}
		for i, item := range w.Items {
			if i == MaxListed {
				fmt.Fprintf(&b, "      ... and %d more\n", len(w.Items)-MaxListed)
				break
			}
			fmt.Fprintf(&b, "      %d. %s\n", i+1, item)
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion: ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	if enableColor {
		fmt.Fprint(out, color.YellowString("%s", b.String()))
		return
	}
	fmt.Fprint(out, b.String())
}
