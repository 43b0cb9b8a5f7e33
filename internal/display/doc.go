// Package display renders user-facing warnings for the CLI.
//
//	w := display.Warning{
//	    Title:      "Stage command not found",
//	    Message:    "stages.gtf.command[0] is not on PATH",
//	    Items:      []string{"gffread"},
//	    Suggestion: "Install the tool or fix the stage command",
//	}
//	w.Display(os.Stderr, true)
//
// Output is plain text unless color is requested.
package display
