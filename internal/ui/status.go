package ui

import (
	"fmt"
	"io"
)

// Status prints a cargo-style line: a right-aligned verb then the message.
func Status(w io.Writer, verb, msg string) {
	fmt.Fprintf(w, "%s %s\n", stylesFor(w).status.Render(verb), msg)
}

// Statusf is Status with a format string.
func Statusf(w io.Writer, verb, format string, args ...any) {
	Status(w, verb, fmt.Sprintf(format, args...))
}

// Prefixed prints msg behind the [cargo-codspeed] tag.
func Prefixed(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", stylesFor(w).prefix.Render("[cargo-codspeed]"), msg)
}

// Warning prints a highlighted warning line.
func Warning(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", stylesFor(w).warning.Render("warning:"), msg)
}

// Error prints a highlighted error line.
func Error(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", stylesFor(w).err.Render("error:"), msg)
}

// Notice prints msg behind a bold NOTICE: tag.
func Notice(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", stylesFor(w).notice.Render("NOTICE:"), msg)
}
