package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arena banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"    _                         ", "#818cf8"},
		{"   /_\\  _ _ ___ _ _  __ _    ", "#a78bfa"},
		{"  / _ \\| '_/ -_) ' \\/ _` |   ", "#c084fc"},
		{" /_/ \\_\\_| \\___|_||_\\__,_|   ", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
