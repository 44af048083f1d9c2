package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the CLI banner with the version below it.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"                  _     __ _", "#818cf8"},
		{" __      _____  _ __| | __/ _| | _____      __", "#a78bfa"},
		{" \\ \\ /\\ / / _ \\| '__| |/ / |_| |/ _ \\ \\ /\\ / /", "#c084fc"},
		{"  \\ V  V / (_) | |  |   <|  _| | (_) \\ V  V /", "#e879f9"},
		{"   \\_/\\_/ \\___/|_|  |_|\\_\\_| |_|\\___/ \\_/\\_/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
