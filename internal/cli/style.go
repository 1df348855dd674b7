package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Accent  lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Accent:  lipgloss.Color("#D7AF5F"), // amber
}

// printer renders styled text when w is a terminal and plain text otherwise.
type printer struct {
	w      io.Writer
	styled bool
	theme  Theme
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: w, styled: styled, theme: defaultTheme}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) status(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Status), s)
}

func (p *printer) success(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Success).Bold(true), s)
}

func (p *printer) failure(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Error).Bold(true), s)
}

func (p *printer) hint(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Hint).Italic(true), s)
}

func (p *printer) label(s string) string {
	return p.render(lipgloss.NewStyle().Foreground(p.theme.Accent).Bold(true), s)
}
