package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Terminal styling.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	menuTitle   = lipgloss.NewStyle().Bold(true).Underline(true)
	menuItem    = lipgloss.NewStyle().PaddingLeft(2)
	deniedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	urlStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("14"))
)

// Terminal is the bundled line-oriented renderer for Terminal/Walker modes.
type Terminal struct {
	out      io.Writer
	in       *bufio.Reader
	renderer *glamour.TermRenderer
}

// NewTerminal creates a renderer over stdin/stdout.
func NewTerminal() *Terminal {
	return NewTerminalWith(os.Stdout, os.Stdin)
}

// NewTerminalWith creates a renderer over explicit streams (tests).
func NewTerminalWith(out io.Writer, in io.Reader) *Terminal {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	return &Terminal{out: out, in: bufio.NewReader(in), renderer: renderer}
}

// Text prints a plain text line.
func (t *Terminal) Text(s string) {
	fmt.Fprintln(t.out, s)
}

// Header prints a styled heading, indented by level.
func (t *Terminal) Header(level int, s string) {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	indent := strings.Repeat("  ", level-1)
	fmt.Fprintln(t.out, indent+headerStyle.Render(s))
}

// Markdown renders markdown through glamour, falling back to plain text.
func (t *Terminal) Markdown(s string) {
	if t.renderer != nil {
		if out, err := t.renderer.Render(s); err == nil {
			fmt.Fprint(t.out, out)
			return
		}
	}
	fmt.Fprintln(t.out, s)
}

// List renders items as a numbered or bulleted list.
func (t *Terminal) List(items []string, ordered bool) {
	for i, item := range items {
		if ordered {
			fmt.Fprintf(t.out, "  %d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(t.out, "  - %s\n", item)
		}
	}
}

// Table renders a simple aligned table.
func (t *Terminal) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	line := func(cells []string) string {
		var b strings.Builder
		for i, c := range cells {
			if i < len(widths) {
				b.WriteString(fmt.Sprintf("%-*s  ", widths[i], c))
			}
		}
		return strings.TrimRight(b.String(), " ")
	}
	fmt.Fprintln(t.out, headerStyle.Render(line(headers)))
	for _, row := range rows {
		fmt.Fprintln(t.out, line(row))
	}
}

// URL renders a labelled link.
func (t *Terminal) URL(label, href string) {
	if label == "" {
		label = href
	}
	fmt.Fprintf(t.out, "%s <%s>\n", label, urlStyle.Render(href))
}

// Image prints an image reference (terminals get the alt text and source).
func (t *Terminal) Image(src, alt string) {
	if alt == "" {
		alt = "image"
	}
	fmt.Fprintf(t.out, "[%s] %s\n", alt, src)
}

// Menu renders a menu with numbered options.
func (t *Terminal) Menu(v MenuView) {
	if v.Title != "" {
		fmt.Fprintln(t.out, menuTitle.Render(v.Title))
	}
	for i, opt := range v.Options {
		fmt.Fprintln(t.out, menuItem.Render(fmt.Sprintf("%d) %s", i+1, opt)))
	}
}

// ReadLine prompts and reads one line.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(t.out, prompt)
	}
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a y/n question; only an explicit yes confirms.
func (t *Terminal) Confirm(prompt string) (bool, error) {
	answer, err := t.ReadLine(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// AccessDenied reports a denial.
func (t *Terminal) AccessDenied(msg string) {
	fmt.Fprintln(t.out, deniedStyle.Render(msg))
}

// Error reports an error.
func (t *Terminal) Error(msg string) {
	fmt.Fprintln(t.out, errorStyle.Render(msg))
}
