package console

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// PromptReader reads lines with promptui.
type PromptReader struct {
	Label string
}

// ReadLine implements LineReader. Ctrl-C and Ctrl-D end the session.
func (p PromptReader) ReadLine() (string, error) {
	prompt := promptui.Prompt{Label: p.Label}
	line, err := prompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", io.EOF
	}
	return line, err
}

// terminalWidth returns the width of stdout, or 80 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width < 20 {
		return 80
	}
	return width
}

// MarkdownRenderer renders replies as terminal markdown sized to stdout.
// Plain text is returned if the renderer cannot be built or fails.
func MarkdownRenderer() func(string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()-10),
	)
	if err != nil {
		return func(s string) string { return s + "\n" }
	}
	return func(s string) string {
		out, err := renderer.Render(s)
		if err != nil {
			return s + "\n"
		}
		return out
	}
}
