package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// TestingT is the subset of testing.T the asserters report through
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// TextOption relaxes how command output is compared
type TextOption func(*TextAsserter)

// WithTrimSpace ignores leading and trailing blank space around the whole text
func WithTrimSpace() TextOption {
	return func(ta *TextAsserter) { ta.trimSpace = true }
}

// WithIgnoreTrailingWhitespace ignores padding at line ends, as left by tabwriter
func WithIgnoreTrailingWhitespace() TextOption {
	return func(ta *TextAsserter) { ta.trimLineEnds = true }
}

// WithColors colours the diff and makes whitespace visible in changed lines
func WithColors() TextOption {
	return func(ta *TextAsserter) { ta.colors = true }
}

// TextAsserter compares CLI output and reports mismatches as a unified diff
type TextAsserter struct {
	t            TestingT
	trimSpace    bool
	trimLineEnds bool
	colors       bool
}

// NewTextAsserter creates a strict asserter; opts relax the comparison
func NewTextAsserter(t TestingT, opts ...TextOption) *TextAsserter {
	ta := &TextAsserter{t: t}
	for _, opt := range opts {
		opt(ta)
	}
	return ta
}

// Assert compares actual text against expected text
func (ta *TextAsserter) Assert(actual, expected string) {
	actual, expected = ta.normalize(actual), ta.normalize(expected)
	if actual == expected {
		return
	}

	edits := myers.ComputeEdits("", expected, actual)
	diff := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", expected, edits))
	if ta.colors {
		diff = colorize(diff)
	}
	ta.t.Errorf("Text assertion failed - unified diff:\n%s", diff)
}

// AssertLines compares actual text against expected lines joined with newlines
func (ta *TextAsserter) AssertLines(actual string, expected ...string) {
	ta.Assert(actual, strings.Join(expected, "\n"))
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.trimSpace {
		text = strings.TrimSpace(text)
	}
	if !ta.trimLineEnds {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func colorize(diff string) string {
	red, green, cyan := color.New(color.FgRed), color.New(color.FgGreen), color.New(color.FgCyan)
	// test output is rarely a terminal
	red.EnableColor()
	green.EnableColor()
	cyan.EnableColor()

	visible := strings.NewReplacer(" ", "·", "\t", "→")
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(visible.Replace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(visible.Replace(line))
		}
	}
	return strings.Join(lines, "\n")
}
