package main

import (
	"fmt"
	"os"
)

// ANSI codes for terminal feedback. Diagnostics go to stderr so command
// output (answers, exports) stays pipeable.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func tint(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func printTagged(code, tag, format string, args ...any) {
	fmt.Fprintln(os.Stderr, tint(code, tag+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printTagged(ansiGreen, "✓ ", format, args...) }
func printError(format string, args ...any)   { printTagged(ansiRed, "✗ ", format, args...) }
func printWarning(format string, args ...any) { printTagged(ansiYellow, "⚠ ", format, args...) }
func printStep(format string, args ...any)    { printTagged(ansiCyan, "→ ", format, args...) }

// printStatus renders one aligned "Label: value" line.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", tint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
