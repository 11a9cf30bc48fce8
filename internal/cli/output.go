package cli

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

func isColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return true
}

func colorize(color, text string) string {
	if !isColorEnabled() {
		return text
	}
	return color + text + colorReset
}

func printOK(msg string) {
	fmt.Println(colorize(colorGreen, "  ✓ ") + msg)
}

func printWarn(msg string) {
	fmt.Println(colorize(colorYellow, "  ! ") + msg)
}

func printFail(msg string) {
	fmt.Println(colorize(colorRed, "  ✗ ") + msg)
}

func printInfo(msg string) {
	fmt.Println(colorize(colorBlue, "  → ") + msg)
}

func printStep(msg string) {
	fmt.Println(colorize(colorCyan, "  ▸ ") + msg)
}

func printHeader(msg string) {
	fmt.Println()
	fmt.Println(colorize(colorBold, "  "+msg))
	fmt.Println(colorize(colorDim, "  "+strings.Repeat("─", len(msg)+2)))
}

// printBlock prints multi-line output indented between dim rules.
func printBlock(text string) {
	fmt.Println(colorize(colorDim, "  ─────"))
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println(colorize(colorDim, "  ─────"))
}

func formatValue(v float64) string {
	return fmt.Sprintf("%g", v)
}

// stepReporter renders verify progress with the printers above.
type stepReporter struct{}

func (stepReporter) Step(msg string) { printStep(msg) }
func (stepReporter) OK(msg string)   { printOK(msg) }
func (stepReporter) Warn(msg string) { printWarn(msg) }
