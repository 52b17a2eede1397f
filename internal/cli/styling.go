package cli

import (
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

var (
	// Global flag to enable/disable colors
	noColor = false

	// Status colors, one per task.Status display name
	colorWaiting = color.New(color.FgYellow)
	colorRunning = color.New(color.FgBlue, color.Bold)
	colorExited  = color.New(color.FgGreen, color.Bold)
	colorTimeout = color.New(color.FgYellow, color.Bold)
	colorKilled  = color.New(color.FgRed, color.Bold)

	// UI element colors
	colorHeader  = color.New(color.FgCyan, color.Bold)
	colorHost    = color.New(color.FgMagenta, color.Bold)
	colorMetric  = color.New(color.FgWhite, color.Bold)
	colorDim     = color.New(color.Faint)

	// Box drawing characters. The tee/cross pieces are column dividers
	// for DrawPoolBox's multi-column layout, not a generic table border.
	boxHorizontal  = "─"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"
	boxCross       = "┼"
	boxTDown       = "┬"
	boxTUp         = "┴"
	boxTRight      = "├"
	boxTLeft       = "┤"
)

func init() {
	// Apply the package-level noColor default; fatih/color itself
	// already honours the NO_COLOR environment variable.
	if noColor {
		color.NoColor = true
	}
}

// SetNoColor enables or disables color output
func SetNoColor(value bool) {
	noColor = value
	color.NoColor = value
}

// FormatStatus returns a colored status string for one of task.Status's
// display names (Waiting, Running, Exited, Timeout, Killed).
func FormatStatus(status string) string {
	switch status {
	case "Waiting":
		return colorWaiting.Sprint("○ Waiting")
	case "Running":
		return colorRunning.Sprint("● Running")
	case "Exited":
		return colorExited.Sprint("✓ Exited ")
	case "Timeout":
		return colorTimeout.Sprint("⚠ Timeout")
	case "Killed":
		return colorKilled.Sprint("✗ Killed ")
	default:
		return "  " + status
	}
}

// FormatHeader returns a colored header string
func FormatHeader(text string) string {
	return colorHeader.Sprint(text)
}

// FormatHost returns a colored host name
func FormatHost(host string) string {
	return colorHost.Sprint(host)
}

// FormatMetric returns a colored metric number
func FormatMetric(value int) string {
	return colorMetric.Sprint(value)
}

// FormatDim returns dimmed text
func FormatDim(text string) string {
	return colorDim.Sprint(text)
}

// stripANSI removes ANSI color codes so column widths reflect the
// glyphs DrawPoolBox actually prints, not the bytes of a color-coded
// string (FormatStatus's bullets and escape codes both skew len()).
func stripANSI(str string) string {
	result := strings.Builder{}
	inEscape := false

	for _, r := range str {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// DrawPoolBox renders the scheduler's pool counts as a bordered table,
// one column per pool, in the given order. Column widths are derived
// from FormatStatus's colored label and the widest count, so the box
// grows to fit whatever pools and counts it's handed.
func DrawPoolBox(title string, order []string, counts map[string]int) string {
	if len(order) == 0 {
		return ""
	}

	labels := make([]string, len(order))
	values := make([]string, len(order))
	widths := make([]int, len(order))
	for i, name := range order {
		labels[i] = FormatStatus(name)
		values[i] = colorMetric.Sprintf("%d", counts[name])

		w := utf8.RuneCountInString(stripANSI(labels[i]))
		if n := utf8.RuneCountInString(stripANSI(values[i])); n > w {
			w = n
		}
		widths[i] = w
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString(colorHeader.Sprint(title))
		sb.WriteString("\n")
	}
	sb.WriteString(poolBoxBorder(widths, boxTopLeft, boxTDown, boxTopRight))
	sb.WriteString(poolBoxRow(labels, widths))
	sb.WriteString(poolBoxBorder(widths, boxTRight, boxCross, boxTLeft))
	sb.WriteString(poolBoxRow(values, widths))
	sb.WriteString(poolBoxBorder(widths, boxBottomLeft, boxTUp, boxBottomRight))

	return sb.String()
}

func poolBoxBorder(widths []int, left, mid, right string) string {
	var sb strings.Builder
	sb.WriteString(left)
	for i, w := range widths {
		sb.WriteString(strings.Repeat(boxHorizontal, w+2))
		if i < len(widths)-1 {
			sb.WriteString(mid)
		}
	}
	sb.WriteString(right)
	sb.WriteString("\n")
	return sb.String()
}

func poolBoxRow(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString(boxVertical)
	for i, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(cell)
		if pad := widths[i] - utf8.RuneCountInString(stripANSI(cell)); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" ")
		sb.WriteString(boxVertical)
	}
	sb.WriteString("\n")
	return sb.String()
}
