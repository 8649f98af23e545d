package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const progressWidth = 40

// progressBar draws a single updating terminal line for field assembly.
type progressBar struct {
	out   io.Writer
	start time.Time
}

func newProgressBar(out io.Writer) *progressBar {
	return &progressBar{out: out, start: time.Now()}
}

// Update matches correlation.ProgressCallback.
func (b *progressBar) Update(completed, total int, message string) {
	if total <= 0 {
		return
	}
	fmt.Fprintf(b.out, "\r%s", b.render(completed, total, time.Since(b.start)))
	if completed >= total {
		fmt.Fprintln(b.out)
	}
}

func (b *progressBar) render(completed, total int, elapsed time.Duration) string {
	percentage := float64(completed) / float64(total) * 100
	numBars := int(percentage / 100 * progressWidth)

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < progressWidth; i++ {
		switch {
		case i < numBars:
			bar.WriteString("█")
		case i == numBars:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	bar.WriteString("]")

	remaining := ""
	if completed > 0 && completed < total {
		perPoint := elapsed.Seconds() / float64(completed)
		remaining = fmt.Sprintf(", ~%.1fs left", perPoint*float64(total-completed))
	}
	return fmt.Sprintf("%s %5.1f%% %d/%d points (%.1fs%s)",
		bar.String(), percentage, completed, total, elapsed.Seconds(), remaining)
}
