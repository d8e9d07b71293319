package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nvr-ai/go-restore/images"
)

const barWidth = 30

// progressBar renders engine notifications on a terminal line.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	label string

	bar  *color.Color
	ok   *color.Color
	fail *color.Color
}

func newProgressBar(w io.Writer, label string) *progressBar {
	return &progressBar{
		w:     w,
		label: label,
		bar:   color.New(color.FgCyan),
		ok:    color.New(color.FgGreen, color.Bold),
		fail:  color.New(color.FgRed, color.Bold),
	}
}

func (p *progressBar) Progress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	filled := barWidth * percent / 100
	fmt.Fprintf(p.w, "\r%s [%s%s] %3d%%", p.label,
		p.bar.Sprint(strings.Repeat("=", filled)), strings.Repeat(" ", barWidth-filled), percent)
}

func (p *progressBar) Finished(result *images.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %s %dx%d\n", p.label, p.ok.Sprint("done"), result.Width, result.Height)
}

func (p *progressBar) Failed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %s %v\n", p.label, p.fail.Sprint("failed"), err)
}

// cancelled ends the line of a run stopped by the user.
func (p *progressBar) cancelled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\r%s %s\n", p.label, color.YellowString("cancelled"))
}
