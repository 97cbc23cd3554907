// progress.go - Einzeilige Fortschrittsanzeige fuer Downloads
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/dreamo-go/dreamo/format"
)

// progressLine ueberschreibt bei jedem Update dieselbe Terminalzeile
type progressLine struct {
	mu     sync.Mutex
	w      io.Writer
	label  string
	width  int
	last   string
	closed bool
}

func newProgressLine(w io.Writer, label string) *progressLine {
	width := 80
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}
	return &progressLine{w: w, label: label, width: width}
}

// render baut die Zeile, gekuerzt auf die Terminalbreite
func (p *progressLine) render(downloaded, total int64) string {
	var line string
	if total > 0 {
		line = fmt.Sprintf("%s %s/%s (%s)", p.label, format.HumanBytes(downloaded), format.HumanBytes(total), format.Percent(downloaded, total))
	} else {
		line = fmt.Sprintf("%s %s", p.label, format.HumanBytes(downloaded))
	}
	return runewidth.Truncate(line, p.width-1, "...")
}

// Update passt zur huggingface.ProgressCallback Signatur
func (p *progressLine) Update(downloaded, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	line := p.render(downloaded, total)
	pad := ""
	if n := runewidth.StringWidth(p.last) - runewidth.StringWidth(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.last = line
}

// Stop schliesst die Zeile ab
func (p *progressLine) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.last != "" {
		fmt.Fprintln(p.w)
	}
}
