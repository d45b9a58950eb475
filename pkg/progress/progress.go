// Package progress reports per-record progress of a run.
package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

// Callback receives one update per processed record.
type Callback func(op string, current, total int, message string)

// Noop discards updates.
func Noop(op string, current, total int, message string) {}

// Progress counts records for one operation.
type Progress struct {
	Op      string
	Total   int
	current int
	cb      Callback
}

func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Increment counts one record; message is usually its file name.
func (p *Progress) Increment(message string) {
	p.current++
	p.cb(p.Op, p.current, p.Total, message)
}

func (p *Progress) Done(message string) {
	p.current = p.Total
	p.cb(p.Op, p.current, p.Total, message)
}

func (p *Progress) Current() int {
	return p.current
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

const (
	barCells     = 24
	defaultWidth = 80
)

// Bar redraws a single status line in place.
type Bar struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	width   int
	total   int
	current int
	drawn   int
	start   time.Time
	now     func() time.Time
}

// NewBar returns a bar writing to w. The line is clipped to the terminal
// width when w is a terminal, and to 80 columns otherwise.
func NewBar(w io.Writer, label string) *Bar {
	width := defaultWidth
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	return &Bar{w: w, label: label, width: width, start: time.Now(), now: time.Now}
}

// Callback feeds the bar. The total reported by the caller wins over
// anything seen before.
func (b *Bar) Callback() Callback {
	return func(op string, current, total int, message string) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if total > 0 {
			b.total = total
		}
		b.current = current
		b.draw(message)
	}
}

// Done draws the completed bar with the elapsed time and ends the line.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.total
	b.draw("in " + b.now().Sub(b.start).Round(time.Millisecond).String())
	fmt.Fprintln(b.w)
	b.drawn = 0
}

func (b *Bar) draw(message string) {
	total := max(b.total, 1)
	current := min(b.current, total)
	filled := barCells * current / total

	cells := strings.Repeat("=", filled)
	if filled < barCells {
		cells += ">" + strings.Repeat(" ", barCells-filled-1)
	}
	digits := len(strconv.Itoa(total))
	line := fmt.Sprintf("%s %*d/%d [%s] %3d%%", b.label, digits, current, b.total, cells, 100*current/total)
	if message != "" {
		line += " " + clip(message, b.width-utf8.RuneCountInString(line)-2)
	}

	pad := ""
	if n := utf8.RuneCountInString(line); n < b.drawn {
		pad = strings.Repeat(" ", b.drawn-n)
	}
	fmt.Fprint(b.w, "\r"+line+pad)
	b.drawn = utf8.RuneCountInString(line)
}

// clip shortens s to n runes, keeping its end since file names differ there.
func clip(s string, n int) string {
	if n <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
