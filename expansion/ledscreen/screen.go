// Package ledscreen renders a bitmask to the terminal as a row of colored
// blocks, for the optactl CLI's live status view (which feeds it each
// slot's digital-input state). It plays
// the same role periph's devices/screen package plays for an LED strip:
// a software stand-in you can watch while real hardware is out of reach.
package ledscreen

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	onColor  = color.NRGBA{R: 0, G: 220, B: 0, A: 255}
	offColor = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
)

// Dev renders n indicator cells to the console, one block per bit of a
// mask passed to WriteMask.
type Dev struct {
	w   io.Writer
	n   int
	buf bytes.Buffer
}

// New returns a Dev rendering n cells. Output goes through
// go-colorable when stdout is a real terminal (so ANSI codes work on
// Windows consoles too); otherwise it falls back to plain stdout so
// redirected output isn't full of escape sequences.
func New(n int) *Dev {
	var w io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		w = colorable.NewColorableStdout()
	}
	return &Dev{w: w, n: n}
}

func (d *Dev) String() string { return "ledscreen" }

// Halt ends the line with a newline and resets terminal attributes.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// WriteMask renders mask's low n bits, bit 0 first, as on/off colored
// blocks.
func (d *Dev) WriteMask(mask uint32) (int, error) {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for i := 0; i < d.n; i++ {
		c := offColor
		if mask&(1<<uint(i)) != 0 {
			c = onColor
		}
		_, _ = io.WriteString(&d.buf, ansi256.Default.Block(c))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, err := d.buf.WriteTo(d.w)
	return d.n, err
}

var _ fmt.Stringer = (*Dev)(nil)
