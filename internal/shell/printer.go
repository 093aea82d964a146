package shell

import (
	"fmt"
	"io"

	"github.com/starford/verbas/internal/notify"
)

// Printer writes notifications to a terminal as they are shown.
type Printer struct {
	out io.Writer
}

var _ notify.Sink = (*Printer)(nil)

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Shown(n notify.Notification) {
	fmt.Fprintf(p.out, "[%s] %s\n", n.Kind, n.Message)
}

func (p *Printer) Hidden(notify.Notification) {}
