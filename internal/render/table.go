package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
)

const clearScreen = "\033[H\033[2J"

// Table writes rows as an aligned text table.
type Table struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
}

// NewTable creates a Table writing to out. With clear set the terminal is
// cleared before each render so the table replaces the previous one.
func NewTable(out io.Writer, clear bool) *Table {
	return &Table{out: out, clear: clear}
}

// Render formats the whole table into a buffer and writes it in one call.
func (t *Table) Render(rows []Row) error {
	var buf bytes.Buffer
	if t.clear {
		buf.WriteString(clearScreen)
	}
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(Headers, "\t")+"\t")
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r.Cells(), "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rows) == 0 {
		buf.WriteString("no profitable flips\n")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.out.Write(buf.Bytes())
	return err
}
