package emballoc

import (
	"fmt"
	"io"
	"os"
)

// dumpTo writes a human-readable hex dump of the whole pool region:
// a header line, then one line per alignAmount bytes prefixed with the
// line number. mark, when not locNone, is the pool offset to flag in
// the output. The format is for operators, not for parsing.
func (p *Pool) dumpTo(w io.Writer, mark int) {
	size := p.poolSize()
	fmt.Fprintf(w, "Mempool dump at location %p (%d lines)", &p.mem[0], size/alignAmount)

	for i := 0; i < size; i++ {
		if i%alignAmount == 0 {
			fmt.Fprintf(w, "\n%d: ", i/alignAmount)
		}
		if mark != locNone && mark == i {
			fmt.Fprintf(w, " (!!!MARK POINT!!!)%02x", p.mem[i])
		} else {
			fmt.Fprintf(w, " %02x", p.mem[i])
		}
	}

	fmt.Fprintln(w)
}

// trace appends one formatted line to the dump file. Active only when
// verbose tracing is enabled and a dump file is configured.
func (p *Pool) trace(format string, args ...any) {
	if !p.verboseTrace() {
		return
	}
	name := p.dumpFileName()
	if name == "" {
		return
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Error writing the trace in the mempool error dump file: %v\n", err)
		return
	}
	fmt.Fprintf(f, format+"\n", args...)
	f.Close()
}

// traceDump appends a full pool dump to the dump file, marking mark.
// Same activation conditions as trace.
func (p *Pool) traceDump(mark int) {
	if !p.verboseTrace() {
		return
	}
	name := p.dumpFileName()
	if name == "" {
		return
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Error writing the dump in the mempool error dump file: %v\n", err)
		return
	}
	p.dumpTo(f, mark)
	f.Close()
}
