package cmd

import (
	"fmt"
	"io"
)

type tableProgress struct {
	total, done, printed, step int
}

// cliProgress prints per-table row counts roughly every 5% of a table.
type cliProgress struct {
	out    io.Writer
	verb   string
	tables map[string]*tableProgress
}

func newCLIProgress(out io.Writer, verb string) *cliProgress {
	return &cliProgress{out: out, verb: verb, tables: map[string]*tableProgress{}}
}

func (p *cliProgress) StartTable(table string, total int) {
	total = max(total, 0)
	p.tables[table] = &tableProgress{total: total, step: progressStep(total)}
	fmt.Fprintf(p.out, "%s %s: %d rows\n", p.verb, table, total)
}

func (p *cliProgress) Increment(table string, delta int) {
	tp, ok := p.tables[table]
	if !ok || delta <= 0 {
		return
	}
	tp.done += delta
	if tp.printed == 0 || tp.done == tp.total || tp.done-tp.printed >= tp.step {
		p.report(table, tp)
	}
}

func (p *cliProgress) FinishTable(table string) {
	tp, ok := p.tables[table]
	if !ok {
		return
	}
	if tp.done != tp.printed {
		p.report(table, tp)
	}
	fmt.Fprintf(p.out, "%s %s done: %d rows\n", p.verb, table, tp.done)
	delete(p.tables, table)
}

func (p *cliProgress) report(table string, tp *tableProgress) {
	tp.printed = tp.done
	if tp.total > 0 {
		fmt.Fprintf(p.out, "%s %s: %d/%d\n", p.verb, table, tp.done, tp.total)
		return
	}
	fmt.Fprintf(p.out, "%s %s: %d rows so far\n", p.verb, table, tp.done)
}

// progressStep is the row interval between progress lines, between 1 and 1000.
func progressStep(total int) int {
	if total <= 0 {
		return 1000
	}
	return min(max(total/20, 1), 1000)
}
