package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"

	"db-shuttle/internal/database"
	"db-shuttle/internal/engine"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// consoleReporter prints pipeline status lines and draws one progress bar
// per table while rows are copied.
type consoleReporter struct {
	out      io.Writer
	progress bool

	mu       sync.Mutex
	ui       *uiprogress.Progress
	bars     map[string]*uiprogress.Bar
	deferred []string
}

func newConsoleReporter(out io.Writer, progress bool) *consoleReporter {
	return &consoleReporter{out: out, progress: progress, bars: make(map[string]*uiprogress.Bar)}
}

func (r *consoleReporter) Connected(role string, desc database.Descriptor) {
	fmt.Fprintf(r.out, "%s Connected to %s %s\n", green("✓"), role, cyan(desc.String()))
}

func (r *consoleReporter) DatabaseCreated(name string) {
	fmt.Fprintf(r.out, "%s Created database %s\n", green("✓"), name)
}

func (r *consoleReporter) TablePresence(table string, exists bool) {
	if exists {
		fmt.Fprintf(r.out, "  %s %-30s exists\n", green("✓"), table)
		return
	}
	fmt.Fprintf(r.out, "  %s %-30s missing\n", yellow("!"), table)
}

func (r *consoleReporter) TableCreated(res engine.CreateResult) {
	switch {
	case res.Err != nil:
		fmt.Fprintf(r.out, "  %s %-30s %v\n", red("✗"), res.Table, res.Err)
	case res.Skipped:
		fmt.Fprintf(r.out, "  %s %-30s already present\n", green("✓"), res.Table)
	default:
		fmt.Fprintf(r.out, "  %s %-30s created\n", green("✓"), res.Table)
	}
}

func (r *consoleReporter) TableStarted(table string, expected int64) {
	if !r.progress || expected < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ui == nil {
		r.ui = uiprogress.New()
		r.ui.SetOut(r.out)
		r.ui.Start()
	}
	total := int(expected)
	if total == 0 {
		// uiprogress cannot render an empty bar.
		total = 1
	}
	name := table
	bar := r.ui.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-24s", name)
	})
	r.bars[table] = bar
}

func (r *consoleReporter) RowsCopied(table string, copied int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bar, ok := r.bars[table]; ok {
		n := int(copied)
		if n > bar.Total {
			n = bar.Total
		}
		bar.Set(n)
	}
}

func (r *consoleReporter) TableFinished(res engine.TableResult) {
	line := fmt.Sprintf("  %s %-30s %d rows", green("✓"), res.Table, res.Copied)
	if res.Err != nil {
		line = fmt.Sprintf("  %s %-30s rolled back: %v", red("✗"), res.Table, res.Err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bar, ok := r.bars[res.Table]; ok && res.Err == nil {
		bar.Set(bar.Total)
	}
	if r.ui != nil {
		// Lines printed while bars are drawn would be overwritten.
		r.deferred = append(r.deferred, line)
		return
	}
	fmt.Fprintln(r.out, line)
}

// Finish stops the progress bars and flushes the lines held back meanwhile.
func (r *consoleReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ui != nil {
		r.ui.Stop()
		r.ui = nil
	}
	for _, line := range r.deferred {
		fmt.Fprintln(r.out, line)
	}
	r.deferred = nil
}

// printSummary renders the final per-table report.
func printSummary(out io.Writer, report *engine.Report) {
	fmt.Fprintln(out, "\n📊 Summary Report:")
	var total int64
	n := len(report.Results)
	for i, res := range report.Results {
		icon := green("✓")
		status := res.Status()
		if status == engine.StatusFailed || status == engine.StatusMismatch {
			icon = red("!")
		}
		fmt.Fprintf(out, "[%s] [%02d/%02d] %-20s : %d rows - %s\n", icon, i+1, n, res.Table, res.Copied, status)
		if res.Err != nil {
			fmt.Fprintf(out, "    └ Error: %s\n", res.Err)
		}
		if res.VerifyErr != nil {
			fmt.Fprintf(out, "    └ Verify: %s\n", res.VerifyErr)
		}
		total += res.Copied
	}
	for _, t := range report.Skipped {
		fmt.Fprintf(out, "[%s] %-20s : skipped (table missing on destination)\n", yellow("-"), t)
	}
	fmt.Fprintln(out, "--------------------------------------------------")
	fmt.Fprintf(out, "Total rows copied: %d\n", total)
}
