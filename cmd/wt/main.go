package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/wintree/internal/datasource"
	"github.com/vanderheijden86/wintree/pkg/config"
	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
	"github.com/vanderheijden86/wintree/pkg/order"
	"github.com/vanderheijden86/wintree/pkg/ui"
	"github.com/vanderheijden86/wintree/pkg/version"
	"github.com/vanderheijden86/wintree/pkg/viewport"
	"github.com/vanderheijden86/wintree/pkg/watcher"
	"github.com/vanderheijden86/wintree/pkg/window"
)

// options holds the parsed command line.
type options struct {
	configPath   string
	sort         string
	batch        int
	robotWindow  bool
	robotMetrics bool
	expandAll    bool
	offset       float64
	height       float64
	toSQLite     string
	debugLog     string
	cpuProfile   string
	noWatch      bool
	showVersion  bool
	source       string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("wt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Config file (default: ~/.config/wt/config.yaml)")
	fs.StringVar(&o.sort, "sort", "", "Sort criteria, e.g. 'priority:desc,title'")
	fs.IntVar(&o.batch, "batch", 0, "Items fetched per incremental load")
	fs.BoolVar(&o.robotWindow, "robot-window", false, "Print the computed window as JSON and exit")
	fs.BoolVar(&o.robotMetrics, "robot-metrics", false, "Include timing metrics in --robot-window output")
	fs.BoolVar(&o.expandAll, "expand-all", false, "Expand every node (default: ui.expand_level)")
	fs.Float64Var(&o.offset, "offset", 0, "Scroll offset for --robot-window, in row-height units")
	fs.Float64Var(&o.height, "height", 0, "Container height for --robot-window (default: terminal height)")
	fs.StringVar(&o.toSQLite, "to-sqlite", "", "Write every item to a SQLite database and exit")
	fs.StringVar(&o.debugLog, "debug-log", "", "Append debug logging to file")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload when the source file changes")
	fs.BoolVar(&o.showVersion, "version", false, "Show version")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: wt [options] <items.jsonl|items.db>")
		fmt.Fprintln(stderr, "\nBrowse a large item hierarchy, rendering only the rows on screen.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.source = fs.Arg(0)
	if fs.NArg() > 1 {
		return o, fmt.Errorf("expected one source, got %d", fs.NArg())
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if o.showVersion {
		fmt.Fprintf(stdout, "wt %s\n", version.Version)
		return 0
	}

	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if o.debugLog != "" {
		f, err := os.OpenFile(o.debugLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Could not open debug log: %v\n", err)
			return 1
		}
		defer f.Close()
		debug.SetOutput(f)
		debug.SetEnabled(true)
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.Source == "" {
		fmt.Fprintln(stderr, "Error: no source given and config has no default source")
		return 2
	}

	src, err := datasource.Open(cfg.Source, datasource.ParseOptions{
		WarningHandler: func(msg string) { debug.Log("parse: %s", msg) },
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error opening %s: %v\n", cfg.Source, err)
		return 1
	}
	defer src.Close()
	pager := datasource.NewPager(src, cfg.Loading.BatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case o.toSQLite != "":
		n, err := exportSQLite(ctx, pager, o.toSQLite)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %d items to %s\n", n, o.toSQLite)
		return 0

	case o.robotWindow:
		height := o.height
		if height <= 0 {
			height = float64(terminalRows(stdout)-3) * cfg.Viewport.RowHeight
		}
		out, err := robotWindow(ctx, cfg, pager, o, height)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "Error encoding output: %v\n", err)
			return 1
		}
		return 0
	}

	if !isTerminal(stdout) {
		fmt.Fprintln(stderr, "Error: stdout is not a terminal; use --robot-window for JSON output")
		return 2
	}

	m := ui.NewModel(cfg, pager)
	if cfg.Watch.Enabled && !o.noWatch && src.Kind() == datasource.KindJSONL {
		watched, err := m.WithWatch(cfg.Source, watcher.WithDebounce(cfg.Watch.Debounce))
		if err != nil {
			// Non-fatal: run without live reload
			debug.Log("wt: %v", err)
		} else {
			m = watched
		}
	}

	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(stderr, "Error running wt: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(o options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if o.sort != "" {
		if _, err := order.ParseCriteria(o.sort); err != nil {
			return cfg, fmt.Errorf("invalid --sort: %w", err)
		}
		cfg.Sort.Criteria = o.sort
	}
	if o.batch > 0 {
		cfg.Loading.BatchSize = o.batch
	}
	if o.source != "" {
		cfg.Source = o.source
	}
	if o.expandAll {
		cfg.UI.ExpandLevel = math.MaxInt
	}
	for _, msg := range cfg.Validate() {
		debug.Log("config: %s", msg)
	}
	return cfg, nil
}

// exportSQLite copies every item of the pager's source into a new
// database at path.
func exportSQLite(ctx context.Context, pager *datasource.Pager, path string) (int, error) {
	items, err := pager.All(ctx, 4)
	if err != nil {
		return 0, fmt.Errorf("reading items: %w", err)
	}
	if err := datasource.WriteSQLite(ctx, path, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// robotOutput is the --robot-window document.
type robotOutput struct {
	Version    string                `json:"version"`
	Source     string                `json:"source"`
	Total      int                   `json:"total"`
	RowCount   int                   `json:"row_count"`
	Sort       string                `json:"sort"`
	BufferSize int                   `json:"buffer_size"`
	Viewport   viewport.Viewport     `json:"viewport"`
	Rows       []robotRow            `json:"rows"`
	Cycles     [][]string            `json:"cycles,omitempty"`
	Timings    []metrics.TimingStats `json:"timings,omitempty"`
	Counters   map[string]int64      `json:"counters,omitempty"`
}

type robotRow struct {
	Index       int          `json:"index"`
	ID          string       `json:"id"`
	Level       int          `json:"level"`
	HasChildren bool         `json:"has_children"`
	Expanded    bool         `json:"expanded"`
	Title       string       `json:"title"`
	Priority    *int         `json:"priority,omitempty"`
	Status      model.Status `json:"status,omitempty"`
}

// robotWindow loads every item into an engine, scrolls to o.offset and
// reports the window the engine would render.
func robotWindow(ctx context.Context, cfg config.Config, pager *datasource.Pager, o options, height float64) (robotOutput, error) {
	items, err := pager.All(ctx, 4)
	if err != nil {
		return robotOutput{}, fmt.Errorf("reading items: %w", err)
	}

	e := window.New(cfg, window.WithContainerHeight(height))
	defer e.Stop()
	e.ReplaceItems(items)
	e.ExpandToLevel(cfg.UI.ExpandLevel)
	e.ScrollTo(o.offset * cfg.Viewport.RowHeight)

	vp := e.Viewport()
	out := robotOutput{
		Version:    version.Version,
		Source:     cfg.Source,
		Total:      len(items),
		RowCount:   len(e.Rows()),
		Sort:       cfg.Sort.Criteria,
		BufferSize: e.BufferSize(),
		Viewport:   vp,
		Rows:       make([]robotRow, 0, vp.Len()),
		Cycles:     e.Cycles(),
	}
	for i, row := range e.Visible() {
		r := robotRow{
			Index:       vp.StartIndex + i,
			ID:          row.ID,
			Level:       row.Level,
			HasChildren: row.HasChildren,
			Expanded:    row.Expanded,
		}
		if row.Item != nil {
			r.Title, r.Priority, r.Status = row.Item.Title, row.Item.Priority, row.Item.Status
		}
		out.Rows = append(out.Rows, r)
	}
	if o.robotMetrics {
		out.Timings = metrics.AllTimingStats()
		out.Counters = metrics.CounterValues()
	}
	return out, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalRows returns the terminal height, or 24 when w is not a
// terminal.
func terminalRows(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if _, h, err := term.GetSize(int(f.Fd())); err == nil && h > 3 {
			return h
		}
	}
	return 24
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set WT_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("WT_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
