package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/absorbance.report/internal/acquisition"
	"github.com/banshee-data/absorbance.report/internal/analysis"
	"github.com/banshee-data/absorbance.report/internal/api"
	"github.com/banshee-data/absorbance.report/internal/calplot"
	"github.com/banshee-data/absorbance.report/internal/config"
	"github.com/banshee-data/absorbance.report/internal/db"
	"github.com/banshee-data/absorbance.report/internal/httputil"
	"github.com/banshee-data/absorbance.report/internal/hybrid"
	"github.com/banshee-data/absorbance.report/internal/monitoring"
	"github.com/banshee-data/absorbance.report/internal/security"
	"github.com/banshee-data/absorbance.report/internal/spectro"
	"github.com/banshee-data/absorbance.report/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	command, rest := args[0], args[1:]

	var err error
	switch command {
	case "serve":
		err = runServe(rest)
	case "analyze":
		err = runAnalyze(rest, stdout)
	case "replay":
		err = runReplay(rest, stdout)
	case "migrate":
		err = runMigrate(rest, stdout)
	case "plot-curve":
		err = runPlotCurve(rest, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "absorbance %s: %v\n", command, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `absorbance - quantitative absorbance analysis

Usage: absorbance <command> [options]

Commands:
  serve        Run the HTTP API (remote quantification, curves, reports)
  analyze      Quantify one acquisition bundle (JSON) and print the result
  replay       Run a recorded session through the acquisition state machine
  migrate      Manage database schema migrations
  plot-curve   Render a calibration diagnostic plot to PNG
  version      Show version information
  help         Show this help message

Run 'absorbance <command> -h' for command options.
`)
}

// loadConfig reads path, or returns an empty config (every default) when
// path is empty.
func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// readJSON decodes path ("-" for stdin) into v.
func readJSON(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "Analysis config JSON (defaults when empty)")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen == "" {
		*listen = cfg.GetListen()
	}
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	server := api.NewServer(analysis.NewEngine(cfg))
	server.SetCurveStore(db.NewCurveStore(database))
	server.SetReportStore(db.NewReportStore(database))
	mux := server.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("listening on %s (db %s)", *listen, *dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := httpServer.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	default:
	}
	monitoring.Logf("graceful shutdown complete")
	return nil
}

func parseStrategy(s string) (hybrid.Strategy, error) {
	switch hybrid.Strategy(s) {
	case hybrid.StrategyLocal, hybrid.StrategyAuto:
		return hybrid.Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want local or auto)", s)
}

// runAnalyze quantifies one analysis.Input bundle. The report is persisted
// when -db is given.
func runAnalyze(args []string, stdout io.Writer) error {
	fs := newFlagSet("analyze")
	configPath := fs.String("config", "", "Analysis config JSON (defaults when empty)")
	input := fs.String("input", "-", "Acquisition bundle JSON, or - for stdin")
	strategy := fs.String("strategy", string(hybrid.StrategyLocal), "Quantification strategy: local or auto")
	dbPath := fs.String("db", "", "Persist the report to this SQLite database")
	plotPath := fs.String("plot", "", "Write the calibration plot PNG here")
	if err := fs.Parse(args); err != nil {
		return err
	}
	strat, err := parseStrategy(*strategy)
	if err != nil {
		return err
	}
	if *plotPath != "" {
		if err := security.ValidateExportPath(*plotPath); err != nil {
			return err
		}
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	var in analysis.Input
	if err := readJSON(*input, &in); err != nil {
		return err
	}

	q := hybrid.NewFromConfig(cfg, httputil.NewStandardClient(&http.Client{}))
	out, err := q.Quantify(context.Background(), in, strat)
	if err != nil {
		return err
	}

	if *dbPath != "" {
		database, err := db.OpenDB(*dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		report := &spectro.AnalysisReport{
			Params: in.Params,
			Result: out.Result,
			Source: out.Source,
			Curve:  in.Curve,
		}
		if in.DeviceProfile != nil {
			report.DeviceHash = in.DeviceProfile.DeviceHash
		}
		id, err := db.NewReportStore(database).SaveAnalysisReport(context.Background(), report)
		if err != nil {
			return err
		}
		monitoring.Logf("saved report %s", id)
	}

	if *plotPath != "" && in.Curve != nil {
		png, err := calplot.RenderPNG(in.Curve, nil, calplot.Options{
			Sample: &calplot.SamplePoint{C: out.Result.C, A: out.Result.AMean},
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(*plotPath, png, 0o644); err != nil {
			return err
		}
	}
	return writeJSON(stdout, out)
}

// runReplay drives a recorded session through the acquisition state machine
// against the SQLite stores and prints the final session summary.
func runReplay(args []string, stdout io.Writer) error {
	fs := newFlagSet("replay")
	configPath := fs.String("config", "", "Analysis config JSON (defaults when empty)")
	input := fs.String("input", "-", "Recorded session JSON, or - for stdin")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	saveProfile := fs.Bool("save-profile", false, "Save the device profile after processing")
	saveCurve := fs.Bool("save-curve", false, "Save a newly built calibration curve")
	timeout := fs.Duration("timeout", 2*time.Minute, "Abort the replay after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}
	var rec acquisition.Recording
	if err := readJSON(*input, &rec); err != nil {
		return err
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	engine := analysis.NewEngine(cfg)
	var remote hybrid.Remote
	if url := cfg.GetRemoteURL(); url != "" {
		remote = hybrid.NewRemoteClient(httputil.NewStandardClient(&http.Client{}), url, cfg.GetRemoteTimeout())
	}
	o := acquisition.NewOrchestrator(engine, acquisition.NewReplayCapturer(&rec), hybrid.NewQuantifier(engine, remote))
	o.SetProfileStore(db.NewProfileStore(database))
	o.SetCurveStore(db.NewCurveStore(database))
	o.SetReportStore(db.NewReportStore(database))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	s, err := acquisition.Replay(ctx, o, &rec, acquisition.ReplayOptions{
		SaveProfile: *saveProfile,
		SaveCurve:   *saveCurve,
	})
	if err != nil {
		return fmt.Errorf("replay stopped in %s: %w", s.State, err)
	}
	return writeJSON(stdout, replaySummary{
		State:    s.State,
		ReportID: s.ReportID,
		Source:   s.Source,
		Result:   s.Results,
		Curve:    s.Curve,
	})
}

type replaySummary struct {
	State    acquisition.State         `json:"state"`
	ReportID string                    `json:"report_id,omitempty"`
	Source   string                    `json:"source,omitempty"`
	Result   *spectro.LocalQuantResult `json:"result,omitempty"`
	Curve    *spectro.CalibrationCurve `json:"curve,omitempty"`
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := newFlagSet("migrate")
	configPath := fs.String("config", "", "Analysis config JSON (defaults when empty)")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *dbPath == "" {
		*dbPath = cfg.GetDBPath()
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

// curveBundle is the plot-curve input file shape.
type curveBundle struct {
	Curve     *spectro.CalibrationCurve `json:"curve"`
	Standards []spectro.StandardsPoint  `json:"standards"`
}

// runPlotCurve renders a plot from a stored report (-report) or from a
// {"curve", "standards"} JSON file (-input).
func runPlotCurve(args []string, stdout io.Writer) error {
	fs := newFlagSet("plot-curve")
	dbPath := fs.String("db", "absorbance.db", "SQLite database path")
	reportID := fs.String("report", "", "Plot the curve of this stored report")
	input := fs.String("input", "", "Curve bundle JSON, or - for stdin")
	out := fs.String("out", "", "Output PNG path (default curve-<report>.png, or curve.png)")
	title := fs.String("title", "", "Plot title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := calplot.Options{Title: *title}
	var bundle curveBundle
	switch {
	case *reportID != "":
		database, err := db.OpenDB(*dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		report, err := db.NewReportStore(database).GetReport(context.Background(), *reportID)
		if err != nil {
			return err
		}
		bundle.Curve = report.Curve
		if bundle.Curve == nil {
			bundle.Curve = report.Result.Calib
		}
		bundle.Standards = report.Standards
		opts.Sample = &calplot.SamplePoint{C: report.Result.C, A: report.Result.AMean}
	case *input != "":
		if err := readJSON(*input, &bundle); err != nil {
			return err
		}
	default:
		return fmt.Errorf("one of -report or -input is required")
	}

	if *out == "" {
		*out = "curve.png"
		if *reportID != "" {
			*out = "curve-" + security.SanitizeFilename(*reportID) + ".png"
		}
	}
	if err := security.ValidateExportPath(*out); err != nil {
		return err
	}
	png, err := calplot.RenderPNG(bundle.Curve, bundle.Standards, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, png, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", *out, len(png))
	return nil
}
