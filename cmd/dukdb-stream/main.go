package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"

	"github.com/connerohnesorge/dukdb-stream/internal/bridge"
	"github.com/connerohnesorge/dukdb-stream/internal/config"
	"github.com/connerohnesorge/dukdb-stream/internal/purego"
	"github.com/connerohnesorge/dukdb-stream/internal/resultset"
	"github.com/connerohnesorge/dukdb-stream/internal/source"
)

type options struct {
	Manifest string   `short:"m" long:"manifest" env:"DUCKSTREAM_MANIFEST" description:"manifest file with views and queries"`
	Views    []string `short:"v" long:"view" description:"register a file as a view, name=path"`
	Queries  []string `short:"q" long:"query" description:"query to run, repeatable"`
	Threads  int      `long:"threads" env:"DUCKSTREAM_THREADS" description:"engine worker threads, 1 unless set here or in the manifest"`
	LibDir   string   `long:"lib-dir" env:"DUCKDB_LIB_DIR" description:"directory holding the duckdb shared library"`
	Format   string   `short:"f" long:"format" description:"output format" choice:"table" choice:"csv" default:"table"`

	Version bool `long:"version" description:"show version"`
	Dbg     bool `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	if opts.Version {
		fmt.Printf("dukdb-stream %s\n", revision)
		os.Exit(0)
	}
	setupLog(opts.Dbg)

	engine, err := purego.Shared(opts.LibDir)
	if err != nil {
		fmt.Printf("failed, %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, engine, os.Stdout); err != nil {
		if opts.Dbg {
			log.Panicf("[ERROR] %v", err)
		}
		fmt.Printf("failed, %v\n", err)
		os.Exit(1)
	}
}

// run registers every view, runs every query and prints results to out.
// A failing query is reported and the remaining ones still run.
func run(opts options, engine bridge.Engine, out io.Writer) (err error) {
	views, queries, threads, err := collect(opts)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return errors.New("no queries to run, use -q or a manifest")
	}

	db, conn, err := bridge.OpenInMemory(engine, bridge.Config{Threads: threads, Output: out})
	if err != nil {
		return err
	}
	defer func() {
		if e := bridge.Close(db, conn); e != nil {
			err = multierror.Append(err, e)
		}
	}()

	for _, v := range views {
		f, e := source.Open(v.Spec(), nil)
		if e != nil {
			return fmt.Errorf("view %s: %w", v.Name, e)
		}
		if e := conn.RegisterStream(v.Name, source.Produce, source.Release, f); e != nil {
			return e
		}
		log.Printf("[INFO] registered view %s from %s", v.Name, v.Path)
	}

	failed := 0
	for i, q := range queries {
		if i > 0 && opts.Format != string(resultset.FormatCSV) {
			fmt.Fprintln(out)
		}
		log.Printf("[DEBUG] running %q", q)
		t, e := conn.Query(q)
		if e != nil {
			failed++
			fmt.Fprintf(out, "Error: %s\n", bridge.EngineMessage(e))
			continue
		}
		if e := resultset.Write(out, t, resultset.Format(opts.Format)); e != nil {
			return fmt.Errorf("can't print result: %w", e)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(queries))
	}
	return nil
}

// collect merges the manifest with views and queries given as flags. Flags
// come after the manifest's entries; the manifest's thread count wins over
// the default but not over an explicit flag.
func collect(opts options) (views []config.View, queries []string, threads int, err error) {
	threads = opts.Threads
	if threads < 0 {
		return nil, nil, 0, fmt.Errorf("threads must not be negative, got %d", threads)
	}
	if opts.Manifest != "" {
		m, e := config.Load(opts.Manifest)
		if e != nil {
			return nil, nil, 0, e
		}
		views = append(views, m.Views...)
		queries = append(queries, m.Queries...)
		if m.Threads > 0 && opts.Threads == 0 {
			threads = m.Threads
		}
	}

	errs := new(multierror.Error)
	for _, arg := range opts.Views {
		v, e := config.ParseView(arg)
		if e != nil {
			errs = multierror.Append(errs, e)
			continue
		}
		views = append(views, v)
	}
	for _, q := range opts.Queries {
		if strings.TrimSpace(q) != "" {
			queries = append(queries, q)
		}
	}
	return views, queries, threads, errs.ErrorOrNil()
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.CallerFile}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
