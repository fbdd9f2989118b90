// Command peppol-support checks Peppol MLR/MLS support of participants and
// validates and stores Peppol reports.
//
// Usage:
//
//	peppol-support [-config file] [-v] check [-doc mlr|mls|all] participant...
//	peppol-support [-config file] [-v] store [-out file] report.xml...
//	peppol-support [-config file] [-v] migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirosfoundation/peppol-support/internal/bootstrap"
	"github.com/sirosfoundation/peppol-support/internal/config"
	"github.com/sirosfoundation/peppol-support/pkg/identifier"
	"github.com/sirosfoundation/peppol-support/pkg/reporting"
	"github.com/sirosfoundation/peppol-support/pkg/reporting/report"
	"github.com/sirosfoundation/peppol-support/pkg/supportcache"
)

var errFailed = errors.New("one or more operations failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("peppol-support", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the YAML configuration file")
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	app := bootstrap.New(cfg, logger)
	defer app.Close(context.Background())

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	var err error
	switch cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]; cmd {
	case "check":
		err = runCheck(ctx, app, cmdArgs, stdout, stderr)
	case "store":
		err = runStore(ctx, app, cmdArgs, stdout, stderr)
	case "migrate":
		err = app.Migrate(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	if mErr := app.WriteMetrics(); mErr != nil {
		logger.Warn("Failed to write metrics", "error", mErr)
	}
	return err
}

func runCheck(ctx context.Context, app *bootstrap.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	doc := fs.String("doc", "all", "Document to check: mlr, mls or all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("check needs at least one participant ID")
	}

	resolver, err := app.Resolver()
	if err != nil {
		return err
	}
	mlr, mls, err := app.SupportCaches(ctx, resolver)
	if err != nil {
		return err
	}
	var caches []*supportcache.Cache
	switch *doc {
	case "mlr":
		caches = []*supportcache.Cache{mlr}
	case "mls":
		caches = []*supportcache.Cache{mls}
	case "all":
		caches = []*supportcache.Cache{mlr, mls}
	default:
		return fmt.Errorf("unknown document %q", *doc)
	}

	failed := false
	for _, arg := range fs.Args() {
		participant, err := identifier.ParseParticipantID(arg)
		if err != nil {
			app.Logger.Error("Invalid participant", "participant", arg, "error", err)
			failed = true
			continue
		}
		for _, cache := range caches {
			endpoint, err := cache.Resolve(ctx, participant)
			switch {
			case err != nil:
				app.Logger.Error("Lookup failed", "participant", arg, "cache", cache.Name(), "error", err)
				failed = true
			case endpoint == nil:
				fmt.Fprintf(stdout, "%s\t%s\tnot supported\n", participant.URIEncoded(), cache.Name())
			default:
				fmt.Fprintf(stdout, "%s\t%s\tsupported\t%s\n", participant.URIEncoded(), cache.Name(), endpoint.EndpointURL)
			}
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func runStore(ctx context.Context, app *bootstrap.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "Write the serialized report of a single input to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("store needs at least one report file")
	}
	if *out != "" && fs.NArg() > 1 {
		return errors.New("-out needs exactly one report file")
	}

	support, err := app.ReportingSupport(ctx)
	if err != nil {
		return err
	}

	failed := false
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		r, err := report.Parse(data)
		if err != nil {
			app.Logger.Error("Cannot read report", "file", path, "error", err)
			failed = true
			continue
		}

		consume := func([]byte) {}
		var writeErr error
		if *out != "" {
			consume = func(markup []byte) { writeErr = os.WriteFile(*out, markup, 0o640) }
		}

		result, err := support.ValidateAndStore(ctx, r, consume)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if writeErr != nil {
			return writeErr
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", path, r.ReportType().ShortName(), result)
		if result != reporting.Success {
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}
