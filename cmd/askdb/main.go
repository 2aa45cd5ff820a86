// askdb - agentic natural-language-to-SQL engine
// Entry point: subcommand dispatch for serve, migrate, and version.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askdb-ai/askdb/internal/infra/config"
	"github.com/askdb-ai/askdb/internal/infra/sqlite"
	"github.com/askdb-ai/askdb/internal/server"
	"github.com/askdb-ai/askdb/internal/version"
)

// shutdownGrace bounds how long in-flight requests may finish after SIGTERM.
const shutdownGrace = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("askdb", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	switch fs.Arg(0) {
	case "serve":
		return serve(out)
	case "migrate":
		return migrate(out)
	case "version":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	case "":
		printHelp(out)
		return 0
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", fs.Arg(0)) //nolint:errcheck
		printHelp(out)
		return 2
	}
}

// serve starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully.
func serve(out io.Writer) int {
	logger := slog.New(slog.NewTextHandler(out, nil))
	cfg := config.Load()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
		return 1
	}
	return 0
}

// migrate applies pending knowledge-store migrations and reports the final
// schema version.
func migrate(out io.Writer) int {
	cfg := config.Load()

	db, err := sqlite.NewDB(cfg.StorePath)
	if err != nil {
		fmt.Fprintf(out, "open store: %v\n", err) //nolint:errcheck
		return 1
	}
	defer db.Close() //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "migrate: %v\n", err) //nolint:errcheck
		return 1
	}

	v, err := sqlite.MigrationVersion(db)
	if err != nil {
		fmt.Fprintf(out, "migration version: %v\n", err) //nolint:errcheck
		return 1
	}
	fmt.Fprintf(out, "knowledge store at migration version %d\n", v) //nolint:errcheck
	return 0
}

func printHelp(out io.Writer) {
	helpText := `askdb - ask your database questions in natural language

Usage:
  askdb [options] <command>

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  serve        Start the HTTP server
  migrate      Apply knowledge store migrations
  version      Show version information

Configuration is read from ASKDB_* environment variables; see
internal/infra/config for the full list and defaults.

Examples:
  askdb --version
  askdb serve
  askdb migrate`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
