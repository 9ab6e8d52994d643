// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/spf13/cobra"

	"github.com/chriskrycho/volta-networking-repro/pkg/vnr"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	JSONOut  bool
	Quiet    bool
	Config   string
	LogLevel string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	cfg := &vnr.Settings{}
	var noExtract bool

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:   "vnr <url> <destination-path>",
		Short: "Download a URL with very noisy network tracing",
		Long: `vnr (volta networking repro) downloads a URL into a directory while
tracing every network step: DNS resolution, TCP connect, TLS handshake,
connection reuse, redirects, response headers, and transfer progress.
It exists to pin down which phase a flaky download fails in.`,
		Example:       "  vnr https://nodejs.org/dist/v20.0.0/node-v20.0.0-darwin-arm64.tar.gz ~/Desktop",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Args:          cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigDefaults(cmd, ro, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(ro)

			req := vnr.Request{
				URL:       args[0],
				DestDir:   args[1],
				NoExtract: noExtract,
			}

			var emit vnr.EmitFunc
			switch {
			case ro.JSONOut:
				emit = jsonEvents(os.Stdout)
			case ro.Quiet:
				emit = nil
			default:
				r := newRenderer()
				defer r.Close()
				emit = r.Handler()
			}

			report, err := vnr.Fetch(ctx, req, *cfg, emit)
			if report != nil {
				printSummary(os.Stdout, report, ro)
			}
			return err
		},
	}

	// Global flags
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON event lines and report")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (errors and final summary only)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "debug", "Log level: debug, info, warn, error")

	// Fetch flags
	root.Flags().StringVar(&cfg.Timeout, "timeout", "", "Whole-operation timeout (e.g. 30s); empty means none")
	root.Flags().IntVar(&cfg.Retries, "retries", 0, "Max retry attempts per request (0 surfaces the first failure)")
	root.Flags().StringVar(&cfg.BackoffInitial, "backoff-initial", "400ms", "Initial retry backoff duration")
	root.Flags().StringVar(&cfg.BackoffMax, "backoff-max", "10s", "Maximum retry backoff duration")
	root.Flags().BoolVar(&cfg.InsecureTLS, "insecure", false, "Skip TLS certificate verification")
	root.Flags().StringVar(&cfg.DNSServer, "dns-server", "", "Also query this DNS server directly (host[:port])")
	root.Flags().StringVar(&cfg.UserAgent, "user-agent", "", "Override the User-Agent header")
	root.Flags().BoolVar(&noExtract, "no-extract", false, "Keep the downloaded archive; skip tar extraction")

	root.AddCommand(newVersionCmd(version))
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

// setupLogging wires apex/log. Trace output is the whole point of the
// tool, so the default level is debug; --quiet and --json dial it down
// to keep stderr out of the way of the summary or the JSON stream.
func setupLogging(ro *RootOpts) {
	if ro.JSONOut {
		log.SetHandler(jsonhandler.New(os.Stderr))
		log.SetLevel(log.WarnLevel)
		return
	}
	log.SetHandler(clihandler.New(os.Stderr))
	if ro.Quiet {
		log.SetLevel(log.ErrorLevel)
		return
	}
	if lvl, err := log.ParseLevel(ro.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.DebugLevel)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
