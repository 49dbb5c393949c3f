// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"radar/cmd"
	"radar/internal/config"
	applog "radar/internal/log"
	"radar/internal/radar"
	"radar/pkg/build"
	"syscall"
)

// main is the entry point of the radargram processor.
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments
//   - Load the YAML configuration and apply flag overrides
//
// 2. Processing Phase:
//   - Load raw traces, run the pipeline, record and publish the result
//   - SIGINT/SIGTERM cancel the run between traces
//
// 3. Shutdown Phase:
//   - Stop the metrics endpoint and close every transport
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		applog.Fatal(err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatal(err)
	}
	if options == nil {
		return
	}

	if options.Command == cmd.CommandVersion {
		fmt.Println(build.GetBuildFlags())
		return
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		applog.Fatal(err)
	}
	if err := options.Apply(cfg); err != nil {
		applog.Fatalf("invalid options: %v", err)
	}
	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)

	// ==================== PROCESSING PHASE ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch options.Command {
	case cmd.CommandReplica:
		if _, err := cmd.Replica(ctx, os.Stdout, cfg); err != nil {
			applog.Fatal(err)
		}

	case cmd.CommandProcess:
		res, err := cmd.Process(ctx, cfg)

		// ==================== SHUTDOWN PHASE ====================

		switch {
		case errors.Is(err, radar.ErrCancelled) && res == nil:
			applog.Warnf("Run aborted: %v", err)
			stop()
			os.Exit(130)
		case err != nil:
			stop()
			applog.Fatal(err)
		}
		applog.Infof("Run %s %s: %d traces of %d samples (%s) in %s",
			res.ID, res.Status, res.Buffer.Len(), res.Buffer.TraceLen(), res.Buffer.Domain(), res.Elapsed)
	}
}
