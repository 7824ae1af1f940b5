package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/loykin/appmon"
	"github.com/loykin/appmon/internal/classify"
	"github.com/loykin/appmon/internal/hourly"
	"github.com/loykin/appmon/internal/proctable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type command struct{}

// Run loads the configuration, wires the app, and monitors until a
// signal arrives.
func (c command) Run(cmd *cobra.Command, gf GlobalFlags, rf RunFlags) error {
	if gf.ConfigPath == "" {
		return fmt.Errorf("run requires --config")
	}
	fc, err := appmon.LoadConfig(gf.ConfigPath)
	if err != nil {
		return err
	}
	if rf.Mode != "" {
		fc.Monitor.Mode = rf.Mode
		if err := fc.Validate(); err != nil {
			return err
		}
	}
	if rf.Echo {
		fc.EventLog.Echo = true
	}

	diag := fc.Log.NewSlogger()
	slog.SetDefault(diag)

	app, err := appmon.New(fc, diag)
	if err != nil {
		return err
	}
	if err := appmon.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		diag.Warn("metrics registration failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Re-offer archives whose hand-off failed on a previous run before
	// new segments start piling up behind them.
	if n, err := app.RetrySweep(ctx, fc.EventLog.Path); err != nil {
		diag.Warn("segment retry sweep incomplete", "error", err)
	} else if n > 0 {
		diag.Info("segments stored by retry sweep", "count", n)
	}

	var srv *http.Server
	if fc.Server.Listen != "" {
		if srv, err = appmon.NewHTTPServer(fc.Server.Listen, fc.Server.BasePath, app.Monitor); err != nil {
			_ = app.Close()
			return err
		}
		diag.Info("status server listening", "addr", fc.Server.Listen)
	}

	runErr := app.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if cerr := app.Close(); runErr == nil {
		runErr = cerr
	}
	return runErr
}

// Hourly regroups window events from a log file by wall-clock hour.
func (c command) Hourly(cmd *cobra.Command, f HourlyFlags) error {
	groups, err := appmon.GroupEventFile(f.LogFile)
	if err != nil {
		return err
	}

	if f.Append {
		if f.Out == "" || f.State == "" {
			return fmt.Errorf("hourly --append requires --out and --state")
		}
		n, err := hourly.AppendNew(groups, f.Out, f.State, time.Now())
		if err != nil {
			return err
		}
		if !f.Quiet {
			cmd.Printf("appended %d hour(s) to %s\n", n, f.Out)
		}
		return nil
	}

	if f.Out == "" {
		return hourly.Write(cmd.OutOrStdout(), groups)
	}
	if err := appmon.WriteHourly(groups, f.Out); err != nil {
		return err
	}
	if !f.Quiet {
		cmd.Printf("wrote %d hour(s) to %s\n", len(groups), f.Out)
	}
	return nil
}

// List prints the current process table once.
func (c command) List(cmd *cobra.Command, f ListFlags) error {
	snap, err := proctable.Take()
	if err != nil {
		return err
	}
	pids := make([]int32, 0, len(snap))
	for pid, rec := range snap {
		if !f.IncludeSystem && classify.IsSystem(pid, rec.Name, rec.Username) {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		rec := snap[pid]
		started := "?"
		if !rec.CreatedAt.IsZero() {
			started = rec.CreatedAt.Format("2006-01-02 15:04:05")
		}
		user := rec.Username
		if user == "" {
			user = "?"
		}
		cmd.Printf("%6d  %-30s %-16s %s\n", pid, rec.Name, user, started)
	}
	cmd.Printf("%d processes\n", len(pids))
	return nil
}
