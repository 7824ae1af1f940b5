package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	hourlyFlags := &HourlyFlags{}
	listFlags := &ListFlags{}

	appmonCommand := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(appmonCommand, globalFlags, runFlags),
		createHourlyCommand(appmonCommand, hourlyFlags),
		createListCommand(appmonCommand, listFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "appmon",
		Short: "Desktop activity monitoring engine",
		Long: `Appmon observes the local desktop session: which processes start
and stop, and which window holds the foreground. Observations become
timestamped events in a rotating log whose finished segments are
compressed and handed to a configured sink.

Examples:
  appmon run --config appmon.toml
  appmon run --config appmon.toml --mode process
  appmon hourly --logfile events.log --out hourly.log
  appmon list`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file")
	return root
}

// createRunCommand creates the run subcommand
func createRunCommand(appmonCommand command, globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor the desktop session until interrupted",
		Long: `Run the configured monitoring loops until SIGINT or SIGTERM.
The active-window tracker and the process lifecycle monitor write into
one shared event log; a stop marker records the interruption.

Examples:
  appmon run --config appmon.toml
  appmon run --config appmon.toml --mode both --echo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appmonCommand.Run(cmd, *globalFlags, *runFlags)
		},
	}
	cmd.Flags().StringVar(&runFlags.Mode, "mode", "", "override monitor mode: active | process | both")
	cmd.Flags().BoolVar(&runFlags.Echo, "echo", false, "also print event lines to stdout")
	return cmd
}

// createHourlyCommand creates the hourly replay subcommand
func createHourlyCommand(appmonCommand command, hourlyFlags *HourlyFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hourly",
		Short: "Group window events from a log file by wall-clock hour",
		Long: `Read an event log file offline and regroup its window activity
under hourly headers. With --append, only hours strictly after the
saved position and strictly before the current hour are appended, so
repeated runs never duplicate output.

Examples:
  appmon hourly --logfile events.log --out hourly.log
  appmon hourly --logfile events.log --out hourly.log --append --state hourly.state`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return appmonCommand.Hourly(cmd, *hourlyFlags)
		},
	}
	cmd.Flags().StringVar(&hourlyFlags.LogFile, "logfile", "", "event log file to read (required)")
	cmd.Flags().StringVar(&hourlyFlags.Out, "out", "", "output file (stdout when omitted)")
	cmd.Flags().StringVar(&hourlyFlags.State, "state", "", "state file for --append position")
	cmd.Flags().BoolVar(&hourlyFlags.Append, "append", false, "append only hours after the saved position")
	cmd.Flags().BoolVar(&hourlyFlags.Quiet, "quiet", false, "suppress the summary line")
	if err := cmd.MarkFlagRequired("logfile"); err != nil {
		panic(err)
	}
	return cmd
}

// createListCommand creates the list subcommand
func createListCommand(appmonCommand command, listFlags *ListFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the current process table once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return appmonCommand.List(cmd, *listFlags)
		},
	}
	cmd.Flags().BoolVar(&listFlags.IncludeSystem, "include-system", false, "include system processes")
	return cmd
}
