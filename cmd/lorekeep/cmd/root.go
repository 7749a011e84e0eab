// Package cmd provides the CLI commands for lorekeep.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/profiling"
	"github.com/lorekeep/lorekeep/pkg/version"
)

// debugMode mirrors the persistent --debug flag. Commands that set up
// logging consult it to raise the level and echo to stderr.
var debugMode bool

// Profiling flags apply to any subcommand; rebuild over a large library
// is the usual target.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuStop      func()
	traceStop    func()
)

// NewRootCmd creates the root command for the lorekeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lorekeep",
		Short: "Semantic search over a markdown library",
		Long: `Lorekeep indexes a tree of markdown documents into chunk embeddings and
answers semantic queries over them, either from the command line or as an
MCP server for AI assistants.

Typical flow:
  lorekeep init      write a starter .lorekeep.yaml
  lorekeep rebuild   index the library from scratch
  lorekeep search    query it
  lorekeep serve     expose it over MCP stdio`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("lorekeep version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging (also echoes logs to stderr)")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write a heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write an execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(
		newInitCmd(),
		newRebuildCmd(),
		newUpdateCmd(),
		newSearchCmd(),
		newFetchCmd(),
		newStatusCmd(),
		newServeCmd(),
		newWatchCmd(),
		newPullCmd(),
		newDoctorCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)

	return cmd
}

// startProfiling begins CPU and trace profiling when the flags ask for it.
func startProfiling(_ *cobra.Command, _ []string) error {
	if profileCPU != "" {
		stop, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		cpuStop = stop
	}

	if profileTrace != "" {
		stop, err := profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuStop != nil {
				cpuStop()
				cpuStop = nil
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
		traceStop = stop
	}

	return nil
}

// stopProfiling flushes the running profiles and writes the heap snapshot.
func stopProfiling(_ *cobra.Command, _ []string) error {
	if cpuStop != nil {
		cpuStop()
		cpuStop = nil
	}
	if traceStop != nil {
		traceStop()
		traceStop = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write heap profile: %w", err)
		}
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
