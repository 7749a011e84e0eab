package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/configs"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/output"
)

func newInitCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration",
		Long: `Write a commented .lorekeep.yaml to the library root (default: the
working directory). Every value in the template is the built-in default,
so the file documents the knobs without changing behavior until edited.`,
		Example: `  # Set up the current directory as a library
  lorekeep init

  # Set up another directory
  lorekeep init ~/notes

  # Inspect the template without writing anything
  lorekeep init --stdout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, argPath(args), force, stdout)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the template instead of writing it")

	return cmd
}

func runInit(cmd *cobra.Command, path string, force, stdout bool) error {
	out := output.New(cmd.OutOrStdout())

	if stdout {
		_, err := fmt.Fprint(cmd.OutOrStdout(), configs.ConfigTemplate)
		return err
	}

	dir := path
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", abs)
	}

	cfgPath := config.Path(abs)
	if config.Exists(abs) {
		if !force {
			return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", cfgPath)
		}
		backup, err := config.BackupConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to back up existing configuration: %w", err)
		}
		if backup != "" {
			out.Statusf("  ", "backed up existing configuration to %s", backup)
		}
	}

	if err := os.WriteFile(cfgPath, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	out.Successf("wrote %s", cfgPath)
	out.Newline()
	out.Plain("Next steps:")
	out.Plain("  1. Edit the file if the defaults don't fit (embedding provider, excludes)")
	out.Plain("  2. Run 'lorekeep rebuild' to index the library")
	out.Plain("  3. Run 'lorekeep search \"...\"' or wire 'lorekeep serve' into your MCP client")

	return nil
}
