package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/btrekkie/file-builder/config"
	"github.com/btrekkie/file-builder/logging"
)

// rootConfiguration holds the persistent flags shared by every subcommand.
var rootConfiguration struct {
	// envFile is the path to an optional .env-style override file.
	envFile string
	// yamlFile is the path to an optional filebuild.yaml project file.
	yamlFile string
	// verbose enables debug-level logging.
	verbose bool
	// noColor forces off the ANSI colorization that would otherwise be used
	// when standard error is a terminal.
	noColor bool
}

var rootCommand = &cobra.Command{
	Use:           "filebuildctl",
	Short:         "Inspect and clean file-builder cache files",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&rootConfiguration.envFile, "env-file", "", "Path to a .env-style override file")
	flags.StringVar(&rootConfiguration.yamlFile, "config", "filebuild.yaml", "Path to a YAML project configuration file")
	flags.BoolVarP(&rootConfiguration.verbose, "verbose", "v", false, "Enable verbose (debug-level) logging")
	flags.BoolVar(&rootConfiguration.noColor, "no-color", false, "Disable colorized log output")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		cleanCommand,
		cacheCommand,
	)
}

// loadConfig resolves this invocation's config.Config from rootConfiguration,
// the process environment, and any files named by --env-file/--config.
func loadConfig() (config.Config, error) {
	return config.Load(rootConfiguration.envFile, rootConfiguration.yamlFile)
}

// newLogger constructs the root Logger subcommands should use, honoring
// --verbose and --no-color plus whether standard error is actually a
// terminal.
func newLogger(cfg config.Config) *logging.Logger {
	logging.DebugEnabled = rootConfiguration.verbose
	colorize := cfg.Colorize && !rootConfiguration.noColor && isTerminal(os.Stderr)
	return logging.NewStandardLogger(os.Stderr, colorize)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
