package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"tscpaths/internal/config"

	"github.com/spf13/cobra"
)

var cfg = &config.Config{}

var rootCmd = &cobra.Command{
	Use:   "tscpaths -p <tsconfig> -s <src> [-o <out>]",
	Short: "Replace TypeScript path aliases in compiled output with relative paths",
	Long: `tscpaths reads the paths mapping of a tsconfig.json (following extends)
and rewrites every aliased module specifier in the compiled output directory
into a relative path, so the output runs without a path-mapping loader.

A specifier is only rewritten when one of its alias candidates exists under
the source tree. Relative paths are computed from the location of the
corresponding source file.`,
	Example: `  tscpaths -p tsconfig.json -s ./src -o ./dist
  tscpaths -p tsconfig.json -s ./src --dry-run -v
  tscpaths -p tsconfig.json -s ./src --log run.json --log-format json
  tscpaths --revert --log run.json`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTscpaths,
}

// Execute runs the root command. An interrupt stops scheduling new files.
// Any error is printed to stderr and the process exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&cfg.Project, "project", "p", "", "Path to tsconfig.json")
	rootCmd.Flags().StringVarP(&cfg.SourceRoot, "src", "s", "", "Source root directory")
	rootCmd.Flags().StringVarP(&cfg.OutputRoot, "out", "o", "", "Output root directory (default: outDir from tsconfig)")
	rootCmd.Flags().StringSliceVar(&cfg.Include, "include", []string{}, "Include file patterns (glob, repeatable)")
	rootCmd.Flags().StringSliceVar(&cfg.Exclude, "exclude", []string{}, "Exclude file patterns (glob, repeatable)")
	rootCmd.Flags().StringSliceVar(&cfg.ExcludeDir, "exclude-dir", []string{}, "Exclude directories (repeatable)")
	rootCmd.Flags().IntVar(&cfg.Workers, "workers", 0, "Number of files processed in parallel (default: CPUs, max 8)")
	rootCmd.Flags().IntVar(&cfg.CacheSize, "cache-size", 0, "Entries kept in the file existence cache")
	rootCmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Report replacements without writing files")
	rootCmd.Flags().BoolVar(&cfg.Backup, "backup", false, "Keep a .bak copy of every rewritten file")
	rootCmd.Flags().BoolVarP(&cfg.Revert, "revert", "r", false, "Revert a run recorded in the --log report")
	rootCmd.Flags().BoolVar(&cfg.Apply, "apply", false, "Apply a run recorded in the --log report again")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print every replacement")
	rootCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Print aliases, positions and untouched files too")
	rootCmd.Flags().BoolVarP(&cfg.Quiet, "quiet", "q", false, "Print nothing")
	rootCmd.Flags().StringVar(&cfg.LogFile, "log", "", "Report file (default: stdout)")
	rootCmd.Flags().Var((*logFormatFlag)(&cfg.LogFormat), "log-format", "Report format (text, json, csv)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("debug", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("revert", "apply")
	rootCmd.MarkFlagsMutuallyExclusive("revert", "dry-run")
	rootCmd.MarkFlagsMutuallyExclusive("apply", "dry-run")
}

func runTscpaths(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return execute(cmd.Context(), cfg)
}

type logFormatFlag config.LogFormat

func (f *logFormatFlag) String() string {
	return string(*f)
}

func (f *logFormatFlag) Set(v string) error {
	switch config.LogFormat(v) {
	case config.LogFormatText, config.LogFormatJSON, config.LogFormatCSV:
		*f = logFormatFlag(v)
		return nil
	default:
		return fmt.Errorf("must be 'text', 'json' or 'csv'")
	}
}

func (f *logFormatFlag) Type() string {
	return "string"
}
