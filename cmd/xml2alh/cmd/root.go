package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hz-b/phoebusalarm/internal/config"
	"github.com/hz-b/phoebusalarm/internal/logger"
	"github.com/hz-b/phoebusalarm/internal/service/converter"
	"github.com/hz-b/phoebusalarm/internal/version"
)

var (
	// outputPath of the generated legacy file.
	outputPath string
	// recursive converts the files referenced by the input as well.
	recursive bool
	// watch keeps the converter running and reacts to input changes.
	watch bool
	// displayCommand overrides the display opener from the settings file.
	displayCommand string
	// settingsPath to the converter settings YAML file.
	settingsPath string
	// logLevel overrides the log level from the settings file.
	logLevel string

	// rootCmd represents the base command converting XML configs to legacy files.
	rootCmd = &cobra.Command{
		Use:   "xml2alh [input-file]",
		Short: "Convert console alarm configuration XML into alarm handler files.",
		Long: `Converts console alarm configuration XML back into the legacy alarm
handler format.

Include references become INCLUDE lines; with --recursive each referenced
file is converted next to the main output as well. Display references to
converted screens are rewritten as display commands using the configured
opener. Constructs the legacy format cannot carry, such as mail actions or
delayed actions, are reported and dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			settings, err := config.Load(settingsPath)
			if err != nil {
				return err
			}

			if err = applyLogLevel(settings); err != nil {
				return err
			}

			opener := settings.DisplayCommand
			if displayCommand != "" {
				opener = displayCommand
			}

			options := &converter.LegacyOptions{
				InputPath:      args[0],
				OutputPath:     outputPath,
				Recursive:      recursive,
				Watch:          watch,
				DisplayCommand: opener,
			}

			return converter.RunToLegacy(ctx, options)
		},
	}
)

// Execute runs the xml2alh CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel sets the global log level, the flag winning over settings.
func applyLogLevel(settings *config.Config) error {
	name := settings.LogLevel
	if logLevel != "" {
		name = logLevel
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output legacy file (default: input with .alh extension)")
	rootCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "convert all files referenced by the input file")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "stay running and convert again when the input changes")
	rootCmd.Flags().
		StringVar(&displayCommand, "display-command", "", "command emitted to open converted display files (default from settings)")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "path to converter settings file")
	rootCmd.Flags().
		StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or fatal (default from settings)")
}
