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
	// outputPath of the generated XML file.
	outputPath string
	// configName of the alarm configuration in the console.
	configName string
	// recursive converts the files included by the input as well.
	recursive bool
	// singleFile combines all included files into one output.
	singleFile bool
	// trimTop removes a single top-level group.
	trimTop bool
	// skipExisting leaves already converted include outputs untouched.
	skipExisting bool
	// watch keeps the converter running and reacts to input changes.
	watch bool
	// settingsPath to the converter settings YAML file.
	settingsPath string
	// logLevel overrides the log level from the settings file.
	logLevel string

	// rootCmd represents the base command converting legacy files to XML.
	rootCmd = &cobra.Command{
		Use:   "alh2xml [input-file]",
		Short: "Convert alarm handler files into console compatible XML.",
		Long: `Converts legacy alarm handler configuration files into the XML format of
the console alarm server.

Included files are kept as include references by default. With --recursive
each referenced file is converted next to the main output; --single-file
pulls their contents into the main output instead. --watch keeps the
converter running and converts again whenever the input file changes.`,
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

			options := &converter.Options{
				InputPath:    args[0],
				OutputPath:   outputPath,
				ConfigName:   configName,
				Recursive:    recursive,
				SingleFile:   singleFile,
				TrimTop:      trimTop,
				SkipExisting: skipExisting,
				Watch:        watch,
			}

			return converter.Run(ctx, options)
		},
	}
)

// Execute runs the alh2xml CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output xml file (default: input with .xml extension)")
	rootCmd.Flags().
		StringVarP(&configName, "config-name", "c", "", "name of the alarm configuration (default: input file name)")
	rootCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "convert all files included by the input file")
	rootCmd.Flags().BoolVarP(&singleFile, "single-file", "f", false, "combine included files into a single output")
	rootCmd.Flags().BoolVarP(&trimTop, "trim", "t", false, "remove the top-level group to reduce tree depth")
	rootCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "keep include outputs that already exist")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "stay running and convert again when the input changes")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "path to converter settings file")
	rootCmd.Flags().
		StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error or fatal (default from settings)")
}
