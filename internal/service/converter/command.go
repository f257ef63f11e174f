package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/alhparser"
	"github.com/hz-b/phoebusalarm/internal/export"
	"github.com/hz-b/phoebusalarm/internal/logger"
)

// Options contains inputs for the legacy to XML entry point.
type Options struct {
	// InputPath is the legacy alarm handler file to convert.
	InputPath string
	// OutputPath is the XML output path. Empty derives it from InputPath by
	// swapping the extension.
	OutputPath string
	// ConfigName is the alarm configuration name. Empty derives it from the
	// input file name.
	ConfigName string
	// Recursive also converts every file included by the input file.
	Recursive bool
	// SingleFile combines all included files into one output. Implies
	// Recursive.
	SingleFile bool
	// TrimTop removes a single top level group to reduce tree depth.
	TrimTop bool
	// SkipExisting leaves include outputs that already exist untouched.
	SkipExisting bool
	// Watch keeps the converter running and converts again whenever the
	// input changes.
	Watch bool
}

// converter holds the resolved paths of one conversion setup.
type converter struct {
	opts       *Options
	inputPath  string
	outputPath string
	configName string
}

// errInputNotSpecified indicates the entry point was called without a file.
var errInputNotSpecified = errors.New("input file is not specified")

// Run executes the conversion workflow, once or, with Watch set, on every
// change of the input file.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alh2xml")

	conv, err := newConverter(opts)
	if err != nil {
		return err
	}

	if err = conv.convert(ctx); err != nil {
		return fmt.Errorf("convert %s: %w", conv.inputPath, err)
	}

	if !opts.Watch {
		return nil
	}

	return watchAndRun(ctx, conv.inputPath, conv.convert)
}

func newConverter(opts *Options) (*converter, error) {
	if opts.InputPath == "" {
		return nil, errInputNotSpecified
	}

	inputPath, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = swapExt(inputPath, ".xml")
	}

	configName := opts.ConfigName
	if configName == "" {
		configName = baseName(inputPath)
	}

	return &converter{
		opts:       opts,
		inputPath:  inputPath,
		outputPath: outputPath,
		configName: configName,
	}, nil
}

// convert runs one full conversion of the configured input.
func (c *converter) convert(ctx context.Context) error {
	var (
		tree *alarmtree.Tree
		err  error
	)

	if c.opts.Recursive || c.opts.SingleFile {
		tree, err = c.parseResolved(ctx, c.inputPath, c.outputPath, c.configName)
	} else {
		tree, err = alhparser.Parse(ctx, c.inputPath, c.configName)
	}

	if err != nil {
		return err
	}

	if c.opts.TrimTop {
		trimTopGroup(ctx, tree)
	}

	exporter := &export.XMLExporter{IncludeExt: ".xml"}
	if err := exporter.ExportFile(tree, c.outputPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Output written", "path", c.outputPath)

	return nil
}

// swapExt replaces the extension of p, keeping paths without one intact.
func swapExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// baseName returns the file name of p without directory and extension.
func baseName(p string) string {
	base := filepath.Base(p)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
