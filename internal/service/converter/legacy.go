package converter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hz-b/phoebusalarm/internal/export"
	"github.com/hz-b/phoebusalarm/internal/logger"
	"github.com/hz-b/phoebusalarm/internal/xmlparser"
)

// LegacyOptions contains inputs for the XML to legacy entry point.
type LegacyOptions struct {
	// InputPath is the alarm configuration XML file to convert.
	InputPath string
	// OutputPath is the legacy output path. Empty derives it from InputPath
	// by swapping the extension.
	OutputPath string
	// Recursive also converts every file the input references.
	Recursive bool
	// Watch keeps the converter running and converts again whenever the
	// input changes.
	Watch bool
	// DisplayCommand is the command emitted for converted display files.
	DisplayCommand string
}

// legacyConverter holds the resolved paths of one XML to legacy setup.
type legacyConverter struct {
	opts       *LegacyOptions
	inputPath  string
	outputPath string
}

// RunToLegacy executes the XML to legacy conversion workflow, once or, with
// Watch set, on every change of the input file.
func RunToLegacy(ctx context.Context, opts *LegacyOptions) error {
	ctx = logger.WithName(ctx, "xml2alh")

	conv, err := newLegacyConverter(opts)
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

func newLegacyConverter(opts *LegacyOptions) (*legacyConverter, error) {
	if opts.InputPath == "" {
		return nil, errInputNotSpecified
	}

	inputPath, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = swapExt(inputPath, ".alh")
	}

	return &legacyConverter{
		opts:       opts,
		inputPath:  inputPath,
		outputPath: outputPath,
	}, nil
}

func (lc *legacyConverter) convert(ctx context.Context) error {
	return lc.convertFile(ctx, lc.inputPath, lc.outputPath)
}

// convertFile converts one configuration file, in recursive mode following
// its include references first. Markers stay in the tree either way, the
// legacy format carries them natively as INCLUDE lines.
func (lc *legacyConverter) convertFile(ctx context.Context, inPath, outPath string) error {
	tree, err := xmlparser.Parse(ctx, inPath)
	if err != nil {
		return err
	}

	if lc.opts.Recursive {
		for _, marker := range inclusionMarkers(tree) {
			subIn := marker.Filename
			subOut := swapExt(marker.Filename, ".alh")

			if !filepath.IsAbs(subIn) {
				subIn = filepath.Join(filepath.Dir(inPath), subIn)
				subOut = filepath.Join(filepath.Dir(outPath), subOut)
			}

			if err := lc.convertFile(ctx, subIn, subOut); err != nil {
				return err
			}
		}
	}

	exporter := &export.ALHExporter{
		DisplayCommand: lc.opts.DisplayCommand,
		IncludeExt:     ".alh",
	}
	if err := exporter.ExportFile(ctx, tree, outPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Output written", "path", outPath)

	return nil
}
