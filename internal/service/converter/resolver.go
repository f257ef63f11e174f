package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/alhparser"
	"github.com/hz-b/phoebusalarm/internal/export"
	"github.com/hz-b/phoebusalarm/internal/logger"
)

// parseResolved parses a legacy file and resolves its include markers,
// recursing into the referenced files.
func (c *converter) parseResolved(ctx context.Context, inPath, outPath, configName string) (*alarmtree.Tree, error) {
	tree, err := alhparser.Parse(ctx, inPath, configName)
	if err != nil {
		return nil, err
	}

	if err := c.resolveIncludes(ctx, tree, inPath, outPath); err != nil {
		return nil, err
	}

	return tree, nil
}

func (c *converter) resolveIncludes(ctx context.Context, tree *alarmtree.Tree, inPath, outPath string) error {
	for _, marker := range inclusionMarkers(tree) {
		if err := c.resolveMarker(ctx, tree, marker, inPath, outPath); err != nil {
			return err
		}
	}

	return nil
}

// resolveMarker converts the file a marker points at. In single file mode
// the converted tree is pulled into the including tree, otherwise it is
// written next to the main output and the marker stays as a reference.
func (c *converter) resolveMarker(
	ctx context.Context,
	tree *alarmtree.Tree,
	marker *alarmtree.InclusionMarker,
	inPath, outPath string,
) error {
	subIn := marker.Filename
	subOut := swapExt(marker.Filename, ".xml")

	if !filepath.IsAbs(subIn) {
		subIn = filepath.Join(filepath.Dir(inPath), subIn)
		subOut = filepath.Join(filepath.Dir(outPath), subOut)
	}

	if !c.opts.SingleFile && c.opts.SkipExisting {
		if _, err := os.Stat(subOut); err == nil {
			logger.InfoKV(ctx, "Include output already exists, not converting again", "path", subOut)

			return nil
		}
	}

	parent := tree.Parent(marker.ID())

	subTree, err := c.parseResolved(ctx, subIn, subOut, parent.ID())
	if err != nil {
		return err
	}

	if c.opts.SingleFile {
		return c.graftInclude(ctx, tree, marker, subTree, subIn)
	}

	exporter := &export.XMLExporter{IncludeExt: ".xml"}
	if err := exporter.ExportFile(subTree, subOut); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Converted included file", "input", subIn, "output", subOut)

	return nil
}

// graftInclude moves the included file's single top level group into the
// main tree, at the position the include line held, and drops the marker.
// A failing graft keeps the marker so the output still references the file.
func (c *converter) graftInclude(
	ctx context.Context,
	tree *alarmtree.Tree,
	marker *alarmtree.InclusionMarker,
	subTree *alarmtree.Tree,
	subPath string,
) error {
	topLevel := subTree.Children(subTree.RootID())
	if len(topLevel) != 1 {
		return fmt.Errorf("included file %s must have exactly one top level group, found %d",
			subPath, len(topLevel))
	}

	top := topLevel[0]
	parent := tree.Parent(marker.ID())

	if err := tree.Graft(parent.ID(), subTree, top.ID()); err != nil {
		logger.ErrorKV(ctx, "Cannot combine included file, keeping the include reference",
			"path", subPath, "error", err)

		return nil
	}

	if err := tree.SetSortKey(top.ID(), marker.SortKey()); err != nil {
		return err
	}

	if _, err := tree.RemoveNode(marker.ID()); err != nil {
		return err
	}

	return nil
}

// trimTopGroup promotes the children of a single top level group to the
// root, cutting one level of hierarchy from the output.
func trimTopGroup(ctx context.Context, tree *alarmtree.Tree) {
	topLevel := tree.Children(tree.RootID())
	if len(topLevel) != 1 {
		logger.ErrorKV(ctx, "Tree has multiple top level groups, keeping them all", "count", len(topLevel))

		return
	}

	if err := tree.LinkPast(topLevel[0].ID()); err != nil {
		logger.ErrorKV(ctx, "Cannot remove the top level group", "error", err)
	}
}

func inclusionMarkers(tree *alarmtree.Tree) []*alarmtree.InclusionMarker {
	var markers []*alarmtree.InclusionMarker

	tree.Walk(func(node alarmtree.Node) {
		if marker, ok := node.(*alarmtree.InclusionMarker); ok {
			markers = append(markers, marker)
		}
	})

	return markers
}
