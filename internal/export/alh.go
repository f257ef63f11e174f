package export

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/logger"
)

// legacyRootName is the parent tag legacy files use for top level groups.
const legacyRootName = "NULL"

// defaultDisplayCommand opens converted display files when the exporter is
// not configured with a site specific command.
const defaultDisplayCommand = "run_edm.sh"

// ALHExporter renders an alarm tree as a legacy alarm handler file.
type ALHExporter struct {
	// DisplayCommand is the script legacy operators use to open displays.
	DisplayCommand string
	// IncludeExt, when set, replaces the extension of include references.
	IncludeExt string
}

// ExportString renders the tree as legacy text.
func (a *ALHExporter) ExportString(ctx context.Context, tree *alarmtree.Tree) (string, error) {
	lines, err := a.Lines(ctx, tree)
	if err != nil {
		return "", err
	}

	return strings.Join(lines, "\n"), nil
}

// ExportFile writes the legacy text to outPath.
func (a *ALHExporter) ExportFile(ctx context.Context, tree *alarmtree.Tree, outPath string) error {
	text, err := a.ExportString(ctx, tree)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write legacy config: %w", err)
	}

	return nil
}

// Lines renders the tree as legacy lines. The root itself is never emitted;
// its children become top level entries under the NULL parent. More than one
// top level group breaks the legacy format, so that is reported, but the
// tree is still rendered in full.
func (a *ALHExporter) Lines(ctx context.Context, tree *alarmtree.Tree) ([]string, error) {
	rootID := tree.RootID()
	if len(tree.Children(rootID)) > 1 {
		logger.ErrorKV(ctx, "tree has more than one top level group, legacy tools will not load this file",
			"config", rootID)
	}

	return a.nodeLines(ctx, tree, rootID, legacyRootName)
}

func (a *ALHExporter) nodeLines(ctx context.Context, tree *alarmtree.Tree, id, parentTag string) ([]string, error) {
	var lines []string

	for _, child := range tree.Children(id) {
		var (
			childLines []string
			err        error
		)

		switch node := child.(type) {
		case *alarmtree.Group:
			childLines, err = a.groupLines(ctx, node, parentTag)
		case *alarmtree.Channel:
			childLines, err = a.channelLines(ctx, node, parentTag)
		case *alarmtree.InclusionMarker:
			childLines = []string{fmt.Sprintf("INCLUDE %s %s", parentTag, a.includeTarget(node))}
		}

		if err != nil {
			return nil, err
		}

		lines = append(lines, childLines...)
		lines = append(lines, "")

		grandchildren, err := a.nodeLines(ctx, tree, child.ID(), child.Tag())
		if err != nil {
			return nil, err
		}

		lines = append(lines, grandchildren...)
	}

	return lines, nil
}

func (a *ALHExporter) groupLines(ctx context.Context, group *alarmtree.Group, parentTag string) ([]string, error) {
	lines := []string{fmt.Sprintf("GROUP %s %s", parentTag, group.Tag())}

	if group.Name() != group.Tag() {
		lines = append(lines, "$ALIAS "+group.Name())
	}

	attachments, err := a.attachmentLines(ctx, &group.Attachments)
	if err != nil {
		return nil, err
	}

	return append(lines, attachments...), nil
}

// channelLines emits the channel header with the mask the channel rests at
// when its force PV is not asserted, followed by the attachments, the alarm
// count filter, and the force PV itself.
func (a *ALHExporter) channelLines(ctx context.Context, channel *alarmtree.Channel, parentTag string) ([]string, error) {
	filter, hasFilter := channel.Filter().(*alarmtree.AlarmFilter)
	if channel.Filter() != nil && !hasFilter {
		return nil, fmt.Errorf("filter of %s cannot be written as a force PV", channel.PV())
	}

	restingEnabled := channel.Enabled && !(hasFilter && filter.Enabling)
	mask := alarmtree.Mask(restingEnabled, channel.Latching)

	lines := []string{fmt.Sprintf("CHANNEL %s %s %s", parentTag, channel.PV(), mask)}

	if channel.Description != "" {
		lines = append(lines, "$ALIAS "+channel.Description)
	}

	attachments, err := a.attachmentLines(ctx, &channel.Attachments)
	if err != nil {
		return nil, err
	}

	lines = append(lines, attachments...)

	if channel.Delay > 0 {
		lines = append(lines, fmt.Sprintf("$ALARMCOUNTFILTER %d %s", channel.Count, formatSeconds(channel.Delay)))
	}

	if hasFilter {
		lines = append(lines, filter.ForceLines(channel.Latching)...)
	}

	return lines, nil
}

func (a *ALHExporter) attachmentLines(ctx context.Context, att *alarmtree.Attachments) ([]string, error) {
	var lines []string

	for _, guidance := range att.Guidances {
		lines = append(lines, "$GUIDANCE")
		lines = append(lines, strings.Split(guidance.Details, "\n")...)
		lines = append(lines, "$END")
	}

	for _, command := range att.Commands {
		lines = append(lines, "$COMMAND "+command.Details)
	}

	for _, display := range att.Displays {
		lines = append(lines, a.displayLine(display.Details))
	}

	for _, action := range att.Actions {
		line, err := a.actionLine(ctx, action)
		if err != nil {
			return nil, err
		}

		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}

// displayLine renders a display reference. Converted display files map back
// to the legacy screen tool with their macros restored; anything else is
// kept as a plain link.
func (a *ALHExporter) displayLine(display string) string {
	if !strings.Contains(display, ".bob") {
		return "$GUIDANCE " + display
	}

	parsed, err := url.Parse(display)
	if err != nil {
		return "$GUIDANCE " + display
	}

	file := strings.Replace(path.Base(parsed.Path), ".bob", ".edl", 1)

	parts := []string{a.displayCommand()}

	query := parsed.Query()
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, key+"="+query[key][0])
		}

		parts = append(parts, `-m "`+strings.Join(pairs, ",")+`"`)
	}

	parts = append(parts, file)

	return "$COMMAND " + strings.Join(parts, " ")
}

func (a *ALHExporter) displayCommand() string {
	if a.DisplayCommand != "" {
		return a.DisplayCommand
	}

	return defaultDisplayCommand
}

// actionLine renders an automated action, or an empty string for actions the
// legacy format cannot carry. Delayed actions are among those, legacy files
// trigger everything immediately.
func (a *ALHExporter) actionLine(ctx context.Context, action alarmtree.AutomatedAction) (string, error) {
	kind, details, ok := strings.Cut(action.Details, ":")
	if !ok {
		return "", fmt.Errorf("automated action %q has no type prefix", action.Details)
	}

	var line string

	switch kind {
	case "sevrpv":
		line = "$SEVRPV " + details
	case "cmd":
		line = "$SEVRCOMMAND UP_ANY " + details
	case "mailto":
		logger.WarnKV(ctx, "mail actions have no legacy equivalent, dropping", "recipients", details)

		return "", nil
	default:
		return "", fmt.Errorf("unknown automated action type %q", kind)
	}

	if action.Delay > 0 {
		logger.WarnKV(ctx, "delayed actions have no legacy equivalent, dropping", "action", action.Details)

		return "", nil
	}

	return line, nil
}

func (a *ALHExporter) includeTarget(marker *alarmtree.InclusionMarker) string {
	if a.IncludeExt == "" {
		return marker.Filename
	}

	return swapExt(marker.Filename, a.IncludeExt)
}
