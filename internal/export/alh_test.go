package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/alhparser"
)

// TestALHExporter_RoundTrip parses one of each legacy construct and checks
// the rendered lines carry the same content back out.
func TestALHExporter_RoundTrip(t *testing.T) {
	t.Parallel()

	input := `GROUP NULL Station
$ALIAS Main Station
$GUIDANCE
Check the cooling rack.
$END
$SEVRPV test:sevr

CHANNEL Station test:ai1 ---T-
$ALIAS Inlet temperature
$COMMAND reset.sh all
$ALARMCOUNTFILTER 3 5
$FORCEPV test:force CD-T- 5 NE
`

	tree, err := alhparser.ParseReader(context.Background(), strings.NewReader(input), "test.alh", "config")
	require.NoError(t, err)

	exporter := &ALHExporter{}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	expected := []string{
		"GROUP NULL Station",
		"$ALIAS Main Station",
		"$GUIDANCE",
		"Check the cooling rack.",
		"$END",
		"$SEVRPV test:sevr",
		"",
		"CHANNEL Station test:ai1 ---T-",
		"$ALIAS Inlet temperature",
		"$COMMAND reset.sh all",
		"$ALARMCOUNTFILTER 3 5",
		"$FORCEPV test:force CD-T- 5 NE",
		"",
	}
	require.Equal(t, expected, lines)
}

// TestALHExporter_ChannelMasks checks the resting mask for each combination
// of enabled, latching, and filter polarity.
func TestALHExporter_ChannelMasks(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	group, err := tree.CreateGroup(tree.RootID(), "G")
	require.NoError(t, err)

	_, err = tree.CreateChannel(group.ID(), "test:a")
	require.NoError(t, err)

	disabled, err := tree.CreateChannel(group.ID(), "test:b")
	require.NoError(t, err)

	disabled.Enabled = false

	transient, err := tree.CreateChannel(group.ID(), "test:c")
	require.NoError(t, err)

	transient.Latching = false

	forced, err := tree.CreateChannel(group.ID(), "test:d")
	require.NoError(t, err)

	forced.SetFilter(alarmtree.NewFilter("test:x", 1, true))

	exporter := &ALHExporter{}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	var headers []string

	for _, line := range lines {
		if strings.HasPrefix(line, "CHANNEL ") {
			headers = append(headers, line)
		}
	}

	expected := []string{
		"CHANNEL G test:a -----",
		"CHANNEL G test:b CD---",
		"CHANNEL G test:c ---T-",
		"CHANNEL G test:d CD---",
	}
	require.Equal(t, expected, headers)
}

// TestALHExporter_DisplayConversion checks that converted display files map
// back to the screen tool with their macros, while web links become plain
// guidance lines.
func TestALHExporter_DisplayConversion(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	channel.AddDisplayWithMacros("display", "display.bob", map[string]string{
		"PV": "test:ai1",
		"B":  "some other thing",
	})
	channel.AddDisplay("web", "https://wiki.example.org/alarms")

	exporter := &ALHExporter{}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	require.Contains(t, lines, `$COMMAND run_edm.sh -m "B=some other thing,PV=test:ai1" display.edl`)
	require.Contains(t, lines, "$GUIDANCE https://wiki.example.org/alarms")
}

// TestALHExporter_DisplayCommandOverride checks the configured screen tool
// replaces the default one.
func TestALHExporter_DisplayCommandOverride(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	channel.AddDisplay("display", "panel.bob")

	exporter := &ALHExporter{DisplayCommand: "site_edm"}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	require.Contains(t, lines, "$COMMAND site_edm panel.edl")
}

// TestALHExporter_DropsUnsupportedActions checks mail actions and delayed
// actions disappear while severity PVs survive.
func TestALHExporter_DropsUnsupportedActions(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	channel.AddSevrPV("test:sevr", "Severity PV")
	channel.AddMail([]string{"crew@site.org"}, 0, "mail")
	channel.AddAutoAction("late reset", 30, "reset.sh")

	exporter := &ALHExporter{}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	require.Contains(t, lines, "$SEVRPV test:sevr")

	joined := strings.Join(lines, "\n")
	require.NotContains(t, joined, "crew@site.org")
	require.NotContains(t, joined, "reset.sh")
}

// TestALHExporter_UnknownActionFails checks actions without a known type
// prefix abort the export.
func TestALHExporter_UnknownActionFails(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	channel.Actions = append(channel.Actions, alarmtree.AutomatedAction{Title: "odd", Details: "slack:#alarms"})

	exporter := &ALHExporter{}

	_, err = exporter.Lines(context.Background(), tree)
	require.ErrorContains(t, err, `unknown automated action type "slack"`)

	channel.Actions = []alarmtree.AutomatedAction{{Title: "odd", Details: "noprefix"}}

	_, err = exporter.Lines(context.Background(), tree)
	require.ErrorContains(t, err, "no type prefix")
}

// TestALHExporter_RawFilterFails checks a filter imported from XML cannot be
// rendered as a force PV.
func TestALHExporter_RawFilterFails(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	channel.SetFilter(alarmtree.RawFilter("(test:ai2) > 2"))

	exporter := &ALHExporter{}

	_, err = exporter.Lines(context.Background(), tree)
	require.ErrorContains(t, err, "cannot be written as a force PV")
}

// TestALHExporter_MultipleTopGroups checks the tree is still rendered even
// though legacy tools reject such a file.
func TestALHExporter_MultipleTopGroups(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	_, err := tree.CreateGroup(tree.RootID(), "A")
	require.NoError(t, err)

	_, err = tree.CreateGroup(tree.RootID(), "B")
	require.NoError(t, err)

	exporter := &ALHExporter{}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	require.Contains(t, lines, "GROUP NULL A")
	require.Contains(t, lines, "GROUP NULL B")
}

// TestALHExporter_IncludeExtension checks include references are rewritten
// to the legacy extension.
func TestALHExporter_IncludeExtension(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	_, err := tree.CreateInclusion(tree.RootID(), "sub/linac.xml")
	require.NoError(t, err)

	exporter := &ALHExporter{IncludeExt: ".alh"}

	lines, err := exporter.Lines(context.Background(), tree)
	require.NoError(t, err)

	require.Contains(t, lines, "INCLUDE NULL sub/linac.alh")
}

// TestALHExporter_ExportFile checks the legacy text lands on disk.
func TestALHExporter_ExportFile(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("config")

	_, err := tree.CreateGroup(tree.RootID(), "Station")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "station.alh")

	exporter := &ALHExporter{}
	require.NoError(t, exporter.ExportFile(context.Background(), tree, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "GROUP NULL Station")
}
