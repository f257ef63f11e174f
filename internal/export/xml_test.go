package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
)

// TestXMLExporter_ExportString checks the document shape for a small tree
// with a group, an attachment, and a channel.
func TestXMLExporter_ExportString(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("Test")

	group, err := tree.CreateGroup(tree.RootID(), "Group1")
	require.NoError(t, err)

	group.AddGuidance("Description", "A very important alarm group")

	channel, err := tree.CreateChannel(group.ID(), "test:ai1")
	require.NoError(t, err)

	channel.Description = "First alarm"
	channel.Latching = false

	exporter := &XMLExporter{}

	doc, err := exporter.ExportString(tree)
	require.NoError(t, err)

	expected := `<?xml version="1.0" encoding="UTF-8"?>
<config name="Test">
  <component name="Group1">
    <guidance>
      <title>Description</title>
      <details>A very important alarm group</details>
    </guidance>
    <pv name="test:ai1">
      <description>First alarm</description>
      <enabled>true</enabled>
      <latching>false</latching>
      <annunciating>true</annunciating>
    </pv>
  </component>
</config>
`
	require.Equal(t, expected, doc)
}

// TestXMLExporter_ChannelDetails checks delay, count, filter, automated
// actions, and the rewritten include reference.
func TestXMLExporter_ChannelDetails(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("Top")

	group, err := tree.CreateGroup(tree.RootID(), "G")
	require.NoError(t, err)

	channel, err := tree.CreateChannel(group.ID(), "test:ai2")
	require.NoError(t, err)

	channel.Description = "Second"
	channel.Delay = 5
	channel.Count = 3
	channel.SetFilter(alarmtree.NewFilter("test:ai1", 5, true))
	channel.AddAutoAction("mail_crew", 60, "send_mail.sh")

	_, err = tree.CreateInclusion(group.ID(), "subsystem.alh")
	require.NoError(t, err)

	exporter := &XMLExporter{IncludeExt: ".xml"}

	doc, err := exporter.ExportString(tree)
	require.NoError(t, err)

	expected := `<?xml version="1.0" encoding="UTF-8"?>
<config name="Top">
  <component name="G">
    <pv name="test:ai2">
      <description>Second</description>
      <enabled>true</enabled>
      <latching>true</latching>
      <annunciating>true</annunciating>
      <delay>5</delay>
      <count>3</count>
      <filter>(test:ai1) == 5</filter>
      <automated_action>
        <title>mail_crew</title>
        <details>cmd:send_mail.sh</details>
        <delay>60</delay>
      </automated_action>
    </pv>
    <xi:include href="subsystem.xml" xpointer="element(/1/1)" xmlns:xi="http://www.w3.org/2001/XInclude"></xi:include>
  </component>
</config>
`
	require.Equal(t, expected, doc)
}

// TestXMLExporter_CountNeedsDelay checks that a count without a delay is
// dropped, while a delay alone is kept.
func TestXMLExporter_CountNeedsDelay(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("Top")

	countOnly, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	countOnly.Count = 4

	delayOnly, err := tree.CreateChannel(tree.RootID(), "test:ai2")
	require.NoError(t, err)

	delayOnly.Delay = 1.5

	exporter := &XMLExporter{}

	doc, err := exporter.ExportString(tree)
	require.NoError(t, err)

	require.NotContains(t, doc, "<count>")
	require.Contains(t, doc, "<delay>1.5</delay>")
}

// TestXMLExporter_EscapesFilter checks that comparison operators inside a
// filter expression survive as valid XML.
func TestXMLExporter_EscapesFilter(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("Top")

	channel, err := tree.CreateChannel(tree.RootID(), "test:ai4")
	require.NoError(t, err)

	channel.SetFilter(alarmtree.NewFilter("test:ai3<4", 1, false))

	exporter := &XMLExporter{}

	doc, err := exporter.ExportString(tree)
	require.NoError(t, err)

	require.Contains(t, doc, "<filter>(test:ai3&lt;4) != 1</filter>")
}

// TestXMLExporter_ExportFile checks that the document lands on disk.
func TestXMLExporter_ExportFile(t *testing.T) {
	t.Parallel()

	tree := alarmtree.New("Vacuum")

	_, err := tree.CreateChannel(tree.RootID(), "test:ai1")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vacuum.xml")

	exporter := &XMLExporter{}
	require.NoError(t, exporter.ExportFile(tree, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), `<config name="Vacuum">`)
	require.Contains(t, string(content), `<pv name="test:ai1">`)
}
