package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(content)
}

// TestRun_WritesOutput checks the default output path and configuration
// name derive from the input file.
func TestRun_WritesOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "station.alh")
	writeFile(t, input, "GROUP NULL Station\nCHANNEL Station test:a\n")

	require.NoError(t, Run(context.Background(), &Options{InputPath: input}))

	out := readFile(t, filepath.Join(dir, "station.xml"))
	require.Contains(t, out, `<config name="station">`)
	require.Contains(t, out, `<component name="Station">`)
	require.Contains(t, out, `<pv name="test:a">`)
}

// TestRun_InputRequired checks the entry point rejects empty options.
func TestRun_InputRequired(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errInputNotSpecified)
}

// TestRun_MissingInputFails checks an unreadable input aborts the run.
func TestRun_MissingInputFails(t *testing.T) {
	t.Parallel()

	input := filepath.Join(t.TempDir(), "missing.alh")

	err := Run(context.Background(), &Options{InputPath: input})
	require.ErrorContains(t, err, "open legacy file")
}

// TestRun_KeepsIncludeReferences checks includes stay as references with
// rewritten extensions when recursion is off.
func TestRun_KeepsIncludeReferences(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "main.alh")
	writeFile(t, input, "GROUP NULL Station\nINCLUDE Station sub.alh\n")

	require.NoError(t, Run(context.Background(), &Options{InputPath: input}))

	out := readFile(t, filepath.Join(dir, "main.xml"))
	require.Contains(t, out, `<xi:include href="sub.xml"`)
	require.NoFileExists(t, filepath.Join(dir, "sub.xml"))
}

// TestRun_RecursiveConvertsIncludes checks referenced files are converted
// next to the main output and named after the including group.
func TestRun_RecursiveConvertsIncludes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "main.alh")
	writeFile(t, input, "GROUP NULL Station\nCHANNEL Station test:a\nINCLUDE Station sub.alh\n")
	writeFile(t, filepath.Join(dir, "sub.alh"), "GROUP NULL SubGroup\nCHANNEL SubGroup test:sub1\n")

	require.NoError(t, Run(context.Background(), &Options{InputPath: input, Recursive: true}))

	out := readFile(t, filepath.Join(dir, "main.xml"))
	require.Contains(t, out, `<xi:include href="sub.xml"`)

	sub := readFile(t, filepath.Join(dir, "sub.xml"))
	require.Contains(t, sub, `<config name="main/Station">`)
	require.Contains(t, sub, `<component name="SubGroup">`)
	require.Contains(t, sub, `<pv name="test:sub1">`)
}

// TestRun_SingleFileCombines checks included content replaces the marker at
// its position and no separate output is written.
func TestRun_SingleFileCombines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "main.alh")
	writeFile(t, input, `GROUP NULL Station
CHANNEL Station test:a
INCLUDE Station sub.alh
CHANNEL Station test:z
`)
	writeFile(t, filepath.Join(dir, "sub.alh"), "GROUP NULL SubGroup\nCHANNEL SubGroup test:sub1\n")

	require.NoError(t, Run(context.Background(), &Options{InputPath: input, SingleFile: true}))

	out := readFile(t, filepath.Join(dir, "main.xml"))
	require.NotContains(t, out, "xi:include")
	require.NoFileExists(t, filepath.Join(dir, "sub.xml"))

	first := strings.Index(out, `<pv name="test:a">`)
	combined := strings.Index(out, `<component name="SubGroup">`)
	last := strings.Index(out, `<pv name="test:z">`)
	require.True(t, first >= 0 && combined >= 0 && last >= 0, "all nodes should be in the output")
	require.Less(t, first, combined)
	require.Less(t, combined, last)
}

// TestRun_SingleFileRejectsMultipleTopGroups checks combining fails when an
// included file has more than one top level group.
func TestRun_SingleFileRejectsMultipleTopGroups(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "main.alh")
	writeFile(t, input, "GROUP NULL Station\nINCLUDE Station sub.alh\n")
	writeFile(t, filepath.Join(dir, "sub.alh"), "GROUP NULL A\nGROUP NULL B\n")

	err := Run(context.Background(), &Options{InputPath: input, SingleFile: true})
	require.ErrorContains(t, err, "exactly one top level group")
}

// TestRun_TrimTop checks the single top level group disappears and its
// children move up to the configuration root.
func TestRun_TrimTop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "station.alh")
	writeFile(t, input, "GROUP NULL Station\nCHANNEL Station test:a\n")

	require.NoError(t, Run(context.Background(), &Options{InputPath: input, TrimTop: true}))

	out := readFile(t, filepath.Join(dir, "station.xml"))
	require.Contains(t, out, `<pv name="test:a">`)
	require.NotContains(t, out, "<component")
}

// TestRun_SkipExisting checks an already converted include output is left
// untouched.
func TestRun_SkipExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "main.alh")
	writeFile(t, input, "GROUP NULL Station\nINCLUDE Station sub.alh\n")
	writeFile(t, filepath.Join(dir, "sub.alh"), "GROUP NULL SubGroup\n")

	sentinel := "<!-- already converted -->"
	writeFile(t, filepath.Join(dir, "sub.xml"), sentinel)

	require.NoError(t, Run(context.Background(), &Options{
		InputPath:    input,
		Recursive:    true,
		SkipExisting: true,
	}))

	require.Equal(t, sentinel, readFile(t, filepath.Join(dir, "sub.xml")))
	require.FileExists(t, filepath.Join(dir, "main.xml"))
}

// TestNewConverter_Defaults checks path and name derivation.
func TestNewConverter_Defaults(t *testing.T) {
	t.Parallel()

	conv, err := newConverter(&Options{InputPath: "configs/station.alh", ConfigName: "", OutputPath: ""})
	require.NoError(t, err)

	require.True(t, filepath.IsAbs(conv.inputPath))
	require.Equal(t, swapExt(conv.inputPath, ".xml"), conv.outputPath)
	require.Equal(t, "station", conv.configName)
}
