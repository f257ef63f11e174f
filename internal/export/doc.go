// Package export renders alarm trees into their on-disk formats: the XML
// consumed by the console alarm server and the line based format of the
// legacy alarm handler. Both exporters walk the tree in display order, so
// output is stable across runs.
package export
