// Package converter orchestrates whole conversions between the legacy alarm
// handler format and the console XML: it parses the input, resolves include
// references recursively, applies tree adjustments, and writes the output.
// Run covers the legacy to XML direction, RunToLegacy the way back. Both
// can stay running and convert again when the input file changes.
package converter
