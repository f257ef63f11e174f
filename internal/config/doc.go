// Package config defines converter settings and provides helpers to load and
// validate them from YAML.
//
// Settings cover run-wide knobs that are not per-conversion flags: the
// external command written into legacy output for opening display files, and
// the diagnostic log level.
package config
