// Package alhparser reads legacy alarm handler configuration files into an
// alarm tree. Parsing is line oriented: each keyword is dispatched to a
// handler relative to the most recently created node, and malformed lines
// are reported and skipped instead of failing the whole file.
package alhparser
