// Package alarmtree models one alarm configuration as a rooted tree.
//
// A Tree owns groups, channels and inclusion markers, addressed by unique
// identifiers. Groups and channels carry operator-facing attachments
// (guidance, commands, displays, automated actions) and an optional filter
// condition; AlarmFilter converts such conditions between the legacy force
// PV lines and the console's filter syntax. Sibling order on export follows
// sort keys, defaulting to insertion order.
//
// Structural operations (create, remove, link past, rename, graft) enforce
// the shape invariants: exactly one root, one parent per node, no duplicate
// identifiers.
package alarmtree
