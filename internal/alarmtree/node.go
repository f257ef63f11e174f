package alarmtree

import (
	"net/url"
	"strings"
)

// Node is implemented by every member of a Tree: Group, Channel and
// InclusionMarker.
type Node interface {
	// ID returns the tree-wide unique identifier.
	ID() string
	// Tag returns the legacy display name.
	Tag() string
	// SortKey returns the export ordering key.
	SortKey() SortKey

	base() *baseNode
}

// baseNode carries the state every node variant shares.
type baseNode struct {
	id      string
	tag     string
	sortKey SortKey
}

func (b *baseNode) ID() string       { return b.id }
func (b *baseNode) Tag() string      { return b.tag }
func (b *baseNode) SortKey() SortKey { return b.sortKey }
func (b *baseNode) base() *baseNode  { return b }

// Guidance is a textual hint shown to operators alongside an alarm.
type Guidance struct {
	Title   string
	Details string
}

// Command starts an external program from the console.
type Command struct {
	Title   string
	Details string
}

// Display references a control screen or web page, by URL.
type Display struct {
	Title   string
	Details string
}

// AutomatedAction runs without operator interaction once its delay expires.
// Details carries the action in the console's prefix notation
// (cmd:, sevrpv: or mailto:).
type AutomatedAction struct {
	Title   string
	Details string
	Delay   int
}

// Attachments collects the operator-facing entries a group or channel
// carries: guidance, commands, displays and automated actions. Entry order
// is preserved on export.
type Attachments struct {
	Guidances []Guidance
	Commands  []Command
	Displays  []Display
	Actions   []AutomatedAction
}

// AddGuidance appends a guidance entry.
func (a *Attachments) AddGuidance(title, details string) {
	a.Guidances = append(a.Guidances, Guidance{Title: title, Details: details})
}

// AddCommand appends a command entry.
func (a *Attachments) AddCommand(title, details string) {
	a.Commands = append(a.Commands, Command{Title: title, Details: details})
}

// AddDisplay appends a display entry pointing at the given URL.
func (a *Attachments) AddDisplay(title, rawURL string) {
	a.Displays = append(a.Displays, Display{Title: title, Details: rawURL})
}

// AddDisplayWithMacros appends a display entry whose macros travel as query
// parameters on the URL, sorted by name.
func (a *Attachments) AddDisplayWithMacros(title, rawURL string, macros map[string]string) {
	if len(macros) > 0 {
		query := url.Values{}
		for name, value := range macros {
			query.Set(name, value)
		}

		rawURL += "?" + query.Encode()
	}

	a.AddDisplay(title, rawURL)
}

// AddAutoAction appends an automated action running the given command line.
func (a *Attachments) AddAutoAction(title string, delay int, command string) {
	a.Actions = append(a.Actions, AutomatedAction{Title: title, Details: "cmd:" + command, Delay: delay})
}

// AddSevrPV appends an automated action mirroring the alarm severity to
// another PV.
func (a *Attachments) AddSevrPV(pv, title string) {
	a.Actions = append(a.Actions, AutomatedAction{Title: title, Details: "sevrpv:" + pv})
}

// AddMail appends an automated action mailing the given recipients.
func (a *Attachments) AddMail(recipients []string, delay int, title string) {
	a.Actions = append(a.Actions, AutomatedAction{
		Title:   title,
		Details: "mailto:" + strings.Join(recipients, ","),
		Delay:   delay,
	})
}

// HasActionContaining reports whether any automated action's details contain
// the given text.
func (a *Attachments) HasActionContaining(text string) bool {
	for _, action := range a.Actions {
		if strings.Contains(action.Details, text) {
			return true
		}
	}

	return false
}

// Filter is a condition gating an alarm, rendered in the console's filter
// syntax. AlarmFilter carries a structured condition convertible to both
// formats; RawFilter is a verbatim console expression.
type Filter interface {
	FilterString() string
}

// RawFilter is a verbatim filter expression in console syntax. The legacy
// format cannot carry it.
type RawFilter string

// FilterString returns the expression unchanged.
func (f RawFilter) FilterString() string { return string(f) }

// Group is an interior node bundling related alarms.
type Group struct {
	baseNode
	Attachments

	name   string
	filter Filter
}

// Name returns the display name shown by the console.
func (g *Group) Name() string { return g.name }

// Filter returns the group's filter, nil when unset.
func (g *Group) Filter() Filter { return g.filter }

// SetFilter assigns the filter that channels created below this group inherit.
func (g *Group) SetFilter(f Filter) { g.filter = f }

// Channel is a leaf node monitoring a single process variable.
type Channel struct {
	baseNode
	Attachments

	pv string

	// Description is the operator-facing alarm text.
	Description string
	// Enabled switches alarming for the channel as a whole.
	Enabled bool
	// Latching keeps the alarm raised until acknowledged.
	Latching bool
	// Annunciating turns on audible annunciation.
	Annunciating bool
	// Delay is the time in seconds an alarm state must persist before the
	// alarm raises.
	Delay float64
	// Count raises the alarm early when the state recurs that many times
	// within Delay.
	Count int

	filter Filter
}

// PV returns the process variable name.
func (c *Channel) PV() string { return c.pv }

// Filter returns the channel's filter, nil when unset.
func (c *Channel) Filter() Filter { return c.filter }

// SetFilter assigns the condition gating this channel's alarm.
func (c *Channel) SetFilter(f Filter) { c.filter = f }

// InclusionMarker stands in for a subtree stored in another source file.
type InclusionMarker struct {
	baseNode

	// Filename references the included file, relative to the directory of
	// the file that declared it unless absolute.
	Filename string
}
