package alhparser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
)

// handleGroup creates a group below the parent resolved by tag and makes it
// the current node. A duplicate group merges into its first occurrence.
func (p *parser) handleGroup(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return fmt.Errorf("GROUP needs parent and name, got %d fields", len(fields))
	}

	parent, err := p.findParent(fields[0])
	if err != nil {
		return err
	}

	group, err := p.tree.CreateGroup(parent.ID(), fields[1])

	var dup *alarmtree.DuplicateIDError
	if errors.As(err, &dup) {
		p.warnKV("duplicate group, merging into the first occurrence", "group", dup.ID)

		p.current, _ = p.tree.Node(dup.ID)

		return nil
	}

	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	p.propagateFilter(parent, group)
	p.current = group

	return nil
}

// handleChannel creates a channel below the parent resolved by tag and makes
// it the current node. A duplicate PV keeps the first instance untouched;
// the duplicate line's mask is not applied.
func (p *parser) handleChannel(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return fmt.Errorf("CHANNEL needs parent, PV and an optional mask, got %d fields", len(fields))
	}

	parent, err := p.findParent(fields[0])
	if err != nil {
		return err
	}

	pv := fields[1]

	channel, err := p.tree.CreateChannel(parent.ID(), pv)

	var dup *alarmtree.DuplicateIDError
	if errors.As(err, &dup) {
		p.warnKV("duplicate channel, keeping the first instance", "pv", pv)

		p.current, _ = p.tree.Node(dup.ID)

		return nil
	}

	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}

	if len(fields) == 3 {
		p.applyChannelMask(channel, fields[2])
	}

	p.propagateFilter(parent, channel)

	if channel.Filter() != nil && !channel.Enabled {
		p.warnKV("disabled channel inherits a force condition and stays disabled, check manually", "pv", pv)
	}

	p.current = channel

	return nil
}

// applyChannelMask interprets the five-letter legacy alarm mask. The
// acknowledge and logging letters have no equivalent: the console requires an
// acknowledgement and logs every alarm.
func (p *parser) applyChannelMask(channel *alarmtree.Channel, mask string) {
	if strings.ContainsAny(mask, "CD") {
		channel.Enabled = false
	}

	if strings.Contains(mask, "T") {
		channel.Latching = false
	}

	if strings.Contains(mask, "A") {
		p.infoKV("acknowledge letter ignored", "pv", channel.PV(), "mask", mask)
	}

	if strings.Contains(mask, "L") {
		p.infoKV("logging letter ignored", "pv", channel.PV(), "mask", mask)
	}
}

// handleInclude records a file inclusion below the resolved parent. The
// current node stays, include lines carry no follow-up directives.
func (p *parser) handleInclude(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return fmt.Errorf("INCLUDE needs parent and filename, got %d fields", len(fields))
	}

	parent, err := p.findParent(fields[0])
	if err != nil {
		return err
	}

	if _, err := p.tree.CreateInclusion(parent.ID(), fields[1]); err != nil {
		return fmt.Errorf("create inclusion: %w", err)
	}

	return nil
}

// handleAlias sets a channel description or renames a group. The legacy tag
// keeps the original name, so later parent references still resolve.
func (p *parser) handleAlias(args string) error {
	if args == "" {
		return errors.New("alias text missing")
	}

	switch node := p.current.(type) {
	case *alarmtree.Channel:
		node.Description = args
	case *alarmtree.Group:
		if node.Name() == args {
			return nil
		}

		renamed, err := p.tree.RenameGroup(node.ID(), args)
		if err != nil {
			return fmt.Errorf("rename group: %w", err)
		}

		p.current = renamed
	default:
		return errors.New("alias applies to groups and channels only")
	}

	return nil
}

// handleSevrPV attaches a severity-mirroring action to the current node.
func (p *parser) handleSevrPV(args string) error {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return fmt.Errorf("SEVRPV needs one PV, got %d fields", len(fields))
	}

	node, ok := p.current.(attachable)
	if !ok {
		return errors.New("severity PV applies to groups and channels only")
	}

	node.AddSevrPV(fields[0], "Severity PV")

	return nil
}

// handleGuidance treats one-line guidance as a link and opens a continuation
// for the multi-line form.
func (p *parser) handleGuidance(args string) error {
	node, ok := p.current.(attachable)
	if !ok {
		return errors.New("guidance applies to groups and channels only")
	}

	if args != "" {
		node.AddDisplay("URL", args)

		return nil
	}

	p.cont = &continuation{
		terminator: "$END",
		finish: func(block string) {
			node.AddGuidance("help", block)
		},
	}

	return nil
}

// handleCommand attaches an on-demand command, titled after its executable.
func (p *parser) handleCommand(args string) error {
	if args == "" {
		return errors.New("command line missing")
	}

	node, ok := p.current.(attachable)
	if !ok {
		return errors.New("command applies to groups and channels only")
	}

	node.AddCommand(commandTitle(args), args)

	return nil
}

// handleSevrCommand maps severity-raise commands to automated actions. The
// console runs them on any raise; finer severity selection is lost, and
// commands for falling severities have no equivalent.
func (p *parser) handleSevrCommand(args string) error {
	severity, command := splitDirective(args)
	if command == "" {
		return errors.New("SEVRCOMMAND needs severity and command")
	}

	node, ok := p.current.(attachable)
	if !ok {
		return errors.New("severity command applies to groups and channels only")
	}

	if !strings.Contains(severity, "UP") {
		p.warnKV("severity down command has no equivalent, dropped", "severity", severity, "command", command)

		return nil
	}

	if severity != "UP_ANY" {
		p.infoKV("action will run on any severity increase", "severity", severity)
	}

	if node.HasActionContaining(command) {
		p.infoKV("duplicate severity command dropped", "command", command)

		return nil
	}

	node.AddAutoAction(commandTitle(command), 0, command)

	return nil
}

// handleStatCommand keeps the command as an automated action. Status-based
// triggering does not translate, so the result needs a manual look.
func (p *parser) handleStatCommand(args string) error {
	status, command := splitDirective(args)
	if command == "" {
		return errors.New("STATCOMMAND needs status and command")
	}

	node, ok := p.current.(attachable)
	if !ok {
		return errors.New("status command applies to groups and channels only")
	}

	p.warnKV("status command became an automated action, review manually", "status", status, "command", command)
	node.AddAutoAction(commandTitle(command), 0, command)

	return nil
}

// handleAlarmCount sets the channel's repeat count and delay.
func (p *parser) handleAlarmCount(args string) error {
	channel, ok := p.current.(*alarmtree.Channel)
	if !ok {
		return errors.New("ALARMCOUNTFILTER applies to channels only")
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		return fmt.Errorf("ALARMCOUNTFILTER needs count and delay, got %d fields", len(fields))
	}

	count, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("parse count: %w", err)
	}

	delay, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("parse delay: %w", err)
	}

	channel.Count = count
	channel.Delay = delay

	return nil
}

// handleUnsupported names constructs without a console equivalent.
func (p *parser) handleUnsupported(keyword string) {
	switch keyword {
	case "$HEARTBEATPV":
		p.warnKV("heartbeat PV dropped, configure it in the server settings instead")
	case "$ACKPV":
		p.warnKV("acknowledgement PV has no equivalent, dropped")
	default:
		p.warnKV("severity based annunciation filtering has no equivalent, dropped", "keyword", keyword)
	}
}

// handleForcePV starts a force condition on the current node. The mask's
// disable letters are compared against the node's own state to pick the
// polarity; when both agree, the condition only matters while it is false,
// so value and polarity are inverted.
func (p *parser) handleForcePV(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return fmt.Errorf("FORCEPV needs expression and mask, got %d fields", len(fields))
	}

	expr := fields[0]
	mask := fields[1]

	value := 1.0

	if len(fields) > 2 {
		parsed, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("parse force value: %w", err)
		}

		value = parsed
	}

	target, ok := p.current.(filterable)
	if !ok {
		return errors.New("force PV applies to groups and channels only")
	}

	if len(fields) < 4 || fields[3] != "NE" {
		p.warnKV("reset value has no equivalent, the condition releases as soon as the expression stops matching",
			"node", p.current.ID())
	}

	forceEnables := !strings.ContainsAny(mask, "CD")

	nodeEnabled := true
	channel, isChannel := p.current.(*alarmtree.Channel)

	if isChannel {
		nodeEnabled = channel.Enabled
	}

	enabling := forceEnables
	if forceEnables == nodeEnabled {
		if value != 0 && value != 1 {
			return fmt.Errorf("force mask matches the channel mask and value %g cannot be inverted", value)
		}

		p.infoKV("force mask matches the channel mask, inverting the condition", "node", p.current.ID())

		value = 1 - value
		enabling = !forceEnables
	}

	if isChannel {
		channel.Enabled = true
	}

	filterExpr := expr
	if expr == "CALC" {
		filterExpr = ""
	}

	target.SetFilter(alarmtree.NewFilter(filterExpr, value, enabling))

	return nil
}

// handleForcePVCalc fills in the expression or one slot of the condition the
// preceding force PV header created.
func (p *parser) handleForcePVCalc(args string) error {
	fragment, value := splitDirective(args)
	if value == "" {
		return errors.New("calc line needs a value")
	}

	target, ok := p.current.(filterable)
	if !ok {
		return errors.New("force PV applies to groups and channels only")
	}

	filter, ok := target.Filter().(*alarmtree.AlarmFilter)
	if !ok {
		return errors.New("no force PV header precedes this line")
	}

	key := fragment[strings.LastIndex(fragment, "_")+1:]

	if key == "CALC" {
		filter.Expr = value

		return nil
	}

	if len(key) != 1 || key[0] < 'A' || key[0] > 'F' {
		return fmt.Errorf("slot %s out of range", key)
	}

	filter.Replacements[key] = value

	return nil
}

// findParent resolves a legacy parent reference by walking up from the
// current node comparing tags. NULL names the root.
func (p *parser) findParent(tag string) (alarmtree.Node, error) {
	if tag == rootParent {
		root, _ := p.tree.Node(p.tree.RootID())

		return root, nil
	}

	for node := p.current; node != nil; node = p.tree.Parent(node.ID()) {
		if node.Tag() == tag {
			return node, nil
		}
	}

	return nil, fmt.Errorf("no ancestor tagged %s", tag)
}

// propagateFilter hands the parent's force condition to a new child. The
// condition is shared, later calc lines update every holder.
func (p *parser) propagateFilter(parent, child alarmtree.Node) {
	source, ok := parent.(filterable)
	if !ok || source.Filter() == nil {
		return
	}

	target, ok := child.(filterable)
	if !ok {
		return
	}

	target.SetFilter(source.Filter())
	p.infoKV("force condition inherited", "node", child.ID(), "parent", parent.ID())
}

// commandTitle derives a short title from a command line: the executable
// name without path and extension.
func commandTitle(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}

	base := filepath.Base(fields[0])

	return strings.TrimSuffix(base, filepath.Ext(base))
}
