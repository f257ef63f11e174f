package alhparser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/logger"
)

// calcKeyword is the canonical keyword the force calc family is folded into.
// The distinguishing fragment moves into the arguments, so one handler sees
// the expression line and every slot line.
const calcKeyword = "$FORCEPV_CALC"

// rootParent names the root node in legacy parent references.
const rootParent = "NULL"

// attachable is satisfied by groups and channels, which both carry operator
// facing attachments.
type attachable interface {
	AddGuidance(title, details string)
	AddCommand(title, details string)
	AddDisplay(title, rawURL string)
	AddAutoAction(title string, delay int, command string)
	AddSevrPV(pv, title string)
	HasActionContaining(text string) bool
}

// filterable is satisfied by groups and channels, which both may carry a
// force condition.
type filterable interface {
	Filter() alarmtree.Filter
	SetFilter(alarmtree.Filter)
}

// Parse reads the legacy file at path into a fresh tree named configName.
func Parse(ctx context.Context, path, configName string) (*alarmtree.Tree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open legacy file: %w", err)
	}
	defer file.Close()

	logger.DebugKV(ctx, "parsing legacy file", "path", path, "config", configName)

	return ParseReader(ctx, file, path, configName)
}

// ParseReader parses legacy lines from r into a fresh tree named configName.
// The filename labels diagnostics only.
//
// Malformed lines are reported with their position and skipped; the parse
// only fails on unreadable input.
func ParseReader(ctx context.Context, r io.Reader, filename, configName string) (*alarmtree.Tree, error) {
	tree := alarmtree.New(configName)
	root, _ := tree.Node(tree.RootID())

	p := &parser{
		ctx:      ctx,
		tree:     tree,
		current:  root,
		filename: filename,
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		p.processLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read legacy file: %w", err)
	}

	if p.cont != nil {
		p.warnKV("guidance block still open at end of file")
		p.cont.finish(strings.Join(p.cont.buf, "\n"))
		p.cont = nil
	}

	return tree, nil
}

// parser is the per-file state: the node new directives apply to and an
// optional continuation consuming lines until its terminator.
type parser struct {
	ctx      context.Context
	tree     *alarmtree.Tree
	current  alarmtree.Node
	cont     *continuation
	filename string
	line     int
}

// continuation collects lines verbatim until a line containing the
// terminator shows up, then hands the joined block to finish.
type continuation struct {
	terminator string
	buf        []string
	finish     func(block string)
}

func (p *parser) processLine(raw string) {
	if p.cont != nil {
		if strings.Contains(raw, p.cont.terminator) {
			p.cont.finish(strings.Join(p.cont.buf, "\n"))
			p.cont = nil
		} else {
			p.cont.buf = append(p.cont.buf, raw)
		}

		return
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	keyword, args := splitDirective(trimmed)

	if strings.HasPrefix(keyword, calcKeyword) {
		fragment := strings.Replace(keyword, calcKeyword, "CALC", 1)
		args = strings.TrimSpace(fragment + " " + args)
		keyword = calcKeyword
	}

	if err := p.dispatch(keyword, args); err != nil {
		p.errorKV("line skipped: "+err.Error(), "content", trimmed)
	}
}

func (p *parser) dispatch(keyword, args string) error {
	switch keyword {
	case "GROUP":
		return p.handleGroup(args)
	case "CHANNEL":
		return p.handleChannel(args)
	case "INCLUDE":
		return p.handleInclude(args)
	case "$ALIAS":
		return p.handleAlias(args)
	case "$SEVRPV":
		return p.handleSevrPV(args)
	case "$GUIDANCE":
		return p.handleGuidance(args)
	case "$COMMAND":
		return p.handleCommand(args)
	case "$SEVRCOMMAND":
		return p.handleSevrCommand(args)
	case "$STATCOMMAND":
		return p.handleStatCommand(args)
	case "$ALARMCOUNTFILTER":
		return p.handleAlarmCount(args)
	case "$FORCEPV":
		return p.handleForcePV(args)
	case calcKeyword:
		return p.handleForcePVCalc(args)
	case "$HEARTBEATPV", "$ACKPV", "$BEEPSEVERITY", "$BEEPSEVR":
		p.handleUnsupported(keyword)

		return nil
	default:
		return fmt.Errorf("unknown keyword %s", keyword)
	}
}

// splitDirective splits a line into its keyword and the remaining arguments.
func splitDirective(line string) (keyword, args string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}

	return line[:idx], strings.TrimSpace(line[idx+1:])
}

// infoKV, warnKV and errorKV stamp diagnostics with the source position, so
// an operator can locate the offending line.
func (p *parser) infoKV(message string, kvs ...any) {
	logger.InfoKV(p.ctx, message, p.position(kvs)...)
}

func (p *parser) warnKV(message string, kvs ...any) {
	logger.WarnKV(p.ctx, message, p.position(kvs)...)
}

func (p *parser) errorKV(message string, kvs ...any) {
	logger.ErrorKV(p.ctx, message, p.position(kvs)...)
}

func (p *parser) position(kvs []any) []any {
	return append([]any{"file", p.filename, "line", p.line}, kvs...)
}
