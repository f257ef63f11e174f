package xmlparser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
	"github.com/hz-b/phoebusalarm/internal/logger"
)

// element mirrors the console configuration format: any element name, any
// attributes, text, and nested children.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*element `xml:",any"`
}

// attr returns the value of the named attribute, or an empty string.
func (e *element) attr(name string) string {
	for _, attr := range e.Attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}

	return ""
}

type parser struct {
	ctx      context.Context
	tree     *alarmtree.Tree
	filename string
}

// Parse reads a console alarm configuration file into a tree.
func Parse(ctx context.Context, path string) (*alarmtree.Tree, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open alarm config: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	logger.DebugKV(ctx, "Parsing alarm config", "file", path)

	return ParseReader(ctx, file, path)
}

// ParseReader reads a console alarm configuration from r. The filename only
// labels diagnostics.
func ParseReader(ctx context.Context, r io.Reader, filename string) (*alarmtree.Tree, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode alarm config: %w", err)
	}

	if root.XMLName.Local != "config" {
		return nil, fmt.Errorf("%s: root element is %q, expected config", filename, root.XMLName.Local)
	}

	name := root.attr("name")
	if name == "" {
		return nil, fmt.Errorf("%s: config element has no name", filename)
	}

	p := &parser{ctx: ctx, tree: alarmtree.New(name), filename: filename}
	if err := p.addChildren(&root, p.tree.RootID()); err != nil {
		return nil, err
	}

	return p.tree, nil
}

// addChildren dispatches the structural children of a config or component
// element. Namespace prefixes are resolved by the decoder, so an xi:include
// arrives with the local name include.
func (p *parser) addChildren(parent *element, parentID string) error {
	for _, child := range parent.Children {
		var err error

		switch child.XMLName.Local {
		case "component":
			err = p.addGroup(child, parentID)
		case "pv":
			err = p.addChannel(child, parentID)
		case "include":
			err = p.addInclusion(child, parentID)
		case "guidance", "display", "command", "automated_action":
			// Attachments of the parent, consumed by its builder.
		default:
			p.warnKV("unknown element in alarm config", "element", child.XMLName.Local)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// addGroup creates a group for a component element. A second component with
// the same name under the same parent merges into the first.
func (p *parser) addGroup(el *element, parentID string) error {
	name := el.attr("name")
	if name == "" {
		return fmt.Errorf("%s: component element has no name", p.filename)
	}

	group, err := p.tree.CreateGroup(parentID, name)
	if err != nil {
		var dup *alarmtree.DuplicateIDError
		if !errors.As(err, &dup) {
			return fmt.Errorf("%s: create group %s: %w", p.filename, name, err)
		}

		existing, _ := p.tree.Node(dup.ID)

		merged, ok := existing.(*alarmtree.Group)
		if !ok {
			return fmt.Errorf("%s: component %s collides with a non-group node", p.filename, name)
		}

		p.warnKV("component appears twice, merging", "component", name)

		group = merged
	}

	p.readAttachments(el, &group.Attachments)

	return p.addChildren(el, group.ID())
}

// addChannel creates a channel for a pv element and applies its settings.
// PV names identify channels across the whole tree, so a second definition
// anywhere keeps the first and is reported.
func (p *parser) addChannel(el *element, parentID string) error {
	name := el.attr("name")
	if name == "" {
		return fmt.Errorf("%s: pv element has no name", p.filename)
	}

	channel, err := p.tree.CreateChannel(parentID, name)
	if err != nil {
		var dup *alarmtree.DuplicateIDError
		if !errors.As(err, &dup) {
			return fmt.Errorf("%s: create channel %s: %w", p.filename, name, err)
		}

		p.warnKV("pv appears twice, keeping the first definition", "pv", name)

		return nil
	}

	for _, child := range el.Children {
		switch child.XMLName.Local {
		case "description":
			channel.Description = child.Text
		case "enabled":
			p.readBool(child, &channel.Enabled)
		case "latching":
			p.readBool(child, &channel.Latching)
		case "annunciating":
			p.readBool(child, &channel.Annunciating)
		case "delay":
			p.readFloat(child, &channel.Delay)
		case "count":
			p.readInt(child, &channel.Count)
		case "filter":
			if child.Text != "" {
				channel.SetFilter(alarmtree.RawFilter(child.Text))
			}
		case "guidance", "display", "command", "automated_action":
			p.readAttachment(child, &channel.Attachments)
		default:
			p.warnKV("unknown element on pv", "pv", name, "element", child.XMLName.Local)
		}
	}

	return nil
}

func (p *parser) addInclusion(el *element, parentID string) error {
	href := el.attr("href")
	if href == "" {
		return fmt.Errorf("%s: include element has no href", p.filename)
	}

	if _, err := p.tree.CreateInclusion(parentID, href); err != nil {
		return fmt.Errorf("%s: create inclusion %s: %w", p.filename, href, err)
	}

	return nil
}

func (p *parser) readAttachments(el *element, attachments *alarmtree.Attachments) {
	for _, child := range el.Children {
		switch child.XMLName.Local {
		case "guidance", "display", "command", "automated_action":
			p.readAttachment(child, attachments)
		}
	}
}

// readAttachment appends one attachment entry. Automated actions keep their
// details verbatim, including the type prefix.
func (p *parser) readAttachment(el *element, attachments *alarmtree.Attachments) {
	var (
		title   string
		details string
		delay   int
	)

	for _, child := range el.Children {
		switch child.XMLName.Local {
		case "title":
			title = child.Text
		case "details":
			details = child.Text
		case "delay":
			p.readInt(child, &delay)
		}
	}

	switch el.XMLName.Local {
	case "guidance":
		attachments.AddGuidance(title, details)
	case "display":
		attachments.AddDisplay(title, details)
	case "command":
		attachments.AddCommand(title, details)
	case "automated_action":
		attachments.Actions = append(attachments.Actions, alarmtree.AutomatedAction{
			Title:   title,
			Details: details,
			Delay:   delay,
		})
	}
}

// readBool, readFloat and readInt keep the target's current value when the
// element text does not parse, reporting the bad value.
func (p *parser) readBool(el *element, target *bool) {
	value, err := strconv.ParseBool(strings.TrimSpace(el.Text))
	if err != nil {
		p.warnKV("element is not a boolean", "element", el.XMLName.Local, "value", el.Text)

		return
	}

	*target = value
}

func (p *parser) readFloat(el *element, target *float64) {
	value, err := strconv.ParseFloat(strings.TrimSpace(el.Text), 64)
	if err != nil {
		p.warnKV("element is not a number", "element", el.XMLName.Local, "value", el.Text)

		return
	}

	*target = value
}

func (p *parser) readInt(el *element, target *int) {
	value, err := strconv.Atoi(strings.TrimSpace(el.Text))
	if err != nil {
		p.warnKV("element is not an integer", "element", el.XMLName.Local, "value", el.Text)

		return
	}

	*target = value
}

func (p *parser) warnKV(message string, kvs ...any) {
	logger.WarnKV(p.ctx, message, append([]any{"file", p.filename}, kvs...)...)
}
