package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hz-b/phoebusalarm/internal/alarmtree"
)

// element is a generic XML node, marshaled with its name, attributes, text
// and children in build order.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*element `xml:",any"`
}

func newElement(name string) *element {
	return &element{XMLName: xml.Name{Local: name}}
}

func (e *element) attr(name, value string) *element {
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})

	return e
}

func (e *element) add(child *element) {
	e.Children = append(e.Children, child)
}

func (e *element) addText(name, text string) {
	child := newElement(name)
	child.Text = text
	e.add(child)
}

// XMLExporter renders an alarm tree as a console configuration document.
type XMLExporter struct {
	// IncludeExt, when set, replaces the extension of include references,
	// so a converted tree points at the converted include files.
	IncludeExt string
}

// ExportString renders the tree as an indented XML document.
func (x *XMLExporter) ExportString(tree *alarmtree.Tree) (string, error) {
	root, _ := tree.Node(tree.RootID())

	doc := newElement("config").attr("name", root.Tag())
	x.appendChildren(doc, tree, tree.RootID())

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal alarm config: %w", err)
	}

	return xml.Header + string(out) + "\n", nil
}

// ExportFile writes the XML document to outPath.
func (x *XMLExporter) ExportFile(tree *alarmtree.Tree, outPath string) error {
	doc, err := x.ExportString(tree)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write alarm config: %w", err)
	}

	return nil
}

func (x *XMLExporter) appendChildren(parent *element, tree *alarmtree.Tree, id string) {
	for _, child := range tree.Children(id) {
		var el *element

		switch node := child.(type) {
		case *alarmtree.Group:
			el = groupElement(node)
		case *alarmtree.Channel:
			el = channelElement(node)
		case *alarmtree.InclusionMarker:
			el = x.includeElement(node)
		default:
			continue
		}

		x.appendChildren(el, tree, child.ID())
		parent.add(el)
	}
}

func groupElement(group *alarmtree.Group) *element {
	el := newElement("component").attr("name", group.Name())
	appendAttachments(el, &group.Attachments)

	return el
}

// channelElement emits the channel's settings, optional ones only when they
// deviate from the defaults, followed by its attachments.
func channelElement(channel *alarmtree.Channel) *element {
	el := newElement("pv").attr("name", channel.PV())

	if channel.Description != "" {
		el.addText("description", channel.Description)
	}

	el.addText("enabled", strconv.FormatBool(channel.Enabled))
	el.addText("latching", strconv.FormatBool(channel.Latching))
	el.addText("annunciating", strconv.FormatBool(channel.Annunciating))

	if channel.Delay != 0 {
		el.addText("delay", formatSeconds(channel.Delay))

		if channel.Count != 0 {
			el.addText("count", strconv.Itoa(channel.Count))
		}
	}

	if channel.Filter() != nil {
		el.addText("filter", channel.Filter().FilterString())
	}

	appendAttachments(el, &channel.Attachments)

	return el
}

func (x *XMLExporter) includeElement(marker *alarmtree.InclusionMarker) *element {
	href := marker.Filename
	if x.IncludeExt != "" {
		href = swapExt(href, x.IncludeExt)
	}

	el := newElement("xi:include")
	el.attr("href", href)
	el.attr("xpointer", "element(/1/1)")
	el.attr("xmlns:xi", "http://www.w3.org/2001/XInclude")

	return el
}

func appendAttachments(el *element, a *alarmtree.Attachments) {
	for _, guidance := range a.Guidances {
		el.add(attachmentElement("guidance", guidance.Title, guidance.Details))
	}

	for _, display := range a.Displays {
		el.add(attachmentElement("display", display.Title, display.Details))
	}

	for _, command := range a.Commands {
		el.add(attachmentElement("command", command.Title, command.Details))
	}

	for _, action := range a.Actions {
		entry := attachmentElement("automated_action", action.Title, action.Details)
		entry.addText("delay", strconv.Itoa(action.Delay))
		el.add(entry)
	}
}

func attachmentElement(kind, title, details string) *element {
	el := newElement(kind)
	el.addText("title", title)
	el.addText("details", details)

	return el
}

// swapExt replaces the extension of p, keeping paths without one intact.
func swapExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}

// formatSeconds renders a delay without a trailing ".0" on integral values.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
