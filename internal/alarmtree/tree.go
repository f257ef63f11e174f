package alarmtree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrRootRemoval is returned when an operation would remove the root node.
var ErrRootRemoval = errors.New("cannot remove the root node")

// DuplicateIDError reports a node creation colliding with an existing
// identifier. The tree is left unchanged.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("node %q already exists in the tree", e.ID)
}

// UnknownNodeError reports an operation referencing an identifier that is
// not in the tree.
type UnknownNodeError struct {
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node %q is not in the tree", e.ID)
}

// NodeOption adjusts the creation of a single node.
type NodeOption func(*nodeSettings)

type nodeSettings struct {
	tag     string
	sortKey SortKey
	hasKey  bool
}

// WithTag overrides the legacy display tag, which defaults to the node name.
func WithTag(tag string) NodeOption {
	return func(s *nodeSettings) {
		s.tag = tag
	}
}

// WithSortKey sets the export ordering key instead of the insertion default.
func WithSortKey(key SortKey) NodeOption {
	return func(s *nodeSettings) {
		s.sortKey = key
		s.hasKey = true
	}
}

// treeEntry links one node into the tree structure.
type treeEntry struct {
	node     Node
	parentID string
	children []string
}

// Tree is the in-memory model of one alarm configuration. It owns all node
// data; nodes are addressed by identifier only.
type Tree struct {
	nodes  map[string]*treeEntry
	rootID string
	seq    int
}

// New returns a tree holding only the root configuration node, named and
// tagged configName.
func New(configName string) *Tree {
	t := &Tree{
		nodes: make(map[string]*treeEntry),
		seq:   1,
	}

	root := &Group{
		baseNode: baseNode{id: configName, tag: configName, sortKey: NumericKey(0)},
		name:     configName,
	}
	t.rootID = root.id
	t.nodes[root.id] = &treeEntry{node: root}

	return t
}

// RootID returns the identifier of the root configuration node.
func (t *Tree) RootID() string {
	return t.rootID
}

// Size returns the number of nodes including the root.
func (t *Tree) Size() int {
	return len(t.nodes)
}

// Node returns the node with the given identifier.
func (t *Tree) Node(id string) (Node, bool) {
	entry, ok := t.nodes[id]
	if !ok {
		return nil, false
	}

	return entry.node, true
}

// CreateGroup creates a group below parentID. The identifier is the parent
// identifier extended by the name, so equal names under one parent collide.
func (t *Tree) CreateGroup(parentID, name string, opts ...NodeOption) (*Group, error) {
	settings := applyOptions(name, opts)

	group := &Group{
		baseNode: baseNode{id: parentID + "/" + name, tag: settings.tag},
		name:     name,
	}
	if err := t.insert(group, parentID, settings); err != nil {
		return nil, err
	}

	return group, nil
}

// CreateChannel creates a channel below parentID. The PV name is the
// identifier, making duplicate PVs collide tree-wide.
func (t *Tree) CreateChannel(parentID, pv string, opts ...NodeOption) (*Channel, error) {
	settings := applyOptions(pv, opts)

	channel := &Channel{
		baseNode:     baseNode{id: pv, tag: settings.tag},
		pv:           pv,
		Enabled:      true,
		Latching:     true,
		Annunciating: true,
	}
	if err := t.insert(channel, parentID, settings); err != nil {
		return nil, err
	}

	return channel, nil
}

// CreateInclusion creates an inclusion marker below parentID. Markers get a
// generated identifier, so the same file can be included more than once.
func (t *Tree) CreateInclusion(parentID, filename string, opts ...NodeOption) (*InclusionMarker, error) {
	id := uuid.NewString()
	settings := applyOptions(id, opts)

	marker := &InclusionMarker{
		baseNode: baseNode{id: id, tag: settings.tag},
		Filename: filename,
	}
	if err := t.insert(marker, parentID, settings); err != nil {
		return nil, err
	}

	return marker, nil
}

// insert links a freshly built node below parentID, assigning the default
// sort key when none was given.
func (t *Tree) insert(node Node, parentID string, settings *nodeSettings) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return &UnknownNodeError{ID: parentID}
	}

	id := node.ID()
	if _, exists := t.nodes[id]; exists {
		return &DuplicateIDError{ID: id}
	}

	key := settings.sortKey
	if !settings.hasKey {
		key = NumericKey(float64(t.seq))
	}

	node.base().sortKey = key

	t.nodes[id] = &treeEntry{node: node, parentID: parentID}
	parent.children = append(parent.children, id)
	t.seq++

	return nil
}

// Children returns the node's children ordered by sort key ascending, ties
// broken by insertion order. Unknown identifiers yield nil.
func (t *Tree) Children(id string) []Node {
	entry, ok := t.nodes[id]
	if !ok {
		return nil
	}

	out := make([]Node, 0, len(entry.children))
	for _, childID := range entry.children {
		out = append(out, t.nodes[childID].node)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortKey().Less(out[j].SortKey())
	})

	return out
}

// Parent returns the node's parent, nil for the root and for unknown
// identifiers.
func (t *Tree) Parent(id string) Node {
	entry, ok := t.nodes[id]
	if !ok || entry.parentID == "" {
		return nil
	}

	return t.nodes[entry.parentID].node
}

// IsLeaf reports whether the node exists and has no children.
func (t *Tree) IsLeaf(id string) bool {
	entry, ok := t.nodes[id]

	return ok && len(entry.children) == 0
}

// SetSortKey updates the export ordering key of an existing node.
func (t *Tree) SetSortKey(id string, key SortKey) error {
	entry, ok := t.nodes[id]
	if !ok {
		return &UnknownNodeError{ID: id}
	}

	entry.node.base().sortKey = key

	return nil
}

// RemoveNode deletes the node and its entire subtree, returning how many
// nodes were removed. The root cannot be removed.
func (t *Tree) RemoveNode(id string) (int, error) {
	if id == t.rootID {
		return 0, ErrRootRemoval
	}

	entry, ok := t.nodes[id]
	if !ok {
		return 0, &UnknownNodeError{ID: id}
	}

	removed := 0
	for _, subID := range t.subtreeIDs(id) {
		delete(t.nodes, subID)
		removed++
	}

	t.detachFromParent(entry.parentID, id)

	return removed, nil
}

// LinkPast splices the node's children into its parent at the node's
// position and deletes the node. Child data, including sort keys, stays
// untouched. The root cannot be linked past.
func (t *Tree) LinkPast(id string) error {
	if id == t.rootID {
		return ErrRootRemoval
	}

	entry, ok := t.nodes[id]
	if !ok {
		return &UnknownNodeError{ID: id}
	}

	for _, childID := range entry.children {
		t.nodes[childID].parentID = entry.parentID
	}

	parent := t.nodes[entry.parentID]
	for i, childID := range parent.children {
		if childID == id {
			spliced := make([]string, 0, len(parent.children)-1+len(entry.children))
			spliced = append(spliced, parent.children[:i]...)
			spliced = append(spliced, entry.children...)
			spliced = append(spliced, parent.children[i+1:]...)
			parent.children = spliced

			break
		}
	}

	delete(t.nodes, id)

	return nil
}

// RenameGroup recreates the group under a new name, which rewrites its
// identifier; the legacy tag, sort key, attachments and filter transfer to
// the recreated node and the old one is discarded. Renaming the root or a
// group with children fails.
func (t *Tree) RenameGroup(id, newName string) (*Group, error) {
	if id == t.rootID {
		return nil, ErrRootRemoval
	}

	entry, ok := t.nodes[id]
	if !ok {
		return nil, &UnknownNodeError{ID: id}
	}

	group, ok := entry.node.(*Group)
	if !ok {
		return nil, fmt.Errorf("node %q is not a group", id)
	}

	if len(entry.children) > 0 {
		return nil, fmt.Errorf("group %q already has children", group.Name())
	}

	newID := entry.parentID + "/" + newName
	if _, exists := t.nodes[newID]; exists {
		return nil, &DuplicateIDError{ID: newID}
	}

	renamed := &Group{
		baseNode:    baseNode{id: newID, tag: group.tag, sortKey: group.sortKey},
		name:        newName,
		Attachments: group.Attachments,
		filter:      group.filter,
	}

	delete(t.nodes, id)
	t.nodes[newID] = &treeEntry{node: renamed, parentID: entry.parentID}

	parent := t.nodes[entry.parentID]
	for i, childID := range parent.children {
		if childID == id {
			parent.children[i] = newID

			break
		}
	}

	return renamed, nil
}

// Graft transfers the subtree rooted at srcID in src below parentID. The
// operation is atomic: identifier collisions fail it before any node moves.
// Transferred nodes keep their identifiers, data and relative order.
func (t *Tree) Graft(parentID string, src *Tree, srcID string) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return &UnknownNodeError{ID: parentID}
	}

	if _, ok := src.nodes[srcID]; !ok {
		return &UnknownNodeError{ID: srcID}
	}

	subtree := src.subtreeIDs(srcID)
	for _, id := range subtree {
		if _, exists := t.nodes[id]; exists {
			return &DuplicateIDError{ID: id}
		}
	}

	for _, id := range subtree {
		t.nodes[id] = src.nodes[id]
		delete(src.nodes, id)
	}

	src.detachFromParent(t.nodes[srcID].parentID, srcID)
	t.nodes[srcID].parentID = parentID
	parent.children = append(parent.children, srcID)

	return nil
}

// Walk visits every node depth-first in export order, root first.
func (t *Tree) Walk(visit func(Node)) {
	var descend func(id string)

	descend = func(id string) {
		visit(t.nodes[id].node)

		for _, child := range t.Children(id) {
			descend(child.ID())
		}
	}

	descend(t.rootID)
}

// subtreeIDs collects the identifiers of the node and all its descendants.
func (t *Tree) subtreeIDs(id string) []string {
	ids := []string{id}

	for i := 0; i < len(ids); i++ {
		ids = append(ids, t.nodes[ids[i]].children...)
	}

	return ids
}

// detachFromParent removes the child reference, tolerating a missing parent.
func (t *Tree) detachFromParent(parentID, id string) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return
	}

	for i, childID := range parent.children {
		if childID == id {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)

			return
		}
	}
}

// applyOptions resolves creation options, defaulting the tag to the name.
func applyOptions(name string, opts []NodeOption) *nodeSettings {
	settings := &nodeSettings{tag: name}
	for _, opt := range opts {
		opt(settings)
	}

	return settings
}
