package circuit

import (
	"fmt"
	"slices"

	"github.com/edp1096/toy-mor/internal/consts"
)

// Circuit is an ordered element list plus its node-name universe.
type Circuit struct {
	Title    string
	Elements []Element

	// Nodes is the node-name universe. When empty it is derived from the
	// elements in order of first appearance.
	Nodes []string
}

func New(title string) *Circuit {
	return &Circuit{Title: title}
}

// Add appends elements in stamping order.
func (c *Circuit) Add(elems ...Element) {
	c.Elements = append(c.Elements, elems...)
}

// Lookup finds an element by name.
func (c *Circuit) Lookup(name string) (Element, bool) {
	for _, e := range c.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// NodeNames returns the non-ground node universe.
func (c *Circuit) NodeNames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if IsGround(n) || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}

	if len(c.Nodes) > 0 {
		for _, n := range c.Nodes {
			add(n)
		}
		return names
	}
	for _, e := range c.Elements {
		for _, n := range e.Nodes {
			add(n)
		}
	}
	return names
}

// Validate checks every element, node references against the universe and
// control references against the element list.
func (c *Circuit) Validate() error {
	index, err := NewNodeIndex(c.NodeNames())
	if err != nil {
		return err
	}

	names := make(map[string]Kind, len(c.Elements))
	for _, e := range c.Elements {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := names[e.Name]; dup {
			return fmt.Errorf("%w: duplicate element name %s", ErrMalformedElement, e.Name)
		}
		names[e.Name] = e.Kind
		for _, n := range e.Nodes {
			if _, err := index.Index(n); err != nil {
				return fmt.Errorf("element %s: %w", e.Name, err)
			}
		}
	}

	for _, e := range c.Elements {
		if e.Control == "" {
			continue
		}
		kind, ok := names[e.Control]
		if !ok {
			return fmt.Errorf("%w: %s references %s", ErrUnknownControl, e.Name, e.Control)
		}
		// Only two-terminal elements and voltage-defining sources carry a
		// well defined controlling current.
		if kind == VCCS || kind == CCCS {
			return fmt.Errorf("%w: %s cannot be controlled by %s %s", ErrUnknownControl, e.Name, kind, e.Control)
		}
	}
	return nil
}

// Index builds the node index map of the circuit.
func (c *Circuit) Index() (*NodeIndex, error) {
	return NewNodeIndex(c.NodeNames())
}

// IsGround reports whether name denotes the reference node.
func IsGround(name string) bool {
	return slices.Contains(consts.GroundNames, name)
}

// NodeIndex maps node names to 1-based indices. Ground is always 0 and is
// not part of the matrix; node k lives in matrix row k-1.
type NodeIndex struct {
	names   []string
	nodeMap map[string]int
}

// NewNodeIndex numbers the non-ground names in order.
func NewNodeIndex(names []string) (*NodeIndex, error) {
	ni := &NodeIndex{nodeMap: make(map[string]int, len(names))}
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%w: empty node name", ErrMalformedElement)
		}
		if IsGround(n) {
			continue
		}
		if _, exists := ni.nodeMap[n]; exists {
			continue
		}
		ni.names = append(ni.names, n)
		ni.nodeMap[n] = len(ni.names)
	}
	return ni, nil
}

// Index returns the node's index, 0 for ground.
func (ni *NodeIndex) Index(name string) (int, error) {
	if IsGround(name) {
		return 0, nil
	}
	idx, ok := ni.nodeMap[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return idx, nil
}

// Len is the number of non-ground nodes.
func (ni *NodeIndex) Len() int {
	return len(ni.names)
}

// Names returns the non-ground nodes in index order.
func (ni *NodeIndex) Names() []string {
	return slices.Clone(ni.names)
}
