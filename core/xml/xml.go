// Package xml provides a pure Go namespaced markup tree with XPath queries
// and in-place mutation. It wraps xmlquery so parsing inherits the security
// properties of Go's encoding/xml (no external entity fetching).
package xml

import (
	"bytes"
	stdxml "encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// NodeKind identifies the kind of a tree node.
type NodeKind int

const (
	// KindElement is a named element node.
	KindElement NodeKind = iota
	// KindText is a character data node.
	KindText
	// KindOther covers declarations, comments and processing instructions.
	KindOther
)

// Node represents a node in the markup tree.
type Node struct {
	node *xmlquery.Node
}

// Attr is a single ordered attribute of an element.
type Attr struct {
	Name  string // qualified name as written (e.g., "w:id")
	Value string
}

// Parse parses XML data and returns a Document.
// The input must be well-formed; any decoding error is returned verbatim.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	doc := &Document{root: root}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parsing XML: no root element")
	}
	return doc, nil
}

// Serialize converts the document back to XML bytes.
// The output is re-parseable; byte identity with the source is not guaranteed.
func (d *Document) Serialize() []byte {
	if d.root == nil {
		return nil
	}
	return []byte(d.root.OutputXML(true))
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// Query executes an XPath query and returns matching nodes.
func (d *Document) Query(expr string) ([]*Node, error) {
	// Compile the expression to check for errors
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// QueryFirst executes an XPath query and returns the first matching node,
// or nil when nothing matches.
func (d *Document) QueryFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// NewElement creates a detached element node. The name may carry a prefix
// ("w:commentRangeStart"); nsURI may be empty when the prefix is declared by
// an ancestor of the eventual insertion point.
func NewElement(name, nsURI string) *Node {
	prefix, local := splitName(name)
	return &Node{node: &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       prefix,
		NamespaceURI: nsURI,
	}}
}

// NewText creates a detached text node.
func NewText(text string) *Node {
	return &Node{node: &xmlquery.Node{
		Type: xmlquery.TextNode,
		Data: text,
	}}
}

// Kind returns the node kind.
func (n *Node) Kind() NodeKind {
	switch n.node.Type {
	case xmlquery.ElementNode:
		return KindElement
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return KindText
	default:
		return KindOther
	}
}

// Name returns the local element name (without prefix).
func (n *Node) Name() string {
	if n.node == nil || n.node.Type != xmlquery.ElementNode {
		return ""
	}
	return n.node.Data
}

// QName returns the qualified element name as written (e.g., "w:p").
func (n *Node) QName() string {
	if n.node.Prefix != "" {
		return n.node.Prefix + ":" + n.node.Data
	}
	return n.node.Data
}

// NamespaceURI returns the namespace URI the element resolved to.
func (n *Node) NamespaceURI() string {
	return n.node.NamespaceURI
}

// Text returns the concatenated character data of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// Data returns the raw character data of a text node.
func (n *Node) Data() string {
	return n.node.Data
}

// SetData replaces the character data of a text node.
func (n *Node) SetData(text string) {
	n.node.Data = text
}

// Attr returns the value of the attribute with the given qualified name
// ("w:id"), or the empty string when absent.
func (n *Node) Attr(name string) string {
	return n.node.SelectAttr(name)
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	prefix, local := splitName(name)
	for _, a := range n.node.Attr {
		if a.Name.Local == local && a.Name.Space == prefix {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute, replacing an existing one in place so attribute
// order stays stable.
func (n *Node) SetAttr(name, value string) {
	prefix, local := splitName(name)
	for i, a := range n.node.Attr {
		if a.Name.Local == local && a.Name.Space == prefix {
			n.node.Attr[i].Value = value
			return
		}
	}
	n.node.Attr = append(n.node.Attr, xmlquery.Attr{
		Name:  stdxml.Name{Space: prefix, Local: local},
		Value: value,
	})
}

// Attrs returns the element's attributes in document order.
func (n *Node) Attrs() []Attr {
	attrs := make([]Attr, 0, len(n.node.Attr))
	for _, a := range n.node.Attr {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + a.Name.Local
		}
		attrs = append(attrs, Attr{Name: name, Value: a.Value})
	}
	return attrs
}

// Parent returns the parent node, or nil at the tree root.
func (n *Node) Parent() *Node {
	if n.node.Parent == nil {
		return nil
	}
	return &Node{node: n.node.Parent}
}

// Children returns all child nodes (elements and text) in document order.
func (n *Node) Children() []*Node {
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, &Node{node: child})
	}
	return children
}

// Elements returns the child element nodes in document order.
func (n *Node) Elements() []*Node {
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Element returns the first child element with the given qualified name, or nil.
func (n *Node) Element(qname string) *Node {
	prefix, local := splitName(qname)
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == local && child.Prefix == prefix {
			return &Node{node: child}
		}
	}
	return nil
}

// Is reports whether the node is an element with the given qualified name.
func (n *Node) Is(qname string) bool {
	prefix, local := splitName(qname)
	return n.node.Type == xmlquery.ElementNode && n.node.Data == local && n.node.Prefix == prefix
}

// AppendChild appends child as the last child of n.
func (n *Node) AppendChild(child *Node) {
	detach(child.node)
	c := child.node
	c.Parent = n.node
	if n.node.LastChild == nil {
		n.node.FirstChild = c
		n.node.LastChild = c
		return
	}
	last := n.node.LastChild
	last.NextSibling = c
	c.PrevSibling = last
	n.node.LastChild = c
}

// InsertBefore inserts newNode as a sibling immediately before ref.
func (n *Node) InsertBefore(newNode, ref *Node) {
	detach(newNode.node)
	nn, r := newNode.node, ref.node
	nn.Parent = n.node
	nn.PrevSibling = r.PrevSibling
	nn.NextSibling = r
	if r.PrevSibling != nil {
		r.PrevSibling.NextSibling = nn
	} else {
		n.node.FirstChild = nn
	}
	r.PrevSibling = nn
}

// InsertAfter inserts newNode as a sibling immediately after ref.
func (n *Node) InsertAfter(newNode, ref *Node) {
	detach(newNode.node)
	nn, r := newNode.node, ref.node
	nn.Parent = n.node
	nn.PrevSibling = r
	nn.NextSibling = r.NextSibling
	if r.NextSibling != nil {
		r.NextSibling.PrevSibling = nn
	} else {
		n.node.LastChild = nn
	}
	r.NextSibling = nn
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) {
	if child.node.Parent == n.node {
		detach(child.node)
	}
}

// Same reports whether two wrappers refer to the same underlying tree node.
func (n *Node) Same(other *Node) bool {
	return other != nil && n.node == other.node
}

// Clone returns a detached deep copy of the node.
func (n *Node) Clone() *Node {
	return &Node{node: cloneNode(n.node)}
}

// Path returns a slash-separated node path for error context,
// e.g. "/w:document/w:body/w:p[3]".
func (n *Node) Path() string {
	var segments []string
	for cur := n.node; cur != nil && cur.Type == xmlquery.ElementNode; cur = cur.Parent {
		segments = append(segments, pathSegment(cur))
	}
	if len(segments) == 0 {
		return ""
	}
	// Reverse into root-first order
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(segments[i])
	}
	return b.String()
}

// OutputXML serializes the node and its subtree.
func (n *Node) OutputXML() string {
	return n.node.OutputXML(true)
}

func pathSegment(n *xmlquery.Node) string {
	name := n.Data
	if n.Prefix != "" {
		name = n.Prefix + ":" + n.Data
	}
	index, total := 1, 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == xmlquery.ElementNode && sib.Data == n.Data && sib.Prefix == n.Prefix {
			index++
			total++
		}
	}
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == xmlquery.ElementNode && sib.Data == n.Data && sib.Prefix == n.Prefix {
			total++
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", name, index)
	}
	return name
}

func detach(n *xmlquery.Node) {
	if n.Parent != nil {
		if n.Parent.FirstChild == n {
			n.Parent.FirstChild = n.NextSibling
		}
		if n.Parent.LastChild == n {
			n.Parent.LastChild = n.PrevSibling
		}
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

func cloneNode(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		cc := cloneNode(child)
		cc.Parent = c
		if c.LastChild == nil {
			c.FirstChild = cc
			c.LastChild = cc
		} else {
			c.LastChild.NextSibling = cc
			cc.PrevSibling = c.LastChild
			c.LastChild = cc
		}
	}
	return c
}

func splitName(name string) (prefix, local string) {
	if i := strings.Index(name, ":"); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
