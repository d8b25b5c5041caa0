package docx

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/xml"
)

// Comment is one entry of the comments part.
type Comment struct {
	ID       string `json:"id"`
	Author   string `json:"author,omitempty"`
	Initials string `json:"initials,omitempty"`
	Date     string `json:"date,omitempty"`
	Body     string `json:"body"`
}

// CommentSet maps comment ids to their entries. It is built once per archive
// and passed into the paragraph walk; it is never global state.
type CommentSet struct {
	byID  map[string]*Comment
	order []string
}

// LoadComments builds the comment mapping from the package's comments part.
// A package without a comments part yields an empty set.
func LoadComments(pkg *opc.Package) (*CommentSet, error) {
	set := &CommentSet{byID: make(map[string]*Comment)}
	if !pkg.Has(opc.PartComments) {
		return set, nil
	}

	data, err := pkg.Part(opc.PartComments)
	if err != nil {
		return nil, err
	}
	tree, err := xml.Parse(data)
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartComments, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}

	nodes, err := tree.Query("//w:comment")
	if err != nil {
		return nil, &errors.MarkupError{Part: opc.PartComments, Paragraph: -1, Message: err.Error(), Err: errors.ErrMalformedMarkup}
	}
	for _, node := range nodes {
		id := node.Attr("w:id")
		if id == "" {
			continue
		}
		c := &Comment{
			ID:       id,
			Author:   node.Attr("w:author"),
			Initials: node.Attr("w:initials"),
			Date:     node.Attr("w:date"),
			Body:     commentBody(node),
		}
		if _, dup := set.byID[id]; !dup {
			set.order = append(set.order, id)
		}
		set.byID[id] = c
	}
	return set, nil
}

// Lookup returns the comment entry for id.
func (cs *CommentSet) Lookup(id string) (*Comment, error) {
	c, ok := cs.byID[id]
	if !ok {
		return nil, errors.NewComment(id)
	}
	return c, nil
}

// IDs returns the comment ids in part order.
func (cs *CommentSet) IDs() []string {
	ids := make([]string, len(cs.order))
	copy(ids, cs.order)
	return ids
}

// Len returns the number of comment entries.
func (cs *CommentSet) Len() int {
	return len(cs.byID)
}

// MaxID returns the largest numeric comment id, or 0 when the set has none.
// Non-numeric ids are ignored for allocation purposes.
func (cs *CommentSet) MaxID() int {
	max := 0
	for id := range cs.byID {
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	}
	return max
}

// commentBody flattens a comment node's paragraphs with the same run
// coalescing as the body walk; paragraphs join with newlines.
func commentBody(node *xml.Node) string {
	var lines []string
	for _, child := range node.Elements() {
		if child.Name() != "p" {
			continue
		}
		lines = append(lines, collectText(child))
	}
	return strings.Join(lines, "\n")
}

// collectText concatenates all run text under n in document order, including
// deleted text stored in w:delText.
func collectText(n *xml.Node) string {
	var b strings.Builder
	var walk func(el *xml.Node)
	walk = func(el *xml.Node) {
		for _, child := range el.Elements() {
			switch child.Name() {
			case "t", "delText":
				b.WriteString(child.Text())
			default:
				walk(child)
			}
		}
	}
	walk(n)
	return b.String()
}
