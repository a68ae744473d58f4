package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Body text, paragraphs separated by blank lines
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Text flattens the tree in document order. Headings and bodies become
// separate paragraphs so blank-line segmentation sees every block boundary.
func (t *DocTree) Text() string {
	var blocks []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if s := strings.TrimSpace(n.Title); s != "" && n.Page == 0 {
				blocks = append(blocks, s)
			}
			if s := strings.TrimSpace(n.Text); s != "" {
				blocks = append(blocks, s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return strings.Join(blocks, "\n\n")
}

// Builder assembles a DocTree from a stream of headings and paragraphs,
// nesting each section under the nearest preceding heading of lower level.
type Builder struct {
	tree  *DocTree
	root  *DocNode
	stack []level
	buf   []string
}

type level struct {
	node  *DocNode
	depth int
}

// NewBuilder starts a tree with the given title.
func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{
		tree:  &DocTree{Title: title},
		root:  root,
		stack: []level{{node: root}},
	}
}

// SetTitle overrides the document title, e.g. from HTML <title>.
func (b *Builder) SetTitle(title string) {
	if title != "" {
		b.tree.Title = title
	}
}

// Heading opens a new section at depth (1 = top level).
func (b *Builder) Heading(depth int, title string) {
	b.flush()
	n := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].depth >= depth {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, level{node: n, depth: depth})
}

// Paragraph appends body text to the current section. Blank input is ignored.
func (b *Builder) Paragraph(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.buf = append(b.buf, text)
	}
}

func (b *Builder) flush() {
	if len(b.buf) == 0 {
		return
	}
	top := b.stack[len(b.stack)-1].node
	body := strings.Join(b.buf, "\n\n")
	if top.Text != "" {
		top.Text += "\n\n" + body
	} else {
		top.Text = body
	}
	b.buf = b.buf[:0]
}

// Tree finishes building. Text that appeared before any heading becomes a
// leading untitled node.
func (b *Builder) Tree() *DocTree {
	b.flush()
	if b.root.Text != "" {
		b.tree.Children = append(b.tree.Children, &DocNode{Text: b.root.Text})
	}
	b.tree.Children = append(b.tree.Children, b.root.Children...)
	return b.tree
}
