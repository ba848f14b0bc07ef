package document

// Node is the tagged variant making up the editable rich-text tree. The tree
// is a derived, transient view over a lesson's Markdown content and is never
// persisted; Markdown remains the source of truth between editing sessions.
type Node interface {
	node()
}

type BlockKind int

const (
	KindHeading BlockKind = iota + 1
	KindParagraph
	KindBlockquote
	KindBulletList
	KindOrderedList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindCodeBlock
	// KindBreak represents a blank source line. Blank lines are explicit
	// line breaks, not paragraph separators, so authoring spacing survives
	// a round trip.
	KindBreak
)

type InlineKind int

const (
	InlineBold InlineKind = iota + 1
	InlineItalic
	InlineCode
)

// Text holds formatted span text (see inline.go). Inside a code block the
// value is escaped verbatim content instead.
type Text struct {
	Value string
}

// Block is a structural node. Attributes carry kind-specific details:
// "level" for headings, "language" for code blocks, "header" for table
// cells belonging to the header row.
type Block struct {
	Kind       BlockKind
	Children   []Node
	Attributes map[string]string
}

// Inline is a formatting span inserted by direct authoring actions.
type Inline struct {
	Kind     InlineKind
	Children []Node
}

// Image references a picture by exactly one reference, either canonical
// (durable, remote-addressable) or transient (valid only for the current
// session). InsertionID is the stable identifier the lifecycle manager
// matches on when upgrading the reference; it is empty for images that
// arrived already canonical from parsed source.
type Image struct {
	AltText     string
	Reference   string
	Canonical   bool
	Visual      bool
	InsertionID string
}

func (*Text) node()  {}
func (*Block) node() {}

func (*Inline) node() {}
func (*Image) node()  {}

// Tree is the root of the editable representation of one lesson.
type Tree struct {
	Children []Node
}

// Walk visits every node depth-first. The visitor may mutate node fields in
// place; structural mutation is the session's job.
func (t *Tree) Walk(fn func(Node)) {
	walkNodes(t.Children, fn)
}

func walkNodes(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		switch v := n.(type) {
		case *Block:
			walkNodes(v.Children, fn)
		case *Inline:
			walkNodes(v.Children, fn)
		}
	}
}

// Images returns every image node in document order.
func (t *Tree) Images() []*Image {
	var result []*Image
	t.Walk(func(n Node) {
		if img, ok := n.(*Image); ok {
			result = append(result, img)
		}
	})
	return result
}

func newBlock(kind BlockKind, children ...Node) *Block {
	return &Block{Kind: kind, Children: children, Attributes: map[string]string{}}
}
