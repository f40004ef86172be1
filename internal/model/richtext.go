package model

// Destination rich-text node tree. The platform stores content as a
// Lexical-style document: a root node with ordered children, text runs with a
// numeric format bitmask, and typed container nodes. Structs carry both json
// and bson tags because trees are marshaled to JSON in tests and straight to
// BSON by the platform adapter.

const (
	FormatNormal = 0
	FormatBold   = 1
	FormatItalic = 2
)

type Node interface {
	NodeType() string
}

type Root struct {
	Type     string `json:"type" bson:"type"`
	Children []Node `json:"children" bson:"children"`
	Version  int    `json:"version" bson:"version"`
}

func NewRoot(children ...Node) *Root {
	return &Root{Type: "root", Children: children, Version: 1}
}

func (r *Root) Append(nodes ...Node) {
	r.Children = append(r.Children, nodes...)
}

type ParagraphNode struct {
	Type     string `json:"type" bson:"type"`
	Children []Node `json:"children" bson:"children"`
	Version  int    `json:"version" bson:"version"`
}

func NewParagraph(children ...Node) *ParagraphNode {
	return &ParagraphNode{Type: "paragraph", Children: children, Version: 1}
}

func (n *ParagraphNode) NodeType() string { return n.Type }

type HeadingNode struct {
	Type     string `json:"type" bson:"type"`
	Tag      string `json:"tag" bson:"tag"` // "h1".."h3"
	Children []Node `json:"children" bson:"children"`
	Version  int    `json:"version" bson:"version"`
}

func NewHeading(tag string, children ...Node) *HeadingNode {
	return &HeadingNode{Type: "heading", Tag: tag, Children: children, Version: 1}
}

func (n *HeadingNode) NodeType() string { return n.Type }

type TextNode struct {
	Type    string `json:"type" bson:"type"`
	Text    string `json:"text" bson:"text"`
	Format  int    `json:"format" bson:"format"`
	Version int    `json:"version" bson:"version"`
}

func NewText(text string, format int) *TextNode {
	return &TextNode{Type: "text", Text: text, Format: format, Version: 1}
}

func (n *TextNode) NodeType() string { return n.Type }

type LinkNode struct {
	Type     string `json:"type" bson:"type"`
	URL      string `json:"url" bson:"url"`
	Children []Node `json:"children" bson:"children"`
	Version  int    `json:"version" bson:"version"`
}

func NewLink(url string, children ...Node) *LinkNode {
	return &LinkNode{Type: "link", URL: url, Children: children, Version: 1}
}

func (n *LinkNode) NodeType() string { return n.Type }

// BlockNode is a block-typed container: the block kind plus an open field bag,
// mirroring how the platform stores layout blocks inside rich text.
type BlockNode struct {
	Type    string         `json:"type" bson:"type"`
	Fields  map[string]any `json:"fields" bson:"fields"`
	Version int            `json:"version" bson:"version"`
}

func NewBlock(blockType string, fields map[string]any) *BlockNode {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["blockType"] = blockType
	return &BlockNode{Type: "block", Fields: fields, Version: 1}
}

func (n *BlockNode) NodeType() string { return n.Type }

type RelationshipNode struct {
	Type       string `json:"type" bson:"type"`
	RelationTo string `json:"relationTo" bson:"relationTo"`
	Value      string `json:"value" bson:"value"`
	Version    int    `json:"version" bson:"version"`
}

func NewRelationship(relationTo, value string) *RelationshipNode {
	return &RelationshipNode{Type: "relationship", RelationTo: relationTo, Value: value, Version: 1}
}

func (n *RelationshipNode) NodeType() string { return n.Type }
