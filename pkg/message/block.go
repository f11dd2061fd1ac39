package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// BlockType discriminates the variant stored in a ContentBlock.
type BlockType string

// Supported block types.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockFile  BlockType = "file"
	BlockRaw   BlockType = "raw"
)

// ContentBlock is a flat union representing one part of a multimodal message.
// The Type field discriminates which fields are meaningful.
type ContentBlock struct {
	Type     BlockType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	URL      string          `json:"url,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	FileName string          `json:"file_name,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// IsText reports whether the block carries prunable text.
func (b ContentBlock) IsText() bool {
	return b.Type == BlockText
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewImageBlock creates an image content block.
func NewImageBlock(url, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, URL: url, MIMEType: mimeType}
}

// NewFileBlock creates a file content block.
func NewFileBlock(url, mimeType, fileName string) ContentBlock {
	return ContentBlock{Type: BlockFile, URL: url, MIMEType: mimeType, FileName: fileName}
}

// NewRawBlock creates a raw content block carrying opaque JSON data.
func NewRawBlock(data json.RawMessage) ContentBlock {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return ContentBlock{Type: BlockRaw, Data: cp}
}

type contentKind uint8

const (
	contentNull contentKind = iota
	contentText
	contentBlocks
)

// Content is the body of a message: null, plain text, or an ordered list of
// typed blocks. The zero value is null content.
type Content struct {
	kind   contentKind
	text   string
	blocks []ContentBlock
}

// Text creates plain-text content.
func Text(s string) Content {
	return Content{kind: contentText, text: s}
}

// Blocks creates multimodal content from the given blocks. The slice is copied.
func Blocks(blocks ...ContentBlock) Content {
	cp := make([]ContentBlock, len(blocks))
	copy(cp, blocks)
	return Content{kind: contentBlocks, blocks: cp}
}

// IsNull reports whether the content is absent.
func (c Content) IsNull() bool { return c.kind == contentNull }

// IsText reports whether the content is a plain string.
func (c Content) IsText() bool { return c.kind == contentText }

// IsBlocks reports whether the content is a list of blocks.
func (c Content) IsBlocks() bool { return c.kind == contentBlocks }

// TextValue returns the plain string. It is empty unless IsText is true.
func (c Content) TextValue() string { return c.text }

// BlockList returns a copy of the blocks. It is nil unless IsBlocks is true.
func (c Content) BlockList() []ContentBlock {
	if c.kind != contentBlocks {
		return nil
	}
	cp := make([]ContentBlock, len(c.blocks))
	copy(cp, c.blocks)
	return cp
}

// String flattens the content: text as is, text blocks joined by newlines.
func (c Content) String() string {
	switch c.kind {
	case contentText:
		return c.text
	case contentBlocks:
		return textContent(c.blocks)
	}
	return ""
}

// Len returns the character count of the textual part of the content.
func (c Content) Len() int {
	switch c.kind {
	case contentText:
		return utf8.RuneCountInString(c.text)
	case contentBlocks:
		n := 0
		for _, b := range c.blocks {
			if b.IsText() {
				n += utf8.RuneCountInString(b.Text)
			}
		}
		return n
	}
	return 0
}

// Clone returns a deep copy of c.
func (c Content) Clone() Content {
	if c.kind != contentBlocks {
		return c
	}
	cp := make([]ContentBlock, len(c.blocks))
	for i, b := range c.blocks {
		cp[i] = b
		if b.Data != nil {
			cp[i].Data = append(json.RawMessage(nil), b.Data...)
		}
	}
	return Content{kind: contentBlocks, blocks: cp}
}

// Equal reports whether two contents carry the same value.
func (c Content) Equal(other Content) bool {
	if c.kind != other.kind || c.text != other.text || len(c.blocks) != len(other.blocks) {
		return false
	}
	for i := range c.blocks {
		a, b := c.blocks[i], other.blocks[i]
		if a.Type != b.Type || a.Text != b.Text || a.URL != b.URL ||
			a.MIMEType != b.MIMEType || a.FileName != b.FileName || !bytes.Equal(a.Data, b.Data) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler: null, a JSON string, or an array of
// blocks.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case contentText:
		return json.Marshal(c.text)
	case contentBlocks:
		if c.blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.blocks)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = Content{}
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("message: decode text content: %w", err)
		}
		*c = Text(s)
		return nil
	case trimmed[0] == '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return fmt.Errorf("message: decode content blocks: %w", err)
		}
		*c = Content{kind: contentBlocks, blocks: blocks}
		return nil
	}
	return fmt.Errorf("message: content must be null, a string or an array, got %.20s", trimmed)
}

// textContent concatenates the text of all text blocks, separated by newlines.
func textContent(blocks []ContentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		if blk.IsText() && blk.Text != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}
