// Package parser separates reasoning blocks from answer text in LLM streams.
package parser

import (
	"strings"

	"github.com/entrhq/margin/pkg/llm"
)

// thinkingTags maps opening tags to their closing tags. Models differ on the
// spelling.
var thinkingTags = map[string]string{
	"<thinking>": "</thinking>",
	"<think>":    "</think>",
}

// ThinkingParser splits streamed content into thinking and message chunks.
// State carries across chunks, so tags split between chunks are recognised.
type ThinkingParser struct {
	buffer     strings.Builder
	tagBuffer  strings.Builder // potential tag between '<' and '>'
	closingTag string          // set while inside a thinking block
	inTag      bool
}

// NewThinkingParser creates a new thinking parser.
func NewThinkingParser() *ThinkingParser {
	return &ThinkingParser{}
}

// Parse processes a content chunk and returns the thinking and message text
// it contained. Either result may be nil.
func (p *ThinkingParser) Parse(content string) (thinkingChunk, messageChunk *llm.StreamChunk) {
	if content == "" {
		return nil, nil
	}

	for _, ch := range content {
		if ch == '<' {
			// A second '<' means the buffered one was not a tag.
			if p.inTag {
				thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, p.flushTagBuffer())
			}
			if p.buffer.Len() > 0 {
				chunk := p.createChunk(p.buffer.String())
				p.buffer.Reset()
				thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, chunk)
			}

			p.inTag = true
			p.tagBuffer.Reset()
			p.tagBuffer.WriteRune(ch)
			continue
		}

		if ch == '>' && p.inTag {
			p.tagBuffer.WriteRune(ch)
			tag := p.tagBuffer.String()
			p.tagBuffer.Reset()
			p.inTag = false

			if p.switchState(tag) {
				continue
			}
			thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, p.createChunk(tag))
			continue
		}

		if p.inTag {
			p.tagBuffer.WriteRune(ch)
		} else {
			p.buffer.WriteRune(ch)
		}
	}

	if p.buffer.Len() > 0 {
		chunk := p.createChunk(p.buffer.String())
		p.buffer.Reset()
		thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, chunk)
	}

	return
}

// switchState enters or leaves a thinking block when tag is a thinking tag.
func (p *ThinkingParser) switchState(tag string) bool {
	if p.closingTag == "" {
		if closing, ok := thinkingTags[tag]; ok {
			p.closingTag = closing
			return true
		}
		return false
	}
	if tag == p.closingTag {
		p.closingTag = ""
		return true
	}
	return false
}

func (p *ThinkingParser) flushTagBuffer() *llm.StreamChunk {
	if p.tagBuffer.Len() == 0 {
		return nil
	}
	text := p.tagBuffer.String()
	p.tagBuffer.Reset()
	return p.createChunk(text)
}

func (p *ThinkingParser) createChunk(text string) *llm.StreamChunk {
	if text == "" {
		return nil
	}
	if p.closingTag != "" {
		return &llm.StreamChunk{Content: text, Type: llm.ContentTypeThinking}
	}
	return &llm.StreamChunk{Content: text, Type: llm.ContentTypeMessage}
}

func (p *ThinkingParser) appendChunk(thinkingChunk, messageChunk, newChunk *llm.StreamChunk) (*llm.StreamChunk, *llm.StreamChunk) {
	if newChunk == nil {
		return thinkingChunk, messageChunk
	}

	if newChunk.Type == llm.ContentTypeThinking {
		if thinkingChunk == nil {
			return newChunk, messageChunk
		}
		thinkingChunk.Content += newChunk.Content
		return thinkingChunk, messageChunk
	}

	if messageChunk == nil {
		return thinkingChunk, newChunk
	}
	messageChunk.Content += newChunk.Content
	return thinkingChunk, messageChunk
}

// IsInThinking returns true if currently inside a thinking block.
func (p *ThinkingParser) IsInThinking() bool {
	return p.closingTag != ""
}

// Flush returns buffered content. Call it once the stream ends.
func (p *ThinkingParser) Flush() (thinkingChunk, messageChunk *llm.StreamChunk) {
	if p.inTag && p.tagBuffer.Len() > 0 {
		thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, p.flushTagBuffer())
		p.inTag = false
	}

	if p.buffer.Len() > 0 {
		text := p.buffer.String()
		p.buffer.Reset()
		thinkingChunk, messageChunk = p.appendChunk(thinkingChunk, messageChunk, p.createChunk(text))
	}

	return thinkingChunk, messageChunk
}

// Reset clears parser state for a new stream.
func (p *ThinkingParser) Reset() {
	p.buffer.Reset()
	p.tagBuffer.Reset()
	p.closingTag = ""
	p.inTag = false
}

// StripThinking removes thinking blocks from a complete answer.
func StripThinking(text string) string {
	p := NewThinkingParser()
	var out strings.Builder
	_, msg := p.Parse(text)
	if msg != nil {
		out.WriteString(msg.Content)
	}
	if _, msg = p.Flush(); msg != nil {
		out.WriteString(msg.Content)
	}
	return strings.TrimSpace(out.String())
}
