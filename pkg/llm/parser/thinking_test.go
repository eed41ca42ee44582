package parser

import (
	"strings"
	"testing"
)

func collect(p *ThinkingParser, chunks []string) (thinking, message string) {
	for _, chunk := range chunks {
		th, msg := p.Parse(chunk)
		if th != nil {
			thinking += th.Content
		}
		if msg != nil {
			message += msg.Content
		}
	}
	th, msg := p.Flush()
	if th != nil {
		thinking += th.Content
	}
	if msg != nil {
		message += msg.Content
	}
	return thinking, message
}

// Code in the reasoning contains < and > which must not hide the closing tag.
func TestThinkingParserWithLessThanGreaterThan(t *testing.T) {
	parser := NewThinkingParser()

	thinking, message := collect(parser, []string{
		"<thinking>",
		"Looking at code:\n",
		"1. Line 11: `if x>3{`\n",
		"2. Line 15: `for i:=0;i<10;i++{`\n",
		"</thinking>",
		"\n\nThe loop is fine.",
	})

	if parser.IsInThinking() {
		t.Error("Parser is still in thinking mode after </thinking>")
	}
	if !strings.Contains(thinking, "i<10") || !strings.Contains(thinking, "x>3") {
		t.Errorf("Thinking content should preserve < and > characters. Got: %q", thinking)
	}
	if message != "\n\nThe loop is fine." {
		t.Errorf("Unexpected message content %q", message)
	}
}

func TestThinkingParserSplitTags(t *testing.T) {
	parser := NewThinkingParser()

	thinking, message := collect(parser, []string{"<thi", "nking>hmm</thin", "king>", "Answer"})

	if thinking != "hmm" {
		t.Errorf("Expected thinking %q, got %q", "hmm", thinking)
	}
	if message != "Answer" {
		t.Errorf("Expected message %q, got %q", "Answer", message)
	}
}

func TestThinkingParserThinkTag(t *testing.T) {
	parser := NewThinkingParser()

	thinking, message := collect(parser, []string{"<think>reasoning</thinking> still</think>done"})

	if thinking != "reasoning</thinking> still" {
		t.Errorf("Only the matching closing tag should end the block, got thinking %q", thinking)
	}
	if message != "done" {
		t.Errorf("Unexpected message %q", message)
	}
}

func TestThinkingParserKeepsOtherTags(t *testing.T) {
	parser := NewThinkingParser()

	_, message := collect(parser, []string{"Use <b>bold</b> and a < b"})

	if message != "Use <b>bold</b> and a < b" {
		t.Errorf("Unexpected message %q", message)
	}
}

func TestThinkingParserReset(t *testing.T) {
	parser := NewThinkingParser()
	parser.Parse("<thinking>open")
	if !parser.IsInThinking() {
		t.Fatal("Expected thinking mode")
	}
	parser.Reset()
	if parser.IsInThinking() {
		t.Error("Reset should leave thinking mode")
	}
}

func TestStripThinking(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain answer", "plain answer"},
		{"<thinking>secret</thinking>\n\nvisible", "visible"},
		{"<think>a</think>b<think>c</think>d", "bd"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripThinking(tt.in); got != tt.want {
			t.Errorf("StripThinking(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
