// Package llm asks a language model about the current note.
//
// Two clients are provided: ProcessClient hands a JSON payload file to a
// user-configured executable, and the openai subpackage talks to any
// OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured means no LLM client is set up.
	ErrNotConfigured = errors.New("set margin_llm_client_path to enable Ask LLM")

	// ErrClientNotFile means the configured client path is not a regular file.
	ErrClientNotFile = errors.New("margin_llm_client_path does not point to a file")
)

// RelatedNote is a search hit passed to the model as extra context.
type RelatedNote struct {
	Path    string `json:"path"`
	Excerpt string `json:"excerpt"`
}

// Request is the payload sent to a client.
type Request struct {
	Question      string        `json:"question"`
	Selection     string        `json:"selection"`
	BufferExcerpt string        `json:"buffer_excerpt"`
	RelatedNotes  []RelatedNote `json:"related_notes"`
}

// Client answers a question.
type Client interface {
	Ask(ctx context.Context, req Request) (string, error)
}

// Mode picks which context accompanies the question.
type Mode int

const (
	ModeSelection Mode = iota
	ModeBuffer
	ModeRelated
)

// Modes lists the selectable modes in menu order.
var Modes = []Mode{ModeSelection, ModeBuffer, ModeRelated}

func (m Mode) String() string {
	switch m {
	case ModeSelection:
		return "Ask about selection"
	case ModeBuffer:
		return "Ask about current buffer"
	case ModeRelated:
		return "Ask with related notes"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NewRequest builds the payload for mode. Only the context that belongs to
// the mode is kept; selection and buffer text are trimmed to limits.
func NewRequest(mode Mode, question, selection, buffer string, related []RelatedNote, limits Limits) Request {
	req := Request{
		Question:     question,
		RelatedNotes: []RelatedNote{},
	}
	switch mode {
	case ModeSelection:
		req.Selection = limits.Apply(selection)
	case ModeBuffer:
		req.BufferExcerpt = limits.Apply(buffer)
	case ModeRelated:
		if related != nil {
			req.RelatedNotes = related
		}
	}
	return req
}

const systemPrompt = "You are a concise assistant answering questions about the user's personal notes. " +
	"Answer in plain Markdown. If the provided context does not contain the answer, say so."

// Prompt renders req as a single user message.
func Prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(req.Question)
	b.WriteString("\n")

	if req.Selection != "" {
		b.WriteString("\nSelected text:\n```\n")
		b.WriteString(req.Selection)
		b.WriteString("\n```\n")
	}
	if req.BufferExcerpt != "" {
		b.WriteString("\nCurrent note:\n```\n")
		b.WriteString(req.BufferExcerpt)
		b.WriteString("\n```\n")
	}
	if len(req.RelatedNotes) > 0 {
		b.WriteString("\nRelated notes:\n")
		for _, n := range req.RelatedNotes {
			fmt.Fprintf(&b, "- %s: %s\n", n.Path, n.Excerpt)
		}
	}
	return b.String()
}

// SystemPrompt returns the instruction sent ahead of Prompt.
func SystemPrompt() string {
	return systemPrompt
}
