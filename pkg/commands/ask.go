package commands

import (
	"context"
	"strings"

	"github.com/entrhq/margin/pkg/llm"
	"github.com/entrhq/margin/pkg/llm/parser"
)

// RelatedNotesLimit caps the search hits sent as related notes.
const RelatedNotesLimit = 8

// validator is implemented by clients that can check their configuration
// before a question is asked.
type validator interface {
	Validate() error
}

// AskLLM sends question with the context selected by mode and shows the
// answer. relatedQuery drives the related-notes search in ModeRelated; a
// failed search just sends no related notes.
func (c *Commands) AskLLM(question string, mode llm.Mode, relatedQuery string) string {
	if c.llm == nil {
		c.editor.Error(capitalize(llm.ErrNotConfigured.Error()))
		return ""
	}
	if v, ok := c.llm.(validator); ok {
		if err := v.Validate(); err != nil {
			c.editor.Error(capitalize(err.Error()))
			return ""
		}
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return ""
	}

	var selection, text string
	if buf := c.editor.ActiveBuffer(); buf != nil {
		selection = strings.Join(c.editor.Selections(buf), "\n\n")
		text = buf.Text()
	}

	return c.spawn("ask-llm", func(ctx context.Context) error {
		var related []llm.RelatedNote
		if mode == llm.ModeRelated && strings.TrimSpace(relatedQuery) != "" {
			results, err := c.cli.Search(ctx, relatedQuery, RelatedNotesLimit)
			if err != nil {
				c.logger.Warnf("related notes search failed: %v", err)
			}
			for _, r := range results {
				related = append(related, llm.RelatedNote{Path: r.File, Excerpt: r.Preview})
			}
		}

		req := llm.NewRequest(mode, question, selection, text, related, c.limits)
		raw, err := c.llm.Ask(ctx, req)
		if err != nil {
			c.fail("ask-llm", err)
			return nil
		}
		answer := parser.StripThinking(raw)
		c.session.SetLastAnswer(answer)

		c.post(func() { c.editor.ShowAnswer(answer) })
		return nil
	})
}

// InsertLastLLMAnswer inserts the last answer at the cursor.
func (c *Commands) InsertLastLLMAnswer() {
	buf := c.editor.ActiveBuffer()
	if buf == nil {
		return
	}
	answer := c.session.LastAnswer()
	if answer == "" {
		c.editor.Status("No LLM answer available")
		return
	}
	c.insertAtCursor(buf, answer+"\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
