package commands

import (
	"context"
	"regexp"

	"github.com/entrhq/margin/pkg/llm"
)

// SlackMode decides what happens with a captured thread.
type SlackMode int

const (
	// SlackInsertSave inserts the thread; the CLI has already saved it.
	SlackInsertSave SlackMode = iota
	SlackInsert
	SlackOpenFile
	SlackCopy
)

// SlackModes lists the modes in menu order.
var SlackModes = []SlackMode{SlackInsertSave, SlackInsert, SlackOpenFile, SlackCopy}

func (m SlackMode) String() string {
	switch m {
	case SlackInsertSave:
		return "Insert+Save"
	case SlackInsert:
		return "Insert"
	case SlackOpenFile:
		return "Open File"
	case SlackCopy:
		return "Copy"
	default:
		return "Unknown"
	}
}

const clipboardScanLimit = 1024

var (
	slackLinkPattern    = regexp.MustCompile(`https://[^\s]*slack\.com/[^\s]+`)
	slackChannelPattern = regexp.MustCompile(`/archives/([A-Z0-9]+)/`)
)

const msgNoSlackLink = "Clipboard does not contain a Slack link."

// ParseSlackLink extracts the first Slack URL in text and the channel id
// from its /archives/ segment. The channel is empty when the URL has none.
func ParseSlackLink(text string) (link, channel string, ok bool) {
	link = slackLinkPattern.FindString(text)
	if link == "" {
		return "", "", false
	}
	if m := slackChannelPattern.FindStringSubmatch(link); m != nil {
		channel = m[1]
	}
	return link, channel, true
}

// SlackCapture captures a Slack thread through the CLI and applies mode.
// The saved path the CLI reports must lie inside the root.
func (c *Commands) SlackCapture(channel, thread string, mode SlackMode) string {
	buf := c.editor.ActiveBuffer()

	return c.spawn("slack-capture", func(ctx context.Context) error {
		res, err := c.cli.SlackCapture(ctx, channel, thread, c.slackTokenEnv)
		if err != nil {
			c.fail("slack capture", err)
			return nil
		}

		absPath := ""
		if res.SavedPath != "" {
			absPath, err = c.guard.Resolve(res.SavedPath)
			if err != nil {
				c.fail("slack capture", err)
				return nil
			}
		}

		c.post(func() {
			switch mode {
			case SlackInsertSave, SlackInsert:
				c.insertAtCursor(buf, res.Text)
			case SlackOpenFile:
				if absPath == "" {
					c.editor.Error("Slack capture did not save a file.")
					return
				}
				if err := c.editor.OpenFile(absPath, 0, 0); err != nil {
					c.editor.Error(err.Error())
					return
				}
			case SlackCopy:
				if err := c.clipboard.WriteAll(res.Text); err != nil {
					c.editor.Error("Failed to copy to clipboard: " + err.Error())
					return
				}
			}
			c.editor.Status("Slack captured: " + res.SavedPath)
		})
		return nil
	})
}

// SlackCaptureFromClipboard captures the thread whose link is on the
// clipboard and inserts it at the cursor.
func (c *Commands) SlackCaptureFromClipboard() string {
	clip, err := c.clipboard.ReadAll()
	if err != nil {
		c.editor.Error("Failed to read clipboard: " + err.Error())
		return ""
	}
	link, channel, ok := ParseSlackLink(llm.TrimChars(clip, clipboardScanLimit))
	if !ok {
		c.editor.Error(msgNoSlackLink)
		return ""
	}

	return c.spawn("slack-capture", func(ctx context.Context) error {
		res, err := c.cli.SlackCapture(ctx, channel, link, c.slackTokenEnv)
		if err != nil {
			c.fail("slack capture", err)
			return nil
		}

		c.post(func() {
			c.insertAtCursor(c.editor.ActiveBuffer(), res.Text)
			c.editor.Status("Slack captured")
		})
		return nil
	})
}
