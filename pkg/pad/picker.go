package pad

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/margin/pkg/commands"
)

const pickerMaxVisible = 8

// picker is a filterable list. onPick receives the index of the chosen item
// in the original list, not the filtered one.
type picker struct {
	title    string
	items    []commands.ResultItem
	filtered []int
	selected int
	filter   string
	onPick   func(int)
}

func newPicker(title string, items []commands.ResultItem, onPick func(int)) *picker {
	p := &picker{title: title, items: items, onPick: onPick}
	p.updateFiltered()
	return p
}

// SetFilter updates the filter string and refreshes the filtered rows.
func (p *picker) SetFilter(filter string) {
	newFilter := strings.ToLower(filter)
	if newFilter == p.filter {
		return
	}
	p.filter = newFilter
	p.selected = 0
	p.updateFiltered()
}

func (p *picker) Filter() string {
	return p.filter
}

// updateFiltered ranks title matches before detail-only matches.
func (p *picker) updateFiltered() {
	p.filtered = p.filtered[:0]
	needle := strings.TrimSpace(p.filter)
	if needle == "" {
		for i := range p.items {
			p.filtered = append(p.filtered, i)
		}
		return
	}

	var detailMatches []int
	for i, item := range p.items {
		switch {
		case strings.Contains(strings.ToLower(item.Title), needle):
			p.filtered = append(p.filtered, i)
		case strings.Contains(strings.ToLower(item.Detail), needle):
			detailMatches = append(detailMatches, i)
		}
	}
	p.filtered = append(p.filtered, detailMatches...)
	if p.selected >= len(p.filtered) {
		p.selected = 0
	}
}

func (p *picker) SelectNext() {
	if len(p.filtered) == 0 {
		return
	}
	p.selected = (p.selected + 1) % len(p.filtered)
}

func (p *picker) SelectPrev() {
	if len(p.filtered) == 0 {
		return
	}
	p.selected--
	if p.selected < 0 {
		p.selected = len(p.filtered) - 1
	}
}

// Selected returns the original index of the highlighted item, or -1.
func (p *picker) Selected() int {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return -1
	}
	return p.filtered[p.selected]
}

// Render draws the visible window of rows around the selection.
func (p *picker) Render(width int) string {
	boxWidth := width * 80 / 100
	if boxWidth > 100 {
		boxWidth = 100
	}
	if boxWidth < 40 {
		boxWidth = 40
	}

	var sb strings.Builder
	sb.WriteString(overlayTitleStyle.Render(p.title))
	if p.filter != "" {
		sb.WriteString(overlayHelpStyle.Render("  filter: " + p.filter))
	}
	sb.WriteString("\n")

	if len(p.filtered) == 0 {
		sb.WriteString(overlayHelpStyle.Render("  no matches"))
		sb.WriteString("\n")
	}

	start := 0
	if p.selected >= pickerMaxVisible {
		start = p.selected - pickerMaxVisible + 1
	}
	end := start + pickerMaxVisible
	if end > len(p.filtered) {
		end = len(p.filtered)
	}

	for i := start; i < end; i++ {
		item := p.items[p.filtered[i]]
		prefix := "  "
		if i == p.selected {
			prefix = "> "
		}
		line := prefix + pickerItemStyle.Bold(i == p.selected).Render(item.Title)
		if item.Detail != "" {
			line += "  " + pickerDetailStyle.Render(item.Detail)
		}
		if i == p.selected {
			line = lipgloss.NewStyle().
				Background(pickerBg).
				Width(boxWidth - 4).
				Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if len(p.filtered) > end {
		sb.WriteString(overlayHelpStyle.Render("  ... and more. Keep typing to filter."))
		sb.WriteString("\n")
	}
	sb.WriteString(overlayHelpStyle.Render("↑/↓ move • Enter pick • Esc cancel"))

	return overlayBoxStyle.Width(boxWidth).Render(sb.String())
}
