package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hylla/cotiza/internal/domain"
)

// markdownRenderer renders markdown for terminal views and recreates the renderer when wrap width changes.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown input into ANSI-styled terminal text with the requested wrap width.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// quoteMarkdown describes one quote for the detail panel.
func quoteMarkdown(q domain.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", q.Number)

	status := q.Status.BoardStatus().Label()
	if !q.Status.Valid() {
		status = fmt.Sprintf("%s (stored as %q)", status, string(q.Status))
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", status)
	fmt.Fprintf(&b, "- **Client:** %s\n", q.ClientID)
	if !q.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "- **Expires:** %s\n", q.ExpiresAt.Format("2006-01-02"))
	}
	b.WriteString("\n")

	if len(q.Items) > 0 {
		b.WriteString("| Item | Qty | Unit | Amount |\n|---|---:|---:|---:|\n")
		for _, item := range q.Items {
			desc := item.Description
			if desc == "" {
				desc = item.ProductID
			}
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
				strings.ReplaceAll(desc, "|", "/"),
				item.Quantity,
				item.UnitPrice.StringFixed(2),
				item.Amount().StringFixed(2),
			)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Subtotal **%s** · Tax **%s** · Total **%s**\n",
		q.Subtotal.StringFixed(2), q.Tax.StringFixed(2), q.Total.StringFixed(2))
	if notes := strings.TrimSpace(q.Notes); notes != "" {
		fmt.Fprintf(&b, "\n%s\n", notes)
	}
	return b.String()
}
