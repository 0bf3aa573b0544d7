package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
)

type rowKind int

const (
	rowHeader rowKind = iota
	rowItem
	rowComment
	rowNotice
)

// row is one logical line group in the stream. Only item rows are
// selectable; entry is their index into App.entries.
type row struct {
	kind    rowKind
	text    string
	item    *hn.Item
	live    bool
	comment feed.Comment
	entry   int
}

// buildRows lays out the live section followed by the paged section, with
// resolved comments under each expanded item.
func buildRows(a *App) []row {
	var rows []row
	entry := 0

	addItem := func(it *hn.Item, live bool) {
		rows = append(rows, row{kind: rowItem, item: it, live: live, entry: entry})
		entry++
		comments, expanded := a.comments[it.ID]
		for _, c := range comments {
			rows = append(rows, row{kind: rowComment, comment: c, entry: -1})
		}
		if expanded && len(comments) == 0 {
			rows = append(rows, row{kind: rowNotice, text: "no comments", entry: -1})
		}
		switch _, more := a.streams[it.ID]; {
		case a.expanding[it.ID]:
			rows = append(rows, row{kind: rowNotice, text: "loading comments…", entry: -1})
		case more:
			rows = append(rows, row{kind: rowNotice, text: "more replies, press m", entry: -1})
		}
	}

	if len(a.live) > 0 {
		header := fmt.Sprintf("Live · %d new", len(a.live)+a.liveHidden)
		if a.liveHidden > 0 {
			header += fmt.Sprintf(" (%d hidden, press a)", a.liveHidden)
		}
		rows = append(rows, row{kind: rowHeader, text: header, entry: -1})
		for _, it := range a.live {
			addItem(it, true)
		}
	}

	rows = append(rows, row{kind: rowHeader, text: fmt.Sprintf("Latest · %s · %d pages", a.filter, a.pages), entry: -1})
	for _, it := range a.items {
		addItem(it, false)
	}

	switch {
	case a.loading:
		rows = append(rows, row{kind: rowNotice, text: a.spinner.View() + " loading…", entry: -1})
	case a.exhausted && len(a.items) == 0:
		rows = append(rows, row{kind: rowNotice, text: "Nothing here yet.", entry: -1})
	case a.exhausted:
		rows = append(rows, row{kind: rowNotice, text: "No more items.", entry: -1})
	}
	return rows
}

// renderStream renders rows into at most height lines, scrolled so the
// selected entry is visible.
func renderStream(rows []row, cursor, width, height int) string {
	if height < 1 {
		height = 1
	}

	var lines []string
	cursorTop, cursorBottom := 0, 0
	for _, r := range rows {
		var block []string
		switch r.kind {
		case rowHeader:
			block = strings.Split(SectionHeader.Render(r.text), "\n")
		case rowNotice:
			block = []string{HelpStyle.Padding(0, 2).Render(r.text)}
		case rowItem:
			block = renderItem(r.item, r.live, r.entry == cursor, width)
			if r.entry == cursor {
				cursorTop = len(lines)
				cursorBottom = len(lines) + len(block)
			}
		case rowComment:
			block = renderComment(r.comment, width)
		}
		lines = append(lines, block...)
	}

	offset := calcScrollOffset(cursorTop, cursorBottom, height)
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	if offset > end {
		offset = end
	}
	return strings.Join(lines[offset:end], "\n")
}

// calcScrollOffset returns the first visible line so that the selected
// block [top, bottom) fits, preferring to keep the view anchored at 0.
func calcScrollOffset(top, bottom, height int) int {
	if bottom <= height {
		return 0
	}
	offset := bottom - height
	if offset > top {
		offset = top
	}
	return offset
}

// renderItem renders a title line and a byline.
func renderItem(it *hn.Item, live, selected bool, width int) []string {
	var prefix string
	if live {
		prefix += LiveBadge.Render("new")
	}
	if it.Kind != hn.KindStory {
		prefix += KindBadge.Render(string(it.Kind))
	}

	titleWidth := width - lipgloss.Width(prefix) - 4
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := truncate(it.DisplayTitle(), titleWidth)

	style := NormalItem
	if selected {
		style = SelectedItem
	}

	meta := fmt.Sprintf("%d points by %s · %s · %d comments",
		it.Score, it.Author(), formatAgeShort(it.Published()), it.CommentCount())
	if it.URL != "" {
		meta += " · " + hostOf(it.URL)
	}
	return []string{
		prefix + style.Render(title),
		"   " + MetaItem.Render(truncate(meta, width-3)),
	}
}

// renderComment renders a comment indented by its depth.
func renderComment(c feed.Comment, width int) []string {
	indent := strings.Repeat("  ", c.Depth+1)
	gutter := CommentRule.Render("│ ")
	textWidth := width - lipgloss.Width(indent) - 2
	if textWidth < 20 {
		textWidth = 20
	}

	header := indent + gutter + CommentAuthor.Render(c.Item.Author()) +
		MetaItem.Render(" · "+formatAgeShort(c.Item.Published()))
	out := []string{header}

	body := CommentText.Width(textWidth).Render(PlainText(c.Item.Text))
	for _, line := range strings.Split(body, "\n") {
		out = append(out, indent+gutter+line)
	}
	return out
}

// PlainText converts sanitized item HTML to terminal text. Paragraph
// tags become blank lines and links show their target.
func PlainText(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			s.SetText(href)
		}
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n\n")
	})
	return strings.TrimSpace(doc.Text())
}

func truncate(s string, width int) string {
	if width <= 3 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

func hostOf(rawURL string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

func formatAgeShort(published time.Time) string {
	if published.IsZero() {
		return "unknown"
	}
	age := time.Since(published)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// renderFilterTabs renders the filter selector with the active one marked.
func renderFilterTabs(active feed.Filter) string {
	var b strings.Builder
	for i, f := range feed.Filters {
		label := fmt.Sprintf("%d %s", i+1, f)
		if f == active {
			b.WriteString(FilterTabActive.Render(label))
		} else {
			b.WriteString(FilterTab.Render(label))
		}
	}
	return b.String()
}

// renderStatusBar renders the bottom status bar with key hints.
func renderStatusBar(position, total int, width int, keys []key.Binding) string {
	left := fmt.Sprintf(" %d/%d ", position, total)

	hints := make([]string, 0, len(keys))
	for _, k := range keys {
		h := k.Help()
		hints = append(hints, StatusBarKey.Render(h.Key)+StatusBarText.Render(":"+h.Desc))
	}
	right := strings.Join(hints, " ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + right)
}
