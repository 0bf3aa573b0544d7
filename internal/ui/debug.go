package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/logging"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// eventRecord is one line in the debug overlay's recent events.
type eventRecord struct {
	Time time.Time
	Kind string
	Msg  string
	Err  string
}

// describe maps messages worth recording to an eventRecord.
func describe(msg tea.Msg, now time.Time) (eventRecord, bool) {
	r := eventRecord{Time: now}
	switch m := msg.(type) {
	case PageDone:
		r.Kind = "page.done"
		if m.Err == nil {
			r.Msg = fmt.Sprintf("%s page %d, %d items", m.Page.Filter, m.Page.Number, len(m.Page.Items))
		}
		r.Err = errString(m.Err)
	case PollDone:
		r.Kind = "poll.done"
		r.Msg = fmt.Sprintf("%d added", m.Added)
		r.Err = errString(m.Err)
	case ExpandDone:
		r.Kind = "expand.done"
		r.Msg = fmt.Sprintf("item %d, %d comments", m.ItemID, len(m.Comments))
		if m.More {
			r.Msg += ", more"
		}
		r.Err = errString(m.Err)
	case feed.LiveUpdateAppended:
		r.Kind = "live.appended"
		r.Msg = fmt.Sprintf("%s +%d (%d hidden)", m.Filter, len(m.Items), m.Hidden)
	case feed.FilterChanged:
		r.Kind = "filter.changed"
		r.Msg = string(m.Filter)
	case feed.CycleFailed:
		r.Kind = "cycle.failed"
		r.Msg = string(m.Stream)
		r.Err = errString(m.Err)
	default:
		return eventRecord{}, false
	}
	return r, true
}

func errString(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, feed.ErrInFlight):
		return "busy"
	case errors.Is(err, feed.ErrFilterChanged):
		return "stale"
	}
	return err.Error()
}

// debugOverlay renders the debug panel showing engine stats and recent events.
// Pure function with no side effects. Returns empty string if recent is nil.
func debugOverlay(stats feed.Stats, recent *ring[eventRecord], width, height int) string {
	if recent == nil {
		return ""
	}

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Engine"))
	lines = append(lines, fmt.Sprintf("  Session:    %s", logging.SessionID()))
	lines = append(lines, fmt.Sprintf("  Filter:     %s", stats.Filter))
	lines = append(lines, fmt.Sprintf("  Pages:      %d (established %v, exhausted %v)",
		stats.Page, stats.Established, stats.Exhausted))
	lines = append(lines, fmt.Sprintf("  In flight:  page %v, poll %v", stats.PageBusy, stats.PollBusy))
	lines = append(lines, fmt.Sprintf("  Live:       %d visible / %d total", stats.LiveVisible, stats.LiveTotal))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", recent.Len(), recent.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent.Last(20) {
		line := fmt.Sprintf("  %6s  %-15s", formatAge(time.Since(e.Time)), e.Kind)
		if e.Msg != "" {
			line += "  " + truncate(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncate(e.Err, 30)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("?") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
