package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Makepad-fr/tada/internal/model"
)

const maxTitle = 80

// ProgressBar renders a bar with a done/total counter.
func ProgressBar(done, total, width int) string {
	den := total
	if den <= 0 {
		den = 1
	}
	if width < 5 {
		width = 5
	}
	filled := done * width / den
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

// Header is the counts line shown above the list.
func Header(t Theme, l model.List) string {
	d, p := l.Stats()
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(l),
	)
}

// RenderList draws the whole list in a panel for one-shot output.
// Entries are numbered 1-based in display order; when group is set,
// pending entries are listed before done ones under their own headings.
func RenderList(t Theme, l model.List, group bool, now time.Time) string {
	d, _ := l.Stats()
	lines := []string{
		Header(t, l),
		t.Muted.Render(ProgressBar(d, len(l), 28)),
		"",
	}
	if group {
		lines = append(lines, groupLines(t, l, now)...)
	} else {
		lines = append(lines, flatLines(t, l, now)...)
	}
	lines = append(lines, "", t.Muted.Render(`Tip: add with tada add "Buy milk"`))
	return t.Panel(strings.Join(lines, "\n"))
}

type numbered struct {
	n  int
	it model.Item
}

func flatLines(t Theme, l model.List, now time.Time) []string {
	entries := make([]numbered, len(l))
	for i, it := range l {
		entries[i] = numbered{i + 1, it}
	}
	return entryLines(t, entries, now, "no items")
}

func groupLines(t Theme, l model.List, now time.Time) []string {
	var pend, done []numbered
	for i, it := range l {
		if it.Done {
			done = append(done, numbered{i + 1, it})
		} else {
			pend = append(pend, numbered{i + 1, it})
		}
	}
	lines := []string{t.Accent.Render("Pending")}
	lines = append(lines, entryLines(t, pend, now, "(none)")...)
	lines = append(lines, "", t.Accent.Render("Done"))
	return append(lines, entryLines(t, done, now, "(none)")...)
}

func entryLines(t Theme, entries []numbered, now time.Time, empty string) []string {
	if len(entries) == 0 {
		return []string{t.Muted.Render(empty)}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		text := truncate(e.it.Text, maxTitle)
		if e.it.Done {
			text = t.DoneText.Render(text)
		}
		out = append(out, fmt.Sprintf("%s %s %s %s",
			t.Muted.Render(fmt.Sprintf("%2d.", e.n)),
			t.Box(e.it.Done),
			text,
			t.Muted.Render("· "+Age(e.it, now)),
		))
	}
	return out
}

// Age describes when it was created relative to now, e.g. "3 minutes ago".
func Age(it model.Item, now time.Time) string {
	return humanize.RelTime(it.CreatedAt(), now, "ago", "from now")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
