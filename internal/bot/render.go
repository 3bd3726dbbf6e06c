package bot

import (
	"fmt"
	"html"
	"strings"

	"jokeboard/internal/jokelist"

	"gopkg.in/telebot.v4"
)

const (
	uniqueUp    = "up"
	uniqueDown  = "down"
	uniqueLock  = "lock"
	uniqueMore  = "more"
	uniqueReset = "reset"
)

const loadingText = "⏳ Fetching jokes…"

// render turns a snapshot into the HTML message body and its inline
// keyboard: one row of vote and lock buttons per joke, numbered like the
// text, then the list controls. An idle list renders like an empty one so
// the reader always has a button to fill it.
func render(snap jokelist.Snapshot) (string, *telebot.ReplyMarkup) {
	menu := &telebot.ReplyMarkup{}

	switch snap.Status {
	case jokelist.StatusLoading:
		return loadingText, menu

	case jokelist.StatusFailed:
		var b strings.Builder
		b.WriteString("<b>Could not fetch jokes.</b>\n")
		if snap.Err != nil {
			fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(snap.Err.Error()))
		}
		b.WriteString("\nTap “Try Again” to retry.")
		menu.Inline(menu.Row(menu.Data("🔄 Try Again", uniqueMore)))
		return b.String(), menu
	}

	if len(snap.Jokes) == 0 {
		menu.Inline(menu.Row(menu.Data("🔄 Get New Jokes", uniqueMore)))
		return "No jokes yet.", menu
	}

	var b strings.Builder
	b.WriteString("<b>Jokes</b>\n")
	rows := make([]telebot.Row, 0, len(snap.Jokes)+1)
	for i, j := range snap.Jokes {
		n := i + 1
		fmt.Fprintf(&b, "\n<b>%d.</b> <code>%+d</code> %s\n%s\n", n, j.Votes, lockGlyph(j.Locked), html.EscapeString(j.Text))
		rows = append(rows, menu.Row(
			menu.Data(fmt.Sprintf("%d 👍", n), uniqueUp, j.ID),
			menu.Data(fmt.Sprintf("%d 👎", n), uniqueDown, j.ID),
			menu.Data(fmt.Sprintf("%d %s", n, lockGlyph(j.Locked)), uniqueLock, j.ID),
		))
	}
	rows = append(rows, menu.Row(
		menu.Data("🔄 Get New Jokes", uniqueMore),
		menu.Data("♻️ Reset Votes", uniqueReset),
	))
	menu.Inline(rows...)

	return b.String(), menu
}

func lockGlyph(locked bool) string {
	if locked {
		return "🔒"
	}
	return "🔓"
}

const helpText = "<b>Help</b>\n\n" +
	"Commands:\n" +
	"- /start - Show your jokes\n" +
	"- /jokes - Show your jokes\n" +
	"- /more - Replace the unlocked jokes\n" +
	"- /reset - Reset all votes\n" +
	"- /help - Show this help message\n\n" +
	"Under the list: 👍 and 👎 vote, 🔓 locks a joke so /more keeps it."
