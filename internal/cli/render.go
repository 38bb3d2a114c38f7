package cli

import (
	"fmt"
	"io"
	"strings"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/view"
)

// renderView writes a plain-text screen for the terminal client.
func renderView(w io.Writer, v view.View) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n== %s [%s] ==\n", v.Title, v.Status)

	switch v.Status {
	case domain.StatusWaiting:
		wv := v.Waiting
		for _, m := range wv.Members {
			fmt.Fprintf(&b, "  %s%s%s\n", m.Name, marker(m.IsHost, " (host)"), marker(m.IsSelf, " (you)"))
		}
		if wv.PlayersNeeded > 0 {
			fmt.Fprintf(&b, "Waiting for %d more player(s), %d/%d joined\n", wv.PlayersNeeded, len(wv.Members), wv.MaxPlayers)
		} else {
			b.WriteString("Ready to start\n")
		}
		if wv.CanStart {
			b.WriteString("Type 'start' to begin\n")
		}
	case domain.StatusInProgress:
		rv := v.Round
		fmt.Fprintf(&b, "Question %d/%d: %s\n", rv.QuestionIndex+1, rv.QuestionCount, rv.Question)
		for _, o := range rv.Options {
			state := ""
			switch {
			case o.Correct:
				state = " ✓"
			case o.Incorrect:
				state = " ✗"
			}
			fmt.Fprintf(&b, "  %d) %s%s\n", o.Index+1, o.Text, state)
		}
		fmt.Fprintf(&b, "%d/%d answered\n", rv.AnsweredCount, len(rv.Players))
		if !rv.HasAnswered && v.SelfID != "" {
			b.WriteString("Type an option number to answer\n")
		}
	case domain.StatusCompleted:
		b.WriteString("Final standings:\n")
		for _, s := range v.Results.Standings {
			fmt.Fprintf(&b, "  %d. %s%s %d\n", s.Rank, s.Name, marker(s.IsSelf, " (you)"), s.Score)
		}
	}
	_, _ = io.WriteString(w, b.String())
}

func marker(on bool, text string) string {
	if on {
		return text
	}
	return ""
}
