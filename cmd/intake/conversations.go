package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/intake/internal/engine"
)

type styles struct {
	header lipgloss.Style
	title  lipgloss.Style
	id     lipgloss.Style
	count  lipgloss.Style
	date   lipgloss.Style
	active lipgloss.Style
	user   lipgloss.Style
	bot    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		id:     r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		count:  r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		date:   r.NewStyle().Foreground(lipgloss.Color("243")),
		active: r.NewStyle().Foreground(lipgloss.Color("42")),
		user:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("135")),
		bot:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
	}
}

func newConversationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations [id]",
		Short: "List conversations, or print one transcript",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				for _, c := range snap.Conversations {
					if c.ID == args[0] {
						printTranscript(out, c)
						return nil
					}
				}
				return fmt.Errorf("%w: %s", engine.ErrNotFound, args[0])
			}
			printConversations(out, snap)
			return nil
		},
	}
}

func printConversations(out io.Writer, snap engine.Snapshot) {
	st := newStyles(out)
	fmt.Fprintln(out, st.header.Render(fmt.Sprintf("%d conversation(s)", len(snap.Conversations))))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "\tID\tTitle\tMessages\tDate\tLast message")
	for _, c := range snap.Conversations {
		marker := ""
		if c.ID == snap.ActiveID {
			marker = st.active.Render("*")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			marker,
			st.id.Render(c.ID),
			st.title.Render(c.Title),
			st.count.Render(strconv.Itoa(len(c.Messages))),
			st.date.Render(c.Date),
			oneLine(c.LastMessage, 40),
		)
	}
	w.Flush()
}

func printTranscript(out io.Writer, c engine.Conversation) {
	st := newStyles(out)
	fmt.Fprintln(out, st.header.Render(c.Title), st.date.Render(c.Date))
	for _, m := range c.Messages {
		label := st.bot.Render("bot")
		if m.Role == engine.RoleUser {
			label = st.user.Render("you")
		}
		fmt.Fprintf(out, "%s: %s\n", label, m.Content)
	}
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
