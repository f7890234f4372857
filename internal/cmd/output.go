package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chatwoot/ticketsync/internal/filter"
	"github.com/chatwoot/ticketsync/internal/tickets"
)

// printJSON writes v as indented JSON, applying --query first.
func printJSON(w io.Writer, v any) error {
	if flags.Query != "" {
		out, err := filter.Apply(v, flags.Query)
		if err != nil {
			return fmt.Errorf("invalid --query: %w", err)
		}
		v = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTickets(w io.Writer, list []tickets.Ticket) error {
	if flags.JSON {
		if list == nil {
			list = []tickets.Ticket{}
		}
		return printJSON(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tWORKFLOW\tGROUP\tTECH\tUNSEEN\tACTION\tLAST MESSAGE")
	for _, t := range list {
		action := ""
		if t.ActionNeeded {
			action = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			t.ID, t.Workflow, t.GroupTitle, t.TechnicianID, t.UnseenCount, action, truncate(t.LastMessage, 50))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
