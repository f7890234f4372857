package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/directory"
	"github.com/chatwoot/ticketsync/internal/tickets"
	"github.com/chatwoot/ticketsync/internal/ticketsync"
	"github.com/chatwoot/ticketsync/internal/validation"
)

// filterFlags are the filter options shared by tickets list and watch.
type filterFlags struct {
	workflows    []string
	technicians  []string
	groups       []string
	actionNeeded string
	createdFrom  string
	createdTo    string
	sentFrom     string
	sentTo       string
	where        string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.workflows, "workflow", nil, "Only tickets in these workflows")
	fs.StringSliceVar(&f.technicians, "technician", nil, "Only tickets owned by these technicians (id or name)")
	fs.StringSliceVar(&f.groups, "group", nil, "Only tickets in these groups")
	fs.StringVar(&f.actionNeeded, "action-needed", "", "Filter on action_needed (true|false)")
	fs.StringVar(&f.createdFrom, "created-from", "", "Created on or after (YYYY-MM-DD, yesterday, 7d ago)")
	fs.StringVar(&f.createdTo, "created-to", "", "Created on or before (YYYY-MM-DD)")
	fs.StringVar(&f.sentFrom, "sent-from", "", "Last message on or after (YYYY-MM-DD, yesterday, 7d ago)")
	fs.StringVar(&f.sentTo, "sent-to", "", "Last message on or before (YYYY-MM-DD)")
	fs.StringVar(&f.where, "where", "", "JQ predicate evaluated per ticket (e.g. '.unseen_count > 0')")
}

// build turns the flags into a Filter. Technician names are resolved
// through resolve, which may hit the network.
func (f *filterFlags) build(resolve func([]string) ([]int, error)) (tickets.Filter, error) {
	var out tickets.Filter
	out.Workflows = f.workflows
	out.Groups = f.groups
	out.Expr = strings.TrimSpace(f.where)

	if len(f.technicians) > 0 {
		ids, err := resolve(f.technicians)
		if err != nil {
			return tickets.Filter{}, fmt.Errorf("--technician: %w", err)
		}
		out.TechnicianIDs = ids
	}
	if v := strings.TrimSpace(f.actionNeeded); v != "" {
		switch strings.ToLower(v) {
		case "true", "yes", "1":
			b := true
			out.ActionNeeded = &b
		case "false", "no", "0":
			b := false
			out.ActionNeeded = &b
		default:
			return tickets.Filter{}, fmt.Errorf("--action-needed must be true or false, got %q", v)
		}
	}
	dates := []struct {
		flag  string
		value string
		dst   *time.Time
	}{
		{"--created-from", f.createdFrom, &out.CreatedFrom},
		{"--created-to", f.createdTo, &out.CreatedTo},
		{"--sent-from", f.sentFrom, &out.SentFrom},
		{"--sent-to", f.sentTo, &out.SentTo},
	}
	for _, d := range dates {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		ts, err := parseDay(d.value, time.Now())
		if err != nil {
			return tickets.Filter{}, fmt.Errorf("%s must be a date (YYYY-MM-DD, today, 3d ago): %w", d.flag, err)
		}
		*d.dst = ts
	}
	return out, nil
}

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"t"},
		Short:   "List and manage tickets",
	}
	cmd.AddCommand(newTicketsListCmd())
	cmd.AddCommand(newTicketsResolveCmd())
	cmd.AddCommand(newTicketsDeleteCmd())
	return cmd
}

func newTicketsListCmd() *cobra.Command {
	var (
		ff   filterFlags
		hard bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Fetch every page of tickets visible to the viewer",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			account, err := loadAccount()
			if err != nil {
				return err
			}
			client, err := newClient(account)
			if err != nil {
				return err
			}
			defer logRateLimit(client)
			dir := directory.New(client, 0)
			f, err := ff.build(func(refs []string) ([]int, error) { return dir.ResolveAll(ctx, refs) })
			if err != nil {
				return err
			}

			opts := ticketsync.Options{Scope: scopeFor(account)}
			if hard {
				opts.ListType = api.ListHard
			}
			orch := ticketsync.New(client, opts)
			if f.IsZero() {
				if err := orch.RefreshAll(ctx); err != nil {
					return err
				}
				return printTickets(cmd.OutOrStdout(), orch.Tickets())
			}
			if err := orch.ApplyFilter(ctx, f); err != nil {
				return err
			}
			return printTickets(cmd.OutOrStdout(), orch.FilteredTickets())
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&hard, "full", false, "Request full ticket records instead of summaries")
	return cmd
}

func newTicketsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Clear a ticket's action-needed flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := validation.ParsePositiveInt(args[0], "ticket ID")
			if err != nil {
				return err
			}
			account, err := loadAccount()
			if err != nil {
				return err
			}
			client, err := newClient(account)
			if err != nil {
				return err
			}
			orch := ticketsync.New(client, ticketsync.Options{Scope: scopeFor(account)})
			if err := orch.ClearActionNeeded(cmd.Context(), id); err != nil {
				return err
			}
			if flags.JSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "action_needed": false})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ticket %d resolved\n", id)
			return nil
		},
	}
}

func newTicketsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>[,<id>...]",
		Short: "Delete tickets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := validation.ParseIDList(args)
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete %d tickets without --yes", len(ids))
			}
			account, err := loadAccount()
			if err != nil {
				return err
			}
			client, err := newClient(account)
			if err != nil {
				return err
			}
			orch := ticketsync.New(client, ticketsync.Options{Scope: scopeFor(account)})
			if err := orch.BulkDelete(cmd.Context(), ids); err != nil {
				return err
			}
			if flags.JSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": ids})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d tickets\n", len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}
