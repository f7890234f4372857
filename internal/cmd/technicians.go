package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chatwoot/ticketsync/internal/api"
	"github.com/chatwoot/ticketsync/internal/directory"
)

func newTechniciansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "technicians [name]",
		Aliases: []string{"techs"},
		Short:   "List technicians, or resolve one by name",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			account, err := loadAccount()
			if err != nil {
				return err
			}
			client, err := newClient(account)
			if err != nil {
				return err
			}
			dir := directory.New(client, 0)

			if len(args) == 1 {
				id, err := dir.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				name, _ := dir.Name(id)
				if flags.JSON {
					return printJSON(cmd.OutOrStdout(), api.Technician{ID: id, Name: name})
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, name)
				return nil
			}

			techs, err := dir.Technicians(ctx)
			if err != nil {
				return err
			}
			if flags.JSON {
				if techs == nil {
					techs = []api.Technician{}
				}
				return printJSON(cmd.OutOrStdout(), techs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
			for _, t := range techs {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Email)
			}
			return tw.Flush()
		},
	}
	return cmd
}
