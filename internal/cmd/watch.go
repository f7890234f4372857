package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatwoot/ticketsync/internal/config"
	"github.com/chatwoot/ticketsync/internal/directory"
	"github.com/chatwoot/ticketsync/internal/engine"
	"github.com/chatwoot/ticketsync/internal/events"
	"github.com/chatwoot/ticketsync/internal/messages"
	"github.com/chatwoot/ticketsync/internal/socket"
	"github.com/chatwoot/ticketsync/internal/ticketsync"
	"github.com/chatwoot/ticketsync/internal/validation"
)

// snapshot is what watch prints whenever the visible state changes.
type snapshot struct {
	Time     string `json:"time"`
	Unread   int    `json:"unread"`
	Tickets  int    `json:"tickets"`
	Filtered *int   `json:"filtered,omitempty"`
	Socket   string `json:"socket"`
}

func newWatchCmd() *cobra.Command {
	var (
		ff       filterFlags
		open     []string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep tickets and unread counts in sync and print changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			account, err := loadAccount()
			if err != nil {
				return err
			}
			tunables, err := config.LoadSync()
			if err != nil {
				return err
			}
			client, err := newClient(account)
			if err != nil {
				return err
			}
			pushURL, err := account.PushURL()
			if err != nil {
				return err
			}
			if err := validation.ValidateSocketURL(pushURL); err != nil {
				return fmt.Errorf("invalid socket URL: %w", err)
			}
			openIDs, err := validation.ParseIDList(open)
			if err != nil {
				return fmt.Errorf("--open: %w", err)
			}

			dir := directory.New(client, tunables.DirectoryTTL)
			f, err := ff.build(func(refs []string) ([]int, error) { return dir.ResolveAll(ctx, refs) })
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			header := http.Header{}
			header.Set("Authorization", "Bearer "+account.APIToken)

			eng := engine.New(client, engine.Options{
				Socket: socket.Config{
					URL:            pushURL,
					Header:         header,
					ReconnectDelay: tunables.ReconnectDelay,
					MaxAttempts:    tunables.MaxReconnectAttempts,
					PingInterval:   tunables.PingInterval,
					PingTimeout:    tunables.PingTimeout,
					RoomBatchSize:  tunables.RoomBatchSize,
				},
				Sync: ticketsync.Options{
					Scope:       scopeFor(account),
					Concurrency: tunables.FetchConcurrency,
					DedupWindow: tunables.DedupWindow,
					Notifier:    stderrNotifier(errOut),
				},
				Policy: engine.SenderPolicy{
					ViewerID:       account.ViewerID,
					SystemSenderID: account.SystemSenderID,
					Operators:      dir,
				},
				Directory: dir,
			})
			// A working push connection means the backend is reachable again.
			eng.Socket().OnOpen(func(context.Context) { client.ResetCircuitBreaker() })

			var printMu sync.Mutex
			events.On(eng.Router(), events.TypeMessage, func(_ context.Context, m messages.Message) error {
				if !slices.Contains(openIDs, m.TicketID) {
					return nil
				}
				printMu.Lock()
				defer printMu.Unlock()
				return printMessage(out, m)
			})

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			if err := eng.Start(runCtx); err != nil {
				return err
			}
			if !f.IsZero() {
				if err := eng.ApplyFilter(runCtx, f); err != nil {
					cancel()
					_ = eng.Wait()
					return err
				}
			}
			for _, id := range openIDs {
				if err := eng.OpenTicket(runCtx, id); err != nil {
					_, _ = fmt.Fprintf(errOut, "Warning: %v\n", err)
				}
			}

			done := make(chan error, 1)
			go func() { done <- eng.Wait() }()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			var last *snapshot
			for {
				select {
				case err := <-done:
					return err
				case <-ticker.C:
					logRateLimit(client)
					snap := takeSnapshot(eng, !f.IsZero())
					if last != nil && sameCounts(*last, snap) {
						continue
					}
					last = &snap
					printMu.Lock()
					err := printSnapshot(out, snap)
					printMu.Unlock()
					if err != nil {
						return err
					}
				}
			}
		},
	}
	ff.register(cmd)
	cmd.Flags().StringSliceVar(&open, "open", nil, "Open these tickets and stream their messages")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "How often to check for changes")
	return cmd
}

func takeSnapshot(eng *engine.Engine, filtered bool) snapshot {
	snap := snapshot{
		Time:    time.Now().UTC().Format(time.RFC3339),
		Unread:  eng.Unread(),
		Tickets: len(eng.Tickets()),
		Socket:  eng.Socket().State().String(),
	}
	if filtered {
		n := len(eng.FilteredTickets())
		snap.Filtered = &n
	}
	return snap
}

func sameCounts(a, b snapshot) bool {
	if a.Unread != b.Unread || a.Tickets != b.Tickets || a.Socket != b.Socket {
		return false
	}
	if (a.Filtered == nil) != (b.Filtered == nil) {
		return false
	}
	return a.Filtered == nil || *a.Filtered == *b.Filtered
}

func printSnapshot(w io.Writer, s snapshot) error {
	if flags.JSON {
		return printJSON(w, s)
	}
	line := fmt.Sprintf("%s unread=%d tickets=%d socket=%s", s.Time, s.Unread, s.Tickets, s.Socket)
	if s.Filtered != nil {
		line += fmt.Sprintf(" filtered=%d", *s.Filtered)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func printMessage(w io.Writer, m messages.Message) error {
	if flags.JSON {
		return printJSON(w, m)
	}
	body := m.Message
	if body == "" {
		body = "[" + m.MType + "]"
	}
	_, err := fmt.Fprintf(w, "#%d %s sender=%d: %s\n", m.TicketID, m.TimeSent, m.SenderID, truncate(body, 120))
	return err
}

func stderrNotifier(w io.Writer) ticketsync.NotifierFuncs {
	return ticketsync.NotifierFuncs{
		OnFetchFailed: func(view ticketsync.View, err error) {
			_, _ = fmt.Fprintf(w, "Warning: %s refresh failed: %v\n", view, err)
		},
		OnConnectionFailed: func(err error) {
			_, _ = fmt.Fprintf(w, "Error: connection lost: %v\n", err)
		},
	}
}
