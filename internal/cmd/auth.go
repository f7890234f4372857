package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatwoot/ticketsync/internal/config"
	"github.com/chatwoot/ticketsync/internal/validation"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthUseCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var account config.Account
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials and viewer scope in the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account.BaseURL = strings.TrimRight(strings.TrimSpace(account.BaseURL), "/")
			if account.BaseURL == "" {
				return errors.New("--base-url is required")
			}
			if err := validation.ValidateBaseURL(account.BaseURL); err != nil {
				return fmt.Errorf("invalid --base-url: %w", err)
			}
			if account.SocketURL != "" {
				if err := validation.ValidateSocketURL(account.SocketURL); err != nil {
					return fmt.Errorf("invalid --socket-url: %w", err)
				}
			}
			if account.APIToken == "" {
				account.APIToken = strings.TrimSpace(os.Getenv(config.EnvAPIToken))
			}
			if account.APIToken == "" {
				return errors.New("--token is required (or set TICKETSYNC_API_TOKEN)")
			}
			if account.ViewerID <= 0 {
				return errors.New("--viewer-id must be a positive integer")
			}
			if err := config.SaveProfile(flags.Profile, account); err != nil {
				return err
			}
			profile := strings.TrimSpace(flags.Profile)
			if profile == "" {
				profile = config.DefaultProfile
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q for %s\n", profile, account.BaseURL)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&account.BaseURL, "base-url", "", "Backend base URL")
	fs.StringVar(&account.SocketURL, "socket-url", "", "Push socket URL (default: derived from --base-url)")
	fs.StringVar(&account.APIToken, "token", "", "API token")
	fs.IntVar(&account.ViewerID, "viewer-id", 0, "Your technician id")
	fs.IntVar(&account.SystemSenderID, "system-sender-id", 0, "Sender id used by automated messages")
	fs.StringSliceVar(&account.Groups, "group", nil, "Groups you can access (default: all)")
	fs.StringSliceVar(&account.Workflows, "workflow", nil, "Workflows you can access (default: all)")
	fs.BoolVar(&account.OnlyOwn, "only-own", false, "Only see tickets assigned to you")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credentials of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := config.ActiveProfile(flags.Profile)
			if err != nil {
				return err
			}
			if profile == config.EnvSource {
				return errors.New("credentials come from TICKETSYNC_BASE_URL; unset it to log out")
			}
			if err := config.DeleteProfile(profile); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged out of profile %q\n", profile)
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := loadAccount()
			if err != nil {
				return err
			}
			profile, err := config.ActiveProfile(flags.Profile)
			if err != nil {
				return err
			}
			pushURL, _ := account.PushURL()
			view := map[string]any{
				"profile":    profile,
				"base_url":   account.BaseURL,
				"socket_url": pushURL,
				"viewer_id":  account.ViewerID,
				"token":      maskToken(account.APIToken),
				"groups":     account.Groups,
				"workflows":  account.Workflows,
				"only_own":   account.OnlyOwn,
			}
			profiles, err := config.ListProfiles()
			if err != nil {
				slog.Debug("profiles unavailable", "error", err)
			} else {
				view["profiles"] = profiles
			}
			if flags.JSON {
				return printJSON(cmd.OutOrStdout(), view)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Profile:    %s\n", profile)
			_, _ = fmt.Fprintf(out, "Base URL:   %s\n", account.BaseURL)
			_, _ = fmt.Fprintf(out, "Socket URL: %s\n", pushURL)
			_, _ = fmt.Fprintf(out, "Viewer:     %d\n", account.ViewerID)
			_, _ = fmt.Fprintf(out, "Token:      %s\n", maskToken(account.APIToken))
			if len(profiles) > 1 {
				_, _ = fmt.Fprintf(out, "Profiles:   %s\n", strings.Join(profiles, ", "))
			}
			return nil
		},
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Make a stored profile the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.UseProfile(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Using profile %q\n", strings.TrimSpace(args[0]))
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
