package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/velric/velric-server/internal/client"
	"github.com/velric/velric-server/internal/integrity"
)

type rootOptions struct {
	server  string
	token   string
	drafts  string
	verbose bool
}

func defaultDraftsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "velric-drafts.db"
	}
	return filepath.Join(dir, "velric", "drafts.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "velricctl",
		Short: "Draft and submit Velric missions",
		Long: `velricctl keeps a local draft of your mission code and submits it to a
Velric server with your session token.

Environment:
  VELRIC_SERVER  server base URL (default http://localhost:8080)
  VELRIC_TOKEN   bearer token from /api/auth/login`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("VELRIC_SERVER", "http://localhost:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("VELRIC_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.drafts, "drafts", defaultDraftsPath(), "path to the local drafts database")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log tracker events to stderr")

	cmd.AddCommand(
		newDraftCmd(opts),
		newSubmitCmd(opts),
		newWhoamiCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(errOut io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) client() (*client.Client, error) {
	if o.token == "" {
		return nil, errors.New("no token: pass --token or set VELRIC_TOKEN")
	}
	return client.New(o.server, o.token, nil), nil
}

func (o *rootOptions) openDrafts() (*integrity.SQLiteDrafts, error) {
	if dir := filepath.Dir(o.drafts); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating drafts directory: %w", err)
		}
	}
	return integrity.OpenSQLiteDrafts(o.drafts)
}

// readArg returns inline if set, else the contents of path. "-" reads stdin.
func readArg(cmd *cobra.Command, inline, path string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}

func newDraftCmd(opts *rootOptions) *cobra.Command {
	var code, file, language string

	cmd := &cobra.Command{
		Use:   "draft <missionId>",
		Short: "Save code and language as the local draft for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readArg(cmd, code, file)
			if err != nil {
				return err
			}
			if body == "" && language == "" {
				return errors.New("nothing to save: pass --code, --file or --language")
			}

			drafts, err := opts.openDrafts()
			if err != nil {
				return err
			}
			defer drafts.Close()

			ctx := cmd.Context()
			tracker := integrity.NewTracker(args[0], drafts, integrity.WithLogger(opts.logger(cmd.ErrOrStderr())))
			if err := tracker.Mount(ctx); err != nil {
				return err
			}
			if body != "" {
				if err := tracker.Edit(ctx, body); err != nil {
					return fmt.Errorf("saving code draft: %w", err)
				}
			}
			if language != "" {
				if err := tracker.SetLanguage(ctx, language); err != nil {
					return fmt.Errorf("saving language draft: %w", err)
				}
			}

			sig := tracker.Signal()
			fmt.Fprintf(cmd.OutOrStdout(), "draft saved for mission %s (%s, %d bytes)\n", args[0], sig.Language, len(sig.Code))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "code to save")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read code from a file (- for stdin)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "language of the draft")
	return cmd
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var text, textFile, userID string
	var tabSwitches int

	cmd := &cobra.Command{
		Use:   "submit <missionId>",
		Short: "Submit the written answer together with the saved code draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tabSwitches < 0 {
				return errors.New("--tab-switches cannot be negative")
			}
			answer, err := readArg(cmd, text, textFile)
			if err != nil {
				return err
			}
			// Checked before any request goes out.
			if strings.TrimSpace(answer) == "" {
				return integrity.ErrEmptySubmission
			}

			api, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if userID == "" {
				if userID, err = whoami(ctx, api); err != nil {
					return err
				}
			}

			drafts, err := opts.openDrafts()
			if err != nil {
				return err
			}
			defer drafts.Close()

			out := cmd.OutOrStdout()
			tracker := integrity.NewTracker(args[0], drafts,
				integrity.WithLogger(opts.logger(cmd.ErrOrStderr())),
				integrity.WithCue(func() { fmt.Fprint(cmd.ErrOrStderr(), "\a") }),
			)
			if err := tracker.Mount(ctx); err != nil {
				return err
			}
			for range tabSwitches {
				tracker.Visibility(integrity.Hidden)
				tracker.Visibility(integrity.Visible)
			}
			if tracker.Signal().State == integrity.StateWarned {
				fmt.Fprintf(out, "warning: %d tab switch(es) recorded; each one lowers the score\n", tabSwitches)
				tracker.Acknowledge()
			}

			receipt, err := tracker.Submit(ctx, api, userID, answer)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) {
					return fmt.Errorf("server rejected submission (%d): %s", apiErr.Status, apiErr.Message)
				}
				return err
			}

			sig := tracker.Signal()
			fmt.Fprintf(out, "submitted %s (tab switches: %d)\n", receipt.ID, sig.TabSwitchCount)
			fmt.Fprintf(out, "feedback: %s/api/feedback/%s\n", strings.TrimRight(opts.server, "/"), receipt.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "written answer")
	cmd.Flags().StringVar(&textFile, "text-file", "", "read the written answer from a file (- for stdin)")
	cmd.Flags().StringVar(&userID, "user-id", "", "submit as this user id (defaults to the token's user)")
	cmd.Flags().IntVar(&tabSwitches, "tab-switches", 0, "tab switches to report for this attempt")
	return cmd
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the token resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := opts.client()
			if err != nil {
				return err
			}
			p, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			role := "candidate"
			if p.IsRecruiter {
				role = "recruiter"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", p.ID, p.Email, role)
			return nil
		},
	}
}

func whoami(ctx context.Context, api *client.Client) (string, error) {
	p, err := api.Me(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving user: %w", err)
	}
	return p.ID, nil
}
