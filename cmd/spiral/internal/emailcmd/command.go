package emailcmd

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/plugins/email"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

// RoomID is the room received mail is recorded in.
const RoomID = "email:inbox"

func NewEmailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send mail or watch the configured inbox",
	}
	cmd.AddCommand(newSendCommand(), newListenCommand())
	return cmd
}

func newSendCommand() *cobra.Command {
	var (
		to      []string
		subject string
		text    string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a plain-text e-mail through the outgoing server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(to) == 0 {
				return errors.New("at least one --to address is required")
			}
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := internal.Bootstrap(cmd.Context(), cfg, internal.BootstrapOptions{StartEmail: true})
			if err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Email.Send(cmd.Context(), email.SendOptions{To: to, Subject: subject, Text: text})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Email sent successfully to %s! Message ID: %s\n", strings.Join(resp.Accepted, ", "), resp.MessageID)
			if len(resp.Rejected) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected: %s\n", strings.Join(resp.Rejected, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient address (repeatable)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject line")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Message body")

	return cmd
}

func newListenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print new messages from the incoming mailbox and record them in memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := internal.Bootstrap(ctx, cfg, internal.BootstrapOptions{StartEmail: true})
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			err = app.Email.Receive(func(m email.Mail) {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Date.Format("2006-01-02 15:04"), m.From, m.Subject)
				rec := &memory.Memory{
					UserID:  m.From,
					AgentID: app.Runtime.AgentID(),
					RoomID:  RoomID,
					Content: memory.Content{
						Text:     m.Text,
						Source:   "email",
						Metadata: map[string]any{"uid": m.UID, "subject": m.Subject},
					},
				}
				if err := app.Store.CreateMemory(ctx, rec); err != nil {
					logger.WarnCF("email", "Failed to record message", map[string]any{"error": err.Error()})
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s Listening for new mail (Ctrl+C to exit)\n", internal.Logo)
			<-ctx.Done()
			return nil
		},
	}

	return cmd
}
