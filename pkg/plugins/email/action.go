package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/generate"
	"github.com/HarshModi2005/realityspiral/pkg/logger"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
)

const sendEmailTemplate = `Recent messages:
{{recentMessages}}

Current request:
{{message}}

Extract the e-mail to send: "to" lists the recipient addresses, "subject" is
the subject line and "text" is the plain text body written for the request.`

type sendEmailContent struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

var sendEmailSchema = generate.ObjectSchema(
	generate.Field{Name: "to", Schema: generate.Array(generate.String("recipient address"), "recipients")},
	generate.Field{Name: "subject", Schema: generate.String("subject line")},
	generate.Field{Name: "text", Schema: generate.String("plain text body")},
)

// Plugin exposes SEND_EMAIL over client. A nil client makes the action build
// an outgoing manager from the runtime settings on each call.
func Plugin(client *Client) actions.Plugin {
	return actions.Plugin{
		Name:        "email",
		Description: "Send and receive e-mail over SMTP and IMAP",
		Actions:     []actions.Action{&SendEmailAction{client: client}},
	}
}

type SendEmailAction struct {
	client *Client
}

func (*SendEmailAction) Name() string      { return "SEND_EMAIL" }
func (*SendEmailAction) Similes() []string { return []string{"EMAIL", "SEND_MAIL"} }

func (*SendEmailAction) Description() string {
	return "Sends an e-mail composed from the conversation"
}

func (a *SendEmailAction) Validate(_ context.Context, rt actions.Runtime) bool {
	if a.client != nil && a.client.CanSend() {
		return true
	}
	cfg, err := ValidateOutgoing(rt)
	return err == nil && cfg != nil
}

type sender interface {
	Send(ctx context.Context, opts SendOptions) (*Response, error)
}

func (a *SendEmailAction) sender(rt actions.Runtime) (sender, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg, err := ValidateOutgoing(rt)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrSendNotInitialized
	}
	return NewOutgoingManager(*cfg)
}

func (a *SendEmailAction) Handle(ctx context.Context, rt actions.Runtime, req *memory.Memory, state *actions.State, _ map[string]any, cb actions.Callback) (*actions.Result, error) {
	state, err := actions.PrepareState(ctx, rt, req, state)
	if err != nil {
		return nil, err
	}
	var c sendEmailContent
	if err := generate.Object(ctx, rt.Provider(), rt.Model(), generate.Render(sendEmailTemplate, state), sendEmailSchema, &c, nil); err != nil {
		logger.ErrorCF("email", "Invalid email content", map[string]any{"error": err.Error()})
		return nil, err
	}

	s, err := a.sender(rt)
	if err == nil {
		var resp *Response
		if resp, err = s.Send(ctx, SendOptions{To: c.To, Subject: c.Subject, Text: c.Text}); err == nil {
			text := fmt.Sprintf("Email sent successfully to %s! Message ID: %s", strings.Join(resp.Accepted, ", "), resp.MessageID)
			actions.Emit(cb, actions.Content{Text: text})
			return &actions.Result{Text: text, Data: map[string]any{
				"message_id": resp.MessageID,
				"accepted":   resp.Accepted,
				"rejected":   resp.Rejected,
				"subject":    c.Subject,
			}}, nil
		}
	}

	errText := fmt.Sprintf("Error sending email to %s. Please try again.", strings.Join(c.To, ", "))
	logger.ErrorCF("email", errText, map[string]any{"error": err.Error()})
	actions.Emit(cb, actions.Content{Text: errText})
	return nil, fmt.Errorf("%s: %w", errText, err)
}
