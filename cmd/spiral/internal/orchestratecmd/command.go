package orchestratecmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/HarshModi2005/realityspiral/cmd/spiral/internal"
	"github.com/HarshModi2005/realityspiral/pkg/actions"
	"github.com/HarshModi2005/realityspiral/pkg/memory"
	"github.com/HarshModi2005/realityspiral/pkg/orchestrate"
)

func NewOrchestrateCommand() *cobra.Command {
	var (
		message string
		room    string
		user    string
	)

	cmd := &cobra.Command{
		Use:     "orchestrate",
		Aliases: []string{"o", "run"},
		Short:   "Plan and run a sequence of actions for a request",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, err := internal.Bootstrap(ctx, cfg, internal.BootstrapOptions{RequireLLM: true})
			if err != nil {
				return err
			}
			defer app.Close()

			r := &runner{app: app, room: room, user: user, out: cmd.OutOrStdout()}
			if message != "" {
				return r.run(ctx, message)
			}
			return r.interactive(ctx)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Run a single request (non-interactive mode)")
	cmd.Flags().StringVarP(&room, "room", "r", "cli:default", "Room the request and its steps are recorded in")
	cmd.Flags().StringVarP(&user, "user", "u", "cli", "User id recorded on the request")

	return cmd
}

type runner struct {
	app  *internal.App
	room string
	user string
	out  io.Writer
}

func (r *runner) run(ctx context.Context, text string) error {
	req := &memory.Memory{
		UserID:  r.user,
		AgentID: r.app.Runtime.AgentID(),
		RoomID:  r.room,
		Content: memory.Content{Text: text, Source: "cli"},
	}
	if err := r.app.Store.CreateMemory(ctx, req); err != nil {
		return err
	}

	opts := r.app.Orchestrate
	opts.Observer = orchestrate.ObserverFunc(func(e orchestrate.Event) {
		switch e.Type {
		case orchestrate.EventPlanGenerated:
			fmt.Fprintf(r.out, "Plan: %d step(s)\n", len(e.Steps))
			for i, s := range e.Steps {
				fmt.Fprintf(r.out, "  %d. %s - %s\n", i+1, s.ActionName, s.UserText)
			}
		case orchestrate.EventStepStarted:
			fmt.Fprintf(r.out, "-> %s\n", e.Action)
		}
	})

	cb := func(c actions.Content) {
		fmt.Fprintf(r.out, "%s %s\n", internal.Logo, c.Text)
	}

	out, err := orchestrate.NewSequencer(r.app.Runtime, r.app.Registry, opts).Run(ctx, req, nil, cb)
	if out != nil {
		fmt.Fprintf(r.out, "\nCompleted %d of %d step(s)\n", out.Completed, len(out.Plan.Steps))
	}
	return err
}

func (r *runner) interactive(ctx context.Context) error {
	fmt.Fprintf(r.out, "%s Interactive mode (Ctrl+C to exit)\n\n", internal.Logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", internal.Logo),
		HistoryFile:     filepath.Join(os.TempDir(), ".spiral_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}

		if err := r.run(ctx, input); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
		fmt.Fprintln(r.out)
	}
}
