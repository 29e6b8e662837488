package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manthann3/mobile-recommendation-chat-agent/internal/assistant"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/domain"
)

// chatService is the part of the assistant the interactive commands use.
type chatService interface {
	Chat(ctx context.Context, req assistant.Request) (*assistant.Reply, error)
	Context(ctx context.Context, id string) (domain.Conversation, error)
	Clear(ctx context.Context, id string) (assistant.ClearResult, error)
}

func newAskCmd() *cobra.Command {
	var conversation string

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask a single question",
		Example: `  phone-chat ask "best camera phone under 30k"
  phone-chat ask --conversation demo "compare Samsung vs Redmi" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			return ask(ctx, components.Assistant, conversation, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", domain.DefaultConversationID, "conversation id")
	return cmd
}

func newChatCmd() *cobra.Command {
	var conversation string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `chat keeps one conversation open so follow-up questions inherit budget and
camera priority. Type /clear to reset it, /context to see what is remembered
and /exit to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := buildComponents(ctx)
			if err != nil {
				return err
			}
			defer components.Close()

			ui.Info("Conversation %q. Type /help for commands.", conversation)
			return runREPL(ctx, cmd.InOrStdin(), components.Assistant, conversation)
		},
	}

	cmd.Flags().StringVar(&conversation, "conversation", "cli", "conversation id")
	return cmd
}

func ask(ctx context.Context, svc chatService, conversation, message string) error {
	spin := ui.NewSpinner("Searching the catalog...")
	spin.Start()
	reply, err := svc.Chat(ctx, assistant.Request{Message: message, ConversationID: conversation})
	spin.Stop()

	if err != nil {
		ui.Error("%s", userMessage(err))
		return err
	}
	return renderReply(reply)
}

// runREPL reads one message per line until EOF, /exit or cancellation.
func runREPL(ctx context.Context, in io.Reader, svc chatService, conversation string) error {
	scanner := bufio.NewScanner(in)
	for {
		ui.Prompt()
		if !scanner.Scan() {
			fmt.Fprintln(ui.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/help":
			ui.Info("/clear resets the conversation, /context shows it, /exit quits")
		case "/clear":
			res, err := svc.Clear(ctx, conversation)
			if err != nil {
				ui.Error("clear failed: %v", err)
				continue
			}
			ui.Success("%s", res.Message)
		case "/context":
			conv, err := svc.Context(ctx, conversation)
			if err != nil {
				ui.Error("context lookup failed: %v", err)
				continue
			}
			renderConversation(conv)
		default:
			// Errors are already shown; the session continues.
			if err := ask(ctx, svc, conversation, line); errors.Is(err, context.Canceled) {
				return nil
			}
		}
	}
}

func renderReply(reply *assistant.Reply) error {
	if outputJSON {
		return writeJSON(ui.out, reply)
	}

	ui.Assistant(reply.Response)
	switch outcomeOf(reply) {
	case assistant.OutcomeRejected:
		ui.Warning("message was not about phones")
	case assistant.OutcomeNoMatch:
		ui.Warning("no phones matched")
	default:
		if reply.PhonesFound != nil {
			ui.Info("%d phones considered", *reply.PhonesFound)
		}
	}
	return nil
}

func renderConversation(conv domain.Conversation) {
	if outputJSON {
		_ = writeJSON(ui.out, conv)
		return
	}
	prev := "None"
	if len(conv.PreviousPhones) > 0 {
		prev = strings.Join(conv.PreviousPhones, ", ")
	}
	prefs := conv.UserPreferences
	ui.Table([]string{"FIELD", "VALUE"}, [][]string{
		{"previous phones", prev},
		{"last query", conv.LastQuery},
		{"max budget", fmt.Sprint(prefs.MaxBudget)},
		{"camera priority", fmt.Sprint(prefs.PriorityCamera)},
		{"battery priority", fmt.Sprint(prefs.PriorityBattery)},
		{"display priority", fmt.Sprint(prefs.PriorityDisplay)},
	})
}

// outcomeOf recovers the pipeline outcome from a reply body.
func outcomeOf(reply *assistant.Reply) string {
	switch {
	case reply.Allowed != nil && !*reply.Allowed:
		return assistant.OutcomeRejected
	case reply.DatabaseResults != nil && !*reply.DatabaseResults:
		return assistant.OutcomeNoMatch
	default:
		return assistant.OutcomeAnswered
	}
}

// errorOutcome maps a Chat error to its outcome label.
func errorOutcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return assistant.OutcomeCancelled
	case domain.IsType(err, domain.ErrorTypeValidation):
		return assistant.OutcomeInvalid
	case domain.IsType(err, domain.ErrorTypeRateLimit):
		return assistant.OutcomeRateLimited
	default:
		return assistant.OutcomeFailed
	}
}

// userMessage is the text the HTTP API would return for err.
func userMessage(err error) string {
	switch errorOutcome(err) {
	case assistant.OutcomeInvalid:
		return assistant.MsgMessageRequired
	case assistant.OutcomeRateLimited:
		return assistant.MsgTooManyRequests
	case assistant.OutcomeCancelled:
		return "cancelled"
	default:
		if verbose {
			return fmt.Sprintf("%s: %v", assistant.MsgQueryFailed, err)
		}
		return assistant.MsgQueryFailed
	}
}
