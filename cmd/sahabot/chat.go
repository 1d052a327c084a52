package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/ergcontrols/sahabot/internal/convo"
)

var (
	chatUserStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	chatBotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	chatHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long:  `Runs the full pipeline against the local workbook without any chat adapter. Useful for trying prompts and inspecting what would be written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runChat(ctx, eng, os.Stdin, os.Stdout)
	},
}

func runChat(ctx context.Context, eng *engine, in io.Reader, out io.Writer) error {
	conversationID := fmt.Sprintf("cli-%d", time.Now().Unix())
	actor := "cli"
	name := "Operator"
	if u, err := user.Current(); err == nil && u.Username != "" {
		actor = u.Username
		name = u.Username
	}

	fmt.Fprintln(out, chatBotStyle.Render("Sahabot local session. Type '/exit' to quit."))

	reader := bufio.NewReader(in)
	turn := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(out, chatUserStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		turn++
		token := fmt.Sprintf("cli:%s:%d", conversationID, turn)

		// "evet" and "iptal" go through the normal text path; the emoji
		// shortcuts map straight onto the button actions.
		if kind, ok := chatAction(text); ok {
			printReply(out, eng.ctrl.HandleAction(ctx, convo.Action{
				Kind:           kind,
				ConversationID: conversationID,
				ActorID:        actor,
				SenderName:     name,
				DedupToken:     token,
			}))
			continue
		}

		reply := eng.ctrl.HandleTurn(ctx, convo.Incoming{
			ConversationID: conversationID,
			ActorID:        actor,
			SenderName:     name,
			Text:           text,
			DedupToken:     token,
		})
		printReply(out, reply)
	}
}

func chatAction(text string) (convo.ActionKind, bool) {
	switch text {
	case "👍", "+1":
		return convo.ActionFeedbackUp, true
	case "👎", "-1":
		return convo.ActionFeedbackDown, true
	}
	return "", false
}

func printReply(out io.Writer, reply convo.Reply) {
	if reply.Text == "" {
		return
	}
	fmt.Fprintln(out, chatBotStyle.Render(reply.Text))

	switch {
	case reply.OfferConfirm && reply.Language == "en":
		fmt.Fprintln(out, chatHintStyle.Render("(yes / cancel)"))
	case reply.OfferConfirm:
		fmt.Fprintln(out, chatHintStyle.Render("(evet / iptal)"))
	case reply.OfferFeedback:
		fmt.Fprintln(out, chatHintStyle.Render("(👍 / 👎)"))
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
