package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a collection interactively",
	Long: `Start a line-oriented conversation with a collection. Each line is one
question. Enter an empty line, "exit" or Ctrl-D to stop.

Examples:
  docchat chat -u alice -c geo`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	turns, err := a.turnController(ctx)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	fmt.Fprintln(p.w, p.hint(fmt.Sprintf("chatting with %s/%s, empty line to quit", userID, collectionID)))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(p.w, p.label("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(p.w)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" || question == "exit" {
			return nil
		}

		res, err := turns.Turn(ctx, userID, collectionID, question)
		if err != nil {
			// A failed turn leaves the thread as it was; keep chatting.
			fmt.Fprintf(p.w, "%s %v\n", p.failure("error:"), err)
			continue
		}
		fmt.Fprint(p.w, p.label("docchat> "))
		printTurn(p, res, verbose)
	}
}
