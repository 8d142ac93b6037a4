package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/duet/pkg/checkpoint"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /history   print the messages of this thread
  /thread    print the thread id
  /exit      leave the chat (Ctrl-D works too)
`

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively on a thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			threadID, _ := cmd.Flags().GetString("thread")
			if threadID == "" {
				threadID = uuid.NewString()
			}

			app, err := OpenApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()
			s, err := newSession(ctx, app, threadID, w, outputOptionsFromFlags(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			_, _ = fmt.Fprintf(w, "%s\nthread: %s\n\n%s\n", app.Header(ctx), threadID, chatHelp)

			return s.Run(ctx, func(ctx context.Context) error {
				return chatLoop(ctx, s, cmd.InOrStdin(), w)
			})
		},
	}
	cmd.Flags().String("thread", "", "Thread to continue (a new one is created when empty)")
	addOutputFlags(cmd)
	return cmd
}

func chatLoop(ctx context.Context, s *session, in io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		_, _ = fmt.Fprint(w, "\nyou> ")

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(w)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/thread":
			_, _ = fmt.Fprintln(w, s.threadID)
			continue
		case "/help":
			_, _ = fmt.Fprint(w, chatHelp)
			continue
		case "/history":
			ts, err := s.app.Store.Load(ctx, s.threadID)
			if err != nil {
				return err
			}
			if err := printMessages(ctx, w, ts.Messages, "text"); err != nil {
				return err
			}
			continue
		}

		if err := s.Turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, checkpoint.ErrStoreUnavailable) {
				return err
			}
			_, _ = fmt.Fprintf(w, "\n[error] %v\n", err)
		}
	}
}
