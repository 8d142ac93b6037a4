package cmds

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question, optionally continuing an existing thread",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("empty question")
			}

			threadID, _ := cmd.Flags().GetString("thread")
			printThread := threadID == ""
			if threadID == "" {
				threadID = uuid.NewString()
			}

			app, err := OpenApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := newSession(ctx, app, threadID, cmd.OutOrStdout(), outputOptionsFromFlags(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			err = s.Run(ctx, func(ctx context.Context) error {
				return s.Turn(ctx, question)
			})
			if err != nil {
				return err
			}

			if printThread {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\nthread: %s\n", threadID)
			}
			return nil
		},
	}
	cmd.Flags().String("thread", "", "Thread to continue (a new one is created when empty)")
	addOutputFlags(cmd)
	return cmd
}
