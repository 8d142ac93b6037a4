package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/duet/pkg/checkpoint"
	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/render"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [thread]",
		Short: "List threads, or print the messages of one thread",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output, _ := cmd.Flags().GetString("output")
			deleteThread, _ := cmd.Flags().GetBool("delete")
			match, _ := cmd.Flags().GetString("match")

			app, err := OpenApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()

			if len(args) == 0 {
				lister, ok := app.Store.(checkpoint.Lister)
				if !ok {
					return errors.Errorf("store %s cannot list threads", app.Settings.Store.Type)
				}
				ids, err := lister.ListThreads(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if match != "" {
						matching, err := glob.Match(match, id)
						if err != nil {
							return errors.Wrapf(err, "invalid pattern %q", match)
						}
						if !matching {
							continue
						}
					}
					_, _ = fmt.Fprintln(w, id)
				}
				return nil
			}

			threadID := args[0]
			if deleteThread {
				deleter, ok := app.Store.(checkpoint.Deleter)
				if !ok {
					return errors.Errorf("store %s cannot delete threads", app.Settings.Store.Type)
				}
				return deleter.Delete(ctx, threadID)
			}

			ts, err := app.Store.Load(ctx, threadID)
			if err != nil {
				return err
			}
			return printMessages(ctx, w, ts.Messages, output)
		},
	}
	cmd.Flags().StringP("output", "o", "text", "Output format (text, plain, yaml, json, table)")
	cmd.Flags().String("match", "", "Only list threads whose id matches this glob")
	cmd.Flags().Bool("delete", false, "Delete the thread instead of printing it")
	return cmd
}

func printMessages(ctx context.Context, w io.Writer, messages conversation.Conversation, output string) error {
	rows := make([]types.Row, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		content, reasoning := m.Text, ""
		if m.Role == conversation.RoleAssistant {
			reasoning, content = render.SplitReasoning(m.Text)
		}
		if output == "plain" {
			plain, err := render.PlainText(content)
			if err != nil {
				return err
			}
			content = plain
		}
		rows = append(rows, types.NewRow(
			types.MRP("time", m.Time.Format("2006-01-02 15:04:05")),
			types.MRP("role", string(m.Role)),
			types.MRP("content", content),
			types.MRP("reasoning", reasoning),
		))
	}

	if output != "text" && output != "plain" && output != "" {
		return printRows(ctx, w, rows, output)
	}
	for _, row := range rows {
		t, _ := row.Get("time")
		role, _ := row.Get("role")
		content, _ := row.Get("content")
		if _, err := fmt.Fprintf(w, "[%s] %s:\n%s\n\n", t, role, content); err != nil {
			return err
		}
	}
	return nil
}
