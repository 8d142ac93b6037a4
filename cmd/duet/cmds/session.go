package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/duet/pkg/conversation"
	"github.com/go-go-golems/duet/pkg/events"
	"github.com/go-go-golems/duet/pkg/pipeline"
	"github.com/go-go-golems/duet/pkg/render"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const eventTopic = "chat"

type outputOptions struct {
	ShowQuestion  bool
	ShowReasoning bool
	Markdown      bool
	RawEvents     bool
	Style         string
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("show-question", true, "Print the reformulated question before the answer")
	cmd.Flags().Bool("show-reasoning", false, "Print the hidden reasoning of the answer, if any")
	cmd.Flags().Bool("markdown", isatty.IsTerminal(os.Stdout.Fd()), "Render unstreamed answers as markdown")
	cmd.Flags().Bool("raw-events", false, "Print every pipeline event as JSON instead of the answer")
	cmd.Flags().String("style", "auto", "Markdown style (auto, dark, light, notty)")
}

func outputOptionsFromFlags(cmd *cobra.Command) outputOptions {
	ret := outputOptions{}
	ret.ShowQuestion, _ = cmd.Flags().GetBool("show-question")
	ret.ShowReasoning, _ = cmd.Flags().GetBool("show-reasoning")
	ret.Markdown, _ = cmd.Flags().GetBool("markdown")
	ret.RawEvents, _ = cmd.Flags().GetBool("raw-events")
	ret.Style, _ = cmd.Flags().GetString("style")
	return ret
}

// session runs turns of one thread, printing events through a watermill router as they happen.
type session struct {
	app      *App
	router   *events.EventRouter
	executor *pipeline.Executor
	threadID string
	w        io.Writer
	opts     outputOptions
}

func newSession(ctx context.Context, app *App, threadID string, w io.Writer, opts outputOptions) (*session, error) {
	routerOptions := []events.EventRouterOption{events.WithRawOutput(w)}
	if viper.GetBool("verbose") {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}

	if opts.RawEvents {
		router.AddHandler("raw", eventTopic, router.DumpRawEvents)
	} else {
		router.AddHandler("printer", eventTopic, events.StepPrinterFunc("", w,
			events.WithShowQuestion(opts.ShowQuestion),
			events.WithPrintFinal(!opts.Markdown),
		))
	}

	executor, err := app.BuildExecutor(ctx, events.NewWatermillSink(router.Publisher, eventTopic))
	if err != nil {
		_ = router.Close()
		return nil, err
	}

	return &session{
		app:      app,
		router:   router,
		executor: executor,
		threadID: threadID,
		w:        w,
		opts:     opts,
	}, nil
}

func (s *session) Close() {
	_ = s.router.Close()
}

// Run starts the router and calls f once it is running. The router stops when f returns.
func (s *session) Run(ctx context.Context, f func(ctx context.Context) error) error {
	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return s.router.Run(ctx)
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-s.router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return f(ctx)
	})

	return eg.Wait()
}

// Turn sends question to the thread and prints the answer.
func (s *session) Turn(ctx context.Context, question string) error {
	msg := conversation.NewUserMessage(question)

	var (
		out conversation.Conversation
		err error
	)
	if s.app.Settings.Stream {
		rs, err_ := s.executor.Stream(ctx, s.threadID, msg)
		if err_ != nil {
			return err_
		}
		out, err = rs.Wait()
	} else {
		out, err = s.executor.Run(ctx, s.threadID, msg)
	}
	if err != nil {
		if pipeline.IsRetryable(err) {
			return errors.Wrap(err, "no answer was saved, you can ask again")
		}
		return err
	}

	last := out.Last()
	if last == nil || last.Role != conversation.RoleAssistant || s.opts.RawEvents {
		return nil
	}
	return s.printAnswer(last.Text)
}

func (s *session) printAnswer(text string) error {
	reasoning, visible := render.SplitReasoning(text)
	if s.opts.ShowReasoning && reasoning != "" {
		if _, err := fmt.Fprintf(s.w, "\n--- reasoning ---\n%s\n-----------------\n", reasoning); err != nil {
			return err
		}
	}
	// streamed answers were printed as they arrived
	if s.app.Settings.Stream || !s.opts.Markdown {
		return nil
	}
	rendered, err := render.RenderMarkdown(visible, s.opts.Style)
	if err != nil {
		rendered = visible + "\n"
	}
	_, err = fmt.Fprint(s.w, rendered)
	return err
}
