package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

type printerConfig struct {
	showQuestion bool
	printFinal   bool
}

type PrinterOption func(*printerConfig)

// WithShowQuestion prints the reformulated question before the answer.
func WithShowQuestion(show bool) PrinterOption {
	return func(c *printerConfig) {
		c.showQuestion = show
	}
}

// WithPrintFinal prints the final text of answers that were not streamed. Enabled by default.
func WithPrintFinal(enabled bool) PrinterOption {
	return func(c *printerConfig) {
		c.printFinal = enabled
	}
}

// StepPrinterFunc returns a watermill handler that streams answer deltas to w as they arrive.
func StepPrinterFunc(name string, w io.Writer, options ...PrinterOption) func(msg *message.Message) error {
	cfg := &printerConfig{printFinal: true}
	for _, o := range options {
		o(cfg)
	}
	isFirst := true
	sawPartial := false

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
			return err

		case *EventReformulated:
			if !cfg.showQuestion {
				break
			}
			suffix := ""
			if p_.Fallback {
				suffix = " (unchanged)"
			}
			if _, err := fmt.Fprintf(w, "> %s%s\n", p_.Question, suffix); err != nil {
				return err
			}

		case *EventPartialCompletion:
			sawPartial = true
			if isFirst && name != "" {
				isFirst = false
				if _, err = fmt.Fprintf(w, "\n%s: \n", name); err != nil {
					return err
				}
			}
			if _, err = fmt.Fprintf(w, "%s", p_.Delta); err != nil {
				return err
			}

		case *EventFinal:
			isFirst = true
			text := ""
			if !sawPartial {
				if !cfg.printFinal {
					break
				}
				text = p_.Text
				if name != "" {
					text = fmt.Sprintf("\n%s: \n%s", name, text)
				}
			}
			sawPartial = false
			if !strings.HasSuffix(p_.Text, "\n") {
				text += "\n"
			}
			if _, err = fmt.Fprint(w, text); err != nil {
				return err
			}

		case *EventInterrupt:
			isFirst = true
			sawPartial = false
			if _, err := fmt.Fprintf(w, "\n[interrupted]\n"); err != nil {
				return err
			}

		case *EventInfo:
			if _, err := fmt.Fprintf(w, "\n[i] %s\n", p_.Message); err != nil {
				return err
			}
			if len(p_.Data) > 0 {
				v_, err := yaml.Marshal(p_.Data)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s\n", v_); err != nil {
					return err
				}
			}

		case *EventPartialCompletionStart:
		}

		return nil
	}
}
