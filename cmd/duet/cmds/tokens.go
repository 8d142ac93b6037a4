package cmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/duet/pkg/tokens"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token helpers",
	}

	countCmd := &cobra.Command{
		Use:   "count [text...]",
		Short: "Count the tokens of a text, read from stdin or --file when no text is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			codec, _ := cmd.Flags().GetString("codec")
			file, _ := cmd.Flags().GetString("file")

			input, err := readInput(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			var counter *tokens.Counter
			if codec != "" {
				counter, err = tokens.NewCounterForEncoding(tokenizer.Encoding(codec))
			} else {
				counter, err = tokens.NewCounter(model)
			}
			if err != nil {
				return err
			}

			count, err := counter.Count(input)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Model: %s\n", model)
			_, _ = fmt.Fprintf(w, "Codec: %s\n", counter.Encoding())
			_, _ = fmt.Fprintf(w, "Total tokens: %d\n", count)
			return nil
		},
	}
	countCmd.Flags().String("model", "gpt-4", "Model used for encoding")
	countCmd.Flags().String("codec", "", "Codec used for encoding, overrides --model")
	countCmd.Flags().StringP("file", "f", "", "Read the text from a file")

	cmd.AddCommand(countCmd)
	return cmd
}

func readInput(stdin io.Reader, file string, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" && file != "-" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrapf(err, "could not read %s", file)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "could not read stdin")
	}
	return string(b), nil
}
