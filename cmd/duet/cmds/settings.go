package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/duet/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and check pipeline settings",
	}

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printDocument(cmd.OutOrStdout(), settings.Schema(), "json")
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Check a settings file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrapf(err, "could not open %s", args[0])
			}
			defer func() {
				_ = f.Close()
			}()

			violations, err := settings.ValidateYAML(f)
			if err != nil {
				return err
			}
			for _, v := range violations {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", v)
			}
			if len(violations) > 0 {
				return errors.Errorf("%s has %d problem(s)", args[0], len(violations))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings after config, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := LoadPipelineSettings()
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			return printDocument(cmd.OutOrStdout(), redactSettings(ps), output)
		},
	}
	showCmd.Flags().StringP("output", "o", "yaml", "Output format (yaml, json)")

	cmd.AddCommand(schemaCmd, checkCmd, showCmd)
	return cmd
}

func redactSettings(ps *settings.PipelineSettings) *settings.PipelineSettings {
	ret := ps.Clone()
	for _, ss := range []*settings.StepSettings{ret.Response, ret.Reformulate} {
		if ss != nil && ss.Chat != nil && ss.Chat.APIKey != "" {
			ss.Chat.APIKey = "***"
		}
	}
	return ret
}

// printDocument writes a single nested document. Tabular listings go through printRows.
func printDocument(w io.Writer, v interface{}, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() {
			_ = enc.Close()
		}()
		return enc.Encode(v)
	default:
		return errors.Errorf("unknown output format %q", output)
	}
}
