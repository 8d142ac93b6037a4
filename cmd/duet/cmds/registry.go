package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/duet/pkg/registry"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
)

// withRegistry opens the registry for the duration of a single command.
func withRegistry(f func(cmd *cobra.Command, r registry.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		r, err := OpenRegistry()
		if err != nil {
			return err
		}
		defer func() {
			_ = r.Close()
		}()
		return f(cmd, r, args)
	}
}

func NewRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage providers, models and personalities",
	}

	addConfig := &cobra.Command{
		Use:   "add-config <provider>",
		Short: "Register the credentials of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			key, _ := cmd.Flags().GetString("api-key")
			env, _ := cmd.Flags().GetString("env-name")
			prompt, _ := cmd.Flags().GetBool("prompt")
			if prompt && key == "" {
				var err error
				key, err = askAPIKey(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0])
				if err != nil {
					return err
				}
			}
			if key == "" && env == "" {
				env = DefaultAPIEnvName(args[0])
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "reading the %s key from $%s\n", args[0], env)
			}
			return r.RegisterConfig(cmd.Context(), registry.ProviderConfig{
				Provider:   args[0],
				APIKey:     key,
				APIEnvName: env,
			})
		}),
	}
	addConfig.Flags().String("api-key", "", "API key, stored as is")
	addConfig.Flags().String("env-name", "", "Environment variable holding the API key (default <PROVIDER>_API_KEY)")
	addConfig.Flags().Bool("prompt", false, "Ask for the API key without echoing it")

	addModel := &cobra.Command{
		Use:   "add-model <provider> <model>",
		Short: "Register a model of a provider",
		Args:  cobra.ExactArgs(2),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			display, _ := cmd.Flags().GetString("display-name")
			if display == "" {
				display = args[1]
			}
			return r.RegisterModel(cmd.Context(), registry.ModelEntry{
				Provider:    args[0],
				ModelName:   args[1],
				DisplayName: display,
			})
		}),
	}
	addModel.Flags().String("display-name", "", "Name shown in the chat header")

	addPersonality := &cobra.Command{
		Use:   "add-personality <name> <description>",
		Short: "Register a personality",
		Args:  cobra.ExactArgs(2),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			return r.RegisterPersonality(cmd.Context(), registry.Personality{Name: args[0], Description: args[1]})
		}),
	}

	editPersonality := &cobra.Command{
		Use:   "edit-personality <name> <description>",
		Short: "Replace the description of a personality",
		Args:  cobra.ExactArgs(2),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			return r.EditPersonality(cmd.Context(), args[0], args[1])
		}),
	}

	rmPersonality := &cobra.Command{
		Use:   "rm-personality <name>",
		Short: "Delete a personality",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			return r.DeletePersonality(cmd.Context(), args[0])
		}),
	}

	rmModel := &cobra.Command{
		Use:   "rm-model <provider> <model>",
		Short: "Delete a model",
		Args:  cobra.ExactArgs(2),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			return r.DeleteModel(cmd.Context(), args[0], args[1])
		}),
	}

	rmConfig := &cobra.Command{
		Use:   "rm-config <provider>",
		Short: "Delete the credentials of a provider",
		Args:  cobra.ExactArgs(1),
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			return r.DeleteConfig(cmd.Context(), args[0])
		}),
	}

	list := &cobra.Command{
		Use:       "list <providers|models|configs|personalities>",
		Short:     "List registry entries",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"providers", "models", "configs", "personalities"},
		RunE: withRegistry(func(cmd *cobra.Command, r registry.Store, args []string) error {
			ctx := cmd.Context()
			output, _ := cmd.Flags().GetString("output")
			provider, _ := cmd.Flags().GetString("provider")

			var (
				rows []types.Row
				err  error
			)
			switch args[0] {
			case "providers":
				var providers []string
				providers, err = r.ListProviders(ctx)
				for _, p := range providers {
					rows = append(rows, types.NewRow(types.MRP("provider", p)))
				}
			case "models":
				var models []registry.ModelEntry
				models, err = r.ListModels(ctx, provider)
				for _, m := range models {
					rows = append(rows, types.NewRow(
						types.MRP("provider", m.Provider),
						types.MRP("display_name", m.DisplayName),
						types.MRP("model_name", m.ModelName),
					))
				}
			case "configs":
				var configs []registry.ProviderConfig
				configs, err = r.ListConfigs(ctx)
				rows = configRows(configs)
			case "personalities":
				var personalities []registry.Personality
				personalities, err = r.ListPersonalities(ctx)
				for _, p := range personalities {
					rows = append(rows, types.NewRow(
						types.MRP("name", p.Name),
						types.MRP("description", p.Description),
					))
				}
			default:
				return errors.Errorf("unknown registry table %q", args[0])
			}
			if err != nil {
				return err
			}
			return printRows(ctx, cmd.OutOrStdout(), rows, output)
		}),
	}
	list.Flags().StringP("output", "o", "yaml", "Output format (yaml, json, table)")
	list.Flags().String("provider", "", "Only list the models of this provider")

	cmd.AddCommand(addConfig, addModel, addPersonality, editPersonality,
		rmPersonality, rmModel, rmConfig, list)
	return cmd
}

// DefaultAPIEnvName derives the environment variable of a provider's key, e.g. GROQ_API_KEY.
func DefaultAPIEnvName(provider string) string {
	return strcase.ToScreamingSnake(provider) + "_API_KEY"
}

func askAPIKey(in io.Reader, out io.Writer, provider string) (string, error) {
	ui := &input.UI{
		Writer: out,
		Reader: in,
	}
	key, err := ui.Ask(fmt.Sprintf("API key for %s", provider), &input.Options{
		Required:  true,
		Mask:      true,
		HideOrder: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not read api key")
	}
	return strings.TrimSpace(key), nil
}

// configRows never carries the key itself, only whether one is stored.
func configRows(configs []registry.ProviderConfig) []types.Row {
	ret := make([]types.Row, 0, len(configs))
	for _, c := range configs {
		ret = append(ret, types.NewRow(
			types.MRP("provider", c.Provider),
			types.MRP("has_api_key", c.APIKey != ""),
			types.MRP("api_env_name", c.APIEnvName),
		))
	}
	return ret
}
