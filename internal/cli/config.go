package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/silence-remover/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Settings are stored as YAML in ~/.config/silence-remover/config.yaml
($XDG_CONFIG_HOME is honored). Each key can also be set through an
environment variable, SILENCE_REMOVER_<KEY> with dashes as underscores,
which takes precedence over the file. Flags take precedence over both.

Supported keys:
  ` + strings.Join(config.Keys, "\n  "),
		Example: `  silence-remover config set noise-tolerance -40
  silence-remover config set max-threads 8
  silence-remover config get padding
  silence-remover config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

The value is checked against the key's type and range before it is saved.`,
		Example: `  silence-remover config set padding 0.1
  silence-remover config set temp-dir ~/scratch`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value.

Prints the effective value to stdout, or nothing if not set. An
environment variable wins over the settings file.`,
		Example: `  silence-remover config get noise-tolerance`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.Context(), env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows both values from the settings file and environment variable overrides.`,
		Example: `  silence-remover config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(cmd.Context(), env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if key == "temp-dir" {
		value = config.ExpandPath(value)
		if err := config.WritableDir(value); err != nil {
			return fmt.Errorf("invalid temp-dir: %w", err)
		}
	}

	if err := env.Settings.Set(key, value); err != nil {
		return err
	}

	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(ctx context.Context, env *Env, key string) error {
	value, err := env.Settings.Get(key)
	if err != nil {
		return err
	}

	fromEnv, err := envValues(ctx, env)
	if err != nil {
		return err
	}
	if v, ok := fromEnv[key]; ok {
		value = v
	}

	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// runConfigList handles the "config list" command.
func runConfigList(ctx context.Context, env *Env) error {
	data, err := env.Settings.List()
	if err != nil {
		return err
	}
	fromEnv, err := envValues(ctx, env)
	if err != nil {
		return err
	}
	for key, v := range fromEnv {
		data[key] = v + " (from env)"
	}

	if len(data) == 0 {
		fmt.Fprintln(env.Stdout, "No configuration set.")
		fmt.Fprintln(env.Stdout, "\nAvailable settings:")
		for _, key := range config.Keys {
			fmt.Fprintf(env.Stdout, "  %s\n", key)
		}
		return nil
	}

	for _, key := range config.Keys {
		if v, ok := data[key]; ok {
			fmt.Fprintf(env.Stdout, "%s=%s\n", key, v)
		}
	}
	return nil
}

// envValues renders the settings given by environment variables, by key.
func envValues(ctx context.Context, env *Env) (map[string]string, error) {
	o, err := config.LoadEnv(ctx, env.LookupEnv)
	if err != nil {
		return nil, err
	}
	return o.Values()
}
