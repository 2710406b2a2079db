package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage ssoctl configuration and contexts",
	Aliases: []string{"cfg"},
}

var getContextsCmd = &cobra.Command{
	Use:     "get-contexts",
	Short:   "Display the configured contexts",
	Aliases: []string{"get"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cliConfig.Contexts) == 0 {
			fmt.Println("No contexts defined.")
			return nil
		}
		out, err := yaml.Marshal(redactedContexts())
		if err != nil {
			return fmt.Errorf("failed to marshal contexts to YAML: %w", err)
		}
		fmt.Print(string(out))
		fmt.Printf("Current context: %s\n", cliConfig.CurrentContext)
		return nil
	},
}

var useContextCmd = &cobra.Command{
	Use:     "use-context CONTEXT_NAME",
	Short:   "Sets the current context",
	Aliases: []string{"use"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cliConfig.UseContext(args[0]); err != nil {
			return err
		}
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Printf("Switched to context %q.\n", cliConfig.CurrentContext)
		return nil
	},
}

var setContextCmd = &cobra.Command{
	Use:     "set-context CONTEXT_NAME",
	Short:   "Creates or updates a context and makes it current",
	Aliases: []string{"set"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		if server == "" {
			return errors.New("--server flag is required")
		}
		ctx := cliConfig.SetContext(args[0], server)
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Printf("Context %q set to %s.\n", ctx.Name, ctx.ServerEndpoint)
		return nil
	},
}

func redactedContexts() map[string]map[string]string {
	out := make(map[string]map[string]string, len(cliConfig.Contexts))
	for name, c := range cliConfig.Contexts {
		entry := map[string]string{"server_endpoint": c.ServerEndpoint}
		if c.Username != "" {
			entry["username"] = c.Username
		}
		if c.UserAuthToken != "" {
			entry["user_auth_token"] = "REDACTED"
		}
		out[name] = entry
	}
	return out
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(getContextsCmd, useContextCmd, setContextCmd)
	setContextCmd.Flags().String("server", "", "server endpoint, e.g. http://localhost:8080")
}
