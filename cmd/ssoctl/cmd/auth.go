package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.pilab.hu/solosso/cmd/ssoctl/client"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the current context and save the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		currentCtx, err := cliConfig.Current()
		if err != nil {
			return err
		}
		if currentCtx.UserAuthToken != "" {
			return fmt.Errorf("already logged in to context '%s' as %s. Run 'ssoctl logout' first", currentCtx.Name, currentCtx.Username)
		}

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if username == "" {
			fmt.Print("Enter username: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
			username = strings.TrimSpace(line)
		}
		if password == "" {
			if password, err = readPassword("Enter password: "); err != nil {
				return err
			}
		}

		authClient, err := client.NewAuthClient(currentCtx)
		if err != nil {
			return err
		}
		resp, err := authClient.Login(cmd.Context(), username, password)
		if client.IsConflict(err) {
			return errors.New("this account is already logged in elsewhere")
		}
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		currentCtx.Username = username
		currentCtx.UserAuthToken = resp.Token
		if err := saveConfig(); err != nil {
			return fmt.Errorf("failed to save token to config: %w", err)
		}

		fmt.Printf("Login successful. Token saved for context '%s'.\n", currentCtx.Name)
		fmt.Printf("Logged in as: %s (ID: %s)\n", resp.Nickname, resp.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the current context and clear the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		currentCtx, err := cliConfig.Current()
		if err != nil {
			return err
		}
		if currentCtx.Username == "" {
			fmt.Println("Not logged in.")
			return nil
		}

		authClient, err := client.NewAuthClient(currentCtx)
		if err != nil {
			return err
		}
		if err := authClient.Logout(cmd.Context(), currentCtx.Username); err != nil {
			// Clear the local token anyway; the server keeps no state the CLI can fix.
			fmt.Fprintf(os.Stderr, "Server logout failed: %v. Clearing local token anyway.\n", err)
		}

		currentCtx.Username = ""
		currentCtx.UserAuthToken = ""
		if err := saveConfig(); err != nil {
			return fmt.Errorf("failed to clear token from config: %w", err)
		}

		fmt.Printf("Logged out from context '%s'.\n", currentCtx.Name)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the session behind the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		currentCtx, err := cliConfig.Current()
		if err != nil {
			return err
		}
		authClient, err := client.NewAuthClient(currentCtx)
		if err != nil {
			return err
		}
		session, err := authClient.Session(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("User:       %s (%s)\n", session.Username, session.Nickname)
		fmt.Printf("User ID:    %s\n", session.UserID)
		fmt.Printf("Session ID: %s\n", session.SessionID)
		fmt.Printf("Created:    %s\n", session.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Expires:    %s\n", session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringP("username", "u", "", "account to log in as (prompted when empty)")
	loginCmd.Flags().StringP("password", "p", "", "password (prompted when empty)")
}
