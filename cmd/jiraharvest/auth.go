package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jiraharvest/pkg/auth"
)

var authEmail string

// authCmd groups credential management subcommands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Jira credentials",
	Long: `Store, inspect, and remove Jira credentials.

Credentials are kept in the system keychain when available, falling back to
an encrypted file. Public Jira instances need no credentials at all; use
these commands only when harvesting an instance that requires a personal
access token.`,
}

// authLoginCmd stores a token under an account name
var authLoginCmd = &cobra.Command{
	Use:   "login <account>",
	Short: "Store a personal access token",
	Example: `  # Store a token for a server/data-center instance
  jiraharvest auth login apache

  # Store an email + API token pair for a cloud instance
  jiraharvest auth login mycloud --email me@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])

		token, err := readToken()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		if token == "" {
			return fmt.Errorf("token must not be empty")
		}

		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to open credential stores: %w", err)
		}
		if err := manager.Store(&auth.Account{
			Name:  name,
			Email: authEmail,
			Token: token,
		}); err != nil {
			return fmt.Errorf("failed to store credentials: %w", err)
		}

		fmt.Printf("Credentials stored for account %q\n", name)
		return nil
	},
}

// authRemoveCmd deletes a stored account
var authRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])

		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to open credential stores: %w", err)
		}
		if err := manager.Delete(name); err != nil {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}

		fmt.Printf("Credentials removed for account %q\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authRemoveCmd)

	authLoginCmd.Flags().StringVar(&authEmail, "email", "", "email for cloud basic auth (omit for bearer tokens)")
}

// readToken prompts for the token without echoing when stdin is a terminal
func readToken() (string, error) {
	fmt.Print("Token: ")
	if term.IsTerminal(int(syscall.Stdin)) {
		token, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(token)), nil
	}

	// Piped input: read one line
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
