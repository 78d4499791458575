package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sunograb/pkg/auth"
	"sunograb/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account credentials",
	Long: `Store, inspect and remove account credentials.

Credentials are kept in the system keychain when available, with an
encrypted file fallback. Stored credentials are picked up automatically by
'sunograb download' when no flags or environment variables provide them.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store credentials for an account",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show whether credentials are stored for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove stored credentials for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Username/email: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	mgr, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	if err := mgr.Save(&auth.Credentials{Username: username, Password: password}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for %s", username))
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	creds, err := mgr.Retrieve(args[0])
	if err != nil {
		ui.PrintWarning(fmt.Sprintf("No credentials stored for %s", args[0]))
		return nil
	}

	ui.PrintInfo("Username", creds.Username)
	if !creds.LastModified.IsZero() {
		ui.PrintInfo("Stored", creds.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	mgr, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	if err := mgr.Delete(args[0]); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials removed for %s", args[0]))
	return nil
}

// readPassword reads a password without echo when attached to a terminal,
// falling back to a plain line read otherwise (pipes, CI).
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
