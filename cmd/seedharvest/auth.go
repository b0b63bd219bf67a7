package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"seedharvest/pkg/auth"
	"seedharvest/pkg/ui"
)

var (
	withConsumerPassword bool
	stdinReader          = bufio.NewReader(os.Stdin)
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored secrets",
	Long: `Store the catalog API key and the download consumer password in the
system keychain, or in an encrypted file when no keychain is available.

Stored secrets only fill values that flags, environment variables and the
config file leave empty. Use --profile to keep several sets.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the API key and optionally the consumer password",
	Example: `  # Store the API key in the default profile
  seedharvest auth set

  # Store both secrets in a named profile
  seedharvest auth set --profile seedbox --consumer-password`,
	Args: cobra.NoArgs,
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored profiles with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored profile",
	Args:  cobra.NoArgs,
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)

	authSetCmd.Flags().BoolVar(&withConsumerPassword, "consumer-password", false, "also prompt for the consumer password")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	auth.WriteAPIKeyGuide(ui.Out)
	fmt.Fprintln(ui.Out)

	profile := &auth.Profile{Name: profileName}
	if existing, err := manager.Retrieve(profileName); err == nil && existing != nil {
		profile.APIKey = existing.APIKey
		profile.ConsumerPassword = existing.ConsumerPassword
	}

	key, err := promptSecret("API key: ")
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key != "" {
		profile.APIKey = key
	}

	if withConsumerPassword {
		password, err := promptSecret("Consumer password: ")
		if err != nil {
			return fmt.Errorf("failed to read consumer password: %w", err)
		}
		profile.ConsumerPassword = password
	}

	if err := manager.Store(profile); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for profile %q", profile.Name))
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profiles, err := manager.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.PrintInfo("Profiles", "none stored")
		return nil
	}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		s := auth.Sanitize(p)
		modified := ""
		if !s.LastModified.IsZero() {
			modified = s.LastModified.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{s.Name, s.APIKey, s.ConsumerPassword, modified})
	}
	ui.PrintTable([]string{"PROFILE", "API KEY", "CONSUMER PASSWORD", "MODIFIED"}, rows)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(profileName); err != nil {
		ui.PrintError("Failed to delete profile", err.Error())
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Profile %q removed", profileName))
	return nil
}

// promptSecret reads a line without echo when stdin is a terminal
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(ui.Out, prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
