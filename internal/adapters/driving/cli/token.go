package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or reset stored sync tokens",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show <resource>",
	Short: "Show the stored sync token of a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenShow,
}

var tokenResetCmd = &cobra.Command{
	Use:   "reset <resource>",
	Short: "Delete the stored sync token of a resource",
	Long: `Deletes the stored sync token so the next incremental sync reads the
resource's change stream from the beginning.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenReset,
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenResetCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Tokens == nil {
		return errNoServices
	}

	state, err := s.Tokens.Get(commandContext(cmd), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("No sync token stored for %s.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	encoded, err := state.Token.Encode()
	if err != nil {
		return err
	}
	cmd.Printf("Resource:  %s\n", state.Resource)
	cmd.Printf("Token:     %s\n", state.Token)
	cmd.Printf("Encoded:   %s\n", encoded)
	cmd.Printf("Last sync: %s\n", formatTime(state.LastSync))
	return nil
}

func runTokenReset(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Tokens == nil {
		return errNoServices
	}
	ctx := commandContext(cmd)

	if s.Resources != nil {
		if _, err := s.Resources.Get(ctx, args[0]); err != nil {
			return err
		}
	}
	if err := s.Tokens.Delete(ctx, args[0]); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete token: %w", err)
	}
	cmd.Printf("Sync token for %s reset.\n", args[0])
	return nil
}
