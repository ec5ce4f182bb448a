package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/auto-apply/internal/config"
	"github.com/jonathan/auto-apply/internal/server"
)

var tokenClient string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a service token for the REST API",
	Long:  "Signs an HS256 bearer token with JWT_SECRET for the given client, for use by schedulers calling POST /apply.",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenClient, "client", "", "Client identifier embedded in the token (required)")
	if err := tokenCmd.MarkFlagRequired("client"); err != nil {
		panic(fmt.Sprintf("failed to mark client flag as required: %v", err))
	}
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenClient)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
