package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agency-backoffice/internal/domain"
	jwtinfra "github.com/agency-backoffice/internal/infrastructure/jwt"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token <principal>",
	Short: "Sign a dashboard JWT with the configured private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := bootstrap()
		if err != nil {
			return err
		}
		p, err := jwtinfra.NewProvider(cfg)
		if err != nil {
			return err
		}
		tok, err := p.Sign(args[0], tokenRole, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", domain.RoleAdmin, "role claim")
}
