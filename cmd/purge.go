package main

import (
	"log"

	"github.com/Kyz7/authserver/internal/reset"
	"github.com/spf13/cobra"
)

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-reset-tokens",
		Short: "Delete expired password reset tokens and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			n, err := reset.NewStore(db).PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("🧹 Cleaned up %d expired reset tokens", n)
			return nil
		},
	}
}
