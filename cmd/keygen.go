package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/ledger"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fee payer keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := ledger.GenerateSigner()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		fmt.Printf("Public Key:  %s\n", signer.PublicKey())
		fmt.Printf("Private Key: %s\n", signer.Base58())
		fmt.Printf("\nStore the private key in %s and fund the public key before executing.\n", config.EnvPrivateKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
