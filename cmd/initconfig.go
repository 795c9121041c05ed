package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/config"
)

var (
	initOut   string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(initOut); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", initOut)
		}
		if err := config.SaveConfig(config.DefaultConfig(), initOut); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", initOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOut, "out", "o", "arbbot.yaml", "destination file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}
