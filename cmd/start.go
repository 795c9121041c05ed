package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/cmd/bot"
	"github.com/michaelpento.lv/arbbot/utils"
)

var autoExecute bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("auto-execute") {
			cfg.Scanner.AutoExecute.Enabled = autoExecute
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := bot.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		if err := b.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info("Shutting down gracefully...", zap.Error(ctx.Err()))
		b.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&autoExecute, "auto-execute", false, "execute the best opportunity above the confidence floor")
}
