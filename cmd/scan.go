package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/cmd/bot"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils"
)

var (
	scanJSON    bool
	scanExecute bool
	scanUrgency float64
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the opportunities found",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Metrics.Enabled = false
		cfg.Scanner.AutoExecute.Enabled = false

		ctx := cmd.Context()
		b, err := bot.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer b.Stop()

		sc := b.Scanner()
		res := sc.Tick(ctx)
		opps := sc.ListOpportunities()
		log.Info("Scan complete",
			zap.Int("routes", res.Routes),
			zap.Int("errors", res.Errors),
			zap.Int("opportunities", len(opps)),
			zap.Duration("elapsed", res.Elapsed))

		if err := printOpportunities(opps); err != nil {
			return err
		}

		if !scanExecute || len(opps) == 0 {
			return nil
		}
		status, err := sc.ExecuteOpportunity(ctx, opps[0].ID, scanUrgency)
		fmt.Printf("\nexecuted %s: state=%s bundle=%s slot=%d reason=%s\n",
			opps[0].ID, status.State, status.BundleID, status.Slot, status.Reason)
		return err
	},
}

func printOpportunities(opps []*types.Opportunity) error {
	if scanJSON {
		out, err := sonnet.Marshal(opps)
		if err != nil {
			return err
		}
		_, err = fmt.Println(string(out))
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROUTE\tPROVIDER\tIN\tOUT\tNET\tNET%\tCONFIDENCE\tSOURCE")
	for _, o := range opps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.4f\t%.2f\t%s\n",
			o.ID, o.RouteKey(), o.ProviderID, o.Quote.InAmount, o.Quote.OutAmount,
			o.NetProfit, o.NetProfitPercent*100, o.Confidence, o.Quote.Source)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print opportunities as JSON")
	scanCmd.Flags().BoolVar(&scanExecute, "execute", false, "execute the most profitable opportunity found")
	scanCmd.Flags().Float64Var(&scanUrgency, "urgency", 0.5, "tip urgency in [0, 1] for --execute")
}
