package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/arbbot/registry"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Print the flash-loan providers and relays in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := registry.Default()
		if cfg.RegistryFile != "" {
			if reg, err = registry.Load(cfg.RegistryFile); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tLABEL\tFEE\tLIQUIDITY\tENABLED\tPROGRAM")
		for _, p := range reg.Providers() {
			fmt.Fprintf(w, "%s\t%s\t%.4f%%\t%d\t%t\t%s\n",
				p.ID, p.Label, p.FeeFraction*100, p.Liquidity, p.Enabled, p.ProgramID)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "RELAY\tURL\tTIP ACCOUNTS\tSELECTED")
		for _, r := range reg.Relays() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\n",
				r.Name, strings.TrimRight(r.BaseURL, "/"), len(r.TipAccounts), r.Name == cfg.Relay.Name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
