package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xchain-swap",
	Short: "Orchestrate multi-step cross-chain swaps and merchant payments",
	Long: `xchain-swap drives swaps that move value across chains in several steps.
Each step is sent to the remote chain as a request and only counts once its
response comes back. State is kept in a local JSON file between runs.

Without nats.url configured requests are queued locally and responses are fed
in by hand with "swap respond". With NATS, "daemon" relays them automatically.

Examples:
  xchain-swap swap create "1000 USDT on AssetHub to USDC on Hydration" --steps 2 --from 0xA11CE...
  xchain-swap swap execute 0
  xchain-swap swap respond 1 --success
  xchain-swap merchant register USDC AssetHub --from 0x5B0...
  xchain-swap pay 0x5B0... 5 DOT on Acala --from 0xC0FFEE...
  xchain-swap daemon`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and reports its error
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("state", "", "State file (default ~/.xchain-swap-state.json)")
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s %s\n\n", color.GreenString("✓"), message)
}
