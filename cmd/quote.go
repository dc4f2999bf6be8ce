package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xchain-swap/config"
	"xchain-swap/pkg/parser"
	"xchain-swap/pkg/route"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Quote the expected output of a conversion",
	Long: `Quote a conversion with the configured quoter. The fixed rate table is
used by default; set quoter to "oneclick" to ask the 1Click API instead.

Examples:
  xchain-swap quote 1 DOT to USDT --decimals 10
  xchain-swap quote 100 USDT on AssetHub to USDC on Hydration`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().Int32("decimals", 0, "Token decimals of the input amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	order, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	decimals, _ := cmd.Flags().GetInt32("decimals")
	amount, err := parser.ParseAmount(order.Amount, decimals)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	quoter, err := newQuoter(cfg, cfg.NewLogger())
	if err != nil {
		return err
	}

	pair := route.Pair{
		SourceToken: parser.NormalizeTokenSymbol(order.SourceToken),
		TargetToken: parser.NormalizeTokenSymbol(order.TargetToken),
		SourceChain: order.SourceChain,
		TargetChain: order.TargetChain,
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	out, err := quoter.Quote(cmd.Context(), pair, amount)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(map[string]string{
			"source_token":  pair.SourceToken,
			"target_token":  pair.TargetToken,
			"input_amount":  amount.Dec(),
			"output_amount": out.Dec(),
		})
	}

	fmt.Printf("\n  %s %s  ->  %s %s\n\n",
		amount.Dec(), color.YellowString(pair.SourceToken),
		color.GreenString(out.Dec()), color.YellowString(pair.TargetToken))
	return nil
}
