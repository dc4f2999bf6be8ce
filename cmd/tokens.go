package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xchain-swap/config"
	"xchain-swap/pkg/client"
	"xchain-swap/pkg/route"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens"},
	Short:   "List supported tokens and chains",
	Long: `List the tokens and chains swaps may use.

With --remote the tokens routable by the NEAR Intents 1Click API are listed
instead, optionally filtered by blockchain or symbol.

Examples:
  xchain-swap list-tokens
  xchain-swap list-tokens --remote --chain eth
  xchain-swap list-tokens --remote --symbol USDC`,
	RunE: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().Bool("remote", false, "List tokens from the 1Click API")
	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter remote tokens by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter remote tokens by symbol")
}

func runListTokens(cmd *cobra.Command, args []string) error {
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		return listRemoteTokens(cmd)
	}

	if jsonOutput(cmd) {
		return printJSON(map[string][]string{"tokens": route.Tokens(), "chains": route.Chains()})
	}

	fmt.Println()
	color.Green("Tokens")
	for _, t := range route.Tokens() {
		fmt.Printf("  %s\n", color.YellowString(t))
	}
	color.Green("\nChains")
	for _, c := range route.Chains() {
		fmt.Printf("  %s\n", color.CyanString(c))
	}
	fmt.Println()
	return nil
}

func listRemoteTokens(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	apiClient := client.NewOneClickClient(cfg.OneClick.JWTToken, cfg.OneClick.Recipient, cfg.NewLogger())

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	tokens, err := apiClient.GetSupportedTokens(cmd.Context())
	if !jsonOutput(cmd) {
		s.Stop()
	}
	if err != nil {
		return err
	}

	filtered := filterTokens(tokens, filterChain, filterSymbol)
	if jsonOutput(cmd) {
		return printJSON(filtered)
	}
	displayTokens(filtered)
	return nil
}

func filterTokens(tokens []oneclick.TokenResponse, chain, symbol string) []oneclick.TokenResponse {
	var out []oneclick.TokenResponse
	for _, token := range tokens {
		if chain != "" && !strings.EqualFold(token.GetBlockchain(), chain) {
			continue
		}
		if symbol != "" && !strings.Contains(strings.ToUpper(token.GetSymbol()), strings.ToUpper(symbol)) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func displayTokens(tokens []oneclick.TokenResponse) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	tokensByChain := make(map[string][]oneclick.TokenResponse)
	for _, token := range tokens {
		chain := token.GetBlockchain()
		tokensByChain[chain] = append(tokensByChain[chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.GetContractAddress()
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.GetSymbol()),
				token.GetDecimals(),
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
