package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"xchain-swap/pkg/parser"
	"xchain-swap/pkg/payment"
)

var merchantCmd = &cobra.Command{
	Use:   "merchant",
	Short: "Manage merchant settlement preferences",
}

var merchantRegisterCmd = &cobra.Command{
	Use:   "register <asset> <chain>",
	Short: "Register (or update) the caller as a merchant",
	Long: `Register the --from address as a merchant settling in <asset> on <chain>.
Registering again replaces the previous preferences.

Example:
  xchain-swap merchant register USDC AssetHub --from 0x5B0...`,
	Args: cobra.ExactArgs(2),
	RunE: runMerchantRegister,
}

var merchantShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show a merchant's settlement preferences",
	Args:  cobra.ExactArgs(1),
	RunE:  runMerchantShow,
}

var merchantListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered merchants",
	RunE:    runMerchantList,
}

func init() {
	rootCmd.AddCommand(merchantCmd)
	merchantCmd.AddCommand(merchantRegisterCmd, merchantShowCmd, merchantListCmd)

	merchantRegisterCmd.Flags().String("from", "", "Merchant address (required)")
}

func runMerchantRegister(cmd *cobra.Command, args []string) error {
	addr, err := addressFlag(cmd)
	if err != nil {
		return err
	}
	asset := parser.NormalizeTokenSymbol(args[0])
	chain, ok := parser.NormalizeChain(args[1])
	if !ok {
		return errors.Errorf("unsupported chain %q", args[1])
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.update(func() error { return a.overlay.RegisterMerchant(addr, asset, chain) }); err != nil {
		return err
	}

	m, _ := a.overlay.Merchant(addr)
	if jsonOutput(cmd) {
		return printJSON(m)
	}
	printSuccess(fmt.Sprintf("%s settles in %s on %s", addr.Hex(), asset, chain))
	return nil
}

func runMerchantShow(cmd *cobra.Command, args []string) error {
	addr, err := parseAddress(args[0], "merchant")
	if err != nil {
		return err
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	m, ok := a.overlay.Merchant(addr)
	if !ok {
		return errors.Wrapf(payment.ErrMerchantNotFound, "%s", addr.Hex())
	}
	if jsonOutput(cmd) {
		return printJSON(m)
	}
	printMerchant(m)
	return nil
}

func runMerchantList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	merchants := a.overlay.Merchants()
	if jsonOutput(cmd) {
		return printJSON(merchants)
	}
	if len(merchants) == 0 {
		fmt.Println("No merchants registered")
		return nil
	}
	for _, m := range merchants {
		printMerchant(m)
	}
	return nil
}

func printMerchant(m payment.Merchant) {
	fmt.Printf("\n  %s\n", color.CyanString(m.Address.Hex()))
	fmt.Printf("    Settles in:  %s on %s\n", color.YellowString(m.PreferredAsset), m.SettlementChain)
	fmt.Printf("    Registered:  %s\n", m.RegisteredAt.Local().Format(time.RFC1123))
}
