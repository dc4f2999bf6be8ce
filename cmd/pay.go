package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"xchain-swap/pkg/parser"
	"xchain-swap/pkg/payment"
	"xchain-swap/pkg/types"
)

var payCmd = &cobra.Command{
	Use:   "pay <merchant> <amount> <token> on <chain>",
	Short: "Pay a merchant, converting into their preferred asset when needed",
	Long: `Pay a registered merchant. Paying in the merchant's asset on their
settlement chain settles at once; anything else opens a swap owned by the
payer that converts into the merchant's asset.

Examples:
  xchain-swap pay 0x5B0... 100 USDC on AssetHub --decimals 6 --from 0xC0FFEE...
  xchain-swap pay 0x5B0... 5 DOT on Acala --decimals 10 --from 0xC0FFEE...`,
	Args: cobra.ExactArgs(5),
	RunE: runPay,
}

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Inspect payments",
}

var paymentStatusCmd = &cobra.Command{
	Use:   "status <payment-id>",
	Short: "Show a payment and its settlement status",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaymentStatus,
}

var paymentCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of payments recorded",
	RunE:  runPaymentCount,
}

func init() {
	rootCmd.AddCommand(payCmd, paymentCmd)
	paymentCmd.AddCommand(paymentStatusCmd, paymentCountCmd)

	payCmd.Flags().String("from", "", "Customer address (required)")
	payCmd.Flags().Int32("decimals", 0, "Token decimals of the amount")
}

func runPay(cmd *cobra.Command, args []string) error {
	customer, err := addressFlag(cmd)
	if err != nil {
		return err
	}
	merchant, err := parseAddress(args[0], "merchant")
	if err != nil {
		return err
	}
	if !strings.EqualFold(args[3], "on") {
		return errors.Errorf("expected 'on <chain>', got %q", strings.Join(args[3:], " "))
	}
	chain, ok := parser.NormalizeChain(args[4])
	if !ok {
		return errors.Errorf("unsupported chain %q", args[4])
	}
	decimals, _ := cmd.Flags().GetInt32("decimals")
	amount, err := parser.ParseAmount(args[1], decimals)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	var s *spinner.Spinner
	if !jsonOutput(cmd) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Quoting payment..."
		s.Start()
	}
	var id uint32
	err = a.update(func() error {
		var err error
		id, err = a.overlay.ProcessPayment(cmd.Context(), payment.Request{
			Customer:      customer,
			Merchant:      merchant,
			CustomerToken: parser.NormalizeTokenSymbol(args[2]),
			CustomerChain: chain,
			Amount:        amount,
		})
		return err
	})
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	info, _ := a.overlay.Payment(id)
	if jsonOutput(cmd) {
		return printJSON(paymentView(info))
	}
	if info.Direct() {
		printSuccess(fmt.Sprintf("Payment %d settled directly", id))
	} else {
		printSuccess(fmt.Sprintf("Payment %d opened swap %d", id, *info.SwapID))
	}
	printPayment(paymentView(info))
	return nil
}

func runPaymentStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return errors.Errorf("invalid payment id %q", args[0])
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	info, ok := a.overlay.Payment(uint32(id))
	if !ok {
		return errors.Errorf("payment %d not found", id)
	}
	v := paymentView(info)
	if jsonOutput(cmd) {
		return printJSON(v)
	}
	printPayment(v)
	return nil
}

func runPaymentCount(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	count := a.overlay.PaymentCount()
	if jsonOutput(cmd) {
		return printJSON(map[string]uint32{"count": count})
	}
	fmt.Println(count)
	return nil
}

func paymentView(info payment.Info) types.PaymentView {
	return types.PaymentView{
		ID:             info.ID,
		Customer:       info.Customer.Hex(),
		Merchant:       info.Merchant.Hex(),
		CustomerToken:  info.CustomerToken,
		CustomerChain:  info.CustomerChain,
		MerchantAsset:  info.MerchantAsset,
		MerchantChain:  info.MerchantChain,
		InputAmount:    info.InputAmount.Dec(),
		ExpectedOutput: info.ExpectedOutput.Dec(),
		SwapID:         info.SwapID,
		Status:         string(info.Status),
	}
}

func printPayment(v types.PaymentView) {
	fmt.Printf("  Payment:   %d\n", v.ID)
	fmt.Printf("  Status:    %s\n", colorStatus(v.Status))
	fmt.Printf("  Customer:  %s\n", v.Customer)
	fmt.Printf("  Merchant:  %s\n", v.Merchant)
	fmt.Printf("  Paid:      %s %s on %s\n", v.InputAmount, color.YellowString(v.CustomerToken), v.CustomerChain)
	fmt.Printf("  Settles:   %s %s on %s\n", v.ExpectedOutput, color.YellowString(v.MerchantAsset), v.MerchantChain)
	if v.SwapID != nil {
		fmt.Printf("  Swap:      %d\n", *v.SwapID)
	}
	fmt.Println()
}
