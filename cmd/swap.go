package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"xchain-swap/pkg/parser"
	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
	"xchain-swap/pkg/types"
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Create, drive and inspect multi-step swaps",
}

var swapCreateCmd = &cobra.Command{
	Use:   "create <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Create a swap in Initiated state",
	Long: `Create a swap. Amounts are in base units unless --decimals is given.

Examples:
  xchain-swap swap create 1000 USDT on AssetHub to USDC on Hydration --steps 2 --from 0xA11CE...
  xchain-swap swap create 2.5 DOT to USDT --from-chain Acala --to-chain AssetHub --decimals 10 --from 0xA11CE...
  xchain-swap swap create 1 DOT on Acala to USDT on AssetHub --via Hydration:USDC --from 0xA11CE...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSwapCreate,
}

var swapExecuteCmd = &cobra.Command{
	Use:   "execute <swap-id>",
	Short: "Dispatch the current step of a swap",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapExecute,
}

var swapCancelCmd = &cobra.Command{
	Use:   "cancel <swap-id>",
	Short: "Cancel a swap and mark it Refunded (initiator only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapCancel,
}

var swapStatusCmd = &cobra.Command{
	Use:   "status <swap-id>",
	Short: "Show a swap",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapStatus,
}

var swapProgressCmd = &cobra.Command{
	Use:   "progress <swap-id>",
	Short: "Show current step, total steps and status",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapProgress,
}

var swapRouteCmd = &cobra.Command{
	Use:   "route <swap-id>",
	Short: "Show the route and amounts of a swap",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapRoute,
}

var swapTimeoutCmd = &cobra.Command{
	Use:   "timeout <swap-id>",
	Short: "Report whether a swap's deadline has passed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwapTimeout,
}

var swapListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all swaps",
	RunE:    runSwapList,
}

var swapRespondCmd = &cobra.Command{
	Use:   "respond <nonce>",
	Short: "Deliver a response for an in-flight step request",
	Long: `Deliver a response by hand, as the transport would.

By default a status envelope is delivered: --failure sends status 0, anything
else status 1, followed by the optional --payload bytes. With --legacy the raw
--payload is delivered and only its emptiness decides success.`,
	Args: cobra.ExactArgs(1),
	RunE: runSwapRespond,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.AddCommand(swapCreateCmd, swapExecuteCmd, swapCancelCmd, swapStatusCmd,
		swapProgressCmd, swapRouteCmd, swapTimeoutCmd, swapListCmd, swapRespondCmd)

	swapCreateCmd.Flags().String("from", "", "Initiator address (required)")
	swapCreateCmd.Flags().String("from-chain", "", "Source chain")
	swapCreateCmd.Flags().String("to-chain", "", "Target chain")
	swapCreateCmd.Flags().Uint32("steps", 0, "Number of route steps (default: one per hop)")
	swapCreateCmd.Flags().Uint32("timeout", 1, "Timeout window in hours (1-168)")
	swapCreateCmd.Flags().String("expected", "", "Expected output in base units (default: quoted)")
	swapCreateCmd.Flags().StringSlice("via", nil, "Intermediate hop as Chain:Token, repeatable")
	swapCreateCmd.Flags().Int32("decimals", 0, "Token decimals of the input amount")
	swapCreateCmd.Flags().Bool("execute", false, "Dispatch the first step right away")

	swapCancelCmd.Flags().String("from", "", "Caller address (required)")

	swapRespondCmd.Flags().Bool("failure", false, "Deliver a failure")
	swapRespondCmd.Flags().String("payload", "", "Hex encoded response data")
	swapRespondCmd.Flags().Bool("legacy", false, "Deliver the raw payload without a status envelope")
}

func parseSwapID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid swap id %q", arg)
	}
	return uint32(id), nil
}

func parseVia(raw []string) ([]route.Hop, error) {
	hops := make([]route.Hop, 0, len(raw))
	for _, h := range raw {
		chain, token, ok := strings.Cut(h, ":")
		if !ok {
			return nil, errors.Errorf("hop %q must look like Chain:Token", h)
		}
		canonical, ok := parser.NormalizeChain(chain)
		if !ok {
			return nil, errors.Errorf("unsupported chain %q in hop %q", chain, h)
		}
		hops = append(hops, route.Hop{Chain: canonical, Token: parser.NormalizeTokenSymbol(token)})
	}
	return hops, nil
}

// chainedQuote prices the whole route hop by hop
func chainedQuote(r swap.Route, amount *uint256.Int) *uint256.Int {
	tokens := []string{r.SourceToken}
	for _, h := range r.Via {
		tokens = append(tokens, h.Token)
	}
	tokens = append(tokens, r.TargetToken)

	out := new(uint256.Int).Set(amount)
	for i := 0; i+1 < len(tokens); i++ {
		out = route.Quote(tokens[i], tokens[i+1], out)
	}
	return out
}

func runSwapCreate(cmd *cobra.Command, args []string) error {
	initiator, err := addressFlag(cmd)
	if err != nil {
		return err
	}

	order, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return err
	}
	for flag, dst := range map[string]*string{"from-chain": &order.SourceChain, "to-chain": &order.TargetChain} {
		if raw, _ := cmd.Flags().GetString(flag); raw != "" {
			chain, ok := parser.NormalizeChain(raw)
			if !ok {
				return errors.Errorf("unsupported chain %q", raw)
			}
			*dst = chain
		}
	}
	if err := parser.ValidateSwapOrder(order); err != nil {
		return err
	}

	decimals, _ := cmd.Flags().GetInt32("decimals")
	amount, err := parser.ParseAmount(order.Amount, decimals)
	if err != nil {
		return err
	}

	rawVia, _ := cmd.Flags().GetStringSlice("via")
	via, err := parseVia(rawVia)
	if err != nil {
		return err
	}

	steps, _ := cmd.Flags().GetUint32("steps")
	if steps == 0 {
		steps = uint32(len(via)) + 1
	}
	timeout, _ := cmd.Flags().GetUint32("timeout")

	rt := swap.Route{
		SourceToken: parser.NormalizeTokenSymbol(order.SourceToken),
		TargetToken: parser.NormalizeTokenSymbol(order.TargetToken),
		SourceChain: order.SourceChain,
		TargetChain: order.TargetChain,
		Via:         via,
	}

	expected := chainedQuote(rt, amount)
	if raw, _ := cmd.Flags().GetString("expected"); raw != "" {
		if expected, err = parser.ParseAmount(raw, 0); err != nil {
			return errors.Wrap(err, "--expected")
		}
	}

	execute, _ := cmd.Flags().GetBool("execute")
	a, err := newApp(cmd, execute)
	if err != nil {
		return err
	}
	defer a.close()

	var (
		id          uint32
		dispatchErr error
	)
	err = a.update(func() error {
		var err error
		id, err = a.engine.Create(swap.CreateRequest{
			Initiator:      initiator,
			Route:          rt,
			InputAmount:    amount,
			ExpectedOutput: expected,
			Steps:          steps,
			TimeoutHours:   timeout,
		})
		if err != nil {
			return err
		}
		if execute {
			dispatchErr = a.engine.ExecuteNextStep(cmd.Context(), id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if dispatchErr != nil {
		return errors.Wrapf(dispatchErr, "swap %d created but not dispatched", id)
	}

	if jsonOutput(cmd) {
		return printSwap(cmd, a, id)
	}
	printSuccess(fmt.Sprintf("Swap %d created", id))
	return printSwap(cmd, a, id)
}

func runSwapExecute(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.NATS.Timeout)
	defer cancel()

	// a failed attempt may still have changed state, e.g. a deadline breach;
	// update saves it either way
	if err := a.update(func() error { return a.engine.ExecuteNextStep(ctx, id) }); err != nil {
		return err
	}

	nonce, _ := a.engine.PendingNonce(id)
	if jsonOutput(cmd) {
		return printJSON(map[string]any{"swap_id": id, "nonce": nonce})
	}

	printSuccess(fmt.Sprintf("Step dispatched for swap %d with nonce %d", id, nonce))
	if a.outbox != nil {
		if req, ok := a.outbox.Last(); ok {
			fmt.Printf("  %s -> %s  %s\n", req.Source, req.Dest, color.CyanString(hex.EncodeToString(req.Body)))
			fmt.Printf("  No transport configured; deliver the response with:\n")
			fmt.Printf("    xchain-swap swap respond %d [--failure]\n\n", nonce)
		}
	}
	return nil
}

func runSwapCancel(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}
	caller, err := addressFlag(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.update(func() error { return a.engine.Cancel(id, caller) }); err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printSwap(cmd, a, id)
	}
	printSuccess(fmt.Sprintf("Swap %d refunded", id))
	return nil
}

func runSwapStatus(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	return printSwap(cmd, a, id)
}

func runSwapProgress(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	p, ok := a.engine.Progress(id)
	if !ok {
		return swap.ErrSwapNotFound
	}
	if jsonOutput(cmd) {
		return printJSON(p)
	}
	fmt.Printf("Swap %d: step %d of %d, %s\n", id, p.CurrentStep, p.TotalSteps, colorStatus(p.Status.String()))
	return nil
}

func runSwapRoute(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	rd, ok := a.engine.Route(id)
	if !ok {
		return swap.ErrSwapNotFound
	}
	if jsonOutput(cmd) {
		return printJSON(rd)
	}

	fmt.Printf("\n  %s on %s", color.YellowString(rd.Route.SourceToken), rd.Route.SourceChain)
	for _, h := range rd.Route.Via {
		fmt.Printf(" -> %s on %s", color.YellowString(h.Token), h.Chain)
	}
	fmt.Printf(" -> %s on %s\n", color.YellowString(rd.Route.TargetToken), rd.Route.TargetChain)
	fmt.Printf("  Input:    %s\n", rd.InputAmount.Dec())
	fmt.Printf("  Expected: %s\n", rd.ExpectedOutput.Dec())
	fmt.Printf("  Steps:    %d\n\n", rd.Steps)
	return nil
}

func runSwapTimeout(cmd *cobra.Command, args []string) error {
	id, err := parseSwapID(args[0])
	if err != nil {
		return err
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if _, ok := a.engine.Status(id); !ok {
		return swap.ErrSwapNotFound
	}
	timedOut := a.engine.IsTimedOut(id)
	if jsonOutput(cmd) {
		return printJSON(map[string]any{"swap_id": id, "timed_out": timedOut})
	}
	if timedOut {
		fmt.Printf("Swap %d is %s\n", id, color.RedString("past its deadline"))
	} else {
		fmt.Printf("Swap %d is %s\n", id, color.GreenString("within its deadline"))
	}
	return nil
}

func runSwapList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	swaps := a.engine.List()
	views := make([]types.SwapView, len(swaps))
	for i, s := range swaps {
		views[i] = swapView(a, s)
	}
	if jsonOutput(cmd) {
		return printJSON(views)
	}

	if len(views) == 0 {
		fmt.Println("No swaps yet")
		return nil
	}
	fmt.Printf("\n%-4s %-26s %-26s %-8s %s\n", "ID", "FROM", "TO", "STEP", "STATUS")
	for _, v := range views {
		fmt.Printf("%-4d %-26s %-26s %-8s %s\n", v.ID,
			v.SourceToken+" on "+v.SourceChain,
			v.TargetToken+" on "+v.TargetChain,
			fmt.Sprintf("%d/%d", v.CurrentStep, v.TotalSteps),
			colorStatus(v.Status))
	}
	fmt.Println()
	return nil
}

func runSwapRespond(cmd *cobra.Command, args []string) error {
	nonce, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("invalid nonce %q", args[0])
	}

	rawPayload, _ := cmd.Flags().GetString("payload")
	data, err := hex.DecodeString(strings.TrimPrefix(rawPayload, "0x"))
	if err != nil {
		return errors.Wrap(err, "--payload must be hex")
	}
	failure, _ := cmd.Flags().GetBool("failure")
	legacy, _ := cmd.Flags().GetBool("legacy")

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	var (
		swapID  uint32
		matched bool
	)
	err = a.update(func() error {
		swapID, _ = a.engine.SwapForNonce(nonce)
		if legacy {
			matched = a.engine.OnResponse(nonce, data)
			return nil
		}
		status := swap.ResponseSuccess
		if failure {
			status = swap.ResponseFailure
		}
		matched = a.engine.DeliverResponse(nonce, swap.Response{Status: status, Data: data}.Encode())
		return nil
	})
	if err != nil {
		return err
	}
	if !matched {
		if jsonOutput(cmd) {
			return printJSON(map[string]any{"nonce": nonce, "matched": false})
		}
		fmt.Printf("No pending request for nonce %d; response ignored\n", nonce)
		return nil
	}

	if jsonOutput(cmd) {
		return printSwap(cmd, a, swapID)
	}
	printSuccess(fmt.Sprintf("Response for nonce %d applied to swap %d", nonce, swapID))
	return printSwap(cmd, a, swapID)
}

func swapView(a *app, s swap.Swap) types.SwapView {
	v := types.SwapView{
		ID:             s.ID,
		Initiator:      s.Initiator.Hex(),
		SourceToken:    s.Route.SourceToken,
		TargetToken:    s.Route.TargetToken,
		SourceChain:    s.Route.SourceChain,
		TargetChain:    s.Route.TargetChain,
		InputAmount:    s.InputAmount.Dec(),
		ExpectedOutput: s.ExpectedOutput.Dec(),
		CurrentStep:    s.CurrentStep,
		TotalSteps:     s.Steps,
		Status:         s.Status.String(),
		Deadline:       s.Deadline,
		TimedOut:       a.engine.IsTimedOut(s.ID),
		FailureReason:  s.FailureReason,
	}
	for _, h := range s.Route.Via {
		v.Via = append(v.Via, h.Chain+":"+h.Token)
	}
	if nonce, ok := a.engine.PendingNonce(s.ID); ok {
		v.PendingNonce = nonce
	}
	return v
}

func printSwap(cmd *cobra.Command, a *app, id uint32) error {
	s, ok := a.engine.Get(id)
	if !ok {
		return swap.ErrSwapNotFound
	}
	v := swapView(a, s)
	if jsonOutput(cmd) {
		return printJSON(v)
	}

	fmt.Printf("  Swap:        %d\n", v.ID)
	fmt.Printf("  Status:      %s\n", colorStatus(v.Status))
	fmt.Printf("  Route:       %s on %s -> %s on %s\n", v.SourceToken, v.SourceChain, v.TargetToken, v.TargetChain)
	if len(v.Via) > 0 {
		fmt.Printf("  Via:         %s\n", strings.Join(v.Via, ", "))
	}
	fmt.Printf("  Amounts:     %s -> %s\n", v.InputAmount, v.ExpectedOutput)
	fmt.Printf("  Progress:    %d/%d\n", v.CurrentStep, v.TotalSteps)
	fmt.Printf("  Deadline:    %s\n", v.Deadline.Local().Format(time.RFC1123))
	if v.PendingNonce != 0 {
		fmt.Printf("  Pending:     nonce %d\n", v.PendingNonce)
	}
	if v.FailureReason != "" {
		fmt.Printf("  Reason:      %s\n", color.RedString(v.FailureReason))
	}
	fmt.Println()
	return nil
}

func colorStatus(status string) string {
	switch status {
	case "Completed", "Settled":
		return color.GreenString(status)
	case "Failed", "Refunded":
		return color.RedString(status)
	case "InProgress":
		return color.CyanString(status)
	default:
		return color.YellowString(status)
	}
}
