package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swaplace/native/swaplace"
	"swaplace/services/swapd/api"
)

func newSwapCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Create, inspect, accept, and cancel swaps",
	}
	cmd.AddCommand(
		newSwapGetCmd(app),
		newSwapTotalCmd(app),
		newSwapCreateCmd(app),
		newSwapAcceptCmd(app),
		newSwapCancelCmd(app),
	)
	return cmd
}

func newSwapGetCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a swap record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(args[0])
			if err != nil {
				return err
			}
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var swap api.Swap
			if err := app.call(cmd, "Fetching swap...", func(ctx context.Context) error {
				swap, err = c.Swap(ctx, id)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, swap, func(w io.Writer) { printSwap(w, id, swap) })
		},
	}
}

func newSwapTotalCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Show how many swaps have been created",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var total api.TotalResponse
			if err := app.call(cmd, "Fetching total...", func(ctx context.Context) error {
				total, err = c.Total(ctx)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, total, func(w io.Writer) {
				printField(w, "Total", total.Total)
				printField(w, "Next ID", total.NextID)
			})
		},
	}
}

func newSwapCreateCmd(app *cli) *cobra.Command {
	var (
		allowed   string
		expiry    string
		recipient uint8
		value     uint64
		valueWei  string
		bids      []string
		asks      []string
		attach    string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a swap offer signed by the configured key",
		Long: `Create a swap. Each --bid and --ask leg is either addr:amount_or_id
for ERC20/ERC721 tokens or addr:id:quantity for ERC1155 tokens.

When --recipient is 0 the owner pays the native value on creation and
--attach defaults to that amount.`,
		Example: `  swaplace-cli swap create --bid 0xNFT...:7 --ask 0xUSD...:1000 --expiry 48h
  swaplace-cli swap create --bid 0xMULTI...:3:10 --ask 0xUSD...:5 --value 250`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := parseExpiry(expiry, time.Now())
			if err != nil {
				return err
			}
			biding, err := parseAssetSpecs(bids)
			if err != nil {
				return err
			}
			asking, err := parseAssetSpecs(asks)
			if err != nil {
				return err
			}
			if value, err = resolveValue(value, valueWei); err != nil {
				return err
			}
			if attach == "" {
				attach = defaultAttachment(value, recipient == 0).String()
			}
			c, err := app.client(true)
			if err != nil {
				return err
			}
			req := api.CreateSwapRequest{
				Swap: api.Swap{
					Owner:     c.Address().Hex(),
					Allowed:   allowed,
					Expiry:    exp,
					Recipient: recipient,
					Value:     value,
					Biding:    biding,
					Asking:    asking,
				},
				Attached: attach,
			}
			if err := precheckSwap(req.Swap, time.Now()); err != nil {
				return err
			}
			var id uint64
			if err := app.call(cmd, "Creating swap...", func(ctx context.Context) error {
				id, err = c.CreateSwap(ctx, req)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, api.CreateSwapResponse{ID: id}, func(w io.Writer) {
				printSuccess(w, fmt.Sprintf("Swap %d created", id))
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&allowed, "allowed", "", "only this address may accept (empty for anyone)")
	flags.StringVar(&expiry, "expiry", "24h", "unix seconds or a duration from now")
	flags.Uint8Var(&recipient, "recipient", 0, "0 when the owner pays native value, otherwise the acceptor pays")
	flags.Uint64Var(&value, "value", 0, "native value in units of 1e12 wei")
	flags.StringVar(&valueWei, "value-wei", "", "native value in wei (must be a multiple of 1e12)")
	flags.StringArrayVar(&bids, "bid", nil, "offered asset leg (repeatable)")
	flags.StringArrayVar(&asks, "ask", nil, "requested asset leg (repeatable)")
	flags.StringVar(&attach, "attach", "", "native wei to send (defaults to the owner's share)")
	return cmd
}

func newSwapAcceptCmd(app *cli) *cobra.Command {
	var (
		receiver string
		attach   string
	)
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a swap with the configured key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(args[0])
			if err != nil {
				return err
			}
			c, err := app.client(true)
			if err != nil {
				return err
			}
			if err := app.call(cmd, "Accepting swap...", func(ctx context.Context) error {
				if attach == "" {
					swap, err := c.Swap(ctx, id)
					if err != nil {
						return err
					}
					attach = defaultAttachment(swap.Value, swap.Recipient != 0).String()
				}
				return c.AcceptSwap(ctx, id, api.AcceptSwapRequest{Receiver: receiver, Attached: attach})
			}); err != nil {
				return err
			}
			return app.emit(cmd, api.StatusResponse{Status: "accepted"}, func(w io.Writer) {
				printSuccess(w, fmt.Sprintf("Swap %d accepted", id))
			})
		},
	}
	cmd.Flags().StringVar(&receiver, "receiver", "", "address that receives the owner's assets (defaults to the caller)")
	cmd.Flags().StringVar(&attach, "attach", "", "native wei to send (defaults to the acceptor's share)")
	return cmd
}

func newSwapCancelCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a swap owned by the configured key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSwapID(args[0])
			if err != nil {
				return err
			}
			c, err := app.client(true)
			if err != nil {
				return err
			}
			if err := app.call(cmd, "Canceling swap...", func(ctx context.Context) error {
				return c.CancelSwap(ctx, id)
			}); err != nil {
				return err
			}
			return app.emit(cmd, api.StatusResponse{Status: "canceled"}, func(w io.Writer) {
				printSuccess(w, fmt.Sprintf("Swap %d canceled", id))
			})
		},
	}
}

// precheckSwap runs the engine's shape checks locally so obvious mistakes fail
// before anything is signed.
func precheckSwap(swap api.Swap, now time.Time) error {
	converted, err := swap.ToSwap(common.Address{})
	if err != nil {
		return err
	}
	_, err = swaplace.MakeSwap(converted.Owner, converted.Config, converted.Biding, converted.Asking, now.Unix())
	return err
}

// resolveValue prefers an explicit wei amount over config units.
func resolveValue(units uint64, wei string) (uint64, error) {
	if wei == "" {
		return units, nil
	}
	if units != 0 {
		return 0, errors.New("--value and --value-wei are mutually exclusive")
	}
	amount, err := api.ParseInt(wei)
	if err != nil {
		return 0, err
	}
	return swaplace.ScaleNativeValue(amount)
}

func parseSwapID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid swap id %q", raw)
	}
	return id, nil
}

func printSwap(w io.Writer, id uint64, swap api.Swap) {
	printField(w, "Swap", id)
	printField(w, "Owner", swap.Owner)
	printField(w, "Allowed", swap.Allowed)
	printField(w, "Expiry", formatExpiry(swap.Expiry))
	printField(w, "Recipient", swap.Recipient)
	printField(w, "Value", swap.Value)
	for i, asset := range swap.Biding {
		printField(w, fmt.Sprintf("Bid %d", i), formatAsset(asset))
	}
	for i, asset := range swap.Asking {
		printField(w, fmt.Sprintf("Ask %d", i), formatAsset(asset))
	}
}

func formatAsset(asset api.Asset) string {
	if asset.Packed {
		return fmt.Sprintf("%s id=%s qty=%s", asset.Addr, asset.ID, asset.Quantity)
	}
	return fmt.Sprintf("%s %s", asset.Addr, asset.AmountOrID)
}
