package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swaplace/services/swapd/api"
)

func newTokenCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Query balances and manage approvals on registered tokens",
	}

	var balanceID string
	balance := &cobra.Command{
		Use:   "balance <token> <holder>",
		Short: "Show a holder's balance (ERC1155 needs --id)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, holder, err := parseAddressPair(args[0], args[1])
			if err != nil {
				return err
			}
			var id *big.Int
			if balanceID != "" {
				if id, err = api.ParseInt(balanceID); err != nil {
					return err
				}
			}
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var resp api.TokenBalanceResponse
			if err := app.call(cmd, "Fetching balance...", func(ctx context.Context) error {
				resp, err = c.TokenBalance(ctx, token, holder, id)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, resp, func(w io.Writer) {
				printField(w, "Token", resp.Token)
				printField(w, "Holder", resp.Holder)
				if resp.ID != "" {
					printField(w, "ID", resp.ID)
				}
				printField(w, "Balance", resp.Balance)
			})
		},
	}
	balance.Flags().StringVar(&balanceID, "id", "", "ERC1155 token id")

	owner := &cobra.Command{
		Use:   "owner <token> <id>",
		Short: "Show the holder of an ERC721 token id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := api.ParseAddress(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(args[1]) == "" {
				return fmt.Errorf("token id is required")
			}
			id, err := api.ParseInt(args[1])
			if err != nil {
				return err
			}
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var resp api.TokenOwnerResponse
			if err := app.call(cmd, "Fetching owner...", func(ctx context.Context) error {
				resp, err = c.OwnerOf(ctx, token, id)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, resp, func(w io.Writer) {
				printField(w, "Token", resp.Token)
				printField(w, "ID", resp.ID)
				printField(w, "Owner", resp.Owner)
			})
		},
	}

	var spender string
	approve := &cobra.Command{
		Use:   "approve <token> <amount-or-id>",
		Short: "Approve an ERC20 allowance or a single ERC721 token",
		Long:  "Approve a spender. The spender defaults to the swap engine.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := api.ParseAddress(args[0])
			if err != nil {
				return err
			}
			if _, err := api.ParseWord(args[1]); err != nil {
				return err
			}
			c, err := app.client(true)
			if err != nil {
				return err
			}
			req := api.ApproveRequest{Spender: spender, AmountOrID: args[1]}
			if err := app.call(cmd, "Approving...", func(ctx context.Context) error {
				return c.Approve(ctx, token, req)
			}); err != nil {
				return err
			}
			return app.emit(cmd, api.StatusResponse{Status: "approved"}, func(w io.Writer) {
				printSuccess(w, fmt.Sprintf("Approved %s on %s", args[1], token.Hex()))
			})
		},
	}
	approve.Flags().StringVar(&spender, "spender", "", "address to approve (defaults to the engine)")

	var (
		operator string
		revoke   bool
	)
	approveAll := &cobra.Command{
		Use:   "approve-all <token>",
		Short: "Grant or revoke an operator on an ERC721 or ERC1155 token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := api.ParseAddress(args[0])
			if err != nil {
				return err
			}
			c, err := app.client(true)
			if err != nil {
				return err
			}
			req := api.ApprovalForAllRequest{Operator: operator, Approved: !revoke}
			if err := app.call(cmd, "Updating operator...", func(ctx context.Context) error {
				return c.SetApprovalForAll(ctx, token, req)
			}); err != nil {
				return err
			}
			verb := "Granted"
			if revoke {
				verb = "Revoked"
			}
			return app.emit(cmd, api.StatusResponse{Status: "ok"}, func(w io.Writer) {
				printSuccess(w, fmt.Sprintf("%s operator on %s", verb, token.Hex()))
			})
		},
	}
	approveAll.Flags().StringVar(&operator, "operator", "", "operator address (defaults to the engine)")
	approveAll.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")

	cmd.AddCommand(balance, owner, approve, approveAll)
	return cmd
}

func newAccountCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "account [address]",
		Short: "Show the native balance of an address (defaults to the configured key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var addr common.Address
			if len(args) == 1 {
				parsed, err := api.ParseAddress(args[0])
				if err != nil {
					return err
				}
				addr = parsed
			} else {
				key, err := app.signingKey()
				if err != nil {
					return err
				}
				addr = key.Address()
			}
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var resp api.AccountResponse
			if err := app.call(cmd, "Fetching account...", func(ctx context.Context) error {
				resp, err = c.Account(ctx, addr)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, resp, func(w io.Writer) {
				printField(w, "Address", resp.Address)
				printField(w, "Balance", resp.Balance+" wei")
			})
		},
	}
}

func newEngineCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Show the engine address, pause state, escrow, and registered tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client(false)
			if err != nil {
				return err
			}
			var resp api.EngineResponse
			if err := app.call(cmd, "Fetching engine...", func(ctx context.Context) error {
				resp, err = c.Engine(ctx)
				return err
			}); err != nil {
				return err
			}
			return app.emit(cmd, resp, func(w io.Writer) {
				printField(w, "Engine", resp.Address)
				printField(w, "Paused", resp.Paused)
				printField(w, "Escrowed", resp.Escrowed+" wei")
				for _, token := range resp.Tokens {
					printField(w, token.Standard, fmt.Sprintf("%s %s", token.Name, token.Address))
				}
			})
		},
	}
}

func parseAddressPair(a, b string) (common.Address, common.Address, error) {
	first, err := api.ParseAddress(a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	second, err := api.ParseAddress(b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return first, second, nil
}
