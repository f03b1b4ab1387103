package main

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"swaplace/native/swaplace"
	"swaplace/services/swapd/api"
)

func newConfigCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Pack and unpack swap config words",
	}

	var (
		allowed   string
		expiry    string
		recipient uint8
		value     uint64
	)
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Pack allowed, expiry, recipient, and value into a config word",
		Example: `  swaplace-cli config encode --allowed 0xabc... --expiry 24h --value 1000
  swaplace-cli config encode --expiry 1767225600 --recipient 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := parseExpiry(expiry, time.Now())
			if err != nil {
				return err
			}
			word, err := api.ConfigWord{Allowed: allowed, Expiry: exp, Recipient: recipient, Value: value}.Encode()
			if err != nil {
				return err
			}
			return app.emitConfig(cmd, swaplace.DecodeConfig(word))
		},
	}
	encode.Flags().StringVar(&allowed, "allowed", "", "address allowed to accept (empty for anyone)")
	encode.Flags().StringVar(&expiry, "expiry", "24h", "unix seconds or a duration from now")
	encode.Flags().Uint8Var(&recipient, "recipient", 0, "0 when the owner pays native value, otherwise the acceptor pays")
	encode.Flags().Uint64Var(&value, "value", 0, "native value in units of 1e12 wei")

	decode := &cobra.Command{
		Use:   "decode <word>",
		Short: "Unpack a config word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := api.ParseWord(args[0])
			if err != nil {
				return err
			}
			return app.emitConfig(cmd, swaplace.DecodeConfig(word))
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}

func (a *cli) emitConfig(cmd *cobra.Command, cfg swaplace.Config) error {
	word := api.FromConfig(cfg)
	return a.emit(cmd, word, func(w io.Writer) {
		printField(w, "Config", word.Config)
		printField(w, "Allowed", word.Allowed)
		printField(w, "Expiry", formatExpiry(word.Expiry))
		printField(w, "Recipient", word.Recipient)
		printField(w, "Value", word.Value)
		printField(w, "Native wei", word.NativeWei)
	})
}

func newAssetCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Pack and unpack ERC1155 id/quantity words",
	}

	encode := &cobra.Command{
		Use:   "encode <id> <quantity>",
		Short: "Pack a token id and quantity into a single amount-or-id word",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseInt(args[0])
			if err != nil {
				return err
			}
			qty, err := api.ParseInt(args[1])
			if err != nil {
				return err
			}
			word, err := swaplace.EncodeAsset(id, qty)
			if err != nil {
				return err
			}
			return app.emitAsset(cmd, word)
		},
	}

	decode := &cobra.Command{
		Use:   "decode <amount-or-id>",
		Short: "Unpack an amount-or-id word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := api.ParseWord(args[0])
			if err != nil {
				return err
			}
			return app.emitAsset(cmd, word)
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}

func (a *cli) emitAsset(cmd *cobra.Command, parsed *uint256.Int) error {
	out := api.AssetWord{AmountOrID: parsed.Dec(), Packed: swaplace.IsQuantityPacked(parsed)}
	if out.Packed {
		id, qty := swaplace.DecodeAsset(parsed)
		out.ID, out.Quantity = id.Dec(), qty.Dec()
	}
	return a.emit(cmd, out, func(w io.Writer) {
		printField(w, "Word", out.AmountOrID)
		printField(w, "Packed", out.Packed)
		if out.Packed {
			printField(w, "ID", out.ID)
			printField(w, "Quantity", out.Quantity)
		}
	})
}

// parseExpiry accepts absolute unix seconds or a Go duration relative to now.
func parseExpiry(raw string, now time.Time) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("expiry is required")
	}
	if secs, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
		return secs, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q: want unix seconds or a duration", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid expiry %q: duration must be positive", raw)
	}
	return uint64(now.Add(d).Unix()), nil
}

func formatExpiry(expiry uint64) string {
	if expiry > math.MaxInt64 {
		return strconv.FormatUint(expiry, 10)
	}
	return fmt.Sprintf("%d (%s)", expiry, time.Unix(int64(expiry), 0).UTC().Format(time.RFC3339))
}

// parseAssetSpec reads "addr:amount_or_id" or "addr:id:quantity"; the latter
// yields a packed ERC1155 leg.
func parseAssetSpec(raw string) (api.Asset, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	switch len(parts) {
	case 2:
		if _, err := api.ParseAddress(parts[0]); err != nil {
			return api.Asset{}, err
		}
		if _, err := api.ParseWord(parts[1]); err != nil {
			return api.Asset{}, err
		}
		return api.Asset{Addr: parts[0], AmountOrID: parts[1]}, nil
	case 3:
		if _, err := api.ParseAddress(parts[0]); err != nil {
			return api.Asset{}, err
		}
		id, err := api.ParseInt(parts[1])
		if err != nil {
			return api.Asset{}, err
		}
		qty, err := api.ParseInt(parts[2])
		if err != nil {
			return api.Asset{}, err
		}
		if _, err := swaplace.EncodeAsset(id, qty); err != nil {
			return api.Asset{}, err
		}
		return api.Asset{Addr: parts[0], ID: id.String(), Quantity: qty.String(), Packed: true}, nil
	default:
		return api.Asset{}, fmt.Errorf("invalid asset %q: want addr:amount or addr:id:quantity", raw)
	}
}

func parseAssetSpecs(raw []string) ([]api.Asset, error) {
	out := make([]api.Asset, 0, len(raw))
	for _, spec := range raw {
		asset, err := parseAssetSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

// defaultAttachment is the wei the caller must send when it is the paying side.
func defaultAttachment(value uint64, payer bool) *big.Int {
	if !payer {
		return new(big.Int)
	}
	return swaplace.NativeValue(value)
}
