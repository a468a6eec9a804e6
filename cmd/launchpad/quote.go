package main

import (
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
)

type quoteOptions struct {
	basePrice string
	increment string
	sold      string
	amount    string
}

func newQuoteCmd() *cobra.Command {
	opts := &quoteOptions{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a trade on a bonding curve",
		Long: `Prices buying and selling --amount whole wrapper tokens on a curve with
the given base price and increment (native units per token) after --sold
tokens have left the curve. Fees use the engine's flat trade fee.

Example:
  launchpad quote --base-price 0.001 --increment 0.0001 --sold 250 --amount 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.basePrice, "base-price", "", "price of the first token in native units")
	cmd.Flags().StringVar(&opts.increment, "increment", "0", "price increase per token sold in native units")
	cmd.Flags().StringVar(&opts.sold, "sold", "0", "whole tokens already sold by the curve")
	cmd.Flags().StringVar(&opts.amount, "amount", "1", "whole tokens to trade")
	_ = cmd.MarkFlagRequired("base-price")
	return cmd
}

func runQuote(w io.Writer, opts *quoteOptions) error {
	base, err := curve.ParseUnits(opts.basePrice, curve.NativeDecimals)
	if err != nil {
		return fmt.Errorf("base price: %w", err)
	}
	if base.IsZero() {
		return fmt.Errorf("base price: %w", curve.ErrZeroAmount)
	}
	inc, err := curve.ParseUnits(opts.increment, curve.NativeDecimals)
	if err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	sold, err := curve.ParseUnits(opts.sold, curve.WrapperDecimals)
	if err != nil {
		return fmt.Errorf("sold: %w", err)
	}
	amount, err := curve.ParseUnits(opts.amount, curve.WrapperDecimals)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	price, err := curve.PriceAt(base, inc, sold)
	if err != nil {
		return err
	}
	cost, err := curve.BuyCost(base, inc, sold, amount)
	if err != nil {
		return err
	}
	buyFee, err := curve.Fee(cost, launchpad.TradeFeeBps)
	if err != nil {
		return err
	}
	after, err := curve.PriceAt(base, inc, new(uint256.Int).Add(sold, amount))
	if err != nil {
		return err
	}

	native := func(v *uint256.Int) string { return curve.FormatUnits(v, curve.NativeDecimals) }
	fmt.Fprintf(w, "price:           %s\n", native(price))
	fmt.Fprintf(w, "buy cost:        %s\n", native(cost))
	fmt.Fprintf(w, "buy fee:         %s\n", native(buyFee))
	fmt.Fprintf(w, "buy total:       %s\n", native(new(uint256.Int).Add(cost, buyFee)))
	fmt.Fprintf(w, "price after buy: %s\n", native(after))

	proceeds, err := curve.SellProceeds(base, inc, sold, amount)
	if err != nil {
		// nothing to sell back yet
		fmt.Fprintf(w, "sell:            %v\n", err)
		return nil
	}
	sellFee, err := curve.Fee(proceeds, launchpad.TradeFeeBps)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sell proceeds:   %s\n", native(proceeds))
	fmt.Fprintf(w, "sell fee:        %s\n", native(sellFee))
	fmt.Fprintf(w, "sell net:        %s\n", native(new(uint256.Int).Sub(proceeds, sellFee)))
	return nil
}
