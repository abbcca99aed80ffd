package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewSupplyCommand creates the supply command group (stock entries).
func NewSupplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Record stock entries",
	}
	cmd.AddCommand(newSupplyAddCommand(rootOpts))
	cmd.AddCommand(newSupplyListCommand(rootOpts))
	return cmd
}

func newSupplyAddCommand(opts *RootOptions) *cobra.Command {
	var (
		codigo, custo, data string
		req                 dto.RegistrarAbastecimentoRequest
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add stock to a part and recompute its weighted average cost",
		Long: `Add stock to a part. The part's cost becomes the weighted average of the
stock on hand and the entry.

Example:
  partquip supply add --part FO-123 --qty 10 --cost 120.50 --supplier 3f2a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := decimal.NewFromString(custo)
			if err != nil || c.IsNegative() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --cost %q", custo))
			}
			req.CustoUnitario = c
			if data != "" {
				t, err := time.Parse(time.DateOnly, data)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --date, want YYYY-MM-DD", err)
				}
				req.Data = &t
			}

			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			if req.PecaID, err = pecaIDByCodigo(ctx, app.Store, codigo); err != nil {
				return err
			}
			res, err := app.Abastecimentos.RegistrarAbastecimento(ctx, req)
			if err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(res, func(w io.Writer) {
				fmt.Fprintf(w, "%s: estoque %d -> %d, custo %s -> %s\n", codigo,
					res.EstoqueAnterior, res.EstoqueNovo,
					res.CustoAnterior.StringFixed(2), res.CustoMedio.StringFixed(2))
			})
		},
	}
	cmd.Flags().StringVar(&codigo, "part", "", "part code (required)")
	cmd.Flags().IntVar(&req.Quantidade, "qty", 0, "quantity received (required)")
	cmd.Flags().StringVar(&custo, "cost", "0", "unit cost")
	cmd.Flags().StringVar(&req.FornecedorID, "supplier", "", "supplier id")
	cmd.Flags().StringVar(&data, "date", "", "entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&req.Observacoes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("part")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func newSupplyListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <part-code>",
		Short: "List stock entries for one part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			id, err := pecaIDByCodigo(ctx, app.Store, args[0])
			if err != nil {
				return err
			}
			entries, err := app.Abastecimentos.ListarPorPeca(ctx, id)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []model.Abastecimento{}
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATA\tQTD\tCUSTO")
				for _, a := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.ID, a.Data.Format(time.DateOnly), a.Quantidade, a.CustoUnitario.StringFixed(2))
				}
				_ = tw.Flush()
			})
		},
	}
}
