package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Mussapinga011/PartQuip-sub000/internal/dto"
	"github.com/Mussapinga011/PartQuip-sub000/internal/localstore"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
	"github.com/Mussapinga011/PartQuip-sub000/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewSaleCommand creates the sale command group.
func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Register, cancel and edit sales",
	}
	cmd.AddCommand(newSaleRegisterCommand(rootOpts))
	cmd.AddCommand(newSaleCancelCommand(rootOpts))
	cmd.AddCommand(newSaleEditCommand(rootOpts))
	cmd.AddCommand(newSaleNextNumberCommand(rootOpts))
	cmd.AddCommand(newSaleShowCommand(rootOpts))
	return cmd
}

func newSaleRegisterCommand(opts *RootOptions) *cobra.Command {
	var (
		items []string
		req   dto.RegistrarVendaRequest
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a checkout",
		Long: `Register one checkout. Each --item is CODIGO:QUANTIDADE[:PRECO]; without a
price the part's sale price is used.

Example:
  partquip sale register --item FO-123:2 --item PA-9:1:450.00 --payment mpesa --client "Auto Sul"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(items) == 0 {
				return NewExitError(ExitCommandError, "at least one --item is required")
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			cart := service.NovoCarrinho(app.Store)
			for _, spec := range items {
				codigo, qtd, preco, err := parseItem(spec)
				if err != nil {
					return err
				}
				id, err := pecaIDByCodigo(ctx, app.Store, codigo)
				if err != nil {
					return err
				}
				if err := cart.Add(ctx, id, qtd, preco); err != nil {
					return err
				}
			}
			req.Itens = cart.Itens()

			res, err := app.Vendas.RegistrarVenda(ctx, req)
			if err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(res, func(w io.Writer) {
				fmt.Fprintf(w, "venda %s: %d linha(s), total %s\n", res.NumeroVenda, res.Linhas, res.Total.StringFixed(2))
				for _, id := range res.EstoqueBaixo {
					fmt.Fprintf(w, "estoque baixo: %s\n", id)
				}
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "cart line CODIGO:QUANTIDADE[:PRECO] (repeatable)")
	cmd.Flags().StringVar(&req.FormaPagamento, "payment", "dinheiro", "payment method (dinheiro|cartao|transferencia|mpesa|emola|credito)")
	cmd.Flags().StringVar(&req.Cliente, "client", "", "customer name")
	cmd.Flags().StringVar(&req.Veiculo, "vehicle", "", "customer vehicle")
	cmd.Flags().StringVar(&req.Vendedor, "seller", "", "seller name")
	cmd.Flags().StringVar(&req.Observacoes, "notes", "", "free-form notes")
	return cmd
}

func newSaleCancelCommand(opts *RootOptions) *cobra.Command {
	var numero string
	cmd := &cobra.Command{
		Use:   "cancel [sale-id]",
		Short: "Cancel a sale line, or every line of a checkout with --number",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (numero != "") {
				return NewExitError(ExitCommandError, "pass either a sale id or --number")
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			var vendas []model.Venda
			if numero != "" {
				vendas, err = app.Vendas.CancelarNumero(cmd.Context(), numero)
			} else {
				var v *model.Venda
				if v, err = app.Vendas.CancelarVenda(cmd.Context(), args[0]); err == nil {
					vendas = []model.Venda{*v}
				}
			}
			if err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(vendas, func(w io.Writer) {
				for _, v := range vendas {
					fmt.Fprintf(w, "cancelada %s (%s x%d)\n", v.ID, v.PecaCodigo, v.Quantidade)
				}
			})
		},
	}
	cmd.Flags().StringVar(&numero, "number", "", "cancel every confirmed line of this sale number")
	return cmd
}

func newSaleEditCommand(opts *RootOptions) *cobra.Command {
	var (
		qtd                              int
		preco, total                     string
		pagamento, cliente, veiculo, obs string
	)
	cmd := &cobra.Command{
		Use:   "edit <sale-id>",
		Short: "Edit a confirmed sale line",
		Long: `Edit a confirmed sale line. A quantity change moves the difference in or out
of stock. When --total is given it wins and the unit price is derived from it.

Example:
  partquip sale edit 6c1d... --qty 3
  partquip sale edit 6c1d... --total 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.EditarVendaRequest
			flags := cmd.Flags()
			if flags.Changed("qty") {
				req.Quantidade = &qtd
			}
			for _, d := range []struct {
				flag string
				val  string
				dst  **decimal.Decimal
			}{{"price", preco, &req.PrecoUnitario}, {"total", total, &req.Total}} {
				if !flags.Changed(d.flag) {
					continue
				}
				v, err := decimal.NewFromString(d.val)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --"+d.flag, err)
				}
				*d.dst = &v
			}
			for _, s := range []struct {
				flag string
				val  *string
				dst  **string
			}{
				{"payment", &pagamento, &req.FormaPagamento},
				{"client", &cliente, &req.Cliente},
				{"vehicle", &veiculo, &req.Veiculo},
				{"notes", &obs, &req.Observacoes},
			} {
				if flags.Changed(s.flag) {
					*s.dst = s.val
				}
			}

			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			v, err := app.Vendas.EditarVenda(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(v, func(w io.Writer) {
				fmt.Fprintf(w, "venda %s: %s x%d @ %s = %s\n", v.ID, v.PecaCodigo, v.Quantidade,
					v.PrecoUnitario.StringFixed(2), v.Total.StringFixed(2))
			})
		},
	}
	cmd.Flags().IntVar(&qtd, "qty", 0, "new quantity")
	cmd.Flags().StringVar(&preco, "price", "", "new unit price")
	cmd.Flags().StringVar(&total, "total", "", "new line total")
	cmd.Flags().StringVar(&pagamento, "payment", "", "new payment method")
	cmd.Flags().StringVar(&cliente, "client", "", "new customer name")
	cmd.Flags().StringVar(&veiculo, "vehicle", "", "new customer vehicle")
	cmd.Flags().StringVar(&obs, "notes", "", "new notes")
	return cmd
}

func newSaleNextNumberCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next-number",
		Short: "Print the sale number the next checkout will get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Vendas.ProximoNumero(cmd.Context())
			if err != nil {
				return err
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(map[string]string{"numero_venda": n}, func(w io.Writer) {
				fmt.Fprintln(w, n)
			})
		},
	}
}

func newSaleShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <sale-number>",
		Short: "List the lines of one checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			vendas, err := app.Vendas.ListarPorNumero(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if vendas == nil {
				vendas = []model.Venda{}
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(vendas, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCODIGO\tQTD\tPRECO\tTOTAL\tSTATUS")
				for _, v := range vendas {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", v.ID, v.PecaCodigo, v.Quantidade,
						v.PrecoUnitario.StringFixed(2), v.Total.StringFixed(2), v.Status)
				}
				_ = tw.Flush()
			})
		},
	}
}

// parseItem reads CODIGO:QUANTIDADE[:PRECO].
func parseItem(s string) (codigo string, qtd int, preco decimal.Decimal, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return "", 0, preco, NewExitError(ExitCommandError, fmt.Sprintf("invalid --item %q: want CODIGO:QUANTIDADE[:PRECO]", s))
	}
	codigo = strings.TrimSpace(parts[0])
	if qtd, err = strconv.Atoi(parts[1]); err != nil || qtd <= 0 {
		return "", 0, preco, NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity in --item %q", s))
	}
	if len(parts) == 3 {
		if preco, err = decimal.NewFromString(parts[2]); err != nil || preco.IsNegative() {
			return "", 0, preco, NewExitError(ExitCommandError, fmt.Sprintf("invalid price in --item %q", s))
		}
	}
	return codigo, qtd, preco, nil
}

func pecaIDByCodigo(ctx context.Context, q localstore.Querier, codigo string) (string, error) {
	recs, err := q.FindByIndex(ctx, model.CollPecas, "codigo", codigo)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("%w: peça %s", service.ErrNotFound, codigo)
	}
	return recs[0].ID, nil
}
