package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command group: CRUD over the
// catalogue collections plus the part lookups.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage categories, types, suppliers, parts and vehicle compatibility",
		Long: `Manage the catalogue. <collection> is one of:
  ` + strings.Join(catalogCollections(), ", ") + `

Records are read and written as JSON.`,
	}
	cmd.AddCommand(newCatalogListCommand(rootOpts))
	cmd.AddCommand(newCatalogGetCommand(rootOpts))
	cmd.AddCommand(newCatalogWriteCommand(rootOpts, "add"))
	cmd.AddCommand(newCatalogWriteCommand(rootOpts, "update"))
	cmd.AddCommand(newCatalogRemoveCommand(rootOpts))
	cmd.AddCommand(newCatalogFitsCommand(rootOpts))
	cmd.AddCommand(newCatalogLowStockCommand(rootOpts))
	return cmd
}

func catalogCollections() []string {
	return []string{
		model.CollCategorias,
		model.CollTipos,
		model.CollFornecedores,
		model.CollPecas,
		model.CollCompatibilidade,
	}
}

func (a *App) catalog(collection string) (catalogOps, error) {
	ops, ok := a.Catalog[collection]
	if !ok {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("unknown catalog collection %q: want one of %s", collection, strings.Join(catalogCollections(), ", ")))
	}
	return ops, nil
}

func newCatalogListCommand(opts *RootOptions) *cobra.Command {
	var categoria string
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List every record of a catalogue collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			var out any
			if categoria != "" {
				if args[0] != model.CollPecas {
					return NewExitError(ExitCommandError, "--category only applies to "+model.CollPecas)
				}
				out, err = app.Consulta.PecasPorCategoria(cmd.Context(), categoria)
			} else {
				ops, cerr := app.catalog(args[0])
				if cerr != nil {
					return cerr
				}
				out, err = ops.list(cmd.Context())
			}
			if err != nil {
				return err
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(out, nil)
		},
	}
	cmd.Flags().StringVar(&categoria, "category", "", "only parts of this category id")
	return cmd
}

func newCatalogGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one catalogue record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ops, err := app.catalog(args[0])
			if err != nil {
				return err
			}
			v, err := ops.get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printer{format: opts.Format, w: cmd.OutOrStdout()}.print(v, nil)
		},
	}
}

// newCatalogWriteCommand builds "add <collection>" and
// "update <collection> <id>"; both read the record from --data or --file.
func newCatalogWriteCommand(opts *RootOptions, verb string) *cobra.Command {
	var data, file string
	use, nargs, short := "add <collection>", 1, "Create a catalogue record"
	if verb == "update" {
		use, nargs, short = "update <collection> <id>", 2, "Replace a catalogue record"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + ` from JSON given with --data, or read from --file ("-" for stdin).

Example:
  partquip catalog add pecas --data '{"codigo":"FO-123","nome":"Filtro de óleo","preco_venda":"350","estoque_minimo":5}'
  partquip catalog update categorias 9b1e... --file categoria.json`,
		Args: cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, data, file)
			if err != nil {
				return err
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ops, err := app.catalog(args[0])
			if err != nil {
				return err
			}
			var v any
			if verb == "update" {
				v, err = ops.update(cmd.Context(), args[1], raw)
			} else {
				v, err = ops.create(cmd.Context(), raw)
			}
			if err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			return printer{format: opts.Format, w: cmd.OutOrStdout()}.print(v, nil)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "record as inline JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", `read the record from a file ("-" for stdin)`)
	return cmd
}

func newCatalogRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <collection> <id>",
		Short: "Delete a catalogue record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ops, err := app.catalog(args[0])
			if err != nil {
				return err
			}
			if err := ops.remove(cmd.Context(), args[1]); err != nil {
				return err
			}
			app.pushPending(cmd.Context())
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(map[string]string{"removed": args[1]}, func(w io.Writer) {
				fmt.Fprintf(w, "removido %s/%s\n", args[0], args[1])
			})
		},
	}
}

func newCatalogFitsCommand(opts *RootOptions) *cobra.Command {
	var (
		marca, modelo string
		ano           int
	)
	cmd := &cobra.Command{
		Use:   "fits",
		Short: "List parts compatible with a vehicle",
		Long: `List parts compatible with a vehicle. Without --year every year matches.

Example:
  partquip catalog fits --make Toyota --model Hilux --year 2012`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			var anoPtr *int
			if cmd.Flags().Changed("year") {
				anoPtr = &ano
			}
			pecas, err := app.Consulta.PecasParaVeiculo(cmd.Context(), marca, modelo, anoPtr)
			if err != nil {
				return err
			}
			return printPecas(printer{format: opts.Format, w: cmd.OutOrStdout()}, pecas)
		},
	}
	cmd.Flags().StringVar(&marca, "make", "", "vehicle make (required)")
	cmd.Flags().StringVar(&modelo, "model", "", "vehicle model (required)")
	cmd.Flags().IntVar(&ano, "year", 0, "vehicle year")
	_ = cmd.MarkFlagRequired("make")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newCatalogLowStockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "low-stock",
		Short: "List parts below their minimum stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			pecas, err := app.Consulta.EstoqueBaixo(cmd.Context())
			if err != nil {
				return err
			}
			return printPecas(printer{format: opts.Format, w: cmd.OutOrStdout()}, pecas)
		},
	}
}

func printPecas(p printer, pecas []model.Peca) error {
	if pecas == nil {
		pecas = []model.Peca{}
	}
	return p.print(pecas, func(w io.Writer) {
		sorted := append([]model.Peca(nil), pecas...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Codigo < sorted[j].Codigo })
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODIGO\tNOME\tESTOQUE\tMINIMO\tPRECO")
		for _, pc := range sorted {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", pc.Codigo, pc.Nome, pc.EstoqueAtual, pc.EstoqueMinimo, pc.PrecoVenda.StringFixed(2))
		}
		_ = tw.Flush()
	})
}

func readInput(cmd *cobra.Command, data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, NewExitError(ExitCommandError, "--data and --file are mutually exclusive")
	case data != "":
		return []byte(data), nil
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		return os.ReadFile(file)
	}
	return nil, NewExitError(ExitCommandError, "one of --data or --file is required")
}
