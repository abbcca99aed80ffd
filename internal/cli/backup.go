package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Mussapinga011/PartQuip-sub000/internal/backup"

	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore the local store",
	}
	cmd.AddCommand(newBackupExportCommand(rootOpts))
	cmd.AddCommand(newBackupImportCommand(rootOpts))
	return cmd
}

func newBackupExportCommand(opts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection to a JSON backup document",
		Long: `Write every collection to a JSON backup document. The mutation queue is not
part of the backup.

Example:
  partquip backup export -o loja-2026-10-18.json
  partquip backup export > loja.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, ferr := os.Create(out)
				if ferr != nil {
					return WrapExitError(ExitCommandError, "create backup file", ferr)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}

			doc, err := app.Backup.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d collections to %s\n", len(doc.Collections), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", `backup file (default stdout)`)
	return cmd
}

func newBackupImportCommand(opts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore collections from a backup document",
		Long: `Restore collections from a backup document ("-" reads stdin). The whole
document is validated before anything is written.

  --mode merge      upsert the backup's records, keep everything else (default)
  --mode overwrite  empty each collection present in the backup first

Restored records are not queued for upload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := backup.ParseMode(mode)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --mode", err)
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "open backup file", err)
				}
				defer f.Close()
				r = f
			}

			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Backup.Import(cmd.Context(), r, m)
			if err != nil {
				return err
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(res, func(w io.Writer) {
				names := make([]string, 0, len(res.Collections))
				for n := range res.Collections {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					fmt.Fprintf(w, "%s: %d\n", n, res.Collections[n])
				}
				fmt.Fprintf(w, "restored %d records (%s)\n", res.Total, res.Mode)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(backup.ModeMerge), "merge | overwrite")
	return cmd
}
