package cli

import (
	"fmt"
	"slices"

	"github.com/Mussapinga011/PartQuip-sub000/internal/config"
	"github.com/Mussapinga011/PartQuip-sub000/internal/remote"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Offline  bool

	// Config and Backend replace the environment config and the HTTP
	// remote (for testing). Nil means load from the environment.
	Config  *config.Config
	Backend remote.Backend
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shop client.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partquip",
		Short: "PartQuip - offline-first parts counter",
		Long: `PartQuip keeps the shop's catalogue, stock and sales in a local SQLite
store and mirrors every change to the remote backend when it is reachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the local store (overrides LOCAL_DB_PATH)")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "queue writes without contacting the remote")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewSaleCommand(opts))
	cmd.AddCommand(NewSupplyCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}
