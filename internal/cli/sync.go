package cli

import (
	"fmt"
	"io"

	"github.com/Mussapinga011/PartQuip-sub000/internal/syncengine"
	"github.com/Mussapinga011/PartQuip-sub000/internal/worker"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Full     bool
	PushOnly bool
}

type syncReport struct {
	Online   bool                      `json:"online"`
	Outbound syncengine.Result         `json:"outbound"`
	Inbound  *syncengine.InboundResult `json:"inbound,omitempty"`
}

// NewSyncCommand creates the sync command: one manual pass, outbound first.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		Long: `Send every pending mutation to the remote, then reconcile the local store.
The inbound half follows INBOUND_MODE unless --full forces a full replace.

Example:
  partquip sync
  partquip sync --full
  partquip sync --push-only --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Full && opts.PushOnly {
				return NewExitError(ExitCommandError, "--full and --push-only are mutually exclusive")
			}
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			rep := syncReport{Online: app.Monitor.Check(ctx)}
			if !rep.Online {
				return WrapExitError(ExitFailure, "remote unreachable", syncengine.ErrOffline)
			}

			switch {
			case opts.PushOnly:
				rep.Outbound, err = app.Outbound.Run(ctx)
			case opts.Full:
				if rep.Outbound, err = app.Outbound.Run(ctx); err == nil {
					var in syncengine.InboundResult
					in, err = app.Inbound.FullSync(ctx)
					rep.Inbound = &in
				}
			default:
				sched := worker.NewScheduler(worker.SchedulerConfig{
					Outbound: app.Outbound,
					Inbound:  app.Inbound,
					Bus:      app.Bus,
				})
				var in syncengine.InboundResult
				rep.Outbound, in, err = sched.RunNow(ctx)
				rep.Inbound = &in
			}
			if err != nil {
				return WrapExitError(ExitFailure, "sync failed", err)
			}

			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(rep, func(w io.Writer) {
				o := rep.Outbound
				fmt.Fprintf(w, "outbound: %d attempted, %d sent, %d failed, %d purged\n", o.Attempted, o.Sent, o.Failed, o.Purged)
				if in := rep.Inbound; in != nil {
					fmt.Fprintf(w, "inbound (%s): %d fetched, %d inserted, %d updated, %d kept\n", in.Mode, in.Fetched, in.Inserted, in.Updated, in.Kept)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Full, "full", false, "replace every local collection with the remote copy")
	cmd.Flags().BoolVar(&opts.PushOnly, "push-only", false, "only send pending mutations")

	return cmd
}
