package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Mussapinga011/PartQuip-sub000/internal/model"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command group for inspecting the
// Mutation Queue.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the outbound mutation queue",
	}
	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueCountCommand(rootOpts))
	return cmd
}

func newQueueListCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued mutations in send order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			var items []model.MutationQueueItem
			if all {
				items, err = app.Queue.ListAll(cmd.Context())
			} else {
				items, err = app.Queue.ListPending(cmd.Context())
			}
			if err != nil {
				return err
			}
			if items == nil {
				items = []model.MutationQueueItem{}
			}

			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(items, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SEQ\tOPERATION\tCOLLECTION\tRECORD\tENQUEUED\tCONFIRMED")
				for _, it := range items {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
						it.Seq, it.Operation, it.Collection, it.RecordID,
						it.EnqueuedAt.Local().Format(time.DateTime), it.Confirmed)
				}
				_ = tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include confirmed items not yet purged")
	return cmd
}

func newQueueCountCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of pending mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Queue.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			p := printer{format: opts.Format, w: cmd.OutOrStdout()}
			return p.print(map[string]int{"pending": n}, func(w io.Writer) {
				fmt.Fprintln(w, n)
			})
		},
	}
}
