package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List or delete stored graph snapshots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.svc.ListSnapshots()
			if err != nil {
				return err
			}
			if !c.human() {
				return c.writeJSON(entries)
			}
			st := newStyles(c.out)
			if len(entries) == 0 {
				fmt.Fprintln(c.out, st.muted.Render("no snapshots"))
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(c.out, "%-16s %s files=%d functions=%d %s\n",
					st.label.Render(e.Label), e.SavedAt.Format("2006-01-02 15:04:05"),
					e.FileCount, e.FunctionCount, st.muted.Render(e.Root))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <label>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.svc.DeleteSnapshot(args[0])
		},
	})
	return cmd
}
