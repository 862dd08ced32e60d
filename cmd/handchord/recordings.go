package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recordingsCmd)
	recordingsCmd.Flags().Bool("json", false, "print the catalog as JSON")
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "Lists finished recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(context.Background())
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer st.Close()

		recs, err := st.Recordings().List()
		if err != nil {
			return fmt.Errorf("list recordings: %w", err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if recs == nil {
				recs = []*store.Recording{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no recordings")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFORMAT\tSIZE\tDURATION\tCREATED\tPATH")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				r.ID, r.Format, r.Size, r.Duration.Round(time.Millisecond),
				r.CreatedAt.Local().Format(time.DateTime), r.Path)
		}
		return w.Flush()
	},
}

