package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List analysis jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}

		client := newAPIClient(cfg.API.BaseURL)
		list, err := client.list(cmd.Context(), jobsStatus, jobsLimit)
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tCREATED\tQUESTION")
		for _, j := range list.Jobs {
			question := j.Question
			if len(question) > 60 {
				question = question[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n",
				j.AnalysisID, j.Status, j.Progress, j.CreatedAt.Format("2006-01-02 15:04"), question)
		}
		return w.Flush()
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (QUEUED, PROCESSING, SYNTHESIZING, COMPLETE, ERROR)")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "max jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
