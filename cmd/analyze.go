package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/insight-api/internal/model"
)

var (
	analyzePollInterval time.Duration
	analyzeTimeout      time.Duration
	analyzeNoWait       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <research question>",
	Short: "Submit a research question and wait for the report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("client"); err != nil {
			return err
		}

		question := strings.Join(args, " ")
		client := newAPIClient(cfg.API.BaseURL)

		submitted, err := client.submit(cmd.Context(), question)
		if err != nil {
			return eris.Wrap(err, "submit analysis")
		}
		fmt.Printf("Analysis %s accepted\n", submitted.AnalysisID)

		if analyzeNoWait {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
		defer cancel()

		final, err := pollUntilDone(ctx, client, submitted.AnalysisID)
		if err != nil {
			return err
		}
		if final.Status == model.JobStatusError {
			return eris.Errorf("analysis failed: %s", final.ErrorMessage)
		}

		report, err := client.result(ctx, submitted.AnalysisID)
		if err != nil {
			return eris.Wrap(err, "fetch result")
		}
		printReport(report)
		return nil
	},
}

func pollUntilDone(ctx context.Context, client *apiClient, id string) (*statusResult, error) {
	ticker := time.NewTicker(analyzePollInterval)
	defer ticker.Stop()

	lastStep := ""
	for {
		st, err := client.status(ctx, id)
		if err != nil {
			return nil, eris.Wrap(err, "poll status")
		}
		if st.CurrentStep != lastStep {
			fmt.Printf("  [%3d%%] %s\n", st.Progress, st.CurrentStep)
			lastStep = st.CurrentStep
		}
		if st.Status.Terminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "waiting for analysis")
		case <-ticker.C:
		}
	}
}

func printReport(r *model.FinalReport) {
	fmt.Printf("\n%s\n", r.Visualization.Title)
	fmt.Println(strings.Repeat("=", len(r.Visualization.Title)))

	for _, s := range r.Visualization.BrandScores {
		bar := strings.Repeat("#", s.VisibilityScore/4)
		fmt.Printf("%d. %-30s %3d %s\n", s.Rank, s.BrandName, s.VisibilityScore, bar)
	}

	fmt.Printf("\nMethodology: %s\n", r.Visualization.Methodology)
	fmt.Printf("\nWeb analysis (%s, confidence %.2f):\n%s\n", r.WebResults.Source, r.WebResults.Confidence, r.WebResults.Content)
	fmt.Printf("\nDirect answer:\n%s\n", r.DirectAnswer.Response)
	if len(r.DirectAnswer.Brands) > 0 {
		fmt.Printf("\nIdentified brands: %s\n", strings.Join(r.DirectAnswer.Brands, ", "))
	}
}

func init() {
	analyzeCmd.Flags().DurationVar(&analyzePollInterval, "poll-interval", 2*time.Second, "status poll interval")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 5*time.Minute, "max time to wait for completion")
	analyzeCmd.Flags().BoolVar(&analyzeNoWait, "no-wait", false, "submit and exit without polling")
	rootCmd.AddCommand(analyzeCmd)
}
