package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trustscore/internal/scoring"
)

var computeAgentID string

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Recompute trust scores from stored feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, false)
		if err != nil {
			return err
		}
		defer rt.close()

		agg := scoring.NewAggregator(rt.store, rt.publisher, rt.cfg.HalfLifeDays, rt.logger)

		if computeAgentID != "" {
			score, err := agg.ComputeAndSave(ctx, computeAgentID)
			if err != nil {
				return err
			}
			if score == nil {
				fmt.Printf("agent %s has no feedback, no score computed\n", computeAgentID)
				return nil
			}
			fmt.Printf("agent %s: score %.2f (%d feedback)\n",
				score.AgentID, score.OverallScore, score.FeedbackCount)
			return nil
		}

		n, err := agg.ComputeAllScores(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("computed %d scores\n", n)
		return nil
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeAgentID, "agent", "", "recompute a single agent id")
}
