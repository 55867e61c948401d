package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cancelmem/cancelmem-backend/internal/deadline"
	"github.com/cancelmem/cancelmem-backend/pkg/enums"
	"github.com/cancelmem/cancelmem-backend/pkg/types"
)

func newPreviewCmd() *cobra.Command {
	var (
		renewal string
		intent  string
		rule    string
		custom  string
		asOf    string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compute the cancel-by date and reminders for a renewal",
		Example: `  cancelmemctl preview --renewal 2026-03-15 --intent trial
  cancelmemctl preview --renewal 2026-03-15 --intent cancel-soon --rule 7-days-before --as-of 2026-03-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			renewalDate, err := types.ParseDate(renewal)
			if err != nil {
				return err
			}
			parsedIntent, err := enums.ParseIntent(intent)
			if err != nil {
				return err
			}
			var parsedRule enums.CancelByRule
			if rule != "" {
				if parsedRule, err = enums.ParseCancelByRule(rule); err != nil {
					return err
				}
			}
			var customDate *types.Date
			if custom != "" {
				d, err := types.ParseDate(custom)
				if err != nil {
					return err
				}
				customDate = &d
			}
			if parsedRule == enums.CancelByRuleCustom && customDate == nil {
				return fmt.Errorf("--custom is required with --rule custom")
			}
			now := time.Now()
			if asOf != "" {
				d, err := types.ParseDate(asOf)
				if err != nil {
					return err
				}
				now = d.Midnight(time.Local)
			}

			p := deadline.BuildPreview(renewalDate, parsedIntent, parsedRule, customDate, now)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rule:       %s\n", p.Rule)
			if p.HasDeadline {
				fmt.Fprintf(out, "cancel by:  %s\n", p.CancelByDate)
				fmt.Fprintf(out, "days until: %d\n", p.DaysUntil)
			} else {
				fmt.Fprintln(out, "cancel by:  anytime")
			}
			fmt.Fprintf(out, "reminders:  7d=%t 3d=%t 1d=%t day-of=%t\n",
				p.Reminders.SevenDays, p.Reminders.ThreeDays, p.Reminders.OneDay, p.Reminders.DayOf)
			return nil
		},
	}
	cmd.Flags().StringVar(&renewal, "renewal", "", "next renewal date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&intent, "intent", string(enums.IntentKeep), "keep, trial or cancel-soon")
	cmd.Flags().StringVar(&rule, "rule", "", "cancel-by rule; defaults from intent")
	cmd.Flags().StringVar(&custom, "custom", "", "custom cancel-by date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate days remaining as of this date")
	_ = cmd.MarkFlagRequired("renewal")
	return cmd
}
