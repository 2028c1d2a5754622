package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/reward"
)

func init() {
	cmd := &cobra.Command{
		Use:   "award",
		Short: "Award xp and currency for an activity event",
		Long:  "Applies the guild's exclusions, category and hot-time multipliers to the base award and records it.",
		Run:   runAward,
	}

	addEventFlags(cmd)
	cmd.Flags().Int64("xp", 0, "Base xp")
	cmd.Flags().Int64("currency", 0, "Base currency")

	RootCmd.AddCommand(cmd)
}

func runAward(cmd *cobra.Command, args []string) {
	ev := eventFromFlags(cmd)
	xp, _ := cmd.Flags().GetInt64("xp")
	currency, _ := cmd.Flags().GetInt64("currency")

	if ev.UserID == "" {
		exitErr("award", fmt.Errorf("--user is required"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := reward.NewService(newResolver(s), s, s, cfg.Level.Multiplier, log)
	res, err := svc.Award(cmd.Context(), ev, reward.Base{XP: xp, Currency: currency})
	if err != nil {
		exitErr("award", err)
	}
	printJSON(res)
}
