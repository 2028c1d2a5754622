package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/level"
	"github.com/rcliao/guildkeeper/internal/reward"
)

func init() {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Convert between xp and level for a guild",
		Long: "With --xp prints the level and progress for that xp; with --level prints the xp the " +
			"level requires; with --user prints the member's current progress. Uses the guild's " +
			"custom table when it has one.",
		Run: runLevel,
	}

	cmd.Flags().StringP("guild", "g", "", "Guild ID (required)")
	cmd.Flags().Int64("xp", -1, "XP to convert to a level")
	cmd.Flags().IntP("level", "l", -1, "Level to convert to required xp")
	cmd.Flags().StringP("user", "u", "", "Show a member's progress")

	cmd.MarkFlagRequired("guild")

	RootCmd.AddCommand(cmd)
}

func runLevel(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")
	xp, _ := cmd.Flags().GetInt64("xp")
	lvl, _ := cmd.Flags().GetInt("level")
	user, _ := cmd.Flags().GetString("user")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := reward.NewService(nil, s, s, cfg.Level.Multiplier, log)
	curve, err := svc.Curve(cmd.Context(), guild)
	if err != nil {
		exitErr("level curve", err)
	}

	switch {
	case cmd.Flags().Changed("level"):
		printJSON(map[string]int64{"level": int64(lvl), "xp": level.XPForLevel(lvl, curve)})
	case cmd.Flags().Changed("xp"):
		printJSON(level.ProgressFor(xp, curve))
	case user != "":
		memberXP, err := s.MemberXP(cmd.Context(), guild, user)
		if err != nil {
			exitErr("member xp", err)
		}
		printJSON(level.ProgressFor(memberXP, curve))
	default:
		exitErr("level", fmt.Errorf("one of --xp, --level or --user is required"))
	}
}
