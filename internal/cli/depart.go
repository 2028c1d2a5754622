package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "depart",
		Short: "Record that a member left a guild",
		Long: "Starts the member's retention clock. Without --days the guild's retention setting " +
			"is used, falling back to retention.default_days.",
		Run: runDepart,
	}

	cmd.Flags().StringP("guild", "g", "", "Guild ID (required)")
	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().Int("days", -1, "Retention days for this departure")

	cmd.MarkFlagRequired("guild")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runDepart(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")
	user, _ := cmd.Flags().GetString("user")
	days, _ := cmd.Flags().GetInt("days")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := newRetentionService(s)
	if !cmd.Flags().Changed("days") {
		days = svc.RetentionDays(cmd.Context(), guild)
	}

	rec, err := svc.OnMemberDeparture(cmd.Context(), guild, user, days)
	if err != nil {
		exitErr("depart", err)
	}

	printJSON(rec)
}
