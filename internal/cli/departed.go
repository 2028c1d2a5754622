package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "departed",
		Short: "List a guild's departed and purged members",
		Run:   runDeparted,
	}

	cmd.Flags().StringP("guild", "g", "", "Guild ID (required)")
	cmd.Flags().Bool("pending", false, "Only members whose data has not been purged yet")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or text")

	cmd.MarkFlagRequired("guild")

	RootCmd.AddCommand(cmd)
}

func runDeparted(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")
	pending, _ := cmd.Flags().GetBool("pending")
	format, _ := cmd.Flags().GetString("format")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := newRetentionService(s).ListDeparted(cmd.Context(), guild)
	if err != nil {
		exitErr("departed", err)
	}

	if pending {
		var filtered []model.RetentionRecord
		for _, r := range recs {
			if r.State == model.StateDeparted {
				filtered = append(filtered, r)
			}
		}
		recs = filtered
	}

	if format == "text" {
		now := time.Now()
		for _, r := range recs {
			status := string(r.State)
			if r.State == model.StateDeparted && r.Expired(now) {
				status = "expired"
			}
			fmt.Printf("%s\t%s\tleft %s\texpires %s\n", r.UserID, status,
				r.LeftAt.Format(time.RFC3339), r.ExpiresAt.Format(time.RFC3339))
		}
		return
	}

	if recs == nil {
		recs = []model.RetentionRecord{}
	}
	printJSON(recs)
}
