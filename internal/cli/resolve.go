package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the reward multiplier for an activity event",
		Run:   runResolve,
	}

	addEventFlags(cmd)

	RootCmd.AddCommand(cmd)
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("guild", "g", "", "Guild ID (required)")
	cmd.Flags().StringP("user", "u", "", "User ID")
	cmd.Flags().String("channel", "", "Channel ID (required)")
	cmd.Flags().StringP("roles", "r", "", "Comma-separated role IDs")
	cmd.Flags().StringP("type", "t", "text", "Activity type: text or voice")
	cmd.Flags().String("at", "", "Event time, RFC3339 (default: now)")

	cmd.MarkFlagRequired("guild")
	cmd.MarkFlagRequired("channel")
}

func eventFromFlags(cmd *cobra.Command) model.ActivityEvent {
	guild, _ := cmd.Flags().GetString("guild")
	user, _ := cmd.Flags().GetString("user")
	channel, _ := cmd.Flags().GetString("channel")
	roles, _ := cmd.Flags().GetString("roles")
	typ, _ := cmd.Flags().GetString("type")
	at, _ := cmd.Flags().GetString("at")

	activity, err := model.ParseEventType(typ)
	if err != nil {
		exitErr("type", err)
	}

	ts := time.Now()
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			exitErr("at", model.ValidationError("parse event", err))
		}
		ts = t
	}

	return model.ActivityEvent{
		GuildID:   guild,
		UserID:    user,
		ChannelID: channel,
		RoleIDs:   splitCSV(roles),
		Type:      activity,
		Timestamp: ts,
	}
}

func runResolve(cmd *cobra.Command, args []string) {
	ev := eventFromFlags(cmd)

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	v, err := newResolver(s).Resolve(cmd.Context(), ev)
	if err != nil {
		exitErr("resolve", err)
	}
	printJSON(v)
}
