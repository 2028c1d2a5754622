package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Show or change a guild's retention settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show a guild's retention settings",
		Run:   runRetentionShow,
	}
	show.Flags().StringP("guild", "g", "", "Guild ID (required)")
	show.MarkFlagRequired("guild")

	setDays := &cobra.Command{
		Use:   "set-days <days>",
		Short: "Set how many days a departed member's data is kept",
		Long:  "0 purges departed members at the next sweep. Existing departures keep their expiry.",
		Args:  cobra.ExactArgs(1),
		Run:   runRetentionSetDays,
	}
	setDays.Flags().StringP("guild", "g", "", "Guild ID (required)")
	setDays.MarkFlagRequired("guild")

	cmd.AddCommand(show, setDays)
	RootCmd.AddCommand(cmd)
}

func runRetentionShow(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := newRetentionService(s).Settings(cmd.Context(), guild)
	if err != nil {
		exitErr("retention settings", err)
	}
	printJSON(st)
}

func runRetentionSetDays(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")
	days, err := strconv.Atoi(args[0])
	if err != nil {
		exitErr("parse days", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := newRetentionService(s).SaveSettings(cmd.Context(), guild, days); err != nil {
		exitErr("set retention days", err)
	}
	fmt.Printf("retention for %s: %d days\n", guild, days)
}
