package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rejoin",
		Short: "Record that a member rejoined a guild",
		Long:  "Cancels a pending purge. Data already purged is not restored.",
		Run:   runRejoin,
	}

	cmd.Flags().StringP("guild", "g", "", "Guild ID (required)")
	cmd.Flags().StringP("user", "u", "", "User ID (required)")

	cmd.MarkFlagRequired("guild")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runRejoin(cmd *cobra.Command, args []string) {
	guild, _ := cmd.Flags().GetString("guild")
	user, _ := cmd.Flags().GetString("user")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := newRetentionService(s).HandleJoin(cmd.Context(), guild, user); err != nil {
		exitErr("rejoin", err)
	}

	fmt.Printf("rejoined: %s/%s\n", guild, user)
}
