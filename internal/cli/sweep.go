package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired departed members once",
		Long:  "Runs a single retention sweep across all guilds and prints the result as JSON.",
		Run:   runSweep,
	}

	RootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res := newSweeper(s).SweepExpired(cmd.Context())
	printJSON(res)
	if res.Err != nil {
		exitErr("sweep", res.Err)
	}
}
