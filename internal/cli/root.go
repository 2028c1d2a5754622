// Package cli implements the guildkeeper CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/config"
	"github.com/rcliao/guildkeeper/internal/logging"
	"github.com/rcliao/guildkeeper/internal/multiplier"
	"github.com/rcliao/guildkeeper/internal/retention"
	"github.com/rcliao/guildkeeper/internal/store"
)

var (
	dbPath     string
	configPath string

	cfg *config.Config
	log *logrus.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "guildkeeper",
	Short: "Progression and retention rules for guild bots",
	Long: "Resolves reward multipliers for member activity, computes levels, and purges the data " +
		"of departed members once their guild's retention window has passed. SQLite-backed, single binary.",
	PersistentPreRun: loadConfig,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: db.path from config or ~/.guildkeeper/guildkeeper.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./guildkeeper.yaml or ~/.guildkeeper/guildkeeper.yaml)")
}

func loadConfig(cmd *cobra.Command, args []string) {
	c, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		c.DB.Path = dbPath
	}
	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		exitErr("configure logging", err)
	}
	cfg, log = c, l
}

func getDBPath() string {
	return cfg.DB.Path
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func newResolver(s store.GuildRuleConfig) *multiplier.Resolver {
	policy, err := multiplier.ParsePolicy(cfg.Rules.HotTimePolicy)
	if err != nil {
		exitErr("rules.hot_time_policy", err)
	}
	return multiplier.NewResolver(s,
		multiplier.WithPolicy(policy),
		multiplier.WithLocation(cfg.Location()),
		multiplier.WithLogger(log),
	)
}

func newRetentionService(s store.RetentionStore) *retention.Service {
	return retention.NewService(s, cfg.Retention.DefaultDays, log)
}

func newSweeper(s store.RetentionStore) *retention.Sweeper {
	return retention.NewSweeper(s, retention.SweeperConfig{
		PurgeTimeout: cfg.Retention.PurgeTimeout,
		PurgeRate:    cfg.Retention.PurgeRate,
	}, log)
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
