package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/guildkeeper/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Import or export guild rules as YAML",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Export guild rules as YAML",
		Long:  "Writes one YAML document per guild: timezone, retention days, level table, categories, hot times and exclusions.",
		Run:   runRulesExport,
	}
	export.Flags().StringSliceP("guild", "g", nil, "Guild ID, repeatable (required)")
	export.Flags().StringP("out", "o", "", "Write to file instead of stdout")
	export.MarkFlagRequired("guild")

	imp := &cobra.Command{
		Use:   "import [file]",
		Short: "Import guild rules from YAML",
		Long:  "Reads YAML documents from a file or stdin. Rules with the same key are replaced; others are kept.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runRulesImport,
	}

	cmd.AddCommand(export, imp)
	RootCmd.AddCommand(cmd)
}

func runRulesExport(cmd *cobra.Command, args []string) {
	guilds, _ := cmd.Flags().GetStringSlice("guild")
	out, _ := cmd.Flags().GetString("out")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var docs []*store.GuildRules
	for _, g := range guilds {
		doc, err := s.ExportRules(cmd.Context(), g)
		if err != nil {
			exitErr("export "+g, err)
		}
		docs = append(docs, doc)
	}

	b, err := store.MarshalRules(docs)
	if err != nil {
		exitErr("encode rules", err)
	}

	if out == "" {
		os.Stdout.Write(b)
		return
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		exitErr("write "+out, err)
	}
	fmt.Printf("exported %d guild(s) to %s\n", len(docs), out)
}

func runRulesImport(cmd *cobra.Command, args []string) {
	var data []byte
	var err error
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read rules", err)
	}

	docs, err := store.UnmarshalRules(data)
	if err != nil {
		exitErr("decode rules", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	total := 0
	for _, doc := range docs {
		n, err := store.ImportRules(cmd.Context(), s, s, doc)
		total += n
		if err != nil {
			exitErr(fmt.Sprintf("import %s (after %d rules)", doc.GuildID, total), err)
		}
	}
	fmt.Printf("imported %d rules for %d guild(s)\n", total, len(docs))
}
