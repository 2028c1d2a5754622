package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/guildkeeper/internal/level"
	"github.com/rcliao/guildkeeper/internal/model"
)

// GuildRules is the portable document form of one guild's rules.
type GuildRules struct {
	GuildID       string                            `yaml:"guild_id"`
	Timezone      string                            `yaml:"timezone,omitempty"`
	RetentionDays *int                              `yaml:"retention_days,omitempty"`
	Levels        map[int]int64                     `yaml:"levels,omitempty"`
	Categories    []model.CategoryMultiplier        `yaml:"categories,omitempty"`
	Channels      []model.ChannelCategoryAssignment `yaml:"channels,omitempty"`
	HotTimes      []model.HotTimeWindow             `yaml:"hot_times,omitempty"`
	Exclusions    []model.ExclusionRule             `yaml:"exclusions,omitempty"`
}

// ExportRules collects every rule of a guild into a GuildRules document.
func (s *SQLiteStore) ExportRules(ctx context.Context, guildID string) (*GuildRules, error) {
	doc := &GuildRules{GuildID: guildID}

	tz, err := s.Timezone(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	doc.Timezone = tz

	settings, err := s.RetentionSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("retention settings: %w", err)
	}
	if settings != nil {
		days := settings.RetentionDays
		doc.RetentionDays = &days
	}

	curve, err := s.LevelCurve(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("level curve: %w", err)
	}
	if curve.Kind == level.Custom {
		doc.Levels = curve.Thresholds
	}

	if doc.Categories, err = s.CategoryMultipliers(ctx, guildID); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	if doc.Channels, err = s.ChannelCategories(ctx, guildID); err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}
	if doc.HotTimes, err = s.HotTimes(ctx, guildID); err != nil {
		return nil, fmt.Errorf("hot times: %w", err)
	}
	if doc.Exclusions, err = s.Exclusions(ctx, guildID); err != nil {
		return nil, fmt.Errorf("exclusions: %w", err)
	}
	return doc, nil
}

// ImportRules stores every rule of the document under its guild. Existing rules with the
// same key are replaced; rules absent from the document are left alone.
// Returns the number of rules written.
func ImportRules(ctx context.Context, admin RuleAdmin, retention RetentionStore, doc *GuildRules) (int, error) {
	if doc.GuildID == "" {
		return 0, model.ValidationError("import rules", fmt.Errorf("guild_id is required"))
	}
	g := doc.GuildID
	imported := 0

	if doc.Timezone != "" {
		if err := admin.SaveTimezone(ctx, g, doc.Timezone); err != nil {
			return imported, err
		}
		imported++
	}
	if doc.RetentionDays != nil {
		if err := retention.SaveRetentionSettings(ctx, g, *doc.RetentionDays); err != nil {
			return imported, err
		}
		imported++
	}
	if len(doc.Levels) > 0 {
		if err := admin.SaveLevelCurve(ctx, g, level.NewCustom(doc.Levels)); err != nil {
			return imported, err
		}
		imported++
	}
	for _, m := range doc.Categories {
		m.GuildID = g
		if err := admin.SaveCategoryMultiplier(ctx, m); err != nil {
			return imported, err
		}
		imported++
	}
	for _, a := range doc.Channels {
		a.GuildID = g
		if err := admin.SaveChannelCategory(ctx, a); err != nil {
			return imported, err
		}
		imported++
	}
	for _, w := range doc.HotTimes {
		w.GuildID = g
		if _, err := admin.SaveHotTime(ctx, w); err != nil {
			return imported, err
		}
		imported++
	}
	for _, r := range doc.Exclusions {
		r.GuildID = g
		if _, err := admin.SaveExclusion(ctx, r); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// MarshalRules encodes documents as a YAML stream, one document per guild.
func MarshalRules(docs []*GuildRules) ([]byte, error) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].GuildID < docs[j].GuildID })
	var out []byte
	for i, d := range docs {
		b, err := yaml.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.GuildID, err)
		}
		if i > 0 {
			out = append(out, "---\n"...)
		}
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalRules decodes a YAML stream of GuildRules documents.
func UnmarshalRules(data []byte) ([]*GuildRules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*GuildRules
	for {
		var d GuildRules
		err := dec.Decode(&d)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, nil
}
