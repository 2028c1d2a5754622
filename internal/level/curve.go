// Package level converts between accumulated experience and member level.
package level

import (
	"fmt"
	"math"
	"sort"

	"github.com/rcliao/guildkeeper/internal/model"
)

// DefaultMultiplier is K in level = floor(sqrt(xp / K)).
const DefaultMultiplier = 100

// Kind selects how a Curve maps experience to levels.
type Kind int

const (
	// Default uses the closed-form formula.
	Default Kind = iota
	// Custom uses a per-guild threshold table.
	Custom
)

// Curve is either the closed-form default curve or a custom threshold table.
// The zero value is the default curve with DefaultMultiplier.
type Curve struct {
	Kind       Kind
	Multiplier int64
	// Thresholds maps level -> minimum cumulative xp. Only used by Custom.
	Thresholds map[int]int64
}

// NewDefault returns the closed-form curve with multiplier k.
// A non-positive k falls back to DefaultMultiplier.
func NewDefault(k int64) Curve {
	return Curve{Kind: Default, Multiplier: k}
}

// NewCustom returns a threshold-table curve. An empty table behaves as the default curve.
func NewCustom(thresholds map[int]int64) Curve {
	if len(thresholds) == 0 {
		return Curve{Kind: Default}
	}
	t := make(map[int]int64, len(thresholds))
	for lvl, xp := range thresholds {
		t[lvl] = xp
	}
	return Curve{Kind: Custom, Thresholds: t}
}

func (c Curve) k() int64 {
	if c.Multiplier <= 0 {
		return DefaultMultiplier
	}
	return c.Multiplier
}

func (c Curve) custom() bool {
	return c.Kind == Custom && len(c.Thresholds) > 0
}

// Validate checks that custom levels are positive and thresholds never decrease.
func (c Curve) Validate() error {
	if !c.custom() {
		return nil
	}
	prev := int64(math.MinInt64)
	for _, lvl := range c.levels() {
		if lvl <= 0 {
			return model.ConfigError("level curve", fmt.Errorf("level %d must be positive", lvl))
		}
		xp := c.Thresholds[lvl]
		if xp < 0 {
			return model.ConfigError("level curve", fmt.Errorf("level %d threshold %d is negative", lvl, xp))
		}
		if xp < prev {
			return model.ConfigError("level curve", fmt.Errorf("level %d threshold %d is below a lower level's %d", lvl, xp, prev))
		}
		prev = xp
	}
	return nil
}

// levels returns the configured levels in ascending order.
func (c Curve) levels() []int {
	lvls := make([]int, 0, len(c.Thresholds))
	for lvl := range c.Thresholds {
		lvls = append(lvls, lvl)
	}
	sort.Ints(lvls)
	return lvls
}

// LevelForXP returns the level reached with xp. Negative xp is level 0.
func LevelForXP(xp int64, c Curve) int {
	if xp < 0 {
		return 0
	}
	if !c.custom() {
		return formulaLevel(xp, c.k())
	}

	// Only defined levels are reachable; the formula contributes the zero baseline.
	current := 0
	for _, lvl := range c.levels() {
		if lvl <= 0 {
			continue
		}
		if xp < c.Thresholds[lvl] {
			break
		}
		current = lvl
	}
	return current
}

// XPForLevel returns the minimum cumulative xp for level. Negative levels need 0.
// Custom curves fall back to the formula for levels they do not define.
func XPForLevel(level int, c Curve) int64 {
	if level < 0 {
		return 0
	}
	if c.custom() {
		if xp, ok := c.Thresholds[level]; ok {
			return max(xp, 0)
		}
	}
	return formulaXP(level, c.k())
}

func formulaLevel(xp, k int64) int {
	q := xp / k
	lvl := int64(math.Sqrt(float64(q)))
	// Correct float rounding near perfect squares.
	for lvl > 0 && lvl > q/lvl {
		lvl--
	}
	for lvl+1 <= q/(lvl+1) {
		lvl++
	}
	return int(lvl)
}

func formulaXP(level int, k int64) int64 {
	l := int64(level)
	if l != 0 && l > math.MaxInt64/l/k {
		return math.MaxInt64
	}
	return l * l * k
}

// Progress describes where xp sits between two levels.
type Progress struct {
	Level       int   `json:"level"`
	XP          int64 `json:"xp"`
	LevelXP     int64 `json:"level_xp"`
	NextLevelXP int64 `json:"next_level_xp"`
	// Max is set when a custom table has no higher level to reach.
	Max bool `json:"max,omitempty"`
}

// ProgressFor reports the level for xp along with the current and next thresholds.
func ProgressFor(xp int64, c Curve) Progress {
	if xp < 0 {
		xp = 0
	}
	lvl := LevelForXP(xp, c)
	p := Progress{Level: lvl, XP: xp}
	if !c.custom() {
		p.LevelXP = XPForLevel(lvl, c)
		p.NextLevelXP = XPForLevel(lvl+1, c)
		return p
	}

	if lvl > 0 {
		p.LevelXP = c.Thresholds[lvl]
	}
	for _, l := range c.levels() {
		if l > lvl {
			p.NextLevelXP = c.Thresholds[l]
			return p
		}
	}
	p.Max = true
	p.NextLevelXP = p.LevelXP
	return p
}
