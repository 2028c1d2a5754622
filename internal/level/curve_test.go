package level

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/guildkeeper/internal/model"
)

func TestDefaultCurve(t *testing.T) {
	c := Curve{}

	assert.Equal(t, 0, LevelForXP(0, c))
	assert.Equal(t, 0, LevelForXP(99, c))
	assert.Equal(t, 1, LevelForXP(100, c))
	assert.Equal(t, 1, LevelForXP(399, c))
	assert.Equal(t, 2, LevelForXP(400, c))
	assert.Equal(t, 10, LevelForXP(10_000, c))

	assert.Equal(t, int64(0), XPForLevel(0, c))
	assert.Equal(t, int64(400), XPForLevel(2, c))
	assert.Equal(t, int64(10_000), XPForLevel(10, c))
}

func TestDefaultCurveCustomMultiplier(t *testing.T) {
	c := NewDefault(50)
	assert.Equal(t, 2, LevelForXP(200, c))
	assert.Equal(t, int64(450), XPForLevel(3, c))

	// Non-positive multiplier falls back to the default constant.
	assert.Equal(t, 2, LevelForXP(400, NewDefault(0)))
}

func TestCustomCurve(t *testing.T) {
	c := NewCustom(map[int]int64{1: 50, 3: 500})

	assert.Equal(t, 0, LevelForXP(49, c))
	assert.Equal(t, 1, LevelForXP(50, c))
	assert.Equal(t, 1, LevelForXP(499, c))
	assert.Equal(t, 3, LevelForXP(500, c))
	assert.Equal(t, 3, LevelForXP(1_000_000, c))

	assert.Equal(t, int64(50), XPForLevel(1, c))
	assert.Equal(t, int64(500), XPForLevel(3, c))
	// Undefined level falls back to the formula.
	assert.Equal(t, int64(400), XPForLevel(2, c))
}

func TestEmptyCustomIsDefault(t *testing.T) {
	c := NewCustom(nil)
	assert.Equal(t, Default, c.Kind)
	assert.Equal(t, 2, LevelForXP(400, c))
}

func TestNegativeInputsClampToZero(t *testing.T) {
	curves := []Curve{{}, NewCustom(map[int]int64{1: 0, 2: 10})}
	for _, c := range curves {
		for _, n := range []int64{-1, -100, math.MinInt64} {
			assert.Equal(t, 0, LevelForXP(n, c))
			assert.Equal(t, int64(0), XPForLevel(int(max(n, math.MinInt32)), c))
		}
	}
}

func TestRoundTripStability(t *testing.T) {
	curves := map[string]Curve{
		"default": {},
		"k7":      NewDefault(7),
		"sparse":  NewCustom(map[int]int64{1: 50, 3: 500}),
		"dense":   NewCustom(map[int]int64{1: 10, 2: 10, 3: 40, 4: 90, 10: 5000}),
		"zero":    NewCustom(map[int]int64{1: 0}),
	}
	rng := rand.New(rand.NewSource(42))

	for name, c := range curves {
		t.Run(name, func(t *testing.T) {
			check := func(xp int64) {
				lvl := LevelForXP(xp, c)
				got := LevelForXP(XPForLevel(lvl, c), c)
				require.Equalf(t, lvl, got, "xp=%d", xp)
			}
			for xp := int64(0); xp <= 20_000; xp++ {
				check(xp)
			}
			for i := 0; i < 2_000; i++ {
				check(rng.Int63n(math.MaxInt64 / 2))
			}
			check(math.MaxInt64)
		})
	}
}

func TestFormulaMatchesFloat(t *testing.T) {
	for xp := int64(0); xp < 1_000_000; xp += 37 {
		want := int(math.Floor(math.Sqrt(float64(xp) / DefaultMultiplier)))
		require.Equal(t, want, LevelForXP(xp, Curve{}), "xp=%d", xp)
	}
}

func TestXPForLevelSaturates(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), XPForLevel(math.MaxInt32, Curve{}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Curve{}.Validate())
	assert.NoError(t, NewCustom(map[int]int64{1: 50, 2: 50, 5: 900}).Validate())

	err := NewCustom(map[int]int64{1: 100, 2: 50}).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	assert.Error(t, NewCustom(map[int]int64{0: 10}).Validate())
	assert.Error(t, NewCustom(map[int]int64{1: -5}).Validate())
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(450, Curve{})
	assert.Equal(t, Progress{Level: 2, XP: 450, LevelXP: 400, NextLevelXP: 900}, p)

	c := NewCustom(map[int]int64{1: 50, 3: 500})
	p = ProgressFor(120, c)
	assert.Equal(t, Progress{Level: 1, XP: 120, LevelXP: 50, NextLevelXP: 500}, p)

	p = ProgressFor(10, c)
	assert.Equal(t, Progress{Level: 0, XP: 10, LevelXP: 0, NextLevelXP: 50}, p)

	p = ProgressFor(800, c)
	assert.True(t, p.Max)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, int64(500), p.NextLevelXP)
}
