package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantityToUnitsCeiling(t *testing.T) {
	cases := []struct {
		name        string
		raw         int64
		granularity int64
		want        int64
	}{
		{"exact minute", 60, SecondsPerMinute, 1},
		{"one second over bills a full extra minute", 61, SecondsPerMinute, 2},
		{"just under a minute", 59, SecondsPerMinute, 1},
		{"six minutes", 360, SecondsPerMinute, 6},
		{"single character", 1, CharsPerSegment, 1},
		{"140 chars is two segments", 140, CharsPerSegment, 2},
		{"141 chars is three segments", 141, CharsPerSegment, 3},
		{"zero bills nothing", 0, SecondsPerMinute, 0},
		{"negative bills nothing", -30, SecondsPerMinute, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QuantityToUnits(tc.raw, tc.granularity))
		})
	}
}

func TestQuantityToUnitsMatchesCeilDivision(t *testing.T) {
	// Exhaustive check over a small grid against the ceil(q/g) definition.
	for q := int64(0); q <= 500; q++ {
		for _, g := range []int64{1, 7, 60, 70, 160} {
			want := q / g
			if q%g != 0 {
				want++
			}
			if got := QuantityToUnits(q, g); got != want {
				t.Fatalf("QuantityToUnits(%d, %d) = %d, want %d", q, g, got, want)
			}
		}
	}
}

func TestUnitsToCost(t *testing.T) {
	assert.Equal(t, int64(0), UnitsToCost(0, 150))
	assert.Equal(t, int64(0), UnitsToCost(-3, 150))
	assert.Equal(t, int64(150), UnitsToCost(1, 150))
	assert.Equal(t, int64(1050), UnitsToCost(7, 150))
}

func TestSplitUnitsProperties(t *testing.T) {
	for limit := int64(0); limit <= 10; limit++ {
		for used := int64(0); used <= limit; used++ {
			for required := int64(0); required <= 15; required++ {
				fromQuota, toPay := SplitUnits(limit, used, required)
				if fromQuota+toPay != required {
					t.Fatalf("conservation violated: limit=%d used=%d required=%d got %d+%d",
						limit, used, required, fromQuota, toPay)
				}
				if avail := limit - used; fromQuota > avail {
					t.Fatalf("claimed past quota: limit=%d used=%d required=%d fromQuota=%d",
						limit, used, required, fromQuota)
				}
				if toPay > required || fromQuota < 0 || toPay < 0 {
					t.Fatalf("out-of-range split: limit=%d used=%d required=%d got %d/%d",
						limit, used, required, fromQuota, toPay)
				}
			}
		}
	}
}

func TestSplitUnitsOverconsumedQuota(t *testing.T) {
	// A row whose used already exceeds its limit contributes no quota.
	fromQuota, toPay := SplitUnits(100, 120, 5)
	assert.Equal(t, int64(0), fromQuota)
	assert.Equal(t, int64(5), toPay)
}

func TestSplitUnitsDeterministic(t *testing.T) {
	a1, b1 := SplitUnits(100, 95, 6)
	a2, b2 := SplitUnits(100, 95, 6)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Equal(t, int64(5), a1)
	assert.Equal(t, int64(1), b1)
}
