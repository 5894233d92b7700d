package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name        string
		conviction  float64
		edge        float64
		maxNotional float64
		want        float64
	}{
		{
			name:       "mid band with mild edge",
			conviction: 0.85, edge: 0.15, maxNotional: 100,
			want: 67.50, // 100 * 0.625 * 1.08
		},
		{
			name:       "top band with strong edge",
			conviction: 0.95, edge: 0.30, maxNotional: 100,
			want: 100, // 100 * 0.875 * 1.15 = 100.625, clamped to max
		},
		{
			name:       "top band no edge adjustment",
			conviction: 0.9, edge: 0.05, maxNotional: 100,
			want: 87.50,
		},
		{
			name:       "third band negative edge",
			conviction: 0.6, edge: -0.10, maxNotional: 100,
			want: 28.13, // 100 * 0.375 * 0.75 = 28.125, rounded to cents
		},
		{
			name:       "low conviction floor band",
			conviction: 0.2, edge: 0.0, maxNotional: 100,
			want: 17.50,
		},
		{
			name:       "tiny max clamps up to one dollar",
			conviction: 0.1, edge: -0.5, maxNotional: 5,
			want: 1.00, // 5 * 0.175 * 0.75 = 0.656, floor is $1
		},
		{
			name:       "band boundary at 0.7 is inclusive",
			conviction: 0.7, edge: 0.0, maxNotional: 200,
			want: 125.00,
		},
		{
			name:       "edge boundary at 0.10 stays unadjusted",
			conviction: 0.8, edge: 0.10, maxNotional: 100,
			want: 62.50,
		},
		{
			name:       "edge boundary at 0.20 uses the mild multiplier",
			conviction: 0.8, edge: 0.20, maxNotional: 100,
			want: 67.50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.conviction, tt.edge, tt.maxNotional)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestRecommendDeterministic(t *testing.T) {
	first := Recommend(0.85, 0.15, 100)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Recommend(0.85, 0.15, 100))
	}
}
