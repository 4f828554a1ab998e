package fleet

import (
	"testing"

	"campus-fleet-backend/internal/models"
)

func TestDeriveTier(t *testing.T) {
	cases := []struct {
		name      string
		occupancy int
		capacity  int
		want      models.SeatTier
	}{
		{"пустой автобус", 0, 45, models.TierEmpty},
		{"один пассажир", 1, 45, models.TierFewSeats},
		{"чуть ниже порога", 40, 45, models.TierFewSeats}, // 40/45 ≈ 0.889
		{"сразу над порогом", 41, 45, models.TierFull},    // 41/45 ≈ 0.911
		{"полная вместимость", 45, 45, models.TierFull},
		{"середина", 20, 45, models.TierFewSeats},
		{"ровно на пороге", 9, 10, models.TierFull}, // 0.90 включительно
		{"единичная вместимость", 1, 1, models.TierFull},
		{"ноль при любой вместимости", 0, 1, models.TierEmpty},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTier(tc.occupancy, tc.capacity)
			if got != tc.want {
				t.Errorf("DeriveTier(%d, %d) = %s, ожидалось %s", tc.occupancy, tc.capacity, got, tc.want)
			}
		})
	}
}
