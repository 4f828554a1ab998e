package fleet

import (
	"campus-fleet-backend/internal/models"
)

// Порог заполненности, начиная с которого автобус считается полным
const fullTierRatio = 0.90

// DeriveTier вычисляет классификацию заполненности по сырым счетчикам.
// Чистая функция без состояния: единственная точка, где occupancy
// превращается в seat_tier, чтобы производное поле не разъезжалось
// между разными путями мутации реестра
func DeriveTier(occupancy, capacity int) models.SeatTier {
	if occupancy == 0 {
		return models.TierEmpty
	}
	if float64(occupancy)/float64(capacity) >= fullTierRatio {
		return models.TierFull
	}
	return models.TierFewSeats
}
