package fleet

import (
	"errors"
	"fmt"
)

// Классификация ошибок ядра. Обработчики HTTP сопоставляют их со статусами
// через errors.Is, поэтому все ошибки ядра оборачивают один из этих сентинелов
var (
	// ErrValidation некорректные или выходящие за допустимый диапазон входные данные
	ErrValidation = errors.New("ошибка валидации")
	// ErrNotFound неизвестный или деактивированный автобус
	ErrNotFound = errors.New("автобус не найден")
	// ErrPermissionDenied вызывающему запрещено изменять этот автобус
	ErrPermissionDenied = errors.New("доступ запрещен")
	// ErrConflict зарезервировано под оптимистичную конкуренцию при
	// распределенном реестре; однописательная схема его не порождает
	ErrConflict = errors.New("конфликт версий")
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundError(vehicleID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, vehicleID)
}
