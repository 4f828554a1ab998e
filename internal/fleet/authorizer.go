package fleet

import (
	"fmt"

	"campus-fleet-backend/internal/models"
)

// OwnershipSource отдает закрепленного водителя активного автобуса.
// Реализуется реестром; выделено в интерфейс ради тестов
type OwnershipSource interface {
	DriverRef(vehicleID string) (*uint, bool)
}

// Authorizer решает, может ли вызывающий отправить мутацию для автобуса.
// Проверка выполняется до обращения к пути коммита реестра: отклоненный
// вызов не меняет состояние и не порождает рассылку
type Authorizer struct {
	ownership OwnershipSource
}

func NewAuthorizer(ownership OwnershipSource) *Authorizer {
	return &Authorizer{ownership: ownership}
}

// AuthorizeAdmin проверяет, что вызывающий — администратор. Используется
// для операций без целевого автобуса: регистрация, закрепление водителя,
// деактивация
func (a *Authorizer) AuthorizeAdmin(role models.Role) error {
	if role != models.RoleAdmin {
		return fmt.Errorf("%w: требуется роль администратора", ErrPermissionDenied)
	}
	return nil
}

// Authorize проверяет права вызывающего на мутацию автобуса vehicleID.
// ADMIN разрешено всегда; DRIVER — только для закрепленного за ним автобуса;
// STUDENT и неаутентифицированные вызовы отклоняются всегда.
// Отказ никогда не раскрывает, существует ли автобус: водитель, запросивший
// чужой или несуществующий id, в обоих случаях получает один и тот же отказ
func (a *Authorizer) Authorize(callerID uint, role models.Role, vehicleID string) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleDriver:
		driverRef, ok := a.ownership.DriverRef(vehicleID)
		if !ok || driverRef == nil || *driverRef != callerID {
			return fmt.Errorf("%w: водитель %d не закреплен за автобусом", ErrPermissionDenied, callerID)
		}
		return nil
	default:
		return fmt.Errorf("%w: роль %q не может изменять состояние автобусов", ErrPermissionDenied, role)
	}
}
