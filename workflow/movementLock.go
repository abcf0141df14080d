package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireItemMovementLock serializes movements per item across instances using
// MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the movement transaction.
func AcquireItemMovementLock(tx *gorm.DB, organizationId string, itemId int) error {
	lockName := fmt.Sprintf("item_move:%s:%d", organizationId, itemId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire movement lock for item_id=%d", itemId)
	}
	return nil
}

func ReleaseItemMovementLock(tx *gorm.DB, organizationId string, itemId int) {
	lockName := fmt.Sprintf("item_move:%s:%d", organizationId, itemId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
