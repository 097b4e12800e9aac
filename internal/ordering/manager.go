// Package ordering maintains dense, gap-free sibling sequences for
// spaces, folders, lists, and tasks. After any operation the active
// members of a group hold sort orders {1..N} with no duplicates.
package ordering

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

// Manager is the ordered-collection maintainer. Mutations on the same
// sibling group serialize on an in-process per-group mutex; a different
// group never blocks. Inside the transaction the caller's order
// snapshot is re-checked, so a stale snapshot from a concurrent writer
// fails fast as an OrderConflict instead of corrupting the sequence.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	log   *logrus.Logger
}

// NewManager creates an ordering manager.
func NewManager(log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{locks: make(map[string]*sync.Mutex), log: log}
}

func (m *Manager) groupLock(g Group) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[g.Key()]
	if !ok {
		l = &sync.Mutex{}
		m.locks[g.Key()] = l
	}
	return l
}

// NextOrder returns max(order)+1 among active siblings, or 1 for an
// empty group. Callers must invoke it inside the same transaction (and
// group lock) as the insert that consumes the value.
func (m *Manager) NextOrder(tx *models.DB, g Group) (int, error) {
	var max int
	err := g.query(tx.DB).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// InsertAtEnd appends a new sibling: it computes the next order inside
// one transaction under the group lock and hands it to create, which
// must persist the entity at that order. Append never creates a gap, so
// no shifting is needed.
func (m *Manager) InsertAtEnd(db *models.DB, g Group, create func(tx *models.DB, order int) error) error {
	l := m.groupLock(g)
	l.Lock()
	defer l.Unlock()

	return db.Transaction(func(tx *models.DB) error {
		next, err := m.NextOrder(tx, g)
		if err != nil {
			return err
		}
		return create(tx, next)
	})
}

// Move repositions one sibling from fromOrder to toOrder, shifting only
// the contiguous range in between. Returns InvalidOrder when toOrder is
// outside [1, N] and OrderConflict when a concurrent shift invalidated
// the caller's snapshot; the conflict is retried once internally with a
// fresh snapshot before being surfaced.
func (m *Manager) Move(db *models.DB, g Group, entityID uuid.UUID, fromOrder, toOrder int) error {
	l := m.groupLock(g)
	l.Lock()
	defer l.Unlock()

	err := m.moveOnce(db, g, entityID, fromOrder, toOrder)
	if err == nil || !apperr.Retryable(err) {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"group":  g.Key(),
		"entity": entityID,
	}).Warn("order snapshot conflict, retrying once")

	current, cerr := m.currentOrder(db, g, entityID)
	if cerr != nil {
		return cerr
	}
	return m.moveOnce(db, g, entityID, current, toOrder)
}

func (m *Manager) moveOnce(db *models.DB, g Group, entityID uuid.UUID, fromOrder, toOrder int) error {
	return db.Transaction(func(tx *models.DB) error {
		var count int64
		if err := g.query(tx.DB).Count(&count).Error; err != nil {
			return err
		}
		if toOrder < 1 || int64(toOrder) > count {
			return apperr.InvalidOrder(toOrder, int(count))
		}

		current, err := m.currentOrder(tx, g, entityID)
		if err != nil {
			return err
		}
		if current != fromOrder {
			return apperr.OrderConflict()
		}
		if fromOrder == toOrder {
			return nil
		}

		// Shift only the affected contiguous range; the moved row sits
		// outside it on either direction.
		if toOrder > fromOrder {
			err = g.query(tx.DB).
				Where("sort_order > ? AND sort_order <= ?", fromOrder, toOrder).
				UpdateColumn("sort_order", gorm.Expr("sort_order - 1")).Error
		} else {
			err = g.query(tx.DB).
				Where("sort_order >= ? AND sort_order < ?", toOrder, fromOrder).
				UpdateColumn("sort_order", gorm.Expr("sort_order + 1")).Error
		}
		if err != nil {
			return err
		}

		return tx.DB.Model(g.model).Where("id = ?", entityID).
			UpdateColumn("sort_order", toOrder).Error
	})
}

// RemoveAndCompact flips the entity's soft-delete flag and closes the
// gap it leaves by decrementing every active sibling above it. The
// removed order is read under the group lock, so a caller's stale view
// of the group cannot shift the wrong range.
func (m *Manager) RemoveAndCompact(db *models.DB, g Group, entityID uuid.UUID) error {
	l := m.groupLock(g)
	l.Lock()
	defer l.Unlock()

	return db.Transaction(func(tx *models.DB) error {
		return m.removeAndCompactLocked(tx, g, entityID)
	})
}

// RemoveAndCompactTx is RemoveAndCompact for callers already inside a
// transaction that must also cover other writes (cascade deletes).
func (m *Manager) RemoveAndCompactTx(tx *models.DB, g Group, entityID uuid.UUID) error {
	l := m.groupLock(g)
	l.Lock()
	defer l.Unlock()
	return m.removeAndCompactLocked(tx, g, entityID)
}

func (m *Manager) removeAndCompactLocked(tx *models.DB, g Group, entityID uuid.UUID) error {
	removedOrder, err := m.currentOrder(tx, g, entityID)
	if err != nil {
		return err
	}
	res := tx.DB.Model(g.model).Where("id = ?", entityID).Updates(g.remove)
	if res.Error != nil {
		return res.Error
	}
	return g.query(tx.DB).
		Where("sort_order > ?", removedOrder).
		UpdateColumn("sort_order", gorm.Expr("sort_order - 1")).Error
}

// Transfer moves an entity between two sibling groups: it is removed
// from its old group (which compacts) and appended to the end of the
// new one, with the reparenting columns applied in the same write.
// Cross-group moves never interpolate an order; they are a removal plus
// an append. Returns the entity's order in the new group.
func (m *Manager) Transfer(db *models.DB, from, to Group, entityID uuid.UUID, reparent map[string]interface{}) (int, error) {
	// Lock both groups in key order so concurrent transfers in opposite
	// directions cannot deadlock.
	first, second := m.groupLock(from), m.groupLock(to)
	if to.Key() < from.Key() {
		first, second = second, first
	}
	first.Lock()
	defer first.Unlock()
	if second != first {
		second.Lock()
		defer second.Unlock()
	}

	var newOrder int
	err := db.Transaction(func(tx *models.DB) error {
		fromOrder, err := m.currentOrder(tx, from, entityID)
		if err != nil {
			return err
		}
		next, err := m.NextOrder(tx, to)
		if err != nil {
			return err
		}

		assign := make(map[string]interface{}, len(reparent)+1)
		for k, v := range reparent {
			assign[k] = v
		}
		assign["sort_order"] = next
		if err := tx.DB.Model(from.model).Where("id = ?", entityID).
			UpdateColumns(assign).Error; err != nil {
			return err
		}

		newOrder = next
		return from.query(tx.DB).
			Where("sort_order > ?", fromOrder).
			UpdateColumn("sort_order", gorm.Expr("sort_order - 1")).Error
	})
	return newOrder, err
}

// currentOrder reads the entity's order within its active sibling
// group. An entity that is missing or no longer active in the group is
// NotFound, never order zero.
func (m *Manager) currentOrder(db *models.DB, g Group, entityID uuid.UUID) (int, error) {
	var order *int
	err := g.query(db.DB).Where("id = ?", entityID).
		Select("sort_order").Scan(&order).Error
	if err != nil {
		return 0, err
	}
	if order == nil {
		return 0, apperr.NotFound(g.entity, entityID)
	}
	return *order, nil
}

// Orders returns the sort orders of the group's active members in
// ascending sequence.
func (m *Manager) Orders(db *models.DB, g Group) ([]int, error) {
	var orders []int
	err := g.query(db.DB).Order("sort_order ASC").Pluck("sort_order", &orders).Error
	return orders, err
}
