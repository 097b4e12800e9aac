package ordering

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

func newTestDB(t *testing.T) *models.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := models.Wrap(gormDB)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db        *models.DB
	userID    uuid.UUID
	workspace uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)

	user := &models.User{Email: "owner@example.com", Name: "Owner", IsActive: true}
	require.NoError(t, db.Users.Create(user))

	account := &models.Account{Name: "acme", OwnerID: user.ID, IsActive: true}
	require.NoError(t, db.Accounts.Create(account))

	workspace := &models.Workspace{
		AccountID: account.ID, Name: "acme", CreatedBy: user.ID, IsActive: true,
	}
	require.NoError(t, db.Workspaces.Create(workspace))

	return &fixture{db: db, userID: user.ID, workspace: workspace.ID}
}

func (f *fixture) addSpace(t *testing.T, m *Manager, name string) *models.Space {
	t.Helper()
	space := &models.Space{
		WorkspaceID: f.workspace, Name: name, IsActive: true, CreatedBy: f.userID,
	}
	err := m.InsertAtEnd(f.db, SpacesOf(f.workspace), func(tx *models.DB, order int) error {
		space.Order = order
		return tx.Spaces.Create(space)
	})
	require.NoError(t, err)
	return space
}

func (f *fixture) addFolder(t *testing.T, m *Manager, spaceID uuid.UUID, name string) *models.Folder {
	t.Helper()
	folder := &models.Folder{
		SpaceID: spaceID, Name: name, IsActive: true, CreatedBy: f.userID,
	}
	err := m.InsertAtEnd(f.db, FoldersOf(spaceID), func(tx *models.DB, order int) error {
		folder.Order = order
		return tx.Folders.Create(folder)
	})
	require.NoError(t, err)
	return folder
}

func (f *fixture) addList(t *testing.T, m *Manager, spaceID uuid.UUID, folderID *uuid.UUID, name string) *models.List {
	t.Helper()
	list := &models.List{
		SpaceID: spaceID, FolderID: folderID, Name: name, IsActive: true, CreatedBy: f.userID,
	}
	err := m.InsertAtEnd(f.db, ListsOf(spaceID, folderID), func(tx *models.DB, order int) error {
		list.Order = order
		return tx.Lists.Create(list)
	})
	require.NoError(t, err)
	return list
}

func (f *fixture) spaceOrder(t *testing.T, id uuid.UUID) int {
	t.Helper()
	space, err := f.db.Spaces.Get(id)
	require.NoError(t, err)
	return space.Order
}

func TestInsertAtEndAssignsDenseOrders(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	assert.Equal(t, 1, s1.Order)
	assert.Equal(t, 2, s2.Order)
	assert.Equal(t, 3, s3.Order)

	orders, err := m.Orders(f.db, SpacesOf(f.workspace))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, orders)
}

func TestMoveBackwardShiftsIntermediatesUp(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	require.NoError(t, m.Move(f.db, SpacesOf(f.workspace), s3.ID, 3, 1))

	assert.Equal(t, 1, f.spaceOrder(t, s3.ID))
	assert.Equal(t, 2, f.spaceOrder(t, s1.ID))
	assert.Equal(t, 3, f.spaceOrder(t, s2.ID))
}

func TestMoveForwardShiftsIntermediatesDown(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	require.NoError(t, m.Move(f.db, SpacesOf(f.workspace), s1.ID, 1, 3))

	assert.Equal(t, 1, f.spaceOrder(t, s2.ID))
	assert.Equal(t, 2, f.spaceOrder(t, s3.ID))
	assert.Equal(t, 3, f.spaceOrder(t, s1.ID))
}

func TestMoveThereAndBackRestoresOrders(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	spaces := []*models.Space{
		f.addSpace(t, m, "one"),
		f.addSpace(t, m, "two"),
		f.addSpace(t, m, "three"),
		f.addSpace(t, m, "four"),
	}

	g := SpacesOf(f.workspace)
	require.NoError(t, m.Move(f.db, g, spaces[1].ID, 2, 4))
	require.NoError(t, m.Move(f.db, g, spaces[1].ID, 4, 2))

	for i, space := range spaces {
		assert.Equal(t, i+1, f.spaceOrder(t, space.ID))
	}
}

func TestMoveToSamePositionIsNoOp(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")

	require.NoError(t, m.Move(f.db, SpacesOf(f.workspace), s2.ID, 2, 2))

	assert.Equal(t, 1, f.spaceOrder(t, s1.ID))
	assert.Equal(t, 2, f.spaceOrder(t, s2.ID))
}

func TestMoveRejectsOutOfRangeTarget(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")

	for _, target := range []int{0, -1, 3, 10} {
		err := m.Move(f.db, SpacesOf(f.workspace), s2.ID, 2, target)
		assert.ErrorIs(t, err, apperr.ErrInvalidOrder, "target %d", target)
	}

	orders, err := m.Orders(f.db, SpacesOf(f.workspace))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders)
}

func TestMoveRetriesWithFreshSnapshotOnConflict(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	f.addSpace(t, m, "one")
	f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	// A stale fromOrder simulates a concurrent writer having shifted the
	// row between the caller's read and its move request. The manager
	// re-reads the current order and retries once.
	require.NoError(t, m.Move(f.db, SpacesOf(f.workspace), s3.ID, 99, 1))
	assert.Equal(t, 1, f.spaceOrder(t, s3.ID))

	orders, err := m.Orders(f.db, SpacesOf(f.workspace))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, orders)
}

func TestRemoveAndCompactClosesGap(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	require.NoError(t, m.RemoveAndCompact(f.db, SpacesOf(f.workspace), s2.ID))

	removed, err := f.db.Spaces.Get(s2.ID)
	require.NoError(t, err)
	assert.False(t, removed.IsActive)

	assert.Equal(t, 1, f.spaceOrder(t, s1.ID))
	assert.Equal(t, 2, f.spaceOrder(t, s3.ID))

	orders, err := m.Orders(f.db, SpacesOf(f.workspace))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders)
}

func TestMoveRemovedEntityIsNotFound(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	f.addSpace(t, m, "three")

	g := SpacesOf(f.workspace)
	require.NoError(t, m.RemoveAndCompact(f.db, g, s2.ID))

	// The removed row is outside the active group, so a move request for
	// it must fail instead of retrying against a phantom order and
	// shifting the survivors.
	err := m.Move(f.db, g, s2.ID, 2, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	orders, err := m.Orders(f.db, g)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders)
}

func TestRemoveAndCompactAfterMoveUsesFreshOrder(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	s1 := f.addSpace(t, m, "one")
	s2 := f.addSpace(t, m, "two")
	s3 := f.addSpace(t, m, "three")

	g := SpacesOf(f.workspace)

	// Shift s2 to the end, then remove it. The compaction range comes
	// from the row's order at removal time, not from any earlier read,
	// so the survivors keep a dense sequence.
	require.NoError(t, m.Move(f.db, g, s2.ID, 2, 3))
	require.NoError(t, m.RemoveAndCompact(f.db, g, s2.ID))

	assert.Equal(t, 1, f.spaceOrder(t, s1.ID))
	assert.Equal(t, 2, f.spaceOrder(t, s3.ID))

	orders, err := m.Orders(f.db, g)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders)
}

func TestRootAndFolderListsAreSeparateGroups(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	space := f.addSpace(t, m, "one")
	folder := f.addFolder(t, m, space.ID, "docs")

	rootList := f.addList(t, m, space.ID, nil, "inbox")
	folderList := f.addList(t, m, space.ID, &folder.ID, "drafts")

	// Each group numbers independently from 1.
	assert.Equal(t, 1, rootList.Order)
	assert.Equal(t, 1, folderList.Order)
}

func TestTransferMovesListBetweenGroups(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	space := f.addSpace(t, m, "one")
	folder := f.addFolder(t, m, space.ID, "docs")

	l1 := f.addList(t, m, space.ID, nil, "a")
	l2 := f.addList(t, m, space.ID, nil, "b")
	l3 := f.addList(t, m, space.ID, &folder.ID, "c")

	from := ListsOf(space.ID, nil)
	to := ListsOf(space.ID, &folder.ID)

	newOrder, err := m.Transfer(f.db, from, to, l1.ID,
		map[string]interface{}{"folder_id": folder.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, newOrder)

	moved, err := f.db.Lists.Get(l1.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, folder.ID, *moved.FolderID)
	assert.Equal(t, 2, moved.Order)

	remaining, err := f.db.Lists.Get(l2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining.Order)

	kept, err := f.db.Lists.Get(l3.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Order)
}

func TestTaskGroupSkipsSoftDeletedRows(t *testing.T) {
	f := newFixture(t)
	m := NewManager(nil)

	space := f.addSpace(t, m, "one")
	list := f.addList(t, m, space.ID, nil, "inbox")

	var tasks []*models.Task
	for i, title := range []string{"a", "b", "c"} {
		task := &models.Task{ListID: list.ID, Title: title, Order: i + 1, CreatedBy: f.userID}
		require.NoError(t, f.db.Tasks.Create(task))
		tasks = append(tasks, task)
	}

	require.NoError(t, m.RemoveAndCompact(f.db, TasksOf(list.ID), tasks[0].ID))

	deleted, err := f.db.Tasks.Get(tasks[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	orders, err := m.Orders(f.db, TasksOf(list.ID))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orders)

	next := &models.Task{ListID: list.ID, Title: "d", CreatedBy: f.userID}
	err = m.InsertAtEnd(f.db, TasksOf(list.ID), func(tx *models.DB, order int) error {
		next.Order = order
		return tx.Tasks.Create(next)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, next.Order)
}
