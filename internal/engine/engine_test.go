package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskdeck/internal/apperr"
	"taskdeck/internal/authz"
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

// engineFixture bootstraps one account through the facade and adds one
// user per role below owner.
type engineFixture struct {
	eng       *Engine
	db        *models.DB
	workspace uuid.UUID
	account   uuid.UUID

	owner  uuid.UUID
	admin  uuid.UUID
	member uuid.UUID
	guest  uuid.UUID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := newTestDB(t)
	eng := New(db, nil)
	ctx := context.Background()
	f := &engineFixture{eng: eng, db: db}

	addUser := func(email string) uuid.UUID {
		user := &models.User{Email: email, Name: email, IsActive: true}
		require.NoError(t, db.Users.Create(user))
		return user.ID
	}
	f.owner = addUser("owner@example.com")
	f.admin = addUser("admin@example.com")
	f.member = addUser("member@example.com")
	f.guest = addUser("guest@example.com")

	account, err := eng.Lifecycle().CreateAccount(ctx, "acme", f.owner)
	require.NoError(t, err)
	f.account = account.ID

	workspaces, err := db.Workspaces.ForAccount(account.ID)
	require.NoError(t, err)
	f.workspace = workspaces[0].ID

	require.NoError(t, eng.AddMember(ctx, f.owner, f.workspace, f.admin, models.RoleAdmin))
	require.NoError(t, eng.AddMember(ctx, f.owner, f.workspace, f.member, models.RoleMember))
	require.NoError(t, eng.AddMember(ctx, f.owner, f.workspace, f.guest, models.RoleGuest))
	return f
}

func TestCreateSpaceAppendsToWorkspace(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// The bootstrap space occupies order 1.
	s2, err := f.eng.CreateSpace(ctx, f.member, f.workspace, "second", models.VisibilityPublic)
	require.NoError(t, err)
	assert.Equal(t, 2, s2.Order)

	s3, err := f.eng.CreateSpace(ctx, f.admin, f.workspace, "third", models.VisibilityPrivate)
	require.NoError(t, err)
	assert.Equal(t, 3, s3.Order)
	assert.True(t, s3.IsPrivate)
}

func TestCreateSpaceGuestDenied(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.eng.CreateSpace(context.Background(), f.guest, f.workspace, "nope", models.VisibilityPublic)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)
}

func TestCreateSpaceRejectsUnknownVisibility(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.eng.CreateSpace(context.Background(), f.owner, f.workspace, "x", models.Visibility("hidden"))
	assert.ErrorIs(t, err, apperr.ErrUnsupportedVisibility)
}

func TestCreateListValidatesFolderParent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	spaceA, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	spaceB, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "b", models.VisibilityPublic)
	require.NoError(t, err)

	folder, err := f.eng.CreateFolder(ctx, f.owner, spaceA.ID, "docs", models.VisibilityPublic)
	require.NoError(t, err)

	// A folder from another space is not a valid parent.
	_, err = f.eng.CreateList(ctx, f.owner, spaceB.ID, &folder.ID, "bad", models.VisibilityPublic)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := f.eng.CreateList(ctx, f.owner, spaceA.ID, &folder.ID, "good", models.VisibilityPublic)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Order)
}

func TestCreateTaskAppendsToList(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	list, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "inbox", models.VisibilityPublic)
	require.NoError(t, err)

	t1, err := f.eng.CreateTask(ctx, f.admin, list.ID, "first", "")
	require.NoError(t, err)
	t2, err := f.eng.CreateTask(ctx, f.admin, list.ID, "second", "details")
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Order)
	assert.Equal(t, 2, t2.Order)

	// Members sit at comment level on objects they did not create.
	_, err = f.eng.CreateTask(ctx, f.member, list.ID, "third", "")
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)
}

func TestReorderSpace(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s2, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "two", models.VisibilityPublic)
	require.NoError(t, err)
	s3, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "three", models.VisibilityPublic)
	require.NoError(t, err)

	moved, err := f.eng.Reorder(ctx, f.owner, authz.SpaceRef(s3.ID), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.(*models.Space).Order)

	reloaded, err := f.db.Spaces.Get(s2.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Order)
}

func TestReorderRequiresFullEdit(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)

	_, err = f.eng.Reorder(ctx, f.guest, authz.SpaceRef(space.ID), 1)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)
}

func TestReorderRejectsOutOfRange(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)

	_, err = f.eng.Reorder(ctx, f.owner, authz.SpaceRef(space.ID), 99)
	assert.ErrorIs(t, err, apperr.ErrInvalidOrder)
}

func TestNotFoundMapsMissingRow(t *testing.T) {
	id := uuid.New()

	err := notFound(apperr.EntityList, id, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var tagged *apperr.Error
	require.ErrorAs(t, err, &tagged)
	assert.Equal(t, apperr.EntityList, tagged.Entity)
	assert.Equal(t, id, tagged.ID)

	// Other errors pass through untouched.
	other := gorm.ErrInvalidTransaction
	assert.Equal(t, other, notFound(apperr.EntityList, id, other))
}

func TestMoveListToFolder(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	folder, err := f.eng.CreateFolder(ctx, f.owner, space.ID, "docs", models.VisibilityPublic)
	require.NoError(t, err)

	l1, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "one", models.VisibilityPublic)
	require.NoError(t, err)
	l2, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "two", models.VisibilityPublic)
	require.NoError(t, err)
	_, err = f.eng.CreateList(ctx, f.owner, space.ID, &folder.ID, "inside", models.VisibilityPublic)
	require.NoError(t, err)

	moved, err := f.eng.MoveListToFolder(ctx, f.owner, l1.ID, &folder.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, folder.ID, *moved.FolderID)
	assert.Equal(t, 2, moved.Order)

	// The old group compacts behind it.
	reloaded, err := f.db.Lists.Get(l2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Order)

	// And back out to the space root.
	moved, err = f.eng.MoveListToFolder(ctx, f.owner, l1.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, moved.FolderID)
	assert.Equal(t, 2, moved.Order)
}

func TestMoveListToSameGroupIsNoOp(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	list, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "one", models.VisibilityPublic)
	require.NoError(t, err)

	moved, err := f.eng.MoveListToFolder(ctx, f.owner, list.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, list.Order, moved.Order)
}

func TestSoftDeleteCascades(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	list, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "inbox", models.VisibilityPublic)
	require.NoError(t, err)
	task, err := f.eng.CreateTask(ctx, f.owner, list.ID, "t", "")
	require.NoError(t, err)

	// Guests cannot delete.
	err = f.eng.SoftDelete(ctx, f.guest, authz.SpaceRef(space.ID))
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)

	require.NoError(t, f.eng.SoftDelete(ctx, f.owner, authz.SpaceRef(space.ID)))

	reloadedList, err := f.db.Lists.Get(list.ID)
	require.NoError(t, err)
	assert.False(t, reloadedList.IsActive)
	reloadedTask, err := f.db.Tasks.Get(task.ID)
	require.NoError(t, err)
	assert.True(t, reloadedTask.IsDeleted)
}

func TestSetVisibilityAndPermissionGate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)

	require.NoError(t, f.eng.SetVisibility(ctx, f.owner, authz.SpaceRef(space.ID), models.VisibilityPrivate))

	level, err := f.eng.ResolveAccess(ctx, f.member, authz.SpaceRef(space.ID))
	require.NoError(t, err)
	assert.Equal(t, authz.AccessNone, level)

	require.NoError(t, f.eng.SetPermission(ctx, f.owner, authz.SpaceRef(space.ID), f.member, models.PermissionComment))
	level, err = f.eng.ResolveAccess(ctx, f.member, authz.SpaceRef(space.ID))
	require.NoError(t, err)
	assert.Equal(t, authz.AccessComment, level)

	require.NoError(t, f.eng.RevokePermission(ctx, f.owner, authz.SpaceRef(space.ID), f.member))
	level, err = f.eng.ResolveAccess(ctx, f.member, authz.SpaceRef(space.ID))
	require.NoError(t, err)
	assert.Equal(t, authz.AccessNone, level)
}

func TestSetVisibilityRejectsUnknownValue(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)

	err = f.eng.SetVisibility(ctx, f.owner, authz.SpaceRef(space.ID), models.Visibility("secret"))
	assert.ErrorIs(t, err, apperr.ErrUnsupportedVisibility)
}

func TestSetPermissionRejectsUnknownLevel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)

	err = f.eng.SetPermission(ctx, f.owner, authz.SpaceRef(space.ID), f.member, models.PermissionLevel("superuser"))
	assert.ErrorIs(t, err, apperr.ErrUnsupportedPermission)
	assert.NotErrorIs(t, err, apperr.ErrUnexpectedRole)
}

func TestAssignTask(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	space, err := f.eng.CreateSpace(ctx, f.owner, f.workspace, "a", models.VisibilityPublic)
	require.NoError(t, err)
	list, err := f.eng.CreateList(ctx, f.owner, space.ID, nil, "inbox", models.VisibilityPublic)
	require.NoError(t, err)
	task, err := f.eng.CreateTask(ctx, f.owner, list.ID, "t", "")
	require.NoError(t, err)

	// Assigning needs comment access, which members have by default.
	require.NoError(t, f.eng.AssignTask(ctx, f.member, task.ID, f.guest))
	require.NoError(t, f.eng.AssignTask(ctx, f.member, task.ID, f.guest)) // idempotent

	assignees, err := f.db.TaskAssignees.ForTask(task.ID)
	require.NoError(t, err)
	assert.Len(t, assignees, 1)

	err = f.eng.AssignTask(ctx, f.guest, task.ID, f.guest)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)

	require.NoError(t, f.eng.UnassignTask(ctx, f.member, task.ID, f.guest))
	assignees, err = f.db.TaskAssignees.ForTask(task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignees)
}

func TestTransferOwnershipScopes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.TransferOwnership(ctx, ScopeWorkspace, f.workspace, f.owner, f.admin))
	membership, err := f.db.Memberships.GetActive(f.admin, f.workspace)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, membership.Role)

	require.NoError(t, f.eng.TransferOwnership(ctx, ScopeAccount, f.account, f.owner, f.admin))
	account, err := f.db.Accounts.Get(f.account)
	require.NoError(t, err)
	assert.Equal(t, f.admin, account.OwnerID)

	err = f.eng.TransferOwnership(ctx, OwnershipScope("team"), f.workspace, f.owner, f.admin)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)
}

func TestMemberManagementRequiresAdmin(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	outsider := &models.User{Email: "new@example.com", Name: "new", IsActive: true}
	require.NoError(t, f.db.Users.Create(outsider))

	err := f.eng.AddMember(ctx, f.member, f.workspace, outsider.ID, models.RoleGuest)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)

	require.NoError(t, f.eng.AddMember(ctx, f.admin, f.workspace, outsider.ID, models.RoleGuest))

	err = f.eng.UpdateMemberRole(ctx, f.guest, f.workspace, outsider.ID, models.RoleMember)
	assert.ErrorIs(t, err, apperr.ErrModificationNotAllowed)

	require.NoError(t, f.eng.UpdateMemberRole(ctx, f.admin, f.workspace, outsider.ID, models.RoleMember))
	require.NoError(t, f.eng.RemoveMember(ctx, f.admin, f.workspace, outsider.ID))
}
