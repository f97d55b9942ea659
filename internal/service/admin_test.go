package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ruslan20200/ios-messages-generator/internal/model"
)

func months(n int) *int { return &n }

func TestCreateUserRejectsDuplicateLogin(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	ctx := context.Background()

	u, err := f.admin.CreateUser(ctx, admin.ID, CreateUserInput{Login: "Bob", Password: "p"})
	require.NoError(t, err)
	require.Equal(t, "bob", u.Login)
	require.Equal(t, model.RoleUser, u.Role)
	require.Nil(t, u.DeviceID)

	_, err = f.admin.CreateUser(ctx, admin.ID, CreateUserInput{Login: " BOB ", Password: "p"})
	require.ErrorIs(t, err, ErrLoginTaken)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.CreateUser(ctx, 1, CreateUserInput{Login: "", Password: "p"})
	require.ErrorIs(t, err, ErrMissingFields)
	_, err = f.admin.CreateUser(ctx, 1, CreateUserInput{Login: "x", Password: ""})
	require.ErrorIs(t, err, ErrMissingFields)
	_, err = f.admin.CreateUser(ctx, 1, CreateUserInput{Login: "x", Password: "p", Role: "root"})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestResetDeviceDeactivatesSessions(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	u := f.addUser(t, "alice", model.RoleUser, nil)
	for i := 0; i < 2; i++ {
		_, err := f.login("alice", "A")
		require.NoError(t, err)
	}
	ctx := context.Background()

	n, err := f.admin.ResetDevice(ctx, admin.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Nil(t, f.user(t, u.ID).DeviceID)
	for _, s := range f.db.sessions {
		require.False(t, s.IsActive)
	}

	n, err = f.admin.ResetDevice(ctx, admin.ID, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.admin.ResetDevice(ctx, admin.ID, 999)
	require.ErrorIs(t, err, ErrUserNotFound)

	actions, err := f.admin.ListActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, model.ActionResetDevice, actions[0].Action)
	require.Equal(t, u.ID, *actions[0].TargetUserID)
	require.Equal(t, admin.ID, *actions[0].AdminUserID)
}

func TestExtendMonthsFromFutureExpiry(t *testing.T) {
	f := newFixture(t)
	current := f.now.Add(10 * 24 * time.Hour)
	u := f.addUser(t, "bob", model.RoleUser, &current)

	got, err := f.admin.ExtendExpiry(context.Background(), 1, u.ID, ExtendInput{Months: months(3)})
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(current.AddDate(0, 3, 0)))
	require.True(t, f.user(t, u.ID).ExpiresAt.Equal(current.AddDate(0, 3, 0)))
}

func TestExtendMonthsFromLapsedExpiry(t *testing.T) {
	f := newFixture(t)
	lapsed := f.now.Add(-30 * 24 * time.Hour)
	u := f.addUser(t, "bob", model.RoleUser, &lapsed)

	got, err := f.admin.ExtendExpiry(context.Background(), 1, u.ID, ExtendInput{Months: months(3)})
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(f.now.AddDate(0, 3, 0)))
}

func TestExtendMonthsWithoutExpiryCountsFromNow(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "bob", model.RoleUser, nil)

	got, err := f.admin.ExtendExpiry(context.Background(), 1, u.ID, ExtendInput{Months: months(1)})
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(f.now.AddDate(0, 1, 0)))
}

func TestExtendPermanentAndExplicitDate(t *testing.T) {
	f := newFixture(t)
	lapsed := f.now.Add(-time.Hour)
	u := f.addUser(t, "bob", model.RoleUser, &lapsed)
	ctx := context.Background()

	got, err := f.admin.ExtendExpiry(ctx, 1, u.ID, ExtendInput{Permanent: true})
	require.NoError(t, err)
	require.Nil(t, got.ExpiresAt)
	require.Nil(t, f.user(t, u.ID).ExpiresAt)

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err = f.admin.ExtendExpiry(ctx, 1, u.ID, ExtendInput{ExpiresAt: &at})
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(at))
}

func TestExtendValidation(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "bob", model.RoleUser, nil)
	ctx := context.Background()
	at := f.now

	for _, in := range []ExtendInput{
		{},
		{Months: months(0)},
		{Months: months(121)},
		{Months: months(1), Permanent: true},
		{Permanent: true, ExpiresAt: &at},
	} {
		_, err := f.admin.ExtendExpiry(ctx, 1, u.ID, in)
		require.ErrorIs(t, err, ErrInvalidExtend)
	}

	_, err := f.admin.ExtendExpiry(ctx, 1, 999, ExtendInput{Permanent: true})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestExtendDoesNotReactivateSessions(t *testing.T) {
	f := newFixture(t)
	tomorrow := f.now.Add(24 * time.Hour)
	u := f.addUser(t, "bob", model.RoleUser, &tomorrow)
	res, err := f.login("bob", "A")
	require.NoError(t, err)
	ctx := context.Background()

	f.now = f.now.Add(48 * time.Hour)
	_, err = f.admin.CleanupExpired(ctx, nil, CleanupDeactivate)
	require.NoError(t, err)
	_, err = f.admin.ExtendExpiry(ctx, 1, u.ID, ExtendInput{Months: months(1)})
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.login("bob", "A")
	require.NoError(t, err)
}

func TestDeleteUserKeepsActionRows(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	ctx := context.Background()
	u, err := f.admin.CreateUser(ctx, admin.ID, CreateUserInput{Login: "dave", Password: "p"})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, LoginRequest{Login: "dave", Password: "p", DeviceID: "A"})
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteUser(ctx, admin.ID, u.ID))
	require.Empty(t, f.db.sessions)
	require.ErrorIs(t, f.admin.DeleteUser(ctx, admin.ID, u.ID), ErrUserNotFound)

	actions, err := f.admin.ListActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	del := actions[0]
	require.Equal(t, model.ActionDeleteUser, del.Action)
	require.Nil(t, del.TargetUserID)
	require.Contains(t, *del.Notes, "deleted_user_id=2")

	created := actions[1]
	require.Equal(t, model.ActionCreateUser, created.Action)
	require.Nil(t, created.TargetUserID)
	require.Contains(t, *created.Notes, "deleted_user_id=2")
}

func TestDeleteUserSelf(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	require.ErrorIs(t, f.admin.DeleteUser(context.Background(), admin.ID, admin.ID), ErrSelfDelete)
}

func TestDeleteOwnSessionRejected(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	res, err := f.login("root", "console")
	require.NoError(t, err)
	ctx := context.Background()

	err = f.admin.DeleteSession(ctx, admin.ID, res.SessionID, res.SessionID)
	require.ErrorIs(t, err, ErrSelfSession)
	require.True(t, f.db.sessions[res.SessionID].IsActive)

	_, err = f.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
}

func TestDeleteOtherSession(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	u := f.addUser(t, "erin", model.RoleUser, nil)
	own, err := f.login("root", "console")
	require.NoError(t, err)
	other, err := f.login("erin", "A")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.admin.DeleteSession(ctx, admin.ID, own.SessionID, other.SessionID))
	require.NotContains(t, f.db.sessions, other.SessionID)
	require.ErrorIs(t, f.admin.DeleteSession(ctx, admin.ID, own.SessionID, other.SessionID), ErrSessionNotFound)

	actions, err := f.admin.ListActions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.ActionDeleteSession, actions[0].Action)
	require.Equal(t, u.ID, *actions[0].TargetUserID)
}

func TestCleanupExpiredDeactivate(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, nil)
	soon := f.now.Add(time.Hour)
	expiring := f.addUser(t, "old", model.RoleUser, &soon)
	f.addUser(t, "new", model.RoleUser, nil)
	_, err := f.login("old", "A")
	require.NoError(t, err)
	fresh, err := f.login("new", "B")
	require.NoError(t, err)
	ctx := context.Background()

	f.now = f.now.Add(2 * time.Hour)
	res, err := f.admin.CleanupExpired(ctx, &admin.ID, CleanupDeactivate)
	require.NoError(t, err)
	require.Equal(t, &CleanupResult{Mode: CleanupDeactivate, Users: 1, Sessions: 1}, res)
	require.Equal(t, "old", f.user(t, expiring.ID).Login)
	require.True(t, f.db.sessions[fresh.SessionID].IsActive)

	actions, err := f.admin.ListActions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.ActionCleanupExpired, actions[0].Action)
	require.Equal(t, "mode=deactivate users=1 sessions=1", *actions[0].Notes)
}

func TestCleanupExpiredDelete(t *testing.T) {
	f := newFixture(t)
	soon := f.now.Add(time.Hour)
	expiring := f.addUser(t, "old", model.RoleUser, &soon)
	_, err := f.login("old", "A")
	require.NoError(t, err)
	_, err = f.login("old", "A")
	require.NoError(t, err)
	ctx := context.Background()

	f.now = f.now.Add(2 * time.Hour)
	res, err := f.admin.CleanupExpired(ctx, nil, CleanupDelete)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Users)
	require.Equal(t, int64(2), res.Sessions)
	_, err = fakeUsers{f.db}.GetByID(ctx, expiring.ID)
	require.Error(t, err)

	actions, err := f.admin.ListActions(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, actions[0].AdminUserID)

	_, err = f.admin.CleanupExpired(ctx, nil, "purge")
	require.ErrorIs(t, err, ErrInvalidCleanupMode)
}

func TestActionLogFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "alice", model.RoleUser, nil)
	f.db.failRecord = errors.New("log table locked")

	_, err := f.admin.ResetDevice(context.Background(), 1, u.ID)
	require.NoError(t, err)
	_, err = f.admin.ExtendExpiry(context.Background(), 1, u.ID, ExtendInput{Permanent: true})
	require.NoError(t, err)
	require.Empty(t, f.db.actions)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.admin.EnsureBootstrapAdmin(ctx, "Admin", "secret")
	require.NoError(t, err)
	require.True(t, created)

	created, err = f.admin.EnsureBootstrapAdmin(ctx, "admin", "other")
	require.NoError(t, err)
	require.False(t, created)

	created, err = f.admin.EnsureBootstrapAdmin(ctx, "", "")
	require.NoError(t, err)
	require.False(t, created)

	u, err := fakeUsers{f.db}.GetByLogin(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, u.Role)
}

func TestListUsersAndSessions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a", model.RoleUser, nil)
	f.addUser(t, "b", model.RoleUser, nil)
	res, err := f.login("a", "A")
	require.NoError(t, err)
	require.NoError(t, f.auth.Logout(context.Background(), res.SessionID))
	_, err = f.login("b", "B")
	require.NoError(t, err)
	ctx := context.Background()

	users, err := f.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	active, err := f.admin.ListSessions(ctx, true, 50)
	require.NoError(t, err)
	require.Len(t, active, 1)
	all, err := f.admin.ListSessions(ctx, false, 50)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
