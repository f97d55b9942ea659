package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ruslan20200/ios-messages-generator/internal/model"
	"github.com/ruslan20200/ios-messages-generator/internal/repository"
)

// memDB - хранилище в памяти с семантикой репозиториев: условная привязка устройства,
// каскадное удаление сессий, обнуление ссылок журнала с сохранением id в notes.
type memDB struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	sessions map[int64]*model.Session
	actions  []*model.AdminAction
	nextID   int64

	// beforeBind вызывается перед условной записью устройства (для моделирования гонки).
	beforeBind func()
	failTouch  error
	failRecord error
}

func newMemDB() *memDB {
	return &memDB{users: map[int64]*model.User{}, sessions: map[int64]*model.Session{}}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

type fakeUsers struct{ db *memDB }
type fakeSessions struct{ db *memDB }
type fakeActions struct{ db *memDB }

func copyUser(u *model.User) *model.User {
	c := *u
	if u.DeviceID != nil {
		d := *u.DeviceID
		c.DeviceID = &d
	}
	if u.ExpiresAt != nil {
		e := *u.ExpiresAt
		c.ExpiresAt = &e
	}
	return &c
}

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.users {
		if existing.Login == u.Login {
			return repository.ErrLoginTaken
		}
	}
	u.ID = f.db.id()
	u.CreatedAt = time.Now()
	f.db.users[u.ID] = copyUser(u)
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (f fakeUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Login == login {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeUsers) List(_ context.Context) ([]model.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]model.User, 0, len(f.db.users))
	for _, u := range f.db.users {
		out = append(out, *copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeUsers) BindDeviceIfUnset(_ context.Context, userID int64, deviceID string) (bool, error) {
	if f.db.beforeBind != nil {
		f.db.beforeBind()
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok || u.DeviceID != nil {
		return false, nil
	}
	u.DeviceID = &deviceID
	return true, nil
}

func (f fakeUsers) ClearDevice(_ context.Context, userID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.DeviceID = nil
	return nil
}

func (f fakeUsers) SetExpiry(_ context.Context, userID int64, expiresAt *time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ExpiresAt = expiresAt
	return nil
}

func (f fakeUsers) CountExpired(_ context.Context, now time.Time) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, u := range f.db.users {
		if expiredAt(u, now) {
			n++
		}
	}
	return n, nil
}

func (f fakeUsers) Delete(_ context.Context, userID int64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[userID]; !ok {
		return repository.ErrNotFound
	}
	f.db.deleteUserLocked(userID)
	return nil
}

func (f fakeUsers) DeleteExpired(_ context.Context, now time.Time) (int64, int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var users, sessions int64
	for id, u := range f.db.users {
		if expiredAt(u, now) {
			sessions += f.db.deleteUserLocked(id)
			users++
		}
	}
	return users, sessions, nil
}

func (db *memDB) deleteUserLocked(userID int64) int64 {
	for _, a := range db.actions {
		if a.TargetUserID != nil && *a.TargetUserID == userID {
			a.Notes = appendNote(a.Notes, repository.DeletedUserNote(userID))
			a.TargetUserID = nil
		}
		if a.AdminUserID != nil && *a.AdminUserID == userID {
			a.AdminUserID = nil
		}
	}
	var n int64
	for id, s := range db.sessions {
		if s.UserID == userID {
			delete(db.sessions, id)
			n++
		}
	}
	delete(db.users, userID)
	return n
}

func appendNote(notes *string, add string) *string {
	if notes == nil || *notes == "" {
		return &add
	}
	s := *notes + "; " + add
	return &s
}

func (f fakeSessions) Create(_ context.Context, s *model.Session) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s.ID = f.db.id()
	s.LastSeen = s.LoginTime
	s.IsActive = true
	c := *s
	f.db.sessions[s.ID] = &c
	return s.ID, nil
}

func (f fakeSessions) FindForAuth(_ context.Context, id int64) (*model.SessionAuth, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := copyUser(f.db.users[s.UserID])
	return &model.SessionAuth{
		SessionID: s.ID, UserID: s.UserID, IsActive: s.IsActive,
		Role: u.Role, DeviceID: u.DeviceID, ExpiresAt: u.ExpiresAt,
	}, nil
}

func (f fakeSessions) GetByID(_ context.Context, id int64) (*model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f fakeSessions) Touch(_ context.Context, id int64, t time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failTouch != nil {
		return f.db.failTouch
	}
	if s, ok := f.db.sessions[id]; ok && s.IsActive {
		s.LastSeen = t
	}
	return nil
}

func (f fakeSessions) Deactivate(_ context.Context, id int64, t time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if s, ok := f.db.sessions[id]; ok && s.IsActive {
		s.IsActive = false
		s.LastSeen = t
	}
	return nil
}

func (f fakeSessions) DeactivateByUser(_ context.Context, userID int64, t time.Time) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, s := range f.db.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			s.LastSeen = t
			n++
		}
	}
	return n, nil
}

func (f fakeSessions) DeactivateForExpiredUsers(_ context.Context, now time.Time) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var n int64
	for _, s := range f.db.sessions {
		if u := f.db.users[s.UserID]; u != nil && expiredAt(u, now) && s.IsActive {
			s.IsActive = false
			s.LastSeen = now
			n++
		}
	}
	return n, nil
}

func (f fakeSessions) List(_ context.Context, activeOnly bool, limit int) ([]model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]model.Session, 0)
	for _, s := range f.db.sessions {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f fakeSessions) Delete(_ context.Context, id int64) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.sessions[id]; !ok {
		return false, nil
	}
	delete(f.db.sessions, id)
	return true, nil
}

func (f fakeActions) Record(_ context.Context, a *model.AdminAction) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failRecord != nil {
		return f.db.failRecord
	}
	if a.TargetUserID != nil {
		if _, ok := f.db.users[*a.TargetUserID]; !ok {
			return errors.New("fk violation: target user")
		}
	}
	a.ID = f.db.id()
	a.CreatedAt = time.Now()
	c := *a
	f.db.actions = append(f.db.actions, &c)
	return nil
}

func (f fakeActions) List(_ context.Context, limit int) ([]model.AdminAction, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make([]model.AdminAction, 0, len(f.db.actions))
	for i := len(f.db.actions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.db.actions[i])
	}
	return out, nil
}

// expiredAt повторяет условие из WHERE в repository.UserRepository.CountExpired.
func expiredAt(u *model.User, now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}
