package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bookshelf/internal/model"
	"bookshelf/internal/notify"
	"bookshelf/internal/repository"
)

// memoryUserRepository is an in-memory UserRepository with the same conditional-update
// semantics as the GORM implementation.
type memoryUserRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.User
	updates int
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{byID: make(map[uuid.UUID]*model.User)}
}

func clone(u *model.User) *model.User {
	out := *u
	if u.OTP != nil {
		otp := *u.OTP
		out.OTP = &otp
	}
	return &out
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range r.byID {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (r *memoryUserRepository) Insert(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.Email = model.NormalizeEmail(user.Email)
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, repository.ErrAlreadyExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.byID[user.ID] = clone(user)
	return clone(user), nil
}

func (r *memoryUserRepository) ConditionalUpdate(_ context.Context, id uuid.UUID, cond repository.UserCondition, changes repository.UserChanges) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cond.Verified != nil && u.Verified != *cond.Verified {
		return nil, repository.ErrNotFound
	}
	if cond.OTP != nil && (u.OTP == nil || *u.OTP != *cond.OTP) {
		return nil, repository.ErrNotFound
	}
	if changes.ClearOTP {
		u.OTP = nil
	} else if changes.OTP != nil {
		otp := *changes.OTP
		u.OTP = &otp
	}
	if changes.Verified != nil {
		u.Verified = *changes.Verified
	}
	r.updates++
	return clone(u), nil
}

func (r *memoryUserRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *memoryUserRepository) stored(email string) *model.User {
	u, err := r.FindByEmail(context.Background(), email)
	if err != nil {
		return nil
	}
	return u
}

// staleReadRepository returns the record as it was read, then runs afterRead once against the
// live store, simulating a write that lands between a read and the next conditional update.
type staleReadRepository struct {
	*memoryUserRepository
	afterRead func(*model.User)
	once      sync.Once
}

func (r *staleReadRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := r.memoryUserRepository.FindByEmail(ctx, email)
	if err == nil && r.afterRead != nil {
		r.once.Do(func() { r.afterRead(u) })
	}
	return u, err
}

// sequenceOTP returns codes 000001, 000002, ... so that every issued code differs.
type sequenceOTP struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceOTP) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%06d", g.next), nil
}

// recordingDispatcher keeps every dispatched message.
type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.OTPMessage
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg notify.OTPMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.err
}

func (d *recordingDispatcher) sent() []notify.OTPMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.OTPMessage(nil), d.messages...)
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Insert(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) ConditionalUpdate(ctx context.Context, id uuid.UUID, cond repository.UserCondition, changes repository.UserChanges) (*model.User, error) {
	args := m.Called(ctx, id, cond, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}
