package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookshelf/internal/model"
)

var (
	// ErrNotFound indicates no (non-deleted) user matched.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates an email uniqueness conflict on insert.
	ErrAlreadyExists = errors.New("record already exists")
)

// UserCondition narrows a conditional update beyond the id match.
// Nil fields are not checked.
type UserCondition struct {
	Verified *bool
	OTP      *string
}

// UserChanges lists the columns a conditional update assigns.
type UserChanges struct {
	OTP      *string
	ClearOTP bool
	Verified *bool
}

func (c UserChanges) columns() map[string]interface{} {
	cols := make(map[string]interface{}, 2)
	if c.ClearOTP {
		cols["otp"] = nil
	} else if c.OTP != nil {
		cols["otp"] = *c.OTP
	}
	if c.Verified != nil {
		cols["verified"] = *c.Verified
	}
	return cols
}

// UserRepository is the only reader and writer of user records.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Insert(ctx context.Context, user *model.User) (*model.User, error)
	// ConditionalUpdate atomically applies changes to the user with id if it still satisfies cond.
	// It returns ErrNotFound when no record matched.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, cond UserCondition, changes UserChanges) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) Insert(ctx context.Context, user *model.User) (*model.User, error) {
	user.Email = model.NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (r *userRepository) ConditionalUpdate(ctx context.Context, id uuid.UUID, cond UserCondition, changes UserChanges) (*model.User, error) {
	cols := changes.columns()
	if len(cols) == 0 {
		return nil, errors.New("conditional update without changes")
	}

	q := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id)
	if cond.Verified != nil {
		q = q.Where("verified = ?", *cond.Verified)
	}
	if cond.OTP != nil {
		q = q.Where("otp = ?", *cond.OTP)
	}

	// UpdateColumns skips hooks and updated_at tracking.
	res := q.UpdateColumns(cols)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	default:
		return err
	}
}
