package repository

import (
	"context"
	"errors"
	"time"

	"edu-message-system/internal/model"
	"edu-message-system/pkg/apperr"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// UserRepository 账号数据仓储
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastSeen(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建UserRepository实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	// 邮箱唯一索引冲突按校验错误返回
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return apperr.Validation("email already registered", "email")
	}
	return translateStoreErr(err, "user not found")
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translateStoreErr(err, "user not found")
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translateStoreErr(err, "user not found")
	}
	return &u, nil
}

// UpdateLastSeen 刷新最近活跃时间
func (r *userRepository) UpdateLastSeen(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_seen", time.Now()).Error
	return translateStoreErr(err, "user not found")
}
