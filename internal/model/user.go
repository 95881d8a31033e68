package model

import (
	"time"

	"gorm.io/gorm"
)

// UserType 账号类型
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeAdmin   UserType = "admin"
	UserTypeSchool  UserType = "school"
)

// IsValid 校验账号类型取值
func (t UserType) IsValid() bool {
	switch t {
	case UserTypeStudent, UserTypeAdmin, UserTypeSchool:
		return true
	}
	return false
}

// User 账号模型（学生/管理员/学校）
// 密码仅存储哈希（PasswordHash），不存储明文
// SchoolID 仅学校账号使用，用于跨校访问控制

type User struct {
	ID           uint           `gorm:"primaryKey"`
	Email        string         `gorm:"type:varchar(128);not null;uniqueIndex;comment:邮箱"`
	PasswordHash string         `gorm:"type:varchar(255);not null;comment:密码哈希"`
	FirstName    string         `gorm:"type:varchar(64);not null;comment:名"`
	LastName     string         `gorm:"type:varchar(64);not null;comment:姓"`
	Phone        string         `gorm:"type:varchar(32);comment:电话"`
	UserType     UserType       `gorm:"type:varchar(32);default:'student';comment:账号类型"`
	SchoolID     string         `gorm:"type:varchar(64);index;comment:所属学校ID(学校账号)"`
	IsActive     bool           `gorm:"default:false;comment:是否已激活"`
	LastSeen     time.Time      `gorm:"comment:最近活跃时间"`
	CreatedAt    time.Time      `gorm:"comment:创建时间"`
	UpdatedAt    time.Time      `gorm:"comment:更新时间"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string { return "user" }
