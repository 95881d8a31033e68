package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// School 学校（教育机构）模型
// 仅由后台补全任务写入：首次被消息引用时创建，之后追加课程ID
// 默认联系邮箱由学校名称推导

type School struct {
	ID         uint           `gorm:"primaryKey"`
	SchoolID   string         `gorm:"type:varchar(64);not null;uniqueIndex;comment:学校ID"`
	SchoolName string         `gorm:"type:varchar(128);not null;index;comment:学校名称"`
	Email      string         `gorm:"type:varchar(128);not null;comment:联系邮箱"`
	Phone      string         `gorm:"type:varchar(32);comment:联系电话"`
	Website    string         `gorm:"type:varchar(255);comment:官网地址"`
	Programs   []string       `gorm:"serializer:json;comment:已收到咨询的课程ID列表"`
	IsVerified bool           `gorm:"default:false;comment:是否已认证"`
	CreatedAt  time.Time      `gorm:"comment:创建时间"`
	UpdatedAt  time.Time      `gorm:"comment:更新时间"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (School) TableName() string { return "school" }

// HasProgram 判断学校课程列表是否已包含指定课程
func (s *School) HasProgram(programID string) bool {
	for _, p := range s.Programs {
		if p == programID {
			return true
		}
	}
	return false
}

// DefaultSchoolEmail 由学校名称推导默认联系邮箱
// 例如 "Stockholm Business School" -> "info@stockholmbusinessschool.se"
func DefaultSchoolEmail(schoolName string) string {
	name := strings.ToLower(schoolName)
	name = strings.Join(strings.Fields(name), "")
	return fmt.Sprintf("info@%s.se", name)
}
