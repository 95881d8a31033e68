package repository

import (
	"context"

	"edu-message-system/internal/model"

	"gorm.io/gorm"
)

// SchoolRepository 学校数据仓储
// 仅后台补全任务写入
type SchoolRepository interface {
	GetBySchoolID(ctx context.Context, schoolID string) (*model.School, error)
	Create(ctx context.Context, school *model.School) error
	AppendProgram(ctx context.Context, schoolID, programID string) error
}

type schoolRepository struct {
	db *gorm.DB
}

// NewSchoolRepository 创建SchoolRepository实例
func NewSchoolRepository(db *gorm.DB) SchoolRepository {
	return &schoolRepository{db: db}
}

// GetBySchoolID 根据学校ID获取学校
func (r *schoolRepository) GetBySchoolID(ctx context.Context, schoolID string) (*model.School, error) {
	var school model.School
	err := r.db.WithContext(ctx).Where("school_id = ?", schoolID).First(&school).Error
	if err != nil {
		return nil, translateStoreErr(err, "school not found")
	}
	return &school, nil
}

// Create 创建学校
func (r *schoolRepository) Create(ctx context.Context, school *model.School) error {
	return translateStoreErr(r.db.WithContext(ctx).Create(school).Error, "school not found")
}

// AppendProgram 将课程追加到学校课程列表（已存在则不变）
// 读改写放在事务内，避免并发补全互相覆盖
func (r *schoolRepository) AppendProgram(ctx context.Context, schoolID, programID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var school model.School
		if err := tx.Where("school_id = ?", schoolID).First(&school).Error; err != nil {
			return err
		}
		if school.HasProgram(programID) {
			return nil
		}
		school.Programs = append(school.Programs, programID)
		return tx.Model(&school).Update("programs", school.Programs).Error
	})
	return translateStoreErr(err, "school not found")
}
