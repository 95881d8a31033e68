package service

import (
	"context"
	"sync/atomic"
	"time"

	"edu-message-system/config"
	"edu-message-system/internal/model"
	"edu-message-system/internal/repository"
	"edu-message-system/pkg/apperr"
	"edu-message-system/pkg/logger"

	"go.uber.org/zap"
)

// EnrichTask 学校信息补全任务
type EnrichTask struct {
	SchoolID   string
	SchoolName string
	ProgramID  string
}

// SchoolEnricher 学校信息后台补全
// 消息创建后异步维护学校档案：不存在则创建（带默认联系邮箱），
// 已存在则把课程ID追加到课程列表。队列有界，满时丢弃任务并告警，
// 任务失败只记录日志，绝不影响消息写入
type SchoolEnricher struct {
	repo    repository.SchoolRepository
	tasks   chan EnrichTask
	timeout time.Duration
	done    chan struct{}
	closed  atomic.Bool
}

// NewSchoolEnricher 创建SchoolEnricher实例
func NewSchoolEnricher(repo repository.SchoolRepository, cfg config.EnrichConfig) *SchoolEnricher {
	return &SchoolEnricher{
		repo:    repo,
		tasks:   make(chan EnrichTask, cfg.QueueSize),
		timeout: cfg.TaskTimeout,
		done:    make(chan struct{}),
	}
}

// Enqueue 非阻塞入队，队列满时丢弃并告警
func (e *SchoolEnricher) Enqueue(task EnrichTask) bool {
	if e.closed.Load() {
		return false
	}
	select {
	case e.tasks <- task:
		return true
	default:
		logger.Warn("学校补全队列已满，丢弃任务",
			zap.String("school_id", task.SchoolID),
			zap.String("program_id", task.ProgramID))
		return false
	}
}

// Run 消费任务队列，需在独立goroutine中调用
func (e *SchoolEnricher) Run() {
	for task := range e.tasks {
		e.process(task)
	}
	close(e.done)
}

// Stop 停止消费并等待队列排空
func (e *SchoolEnricher) Stop() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.tasks)
	}
	<-e.done
}

// process 处理单个补全任务，每个任务独立超时预算
func (e *SchoolEnricher) process(task EnrichTask) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	school, err := e.repo.GetBySchoolID(ctx, task.SchoolID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			e.createSchool(ctx, task)
			return
		}
		logger.Warn("查询学校失败，放弃补全",
			zap.String("school_id", task.SchoolID),
			zap.Error(err))
		return
	}

	if school.HasProgram(task.ProgramID) {
		return
	}
	if err := e.repo.AppendProgram(ctx, task.SchoolID, task.ProgramID); err != nil {
		logger.Warn("追加学校课程失败",
			zap.String("school_id", task.SchoolID),
			zap.String("program_id", task.ProgramID),
			zap.Error(err))
		return
	}
	logger.Debug("学校课程已补全",
		zap.String("school_id", task.SchoolID),
		zap.String("program_id", task.ProgramID))
}

func (e *SchoolEnricher) createSchool(ctx context.Context, task EnrichTask) {
	school := &model.School{
		SchoolID:   task.SchoolID,
		SchoolName: task.SchoolName,
		Email:      model.DefaultSchoolEmail(task.SchoolName),
		Programs:   []string{task.ProgramID},
	}
	if err := e.repo.Create(ctx, school); err != nil {
		logger.Warn("创建学校档案失败",
			zap.String("school_id", task.SchoolID),
			zap.Error(err))
		return
	}
	logger.Info("学校档案已创建",
		zap.String("school_id", task.SchoolID),
		zap.String("school_name", task.SchoolName))
}
