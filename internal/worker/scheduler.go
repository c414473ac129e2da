package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"desk-ledger/internal/tasks"
)

// Scheduler 周期性地投递清理任务。
type Scheduler struct {
	scheduler *asynq.Scheduler
	log       *logrus.Entry
}

// NewScheduler 按 schedule (cron 表达式或 "@every 1h") 注册清理任务。
func NewScheduler(redisOpt asynq.RedisClientOpt, schedule string, logger *logrus.Logger) (*Scheduler, error) {
	logEntry := logger.WithField("component", "scheduler")
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logEntry),
		LogLevel: asynq.WarnLevel,
	})

	task, err := tasks.NewRoomSweepTask(0)
	if err != nil {
		return nil, fmt.Errorf("create room sweep task: %w", err)
	}
	// 多个实例同时调度时只保留一个待执行的清理任务
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("default"), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("register room sweep schedule %q: %w", schedule, err)
	}
	logEntry.Infof("Periodic room sweep registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	return &Scheduler{scheduler: scheduler, log: logEntry}, nil
}

// Start 在后台启动调度循环。
func (s *Scheduler) Start() error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.log.Info("Asynq scheduler started")
	return nil
}

// Shutdown 停止调度。
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
	s.log.Info("Asynq scheduler stopped.")
}
