package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vault-network/vault/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTask(interval int64, immediate bool, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid task interval %d", interval)
	}

	job := s.scheduler.Every(int(interval)).Seconds().SingletonMode()
	if !immediate {
		job = job.WaitForSchedule()
	}
	_, err := job.Do(task)
	return err
}
