package ports

type SchedulerService interface {
	Start()
	Stop()

	// ScheduleTask runs task every interval seconds, right away if immediate.
	ScheduleTask(interval int64, immediate bool, task func()) error
}
