package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Stale pending capture sweep, every five minutes
	CronScheduleStalePending string `env:"CRON_SCHEDULE_STALE_PENDING" envDefault:"0 */5 * * * *"`
}
