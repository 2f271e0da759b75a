// Package scheduler fires named jobs on cron or interval schedules in one
// configured time zone.
//
// Each schedule owns a run state: a tick that arrives while the previous run
// of the same schedule is still executing is dropped, never queued. Every run
// gets its own timeout, and an error or panic inside a job is logged and
// recorded in the history without affecting later ticks or other schedules.
//
// Schedule strings accept cron expressions ("*/10 * * * *", "@hourly",
// "@every 10m"), Go durations ("10m") and HH:MM intervals ("00:10"). See
// ParseSchedule.
package scheduler
