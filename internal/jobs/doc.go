// Package jobs holds the two scheduled reminder jobs.
//
// CheckinJob nudges every subscriber who has not answered today's check-in,
// but only inside the configured time-of-day windows. SummaryJob sends one
// summary prompt to everyone in the single tick that starts 72 hours after
// the observance end date. Both receive their settings and collaborators at
// construction and read the clock through an injectable function.
package jobs
