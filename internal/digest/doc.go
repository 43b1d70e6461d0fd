// Package digest emails users a count of their pending tasks per status at the
// time of day they chose.
//
// A cron entry calls Scheduler.Tick, which lists the schedules due this minute
// and enqueues one Job per user on a job.Queue. Workers then read the counts and
// hand the composed message to a Mailer. Digests only read tasks; they never
// take cascade locks.
package digest
