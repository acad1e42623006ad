package models

import (
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a standard 5-field cron expression (or an @descriptor such as @hourly).
func ParseCron(expression string) (cron.Schedule, error) {
	return cronParser.Parse(expression)
}

// NextDue returns the first time the schedule is due strictly after the reference time.
// defaultInterval is used when the schedule carries neither an expression nor an interval.
func (s *ScheduleConfig) NextDue(reference time.Time, defaultInterval time.Duration) (time.Time, error) {
	if s.Expression != "" {
		schedule, err := ParseCron(s.Expression)
		if err != nil {
			return time.Time{}, err
		}

		return schedule.Next(reference), nil
	}

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	return reference.Add(interval), nil
}
