// Package schedule derives the weekday start/stop schedule of the instance.
// This is part of the Functional Core - all functions are pure with no I/O.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/artpar/gitlabstack/internal/core/domain"
)

// =============================================================================
// Fixed Schedule
// =============================================================================

// Cron expressions are in UTC, already shifted from Japan Standard Time
// (UTC+9): 08:00 JST Mon-Fri is 23:00 UTC Sun-Thu, 22:00 JST is 13:00 UTC.
const (
	StartExpression = "cron(0 23 ? * SUN-THU *)"
	StopExpression  = "cron(0 13 ? * MON-FRI *)"
	Timezone        = "UTC"

	StartTargetARN = "arn:aws:scheduler:::aws-sdk:ec2:startInstances"
	StopTargetARN  = "arn:aws:scheduler:::aws-sdk:ec2:stopInstances"

	MaximumEventAgeSeconds = 300
	MaximumRetryAttempts   = 3

	// Description is exposed as a plan output.
	Description = "Instance will automatically start at 8:00 AM and stop at 10:00 PM JST (Monday-Friday)"
)

// Names of the produced schedules.
const (
	StartScheduleName = "GitLabStartInstanceSchedule"
	StopScheduleName  = "GitLabStopInstanceSchedule"
)

// Schedules returns the start and stop schedules for one instance. Both
// invoke their target through role and retry with the fixed policy.
func Schedules(instance, role domain.Ref) []domain.ScheduleProperties {
	target := func(arn string) domain.ScheduleTarget {
		return domain.ScheduleTarget{
			ARN:         arn,
			Role:        role,
			InstanceIDs: []domain.Ref{instance},
			RetryPolicy: domain.RetryPolicy{
				MaximumEventAgeSeconds: MaximumEventAgeSeconds,
				MaximumRetryAttempts:   MaximumRetryAttempts,
			},
		}
	}

	return []domain.ScheduleProperties{
		{
			Name:                   StartScheduleName,
			Description:            "Start GitLab instance at 8:00 AM JST on weekdays (23:00 UTC previous day, SUN-THU)",
			Expression:             StartExpression,
			Timezone:               Timezone,
			FlexibleTimeWindowMode: "OFF",
			State:                  "ENABLED",
			Target:                 target(StartTargetARN),
		},
		{
			Name:                   StopScheduleName,
			Description:            "Stop GitLab instance at 10:00 PM JST on weekdays (13:00 UTC, MON-FRI)",
			Expression:             StopExpression,
			Timezone:               Timezone,
			FlexibleTimeWindowMode: "OFF",
			State:                  "ENABLED",
			Target:                 target(StopTargetARN),
		},
	}
}

// =============================================================================
// Expression Evaluation
// =============================================================================

var ErrInvalidExpression = errors.New("invalid schedule expression")

// Parse converts an EventBridge cron expression,
// "cron(minutes hours day-of-month month day-of-week year)", into a schedule.
// Only the wildcard year is supported.
func Parse(expression string) (cron.Schedule, error) {
	inner, ok := strings.CutPrefix(expression, "cron(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpression, expression)
	}
	fields := strings.Fields(strings.TrimSuffix(inner, ")"))
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: %q must have 6 fields", ErrInvalidExpression, expression)
	}
	if fields[5] != "*" {
		return nil, fmt.Errorf("%w: %q: only year * is supported", ErrInvalidExpression, expression)
	}

	sched, err := cron.ParseStandard(strings.Join(fields[:5], " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expression, err)
	}
	return sched, nil
}

// NextRuns returns the next n activation times of an expression after t,
// in UTC.
func NextRuns(expression string, after time.Time, n int) ([]time.Time, error) {
	sched, err := Parse(expression)
	if err != nil {
		return nil, err
	}
	runs := make([]time.Time, 0, n)
	next := after.UTC()
	for i := 0; i < n; i++ {
		next = sched.Next(next)
		runs = append(runs, next)
	}
	return runs, nil
}
