// Package domain concentra entidades e estruturas centrais do rate limiter.
package domain

import "time"

// Policy is the configuration of one named limiter.
type Policy struct {
	Name         string
	Limit        int
	Window       time.Duration
	CapacityHint int
}

type Decision struct {
	Allowed    bool
	Limiter    string
	Token      string
	Limit      int
	Count      int64
	Remaining  int
	ResetAfter time.Duration
}

// StatsEvent is one limiter decision, reported best-effort to a StatsRecorder.
type StatsEvent struct {
	Limiter string
	Token   string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}
