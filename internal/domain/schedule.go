package domain

import (
	"time"
)

// SchedulerSetting holds the daily trigger configuration for one category.
type SchedulerSetting struct {
	Category  Category  `db:"category"   json:"category"`
	Timezone  string    `db:"timezone"   json:"timezone"`
	Hour      int       `db:"hour"       json:"hour"`
	Minute    int       `db:"minute"     json:"minute"`
	Enabled   bool      `db:"enabled"    json:"enabled"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NextRun describes the next automatic trigger for a category.
type NextRun struct {
	Category     Category  `json:"category"`
	NextRunTime  time.Time `json:"next_run_time"`
	SecondsUntil int64     `json:"seconds_until"`
	Enabled      bool      `json:"enabled"`
}
