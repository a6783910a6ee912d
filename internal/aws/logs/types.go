package logs

import "time"

// LogGroup is a CloudWatch log group.
type LogGroup struct {
	Name          string
	ARN           string
	RetentionDays int
	StoredBytes   int64
	CreatedAt     time.Time
}
