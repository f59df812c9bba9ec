package ports

import "time"

type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	SendTimeout time.Duration `yaml:"send_timeout"`

	OnFailure string `yaml:"on_failure"` // "abort", "skip"
}

const (
	OnFailureAbort = "abort"
	OnFailureSkip  = "skip"
)
