// Package signal standardizes payloads shared between collection and decision layers.
package signal

import "time"

// MentionSample is one observation of mention volume for an asset on a source.
type MentionSample struct {
	Asset  string    `json:"asset"`
	Source string    `json:"source"`
	Count  int       `json:"count"`
	Ts     time.Time `json:"timestamp"`
}

// Signal records a mention spike that crossed the buzz threshold.
type Signal struct {
	ID                   string    `json:"id"`
	Asset                string    `json:"asset"`
	CurrentMentions      int       `json:"current_mentions"`
	BaselineMentions     float64   `json:"baseline_mentions"`
	PercentAboveBaseline float64   `json:"percent_above_baseline"`
	ZScore               float64   `json:"z_score"`
	Ts                   time.Time `json:"timestamp"`
}
