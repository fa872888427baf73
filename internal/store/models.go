package store

import "time"

// Confidence is the learner's self-reported confidence on an answer.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// SyncStatus tracks whether an interaction has been acknowledged by the
// server. The only legal transition is pending -> synced, and only the
// sync engine performs it.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

// Interaction is one learning event: the learner answered one question.
// Everything except SyncStatus is immutable after creation. The db tags
// bind it to the interactions table; the json tags are the sync wire
// format, shared by pull and push.
type Interaction struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"userId"`
	SkillID          string     `db:"skill_id" json:"skillId"`
	Subject          string     `db:"subject" json:"subject"`
	Topic            string     `db:"topic" json:"topic"`
	QuestionID       string     `db:"question_id" json:"questionId"`
	SessionID        string     `db:"session_id" json:"sessionId"`
	Correct          bool       `db:"correct" json:"correct"`
	Confidence       Confidence `db:"confidence" json:"confidence"`
	TimeSpentSeconds int        `db:"time_spent_seconds" json:"timeSpentSeconds"`
	HintsUsed        int        `db:"hints_used" json:"hintsUsed"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	SyncStatus       SyncStatus `db:"sync_status" json:"syncStatus"`
}

// Checkpoint is the singleton sync high-water mark. LastPulledAt is an
// opaque server-issued token; empty means the store has never pulled.
type Checkpoint struct {
	LastPulledAt  string `db:"last_pulled_at"`
	SchemaVersion int    `db:"schema_version"`
}
