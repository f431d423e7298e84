// Package queue defines message payloads exchanged over the message broker.
package queue

// Actions carried by ScheduleChangedEvent.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
	ActionStatus  = "status"
	ActionTimes   = "times"
	ActionReset   = "reset"
)

// ScheduleChangedEvent is published after any successful schedule mutation.
// It carries enough information for downstream consumers to log or notify
// without querying the primary database. For sector resets only the sector
// fields are populated.
type ScheduleChangedEvent struct {
	Action          string `json:"action"`
	PlacementID     string `json:"placement_id,omitempty"`
	SectorID        string `json:"sector_id"`
	SectorName      string `json:"sector_name,omitempty"`
	StageID         string `json:"stage_id,omitempty"`
	StageName       string `json:"stage_name,omitempty"`
	CompetitionID   string `json:"competition_id,omitempty"`
	CompetitionName string `json:"competition_name,omitempty"`
	Status          string `json:"status,omitempty"`
	Date            string `json:"date,omitempty"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
	ChangedAt       string `json:"changed_at"`
}
