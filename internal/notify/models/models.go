package models

import (
	"strconv"
	"time"
)

// Stage identifies one of the four independent notification types tracked per
// registration. Stages are delivered in a fixed order: confirmation first, then
// the admin alert, then the housing-pass barcode, then the change-request info.
type Stage string

const (
	StageConfirmation  Stage = "registration_confirmation"
	StageAdmin         Stage = "admin_notification"
	StageBarcode       Stage = "barcode_message"
	StageChangeRequest Stage = "change_request"
)

// Stages lists all stages in dispatch order.
var Stages = []Stage{StageConfirmation, StageAdmin, StageBarcode, StageChangeRequest}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageConfirmation, StageAdmin, StageBarcode, StageChangeRequest:
		return true
	}
	return false
}

// MaxAttempts caps automatic retries per stage per row. Once a stage's retry
// counter reaches this value the row needs a manual re-trigger.
const MaxAttempts = 3

// AttemptCooldown is the minimum wait between attempts for the same stage.
const AttemptCooldown = 30 * time.Second

// BarcodeAfterConfirmation is the minimum gap between the confirmation send and
// the first barcode attempt, so the recipient sees the messages in order.
const BarcodeAfterConfirmation = 2 * time.Second

// ChangeRequestAfterConfirmation staggers the change-request info so a new
// registrant is not flooded immediately after confirming.
const ChangeRequestAfterConfirmation = time.Minute

// StaleLockThreshold is the age after which the reaper force-clears a
// processing lock left behind by a crashed or hung send.
const StaleLockThreshold = 5 * time.Minute

// Registration is a read-only row from the external registrations table.
type Registration struct {
	ID             int64
	RegistrationNo string
	Name           string
	Mobile         string
	Village        string
	State          string
	Position       string
	Age            int
	Gender         string
	MaleMembers    int
	FemaleMembers  int
	ChildMembers   int
	TotalMembers   int
	Connected      string
	Message        string
	CreatedAt      time.Time
}

// StageState is the per-stage delivery bookkeeping on a tracking record.
type StageState struct {
	Sent        bool
	SentAt      *time.Time
	RetryCount  int
	LastAttempt *time.Time
}

// Exhausted reports whether the stage is out of automatic attempts.
func (s StageState) Exhausted() bool { return !s.Sent && s.RetryCount >= MaxAttempts }

// TrackingRecord drives the dispatch pipeline: one row per registration with
// denormalized registrant fields and independent state per stage.
type TrackingRecord struct {
	ID             int64
	RegistrationID int64
	RegistrationNo string
	Name           string
	Mobile         string
	Village        string
	State          string
	Position       string
	Age            int
	Gender         string
	MaleMembers    int
	FemaleMembers  int
	ChildMembers   int
	TotalMembers   int
	Connected      string
	Message        string

	Confirmation  StageState
	Admin         StageState
	Barcode       StageState
	ChangeRequest StageState

	IsProcessing bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Stage returns the state block for the given stage.
func (r *TrackingRecord) Stage(stage Stage) *StageState {
	switch stage {
	case StageConfirmation:
		return &r.Confirmation
	case StageAdmin:
		return &r.Admin
	case StageBarcode:
		return &r.Barcode
	case StageChangeRequest:
		return &r.ChangeRequest
	}
	return nil
}

// TemplateFields maps placeholder names to this record's values for rendering.
func (r *TrackingRecord) TemplateFields() map[string]string {
	return map[string]string{
		"registration_no": r.RegistrationNo,
		"name":            r.Name,
		"village":         r.Village,
		"state":           r.State,
		"mobile":          r.Mobile,
		"position":        r.Position,
		"age":             strconv.Itoa(r.Age),
		"gender":          r.Gender,
		"male_members":    strconv.Itoa(r.MaleMembers),
		"female_members":  strconv.Itoa(r.FemaleMembers),
		"child_members":   strconv.Itoa(r.ChildMembers),
		"total_members":   strconv.Itoa(r.TotalMembers),
		"connected":       r.Connected,
	}
}

// Template is an editable per-stage message template.
type Template struct {
	ID        int64
	Name      string
	Stage     Stage
	Text      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncStats summarizes tracking-store progress for the dashboard.
type SyncStats struct {
	TotalSynced        int `json:"total_synced"`
	ConfirmationsSent  int `json:"user_messages_sent"`
	AdminAlertsSent    int `json:"admin_notifications_sent"`
	BarcodesSent       int `json:"barcode_messages_sent"`
	ChangeRequestsSent int `json:"change_request_sent"`
	Pending            int `json:"pending_messages"`
	PermanentlyFailed  int `json:"permanently_failed"`
}
