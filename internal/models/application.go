// internal/models/application.go
package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ApplicationEvent identifies the (candidate, requirement) pair behind a
// change-feed event. Raw* keep the identifiers exactly as received so they can
// be echoed back to the caller.
type ApplicationEvent struct {
	CandidateID      string          `json:"candidateId"`
	RequirementID    string          `json:"requirementId"`
	EventType        EventType       `json:"eventType"`
	TableName        string          `json:"tableName"`
	RawCandidateID   json.RawMessage `json:"-"`
	RawRequirementID json.RawMessage `json:"-"`
	ReceivedAt       time.Time       `json:"receivedAt"`
}

// Key is the per-application identity used for run locking. The webhook
// rejects identifiers containing NUL, so distinct pairs never share a key.
func (e ApplicationEvent) Key() string {
	return e.CandidateID + "\x00" + e.RequirementID
}

// ApplicationView is the joined tracking/candidate/requirement read.
type ApplicationView struct {
	ApplicationID string      `json:"applicationId"`
	Candidate     Candidate   `json:"candidate"`
	Requirement   Requirement `json:"requirement"`
	EmailSent     bool        `json:"emailSent"`
	SMSSent       bool        `json:"smsSent"`
}

func (v *ApplicationView) FullyNotified() bool {
	return v.EmailSent && v.SMSSent
}

type Candidate struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	FirstName       string  `json:"firstName"`
	Email           string  `json:"email"`
	MobilePhone     string  `json:"mobilePhone,omitempty"`
	WorkPhone       string  `json:"workPhone,omitempty"`
	HomePhone       string  `json:"homePhone,omitempty"`
	ExperienceYears float64 `json:"experienceYears,omitempty"`
}

type Requirement struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Client      string  `json:"client"`
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	PayRate     string  `json:"payRate,omitempty"`
	OpenDate    string  `json:"openDate,omitempty"`
	MatchScore  float64 `json:"matchScore"` // 0..1
}

// MatchPercent renders MatchScore as a whole percentage.
func (r Requirement) MatchPercent() int {
	return int(r.MatchScore*100 + 0.5)
}
