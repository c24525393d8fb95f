// Package domain defines the typed identifiers shared across features.
//
// IDs are distinct types over uuid.UUID so a RecordID can never be passed
// where a UserID is expected. Zero values are treated as "absent".
package domain

import "github.com/google/uuid"

// RecordID identifies a survey response record under review.
type RecordID uuid.UUID

// UserID identifies a principal (reviewer or administrator).
type UserID uuid.UUID

// SurveyID identifies an upstream survey. Upstream systems use opaque
// string identifiers, so this is not a UUID.
type SurveyID string

// ResponseID identifies one response within an upstream survey.
type ResponseID string

// NewRecordID returns a fresh random record id.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseRecordID parses the canonical string form of a record id.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

// ParseUserID parses the canonical string form of a user id.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func (r RecordID) String() string { return uuid.UUID(r).String() }
func (r RecordID) IsNil() bool    { return uuid.UUID(r) == uuid.Nil }

func (u UserID) String() string { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }

func (s SurveyID) String() string   { return string(s) }
func (r ResponseID) String() string { return string(r) }
