package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Entry and relation statuses
const (
	StatusPending  = "pending"
	StatusEnabled  = "enabled"
	StatusDisabled = "disabled"
)

// Entry is a dictionary headword in one language
type Entry struct {
	ID        int64     `db:"id" json:"id"`
	GUID      string    `db:"guid" json:"guid"`
	Content   Strings   `db:"content" json:"content"`
	Initial   string    `db:"initial" json:"initial"`
	Weight    float64   `db:"weight" json:"weight"`
	Tokens    string    `db:"tokens" json:"tokens"`
	Lang      string    `db:"lang" json:"lang"`
	Tags      Strings   `db:"tags" json:"tags"`
	Phones    Strings   `db:"phones" json:"phones"`
	Notes     string    `db:"notes" json:"notes"`
	Meta      Meta      `db:"meta" json:"meta"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Relations      []Relation `db:"-" json:"relations,omitempty"`
	TotalRelations int        `db:"-" json:"total_relations"`

	// Total is the window count of the query that produced the row.
	Total int `db:"total" json:"-"`
}

// Relation is a typed, weighted edge from a root entry to a related entry.
// A relation is always loaded together with its target entry.
type Relation struct {
	ID        int64     `db:"relation_id" json:"id"`
	Types     Strings   `db:"relation_types" json:"types"`
	Tags      Strings   `db:"relation_tags" json:"tags"`
	Notes     string    `db:"relation_notes" json:"notes"`
	Weight    int       `db:"relation_weight" json:"weight"`
	Status    string    `db:"relation_status" json:"status"`
	CreatedAt time.Time `db:"relation_created_at" json:"created_at"`
	UpdatedAt time.Time `db:"relation_updated_at" json:"updated_at"`

	Entry Entry `db:"-" json:"entry"`
}

// Strings is a string list persisted as a JSON array
type Strings []string

// Value implements driver.Valuer
func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (s *Strings) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("failed to scan strings: %w", err)
	}
	if len(b) == 0 {
		*s = Strings{}
		return nil
	}
	out := Strings{}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("failed to decode strings: %w", err)
	}
	*s = out
	return nil
}

// Meta is an open key/value map persisted as a JSON object
type Meta map[string]interface{}

// Value implements driver.Valuer
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *Meta) Scan(src interface{}) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("failed to scan meta: %w", err)
	}
	out := Meta{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &out); err != nil {
			return fmt.Errorf("failed to decode meta: %w", err)
		}
	}
	*m = out
	return nil
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}
}

// ValidStatus reports whether s is a known entry/relation status
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusEnabled, StatusDisabled:
		return true
	}
	return false
}

// Validate checks the fields required to persist an entry
func (e *Entry) Validate() error {
	if len(e.Content) == 0 {
		return Validationf("content is required")
	}
	for _, c := range e.Content {
		if c == "" {
			return Validationf("content items cannot be empty")
		}
	}
	if e.Lang == "" {
		return Validationf("lang is required")
	}
	if e.Status != "" && !ValidStatus(e.Status) {
		return Validationf("unknown status %q", e.Status)
	}
	return nil
}

// Head returns the first content item
func (e *Entry) Head() string {
	if len(e.Content) == 0 {
		return ""
	}
	return e.Content[0]
}
