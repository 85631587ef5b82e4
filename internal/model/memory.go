// Package model defines the core memory data types.
package model

import "time"

// Scope determines which conversations a memory applies to.
type Scope string

const (
	// ScopeGlobal memories are injected into every subject's conversations.
	ScopeGlobal Scope = "GLOBAL"
	// ScopeSubject memories belong to exactly one subject.
	ScopeSubject Scope = "SUBJECT"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeSubject
}

// MaxContentLength bounds normalized memory content.
const MaxContentLength = 320

// DefaultConfidence is assigned to heuristically extracted memories.
// It marks content as "probably true", not verified fact.
const DefaultConfidence = 0.6

// Memory is a single durable fact extracted from conversation or
// entered by an operator.
type Memory struct {
	ID         string     `json:"id"`
	Scope      Scope      `json:"scope"`
	SubjectID  string     `json:"subject_id,omitempty"` // set iff Scope == ScopeSubject
	Content    string     `json:"content"`
	Source     string     `json:"source"`
	Tags       []string   `json:"tags,omitempty"`
	Confidence float64    `json:"confidence"`
	Pinned     bool       `json:"pinned"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Expired reports whether the memory is logically absent at the given time.
func (m *Memory) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// Subject is the conversation participant owning SUBJECT-scoped memories.
// Authentication is a caller concern; this is only the display/lookup row.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Goal      string    `json:"goal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one turn of a subject's transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
