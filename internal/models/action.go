package models

import (
	"encoding/json"
	"time"
)

// Action is a single local mutation recorded while offline, waiting to be
// replayed against the remote service.
type Action struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`   // create, update, delete
	Entity       string          `json:"entity"` // remote resource kind, e.g. "expense"
	EntityID     string          `json:"entity_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	Priority     string          `json:"priority"`
	Dependencies []string        `json:"dependencies,omitempty"`
}

// Failed reports whether the action exhausted its retry budget. Failed
// actions stay in the queue until an operator retries or clears them.
func (a *Action) Failed() bool {
	return a.RetryCount >= a.MaxRetries
}

// DependsOn reports whether the action lists id as a dependency.
func (a *Action) DependsOn(id string) bool {
	for _, dep := range a.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the queue's internal state.
func (a *Action) Clone() Action {
	c := *a
	if a.Data != nil {
		c.Data = append(json.RawMessage(nil), a.Data...)
	}
	if a.Dependencies != nil {
		c.Dependencies = append([]string(nil), a.Dependencies...)
	}
	return c
}

// ValidActionType reports whether t is one of create, update, delete.
func ValidActionType(t string) bool {
	switch t {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// PriorityRank maps a priority tag to a sortable weight, higher first.
// Unknown tags rank below low so malformed records never jump the queue.
func PriorityRank(p string) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ValidPriority reports whether p is a known priority tag.
func ValidPriority(p string) bool {
	return PriorityRank(p) > 0
}
