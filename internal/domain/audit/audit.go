// Package audit records who changed which financial record and how.
// Entries are written in the same transaction as the change they describe.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/id"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionSettle            Action = "settle"
	ActionCancel            Action = "cancel"
	ActionReverseReceipt    Action = "reverse_receipt"
	ActionClone             Action = "clone"
	ActionSeriesMaterialize Action = "series_materialize"
	ActionSeriesUpdate      Action = "series_update"
	ActionSeriesDelete      Action = "series_delete"
)

// Entry is a single audit record.
type Entry struct {
	ID         id.ID          `json:"id"`
	CompanyID  string         `json:"companyId"`
	EntityType string         `json:"entityType"`
	EntityID   id.ID          `json:"entityId"`
	Action     Action         `json:"action"`
	UserID     string         `json:"userId,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) History(context.Context, string, id.ID, int) ([]Entry, error) { return nil, nil }

// Fill sets ID, caller and timestamp fields that the caller left empty.
func Fill(ctx context.Context, e *Entry, newID id.ID, now time.Time) {
	if id.IsNil(e.ID) {
		e.ID = newID
	}
	if e.UserID == "" {
		e.UserID = appctx.GetUserID(ctx)
	}
	if e.CompanyID == "" {
		e.CompanyID = appctx.GetCompanyID(ctx)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
}

// Snapshot converts v to its JSON object form for diffing.
func Snapshot(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("audit snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("audit snapshot: %w", err)
	}
	return out, nil
}

// Diff returns {"field": {"old": x, "new": y}} for every field that differs.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

// DiffValues snapshots both values and diffs them.
func DiffValues(before, after any) (map[string]any, error) {
	oldState, err := Snapshot(before)
	if err != nil {
		return nil, err
	}
	newState, err := Snapshot(after)
	if err != nil {
		return nil, err
	}
	return Diff(oldState, newState), nil
}
