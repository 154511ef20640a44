package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

type triggerData struct {
	At               *time.Time `json:"at,omitempty"`
	InMinutes        int        `json:"in_minutes,omitempty"`
	From             *time.Time `json:"from,omitempty"`
	Event            string     `json:"event,omitempty"`
	Pattern          *string    `json:"pattern,omitempty"`
	ContextPattern   string     `json:"context_pattern,omitempty"`
	RecurringPattern string     `json:"recurring_pattern,omitempty"`
	CustomMinutes    int        `json:"custom_minutes,omitempty"`
	LastTriggered    *time.Time `json:"last_triggered,omitempty"`
}

func encodeTrigger(t types.Trigger) string {
	td := triggerData{
		InMinutes: t.InMinutes, From: t.From, Event: t.Event, Pattern: t.Pattern,
		ContextPattern: t.ContextPattern, RecurringPattern: string(t.RecurringPattern),
		CustomMinutes: t.CustomMinutes, LastTriggered: t.LastTriggered,
	}
	if !t.At.IsZero() {
		td.At = &t.At
	}
	b, _ := json.Marshal(td)
	return string(b)
}

func decodeTrigger(kind, data string) types.Trigger {
	var td triggerData
	_ = json.Unmarshal([]byte(data), &td)
	t := types.Trigger{
		Kind: types.TriggerKind(kind), InMinutes: td.InMinutes, From: td.From,
		Event: td.Event, Pattern: td.Pattern, ContextPattern: td.ContextPattern,
		RecurringPattern: types.RecurringPattern(td.RecurringPattern),
		CustomMinutes:    td.CustomMinutes, LastTriggered: td.LastTriggered,
	}
	if td.At != nil {
		t.At = *td.At
	}
	return t
}

// InsertIntention implements store.Store.
func (s *Store) InsertIntention(ctx context.Context, in *types.Intention) (string, error) {
	if in.ID == "" {
		in.ID = "intent_" + uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	if in.Status == "" {
		in.Status = types.IntentionActive
	}
	if in.Priority == "" {
		in.Priority = types.PriorityNormal
	}
	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO intentions (id, content, trigger_kind, trigger_data, priority, status,
				created_at, deadline, fulfilled_at, reminder_count, tags, related_memories, source, snoozed_until)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			in.ID, in.Content, string(in.Trigger.Kind), encodeTrigger(in.Trigger), string(in.Priority), string(in.Status),
			in.CreatedAt, in.Deadline, in.FulfilledAt, in.ReminderCount, marshalStrings(in.Tags),
			marshalStrings(in.RelatedMemories), string(in.Source), in.SnoozedUntil,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("postgres: insert intention: %w", err)
	}
	return in.ID, nil
}

const intentionColumns = `id, content, trigger_kind, trigger_data, priority, status,
	created_at, deadline, fulfilled_at, reminder_count, tags, related_memories, source, snoozed_until`

func scanIntention(row interface{ Scan(...interface{}) error }) (*types.Intention, error) {
	var in types.Intention
	var triggerKind, triggerDataStr, priority, status, source string
	var deadline, fulfilledAt, snoozedUntil sql.NullTime
	var tags, related sql.NullString

	err := row.Scan(&in.ID, &in.Content, &triggerKind, &triggerDataStr, &priority, &status,
		&in.CreatedAt, &deadline, &fulfilledAt, &in.ReminderCount, &tags, &related, &source, &snoozedUntil)
	if err != nil {
		return nil, err
	}
	in.Trigger = decodeTrigger(triggerKind, triggerDataStr)
	in.Priority = types.Priority(priority)
	in.Status = types.IntentionStatus(status)
	in.Source = types.IntentionSource(source)
	if deadline.Valid {
		t := deadline.Time
		in.Deadline = &t
	}
	if fulfilledAt.Valid {
		t := fulfilledAt.Time
		in.FulfilledAt = &t
	}
	if snoozedUntil.Valid {
		t := snoozedUntil.Time
		in.SnoozedUntil = &t
	}
	in.Tags = unmarshalStrings(tags.String)
	in.RelatedMemories = unmarshalStrings(related.String)
	return &in, nil
}

// GetIntention implements store.Store.
func (s *Store) GetIntention(ctx context.Context, id string) (*types.Intention, error) {
	var in *types.Intention
	err := s.call(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, "SELECT "+intentionColumns+" FROM intentions WHERE id = $1", id)
		var scanErr error
		in, scanErr = scanIntention(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get intention %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get intention: %w", err)
	}
	return in, nil
}

// ListIntentions implements store.Store; an empty status lists all.
func (s *Store) ListIntentions(ctx context.Context, status types.IntentionStatus) ([]*types.Intention, error) {
	query := "SELECT " + intentionColumns + " FROM intentions"
	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC"

	var out []*types.Intention
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			in, err := scanIntention(rows)
			if err != nil {
				return err
			}
			out = append(out, in)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list intentions: %w", err)
	}
	return out, nil
}

// UpdateIntention implements store.Store: full-row replace except
// id/created_at.
func (s *Store) UpdateIntention(ctx context.Context, in *types.Intention) error {
	var rows int64
	err := s.call(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE intentions SET content=$1, trigger_kind=$2, trigger_data=$3, priority=$4, status=$5,
				deadline=$6, fulfilled_at=$7, reminder_count=$8, tags=$9, related_memories=$10, source=$11, snoozed_until=$12
			WHERE id = $13`,
			in.Content, string(in.Trigger.Kind), encodeTrigger(in.Trigger), string(in.Priority), string(in.Status),
			in.Deadline, in.FulfilledAt, in.ReminderCount, marshalStrings(in.Tags), marshalStrings(in.RelatedMemories),
			string(in.Source), in.SnoozedUntil, in.ID,
		)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: update intention: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: update intention %s: %w", in.ID, store.ErrNotFound)
	}
	return nil
}
