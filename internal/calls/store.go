// Package calls keeps per-call state for in-progress voice calls and the
// running call and appointment counters served by the analytics endpoints.
package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// State tracks one voice call.
type State struct {
	CallID          string    `json:"call_id"`
	Provider        string    `json:"provider"`
	CallerPhone     string    `json:"caller_phone,omitempty"`
	CalledPhone     string    `json:"called_phone,omitempty"`
	CustomerID      string    `json:"customer_id,omitempty"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
	Booked          bool      `json:"booked,omitempty"`
	AppointmentID   string    `json:"appointment_id,omitempty"`
}

// CallStats summarises every call the assistant has handled.
type CallStats struct {
	TotalCalls             int64   `json:"total_calls"`
	SuccessfulBookings     int64   `json:"successful_bookings"`
	TotalDurationSeconds   int64   `json:"total_duration_seconds"`
	ConversionRate         float64 `json:"conversion_rate"`
	AverageDurationSeconds float64 `json:"average_call_duration"`
}

const (
	stateKeyPrefix  = "calls:state:"
	callStatsKey    = "calls:stats"
	apptStatsKey    = "appointments:stats"
	stateTTL        = 24 * time.Hour
	fieldTotal      = "total_calls"
	fieldBookings   = "successful_bookings"
	fieldDuration   = "total_duration_seconds"
	StatusActive    = "active"
	StatusEnded     = "ended"
	OutcomeBooked   = "booked"
	OutcomeNoBooked = "no_booking"

	maxUpdateAttempts = 50
)

// ErrContended is returned when a call's state kept changing underneath an update.
var ErrContended = errors.New("calls: state update contended")

// Store manages call state in Redis.
type Store struct {
	rdb *redis.Client
	now func() time.Time
}

// NewStore creates a call store backed by Redis.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

func stateKey(callID string) string {
	return stateKeyPrefix + callID
}

// Start records a new call. A repeated start for the same call is ignored.
func (s *Store) Start(ctx context.Context, state *State) error {
	if state == nil || state.CallID == "" {
		return errors.New("calls: call_id required")
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = s.now().UTC()
	}
	state.Status = StatusActive
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("calls: marshal: %w", err)
	}
	created, err := s.rdb.SetNX(ctx, stateKey(state.CallID), data, stateTTL).Result()
	if err != nil {
		return fmt.Errorf("calls: save: %w", err)
	}
	if !created {
		return nil
	}
	return s.rdb.HIncrBy(ctx, callStatsKey, fieldTotal, 1).Err()
}

// Get returns the call state, or nil when the call is unknown.
func (s *Store) Get(ctx context.Context, callID string) (*State, error) {
	data, err := s.rdb.Get(ctx, stateKey(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("calls: get: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("calls: unmarshal: %w", err)
	}
	return &state, nil
}

// Save overwrites the call state.
func (s *Store) Save(ctx context.Context, state *State) error {
	if state == nil || state.CallID == "" {
		return errors.New("calls: call_id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("calls: marshal: %w", err)
	}
	return s.rdb.Set(ctx, stateKey(state.CallID), data, stateTTL).Err()
}

// End marks the call ended and adds its duration to the totals. Calls never
// seen starting are counted here. The returned flag is true only for the
// caller that made the transition; ending an ended call changes nothing.
func (s *Store) End(ctx context.Context, callID, provider string, durationSeconds int, summary, outcome string) (*State, bool, error) {
	var (
		result  *State
		changed bool
	)
	err := s.update(ctx, callID, func(state *State) (func(redis.Pipeliner) error, error) {
		result, changed = state, false
		isNew := state == nil
		if isNew {
			state = &State{CallID: callID, Provider: provider, StartedAt: s.now().UTC()}
		} else if state.Status == StatusEnded {
			return nil, nil
		}
		final := outcome
		if final == "" {
			final = OutcomeNoBooked
			if state.Booked {
				final = OutcomeBooked
			}
		}
		state.Status = StatusEnded
		state.EndedAt = s.now().UTC()
		state.DurationSeconds = durationSeconds
		state.Summary = summary
		state.Outcome = final
		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("calls: marshal: %w", err)
		}
		result, changed = state, true
		return func(pipe redis.Pipeliner) error {
			if isNew {
				pipe.HIncrBy(ctx, callStatsKey, fieldTotal, 1)
			}
			pipe.Set(ctx, stateKey(callID), data, stateTTL)
			if durationSeconds > 0 {
				pipe.HIncrBy(ctx, callStatsKey, fieldDuration, int64(durationSeconds))
			}
			return nil
		}, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("calls: end: %w", err)
	}
	return result, changed, nil
}

// MarkBooked records that the call produced an appointment. Each call counts
// as at most one successful booking.
func (s *Store) MarkBooked(ctx context.Context, callID, appointmentID string) error {
	if callID == "" {
		return s.rdb.HIncrBy(ctx, callStatsKey, fieldBookings, 1).Err()
	}
	err := s.update(ctx, callID, func(state *State) (func(redis.Pipeliner) error, error) {
		if state == nil {
			state = &State{CallID: callID, Status: StatusActive, StartedAt: s.now().UTC()}
		}
		alreadyBooked := state.Booked
		if alreadyBooked && state.AppointmentID == appointmentID {
			return nil, nil
		}
		state.Booked = true
		state.AppointmentID = appointmentID
		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("calls: marshal: %w", err)
		}
		return func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, stateKey(callID), data, stateTTL)
			if !alreadyBooked {
				pipe.HIncrBy(ctx, callStatsKey, fieldBookings, 1)
			}
			return nil
		}, nil
	})
	if err != nil {
		return fmt.Errorf("calls: mark booked: %w", err)
	}
	return nil
}

// update runs an optimistic read-modify-write on one call's state. decide
// sees the current state (nil when unknown) and returns the writes to queue,
// or nil to leave everything untouched. A concurrent write to the state
// restarts the attempt.
func (s *Store) update(ctx context.Context, callID string, decide func(*State) (func(redis.Pipeliner) error, error)) error {
	key := stateKey(callID)
	txf := func(tx *redis.Tx) error {
		var state *State
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			state = &State{}
			if err := json.Unmarshal(data, state); err != nil {
				return fmt.Errorf("calls: unmarshal: %w", err)
			}
		}
		writes, err := decide(state)
		if err != nil || writes == nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, writes)
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrContended
}

// RecordAppointment counts an appointment status change.
func (s *Store) RecordAppointment(ctx context.Context, status string) error {
	if status == "" {
		return errors.New("calls: status required")
	}
	return s.rdb.HIncrBy(ctx, apptStatsKey, status, 1).Err()
}

// CallStats returns the call counters with derived rates.
func (s *Store) CallStats(ctx context.Context) (CallStats, error) {
	raw, err := s.rdb.HGetAll(ctx, callStatsKey).Result()
	if err != nil {
		return CallStats{}, fmt.Errorf("calls: stats: %w", err)
	}
	stats := CallStats{
		TotalCalls:           parseCount(raw[fieldTotal]),
		SuccessfulBookings:   parseCount(raw[fieldBookings]),
		TotalDurationSeconds: parseCount(raw[fieldDuration]),
	}
	if stats.TotalCalls > 0 {
		stats.ConversionRate = float64(stats.SuccessfulBookings) / float64(stats.TotalCalls)
		stats.AverageDurationSeconds = float64(stats.TotalDurationSeconds) / float64(stats.TotalCalls)
	}
	return stats, nil
}

// AppointmentStats returns appointment counts keyed by status.
func (s *Store) AppointmentStats(ctx context.Context) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, apptStatsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("calls: appointment stats: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		out[k] = parseCount(v)
	}
	return out, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
