package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeKill
	EventTypeDamage
	EventTypeCritical
	EventTypeBaseHit
	EventTypeWaveStart
	EventTypeWaveComplete
	EventTypeUpgrade
	EventTypeGameOver
	EventTypeLevelUp
)

// EventVersion is bumped when payload shapes change.
const EventVersion uint8 = 1

// Event is one simulation event. Payload is the JSON-encoded typed payload.
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // assigned by the event log
	Frame     uint64          `json:"frame"`     // simulation frame it happened in
	RunID     string          `json:"runId"`     // one per engine lifetime
	Source    string          `json:"source"`    // "sim" or the API client that triggered it
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeKill:
		return "kill"
	case EventTypeDamage:
		return "damage"
	case EventTypeCritical:
		return "critical"
	case EventTypeBaseHit:
		return "base_hit"
	case EventTypeWaveStart:
		return "wave_start"
	case EventTypeWaveComplete:
		return "wave_complete"
	case EventTypeUpgrade:
		return "upgrade"
	case EventTypeGameOver:
		return "game_over"
	case EventTypeLevelUp:
		return "level_up"
	default:
		return "unknown"
	}
}

// ParseEventType is the inverse of String. Unknown names map to
// EventTypeUnknown.
func ParseEventType(s string) EventType {
	for t := EventTypeKill; t <= EventTypeLevelUp; t++ {
		if t.String() == s {
			return t
		}
	}
	return EventTypeUnknown
}

// MarshalText makes event types readable in JSON.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText reads the names written by MarshalText.
func (t *EventType) UnmarshalText(b []byte) error {
	*t = ParseEventType(string(b))
	return nil
}

// Typed payloads for different event types

// KillPayload is emitted when a hit kills an enemy.
type KillPayload struct {
	EnemyType EnemyType `json:"enemyType"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Reward    int       `json:"reward"`
	Streak    int       `json:"streak"`
	Critical  bool      `json:"critical"`
}

// DamagePayload is emitted for non-lethal hits and for every critical hit.
type DamagePayload struct {
	EnemyType EnemyType `json:"enemyType"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Damage    int       `json:"damage"`
	Critical  bool      `json:"critical"`
}

// BaseHitPayload is emitted when an enemy reaches the base.
type BaseHitPayload struct {
	EnemyType EnemyType `json:"enemyType"`
	Damage    int       `json:"damage"`
	Lives     int       `json:"lives"`
}

// WavePayload is emitted on wave start and completion.
type WavePayload struct {
	Wave       int    `json:"wave"`
	Name       string `json:"name"`
	EnemyCount int    `json:"enemyCount"`
	IsBoss     bool   `json:"isBoss"`
	Bonus      int    `json:"bonus,omitempty"` // completion gold
}

// UpgradePayload is emitted after a successful purchase.
type UpgradePayload struct {
	UpgradeID string         `json:"upgradeId"`
	Level     int            `json:"level"`
	Cost      int            `json:"cost"`
	Gold      int            `json:"gold"`
	Effects   UpgradeEffects `json:"effects"`
}

// GameOverPayload is emitted once when lives run out.
type GameOverPayload struct {
	Wave  int `json:"wave"`
	Score int `json:"score"`
	Kills int `json:"kills"`
	Rank  int `json:"rank,omitempty"` // leaderboard position, 0 if off the board
}

// LevelUpPayload is emitted when experience crosses a level threshold.
type LevelUpPayload struct {
	Level   int            `json:"level"`
	Quality UpgradeQuality `json:"quality"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, frame uint64, source string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		Frame:     frame,
		Source:    source,
		Payload:   EncodePayload(payload),
	}
}
