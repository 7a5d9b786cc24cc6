// Package eventhub streams application events to websocket clients as JSON
// text frames.
//
// # Wire protocol
//
// Server to client, one event per frame:
//
//	{"kind":"preset.applied","time":"2026-01-02T15:04:05Z","data":{...}}
//
// Client to server, optional filter changes:
//
//	{"action":"subscribe","kinds":["preset.applied"]}
//	{"action":"unsubscribe","kinds":["log"]}
//
// A new client receives every kind until its first subscribe.
package eventhub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event kinds published by the daemon.
const (
	KindPresetApplied    = "preset.applied"
	KindPresetUpdated    = "preset.updated"
	KindBindingsRebuilt  = "bindings.rebuilt"
	KindBaselineCaptured = "baseline.captured"
	KindRestored         = "baseline.restored"
	KindDocumentReloaded = "document.reloaded"
	KindLog              = "log"
)

const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
)

// Event is one published frame.
type Event struct {
	Kind string          `json:"kind"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data,omitempty"`
}

type filterMsg struct {
	Action string   `json:"action"`
	Kinds  []string `json:"kinds"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeEvent builds the frame for kind with data marshalled as JSON. data
// may be nil.
func EncodeEvent(kind string, at time.Time, data any) ([]byte, error) {
	if kind == "" {
		return nil, errors.New("eventhub: encode event: kind must not be empty")
	}
	ev := Event{Kind: kind, Time: at.UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("eventhub: encode %s data: %w", kind, err)
		}
		ev.Data = raw
	}
	return json.Marshal(ev)
}

// DecodeEvent parses a frame produced by EncodeEvent.
func DecodeEvent(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("eventhub: decode event: %w", err)
	}
	if ev.Kind == "" {
		return Event{}, errors.New("eventhub: decode event: missing kind")
	}
	return ev, nil
}
