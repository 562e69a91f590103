package mesh

import (
	"sync"
	"time"
)

// messageLogRetention bounds how long a delivered MeshMessage is kept
// for replay to late UI subscribers (spec §3 "MeshMessage lifetime").
const messageLogRetention = 5 * time.Minute

// messageLogEntry pairs a delivered message with its local arrival
// time, used only to decide when to evict it.
type messageLogEntry struct {
	msg      MeshMessage
	storedAt time.Time
}

// MessageLog is a small bounded in-memory history of accepted
// broadcast/SOS messages, oldest first. It exists so a UI that
// (re)subscribes to the Messages() stream after a message already
// arrived can still retrieve it for up to messageLogRetention.
type MessageLog struct {
	mu      sync.Mutex
	entries []messageLogEntry
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append records msg as seen now.
func (l *MessageLog) Append(msg MeshMessage, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, messageLogEntry{msg: msg, storedAt: now})
}

// Snapshot returns the currently retained messages, oldest first.
func (l *MessageLog) Snapshot() []MeshMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MeshMessage, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.msg
	}
	return out
}

// PruneExpired evicts entries older than messageLogRetention and
// reports how many were removed.
func (l *MessageLog) PruneExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cut := 0
	for cut < len(l.entries) && now.Sub(l.entries[cut].storedAt) >= messageLogRetention {
		cut++
	}
	if cut == 0 {
		return 0
	}
	l.entries = l.entries[cut:]
	return cut
}

// Len reports the number of retained entries.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
