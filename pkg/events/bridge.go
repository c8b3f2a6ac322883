package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// bufferCapacity bounds how many events the Bridge retains per channel
// before it starts dropping the oldest to make room for the newest.
const bufferCapacity = 512

// Bridge is the Event Bridge: it multiplexes typed events from every actor
// (Session, Batch, Stage) onto per-session and global channels, retains a
// bounded backlog per channel for catchup, and fans delivery out over
// WebSocket via an embedded ConnectionManager.
type Bridge struct {
	mu       sync.Mutex
	buffers  map[string]*RingBuffer
	conns    *ConnectionManager
}

// NewBridge builds a Bridge with its ConnectionManager wired to this
// Bridge's own per-channel buffers.
func NewBridge() *Bridge {
	b := &Bridge{buffers: make(map[string]*RingBuffer)}
	b.conns = NewConnectionManager(b.bufferFor, 5*time.Second)
	return b
}

// Conns exposes the embedded ConnectionManager so an HTTP handler can
// upgrade a request and hand the connection to HandleConnection.
func (b *Bridge) Conns() *ConnectionManager { return b.conns }

func (b *Bridge) bufferFor(channel string) *RingBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[channel]
	if !ok {
		buf = NewRingBuffer(bufferCapacity)
		b.buffers[channel] = buf
	}
	return buf
}

// DroppedEvents returns how many events were evicted from channel's catchup
// buffer to make room for newer ones. Every event is broadcast to live
// subscribers when it is published, so eviction only limits catchup.
func (b *Bridge) DroppedEvents(channel string) uint64 {
	return b.bufferFor(channel).DroppedEvents()
}

// publish stamps payload with the next sequence number for channel,
// retains it for catchup, and broadcasts it to live subscribers.
func (b *Bridge) publish(channel string, seqField *int64, payload any) {
	buf := b.bufferFor(channel)

	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event payload", "channel", channel, "error", err)
		return
	}

	var enriched map[string]any
	if err := json.Unmarshal(raw, &enriched); err != nil {
		slog.Error("failed to decode event payload for stamping", "channel", channel, "error", err)
		return
	}

	// Sequence assignment and stamping-into-the-payload happen inside
	// RingBuffer.Append's critical section, so two concurrent publishes on
	// the same channel can never stamp the same seq onto their payloads.
	seq, stamped := buf.Append(func(seq int64) []byte {
		enriched["seq"] = seq
		out, err := json.Marshal(enriched)
		if err != nil {
			slog.Error("failed to re-marshal stamped event payload", "channel", channel, "error", err)
			return raw
		}
		return out
	})
	*seqField = seq

	b.conns.Broadcast(channel, stamped)
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// PublishSessionStarted emits session.started on both the session channel
// and the global channel.
func (b *Bridge) PublishSessionStarted(sessionID, planHash string, totalPages, batchCount int) {
	p := SessionStartedPayload{
		BasePayload: BasePayload{Type: EventTypeSessionStarted, SessionID: sessionID, Timestamp: timestamp()},
		PlanHash:    planHash, TotalPages: totalPages, BatchCount: batchCount,
		ActorContractVersion: ActorContractVersion,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
	b.publish(GlobalChannel, &p.Seq, p)
}

// PublishBatchStarted emits batch.started on the session channel.
func (b *Bridge) PublishBatchStarted(sessionID string, batchID, startPage, endPage int) {
	p := BatchStartedPayload{
		BasePayload: BasePayload{Type: EventTypeBatchStarted, SessionID: sessionID, Timestamp: timestamp()},
		BatchID:     batchID, StartPage: startPage, EndPage: endPage,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}

// PublishStageStarted emits stage.started on the session channel.
func (b *Bridge) PublishStageStarted(sessionID string, batchID int, stage string, itemCount int) {
	p := StageStartedPayload{
		BasePayload: BasePayload{Type: EventTypeStageStarted, SessionID: sessionID, Timestamp: timestamp()},
		BatchID:     batchID, Stage: stage, ItemCount: itemCount,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}

// PublishTaskLifecycle emits task.lifecycle on the session channel for one
// item's retry, success, or permanent failure.
func (b *Bridge) PublishTaskLifecycle(sessionID string, batchID int, stage, taskID, status string, attempt int, err error) {
	p := TaskLifecyclePayload{
		BasePayload: BasePayload{Type: EventTypeTaskLifecycle, SessionID: sessionID, Timestamp: timestamp()},
		BatchID:     batchID, Stage: stage, TaskID: taskID, Status: status, Attempt: attempt,
	}
	if err != nil {
		p.Error = err.Error()
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}

// PublishStageCompleted emits stage.completed on the session channel.
func (b *Bridge) PublishStageCompleted(sessionID string, batchID int, stage string, succeeded, failed int) {
	p := StageCompletedPayload{
		BasePayload: BasePayload{Type: EventTypeStageCompleted, SessionID: sessionID, Timestamp: timestamp()},
		BatchID:     batchID, Stage: stage, Succeeded: succeeded, Failed: failed,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}

// PublishBatchCompleted emits batch.completed on the session channel.
func (b *Bridge) PublishBatchCompleted(sessionID string, batchID, saved int, aborted bool, abortErr error) {
	p := BatchCompletedPayload{
		BasePayload: BasePayload{Type: EventTypeBatchCompleted, SessionID: sessionID, Timestamp: timestamp()},
		BatchID:     batchID, Saved: saved, Aborted: aborted,
	}
	if abortErr != nil {
		p.ErrorMsg = abortErr.Error()
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}

// PublishSessionTerminal emits one of session.completed, session.cancelled
// or session.failed, on both the session channel and the global channel.
func (b *Bridge) PublishSessionTerminal(sessionID, eventType, status string, itemsSaved int, duration time.Duration, reason string) {
	p := SessionTerminalPayload{
		BasePayload:  BasePayload{Type: eventType, SessionID: sessionID, Timestamp: timestamp()},
		Status:       status,
		ItemsSaved:   itemsSaved,
		DurationSecs: duration.Seconds(),
		Reason:       reason,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
	b.publish(GlobalChannel, &p.Seq, p)
}

// PublishValidationEvent emits validation.event on the session channel.
func (b *Bridge) PublishValidationEvent(sessionID, url string, passed bool, violations []string) {
	p := ValidationEventPayload{
		BasePayload: BasePayload{Type: EventTypeValidation, SessionID: sessionID, Timestamp: timestamp()},
		URL:         url, Passed: passed, Violations: violations,
	}
	b.publish(SessionChannel(sessionID), &p.Seq, p)
}
