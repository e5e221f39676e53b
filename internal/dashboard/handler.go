package dashboard

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/codesnip/snipsync/internal/writeback"
)

// FlushData describes one flush lifecycle step.
type FlushData struct {
	FlushID string `json:"flush_id,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatsData contains coordinator statistics
type StatsData struct {
	State          string     `json:"state"`
	EventsReceived int        `json:"events_received"`
	EventsAccepted int        `json:"events_accepted"`
	Flushes        int        `json:"flushes"`
	Saves          int        `json:"saves"`
	Attempts       int        `json:"attempts"`
	Retries        int        `json:"retries"`
	Failures       int        `json:"failures"`
	Superseded     int        `json:"superseded"`
	LastSave       *time.Time `json:"last_save,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// StatsSource reports write-back activity. *writeback.Coordinator satisfies it.
type StatsSource interface {
	Stats() writeback.Stats
	State() writeback.State
}

// Handler turns flush notifications into dashboard messages.
// Register OnFlushEvent as the coordinator's observer.
type Handler struct {
	server *Server
	logger *log.Logger

	mu     sync.RWMutex
	source StatsSource
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	h := &Handler{
		server: server,
		logger: logger,
	}
	server.SetWelcome(h.statsMessage)
	return h
}

// Attach sets the source of the statistics sent to clients.
func (h *Handler) Attach(src StatsSource) {
	h.mu.Lock()
	h.source = src
	h.mu.Unlock()
}

// OnFlushEvent broadcasts ev, followed by fresh statistics once a flush
// finishes. Scheduling notifications are not forwarded.
func (h *Handler) OnFlushEvent(ev writeback.FlushEvent) {
	var typ MessageType
	switch ev.Type {
	case writeback.FlushStarted:
		typ = MessageTypeFlushStarted
	case writeback.FlushRetrying:
		typ = MessageTypeFlushRetrying
	case writeback.FlushSucceeded:
		typ = MessageTypeFlushSucceeded
	case writeback.FlushFailed:
		typ = MessageTypeFlushFailed
		h.logger.Printf("Flush %s failed: %v", ev.FlushID, ev.Err)
	case writeback.FlushSuperseded:
		typ = MessageTypeFlushSuperseded
	default:
		return
	}

	data := FlushData{FlushID: ev.FlushID, Attempt: ev.Attempt}
	if ev.Err != nil {
		data.Error = ev.Err.Error()
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal flush data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: ev.Timestamp,
		Data:      dataJSON,
	})

	if typ == MessageTypeFlushSucceeded || typ == MessageTypeFlushFailed {
		h.broadcastStats()
	}
}

// broadcastStats sends current statistics to all clients
func (h *Handler) broadcastStats() {
	if msg, ok := h.statsMessage(); ok {
		h.server.Broadcast(msg)
	}
}

func (h *Handler) statsMessage() (Message, bool) {
	stats, ok := h.GetStats()
	if !ok {
		return Message{}, false
	}

	dataJSON, err := json.Marshal(stats)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return Message{}, false
	}

	return Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	}, true
}

// GetStats returns the current statistics, or false if no source is attached.
func (h *Handler) GetStats() (StatsData, bool) {
	h.mu.RLock()
	src := h.source
	h.mu.RUnlock()
	if src == nil {
		return StatsData{}, false
	}

	st := src.Stats()
	data := StatsData{
		State:          src.State().String(),
		EventsReceived: st.EventsReceived,
		EventsAccepted: st.EventsAccepted,
		Flushes:        st.Flushes,
		Saves:          st.Saves,
		Attempts:       st.Attempts,
		Retries:        st.Retries,
		Failures:       st.Failures,
		Superseded:     st.Superseded,
	}
	if !st.LastSave.IsZero() {
		last := st.LastSave
		data.LastSave = &last
	}
	if st.LastError != nil {
		data.LastError = st.LastError.Error()
	}
	return data, true
}
