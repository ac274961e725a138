package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/clarive/filesync/internal/content/schema"
	contentsync "github.com/clarive/filesync/internal/content/sync"
)

// RecordData describes one file load.
type RecordData struct {
	Path  string `json:"path"`
	ID    int64  `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	Error string `json:"error,omitempty"`
}

// LoadCompleteData summarizes a whole repository load.
type LoadCompleteData struct {
	Written  int           `json:"written"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// StatsData holds totals since the daemon started.
type StatsData struct {
	Loaded int            `json:"loaded"`
	Failed int            `json:"failed"`
	ByType map[string]int `json:"by_type"`
}

// Handler turns daemon load events into dashboard messages. It satisfies
// daemon.Listener.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates a handler broadcasting through server. New clients
// receive the handler's current stats.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
		stats:  StatsData{ByType: make(map[string]int)},
	}
	server.welcome = h.statsMessage
	return h
}

// OnFileLoaded handles the outcome of loading one changed file.
func (h *Handler) OnFileLoaded(path string, r *schema.Record, err error) {
	data := RecordData{Path: path}
	if r != nil {
		data.ID = r.ID
		data.Type = r.Type
		data.Title = r.Title
	}

	h.mu.Lock()
	if err != nil {
		data.Error = err.Error()
		h.stats.Failed++
	} else {
		h.stats.Loaded++
		if r != nil {
			h.stats.ByType[r.Type]++
		}
	}
	h.mu.Unlock()

	h.send(MessageTypeRecordLoaded, data)
	h.server.Broadcast(h.statsMessage())
}

// OnLoadComplete handles the end of a whole repository load.
func (h *Handler) OnLoadComplete(report *contentsync.Report, elapsed time.Duration) {
	h.mu.Lock()
	h.stats.Loaded += report.Written
	h.stats.Failed += report.Failed
	h.mu.Unlock()

	h.send(MessageTypeLoadComplete, LoadCompleteData{
		Written:  report.Written,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
		Duration: elapsed,
	})
	h.server.Broadcast(h.statsMessage())
}

// Stats returns a copy of the current totals.
func (h *Handler) Stats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	byType := make(map[string]int, len(h.stats.ByType))
	for k, v := range h.stats.ByType {
		byType[k] = v
	}
	return StatsData{Loaded: h.stats.Loaded, Failed: h.stats.Failed, ByType: byType}
}

func (h *Handler) statsMessage() Message {
	data, err := json.Marshal(h.Stats())
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}
}

func (h *Handler) send(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}
