// Package monitor serves a read-only JSON view of a running board.
package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tickcore/core"
	"tickcore/host/board"
)

// StatusSource is the board state the monitor reports on
type StatusSource interface {
	Status() board.Status
}

type handlers struct {
	src StatusSource
}

// Event is the JSON form of a recorded timing event
type Event struct {
	Type   string `json:"type"`
	Slot   uint16 `json:"slot"`
	Clock  uint32 `json:"clock"`
	Value1 uint32 `json:"v1"`
	Value2 uint32 `json:"v2"`
}

// NewRouter creates the monitor HTTP router.
func NewRouter(src StatusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	h := &handlers{src: src}

	r.Get("/status", h.getStatus)
	r.Get("/timers", h.getTimers)
	r.Get("/timers/{slot}", h.getTimer)
	r.Get("/usart", h.getUSART)
	r.Get("/events", h.getEvents)
	r.Delete("/events", h.clearEvents)

	return r
}

func (h *handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Status())
}

func (h *handlers) getTimers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Status().Timers)
}

func (h *handlers) getTimer(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot parameter")
		return
	}
	for _, t := range h.src.Status().Timers {
		if t.Slot == slot {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "no timer in slot "+strconv.Itoa(slot))
}

func (h *handlers) getUSART(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Status().USART)
}

func (h *handlers) getEvents(w http.ResponseWriter, r *http.Request) {
	events := core.Events()
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		out = append(out, Event{
			Type:   core.EventName(evt.EventType),
			Slot:   evt.Slot,
			Clock:  evt.Clock,
			Value1: evt.Value1,
			Value2: evt.Value2,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) clearEvents(w http.ResponseWriter, r *http.Request) {
	core.ClearEvents()
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
