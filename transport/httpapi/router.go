// Package httpapi exposes the host side of the bridge over HTTP.
package httpapi

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/events"
)

// Sessions resets the native capture and tracking sessions
type Sessions interface {
	ResetCapture() error
	ResetTracking() error
}

type server struct {
	bridge      *bridge.Bridge
	broadcaster *events.Broadcaster
	sessions    Sessions
	logger      *log.Logger
}

// NewRouter routes host calls to b. Without a broadcaster there is no event
// stream, without sessions there are no capture and tracking resets.
func NewRouter(b *bridge.Bridge, broadcaster *events.Broadcaster, sessions Sessions, logger *log.Logger) *mux.Router {
	if logger == nil {
		logger = log.Default()
	}
	s := &server{bridge: b, broadcaster: broadcaster, sessions: sessions, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/finish", s.finish).Methods("POST")
	r.HandleFunc("/session/reset", s.resetSession).Methods("POST")
	r.HandleFunc("/stats", s.stats).Methods("GET")
	r.HandleFunc("/defaults", s.defaults).Methods("GET")
	r.HandleFunc("/selection/count/{identifier}", s.selectionCount).Methods("GET")
	r.HandleFunc("/selection/reset", s.resetSelection).Methods("POST")
	r.HandleFunc("/listeners/{name}", s.subscribe).Methods("POST")
	r.HandleFunc("/listeners/{name}", s.unsubscribe).Methods("DELETE")
	r.HandleFunc("/tracked/brushes", s.clearBrushes).Methods("DELETE")
	r.HandleFunc("/tracked/views", s.clearViews).Methods("DELETE")
	r.HandleFunc("/tracked/{id:[0-9]+}/brush", s.setter(b.SetBrushForTrackedBarcode)).Methods("POST")
	r.HandleFunc("/tracked/{id:[0-9]+}/view", s.setter(b.SetViewForTrackedBarcode)).Methods("POST")
	r.HandleFunc("/tracked/{id:[0-9]+}/anchor", s.setter(b.SetAnchorForTrackedBarcode)).Methods("POST")
	r.HandleFunc("/tracked/{id:[0-9]+}/offset", s.setter(b.SetOffsetForTrackedBarcode)).Methods("POST")
	if sessions != nil {
		r.HandleFunc("/capture/reset", s.reset(sessions.ResetCapture)).Methods("POST")
		r.HandleFunc("/tracking/reset", s.reset(sessions.ResetTracking)).Methods("POST")
	}
	if broadcaster != nil {
		r.HandleFunc("/events", s.streamEvents).Methods("GET")
	}
	return r
}
