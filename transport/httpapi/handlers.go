package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/codec"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("httpapi: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, codec.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrTrackedBarcodeNotFound),
		errors.Is(err, bridge.ErrUnknownCorrelation),
		errors.Is(err, bridge.ErrUnknownListener):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrNoSelectionSession),
		errors.Is(err, bridge.ErrNoMode):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, errors.Wrapf(codec.ErrMalformedPayload, "read body: %v", err)
	}
	return body, nil
}

func ok(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) finish(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.bridge.FinishJSON(r.Context(), body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w)
}

func (s *server) resetSession(w http.ResponseWriter, r *http.Request) {
	s.bridge.ResetSession()
	ok(w)
}

func (s *server) reset(reset func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reset(); err != nil {
			s.writeError(w, r, err)
			return
		}
		ok(w)
	}
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Stats())
}

func (s *server) defaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Defaults())
}

func (s *server) selectionCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.bridge.CountForBarcode(mux.Vars(r)["identifier"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"result": count})
}

func (s *server) resetSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.ResetSelectionSession(); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w)
}

func (s *server) subscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.SubscribeListener(mux.Vars(r)["name"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w)
}

func (s *server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.UnsubscribeListener(mux.Vars(r)["name"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok(w)
}

func (s *server) clearBrushes(w http.ResponseWriter, r *http.Request) {
	s.bridge.ClearTrackedBarcodeBrushes()
	ok(w)
}

func (s *server) clearViews(w http.ResponseWriter, r *http.Request) {
	s.bridge.ClearTrackedBarcodeViews()
	ok(w)
}

type setterFunc func(objectID int, cycleID string, raw json.RawMessage) error

// setter serves POST /tracked/{id}/... with an optional ?cycle= of the frame
// sequence the id was reported in
func (s *server) setter(set setterFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, errors.Wrapf(bridge.ErrTrackedBarcodeNotFound, "id %q", mux.Vars(r)["id"]))
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := set(id, r.URL.Query().Get("cycle"), body); err != nil {
			s.writeError(w, r, err)
			return
		}
		ok(w)
	}
}
