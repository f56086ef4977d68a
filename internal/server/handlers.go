package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cbegin/beatsmith-go"
	"github.com/cbegin/beatsmith-go/internal/generate"
	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
)

const maxBodySize = 1 << 20

type mixResponse struct {
	MasterDB float64                                      `json:"masterDb"`
	Tracks   map[score.Instrument]beatsmith.TrackSettings `json:"tracks"`
}

type trackUpdate struct {
	GainDB *float64 `json:"gainDb"`
	Muted  *bool    `json:"muted"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"producers":   generate.ProducerGroups,
		"vibes":       generate.Vibes,
		"keys":        generate.Keys,
		"instruments": score.Instruments,
	})
}

// handleGenerate asks the model for a new composition and loads it.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req beatsmith.GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.session.Generate(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetComposition(w http.ResponseWriter, r *http.Request) {
	c := s.session.Current()
	if c == nil {
		writeError(w, http.StatusNotFound, beatsmith.ErrNoComposition.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePutComposition installs a client-supplied composition document.
func (s *Server) handlePutComposition(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	c, err := score.Decode(r.Body)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.session.Load(c); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleExportWAV(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.ExportWAV(r.Context(), r.URL.Query().Get("layer"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeExport(w, out)
}

func (s *Server) handleExportMIDI(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.ExportMIDI(r.Context(), r.URL.Query().Get("layer"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeExport(w, out)
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Engine().Start(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.session.Engine().Stop()
	writeJSON(w, http.StatusOK, s.transportState())
}

func (s *Server) handleGetMix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mix())
}

func (s *Server) handleSetMaster(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DB *float64 `json:"db"`
	}
	if err := decodeBody(w, r, &body); err != nil || body.DB == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"db\": number}")
		return
	}
	s.session.Engine().SetVolume(*body.DB)
	writeJSON(w, http.StatusOK, s.mix())
}

func (s *Server) handleSetTrack(w http.ResponseWriter, r *http.Request) {
	id := score.Instrument(chi.URLParam(r, "instrument"))
	var body trackUpdate
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.GainDB == nil && body.Muted == nil {
		writeError(w, http.StatusBadRequest, "body must set gainDb or muted")
		return
	}
	e := s.session.Engine()
	if body.GainDB != nil {
		e.SetTrackVolume(id, *body.GainDB)
	}
	if body.Muted != nil {
		e.SetTrackMute(id, *body.Muted)
	}
	writeJSON(w, http.StatusOK, s.mix())
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	e := s.session.Engine()
	bins := e.Spectrum()
	if n, err := strconv.Atoi(r.URL.Query().Get("bins")); err == nil && n > 0 && n < len(bins) {
		bins = bins[:n]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"level":    e.Level(),
		"binHz":    e.BinFrequency(1),
		"spectrum": bins,
	})
}

func (s *Server) transportState() map[string]any {
	e := s.session.Engine()
	return map[string]any{
		"state":           e.State().String(),
		"scheduledEvents": e.ScheduledEvents(),
	}
}

func (s *Server) mix() mixResponse {
	e := s.session.Engine()
	return mixResponse{MasterDB: e.Volume(), Tracks: e.TrackSettings()}
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var genErr *generate.GenerationError
	switch {
	case errors.As(err, &genErr) && genErr.Stage == generate.StageRequest:
		status = http.StatusBadRequest
	case errors.Is(err, beatsmith.ErrGeneration):
		status = http.StatusBadGateway
	case errors.Is(err, beatsmith.ErrInvalidComposition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, beatsmith.ErrNoComposition), errors.Is(err, beatsmith.ErrLayerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, beatsmith.ErrExportBusy), errors.Is(err, beatsmith.ErrStaleExport):
		status = http.StatusConflict
	case errors.Is(err, beatsmith.ErrActivation):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", err, nil)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeExport(w http.ResponseWriter, out *beatsmith.Export) {
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	if len(out.Warnings) > 0 {
		w.Header().Set("X-Skipped-Notes", strconv.Itoa(len(out.Warnings)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
