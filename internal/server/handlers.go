package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mrcode/glucopilot/internal/forecast"
	"github.com/mrcode/glucopilot/internal/models"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleForecast accepts either a full simulation request or a what-if
// payload with just a proposed bolus and carbs. A body carrying
// startGlucose is treated as the full form.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var probe struct {
		StartGlucose *float64 `json:"startGlucose"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &probe); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}

	var result *models.ForecastResult
	if probe.StartGlucose != nil {
		var req models.ForecastRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		result, err = s.service.Simulate(req)
	} else {
		var whatIf struct {
			Bolus float64 `json:"bolus"`
			Carbs float64 `json:"carbs"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &whatIf); err != nil {
				s.writeError(w, r, http.StatusBadRequest, err)
				return
			}
		}
		result, err = s.service.Forecast(r.Context(), whatIf.Bolus, whatIf.Carbs)
	}
	if err != nil {
		s.writeError(w, r, forecastErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleForecastChart(w http.ResponseWriter, r *http.Request) {
	bolus := queryFloat(r, "bolus")
	carbs := queryFloat(r, "carbs")

	png, err := s.service.ForecastChart(r.Context(), bolus, carbs)
	if err != nil {
		s.writeError(w, r, forecastErrorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&settings); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.service.UpdateSettings(r.Context(), &settings); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Settings())
}

func (s *Server) handleNightPattern(w http.ResponseWriter, r *http.Request) {
	profile := s.service.NightProfile()
	if profile == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("no night profile built yet"))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleNightPatternRebuild(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, http.StatusBadRequest, errors.New("days must be a positive integer"))
			return
		}
		days = n
	}
	profile, err := s.service.BuildNightProfile(r.Context(), days)
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// forecastErrorStatus maps engine validation failures to 400 and everything
// else (upstream fetch problems) to 502.
func forecastErrorStatus(err error) int {
	switch {
	case errors.Is(err, forecast.ErrInvalidParameters),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrInvalidGlucose):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func queryFloat(r *http.Request, key string) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	s.logger.Warn("request failed",
		"request_id", requestID,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
