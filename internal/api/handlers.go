package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/nwalsh/weathervault/internal/ingest"
	"github.com/nwalsh/weathervault/internal/models"
	"github.com/nwalsh/weathervault/internal/openweather"
	"github.com/nwalsh/weathervault/internal/store"
)

var validate = validator.New()

type createRequest struct {
	Location  string `json:"location" validate:"required,min=2,max=100"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"message": "weathervault API",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.store.Ping(); err != nil {
		dbStatus = "unreachable"
	}
	records, _ := s.store.Count()
	// Liveness: 200 whenever the process is up, even if the
	// database is briefly unreachable.
	sendJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"database": dbStatus,
		"records":  records,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[jsonFieldName(fe.Field())] = "failed " + fe.Tag() + " validation"
			}
			sendJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": fields,
			})
			return
		}
		sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec, err := s.orch.Ingest(r.Context(), req.Location, req.StartDate, req.EndDate)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			sendJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": map[string]string{verr.Field: verr.Message},
			})
			return
		}
		var apiErr *openweather.APIError
		if errors.As(err, &apiErr) {
			sendError(w, http.StatusBadGateway, apiErr.Error())
			return
		}
		s.logger.Error("create record", "error", err)
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sendJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 0)

	records, err := s.store.List(skip, limit)
	if err != nil {
		s.logger.Error("list records", "error", err)
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []models.WeatherRecord{}
	}
	sendJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	rec, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("get record", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		sendError(w, http.StatusNotFound, "weather request not found")
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	var upd models.RecordUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		sendJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "invalid update payload: dates must be in YYYY-MM-DD form",
		})
		return
	}

	rec, err := s.store.Update(id, upd)
	if err != nil {
		if errors.Is(err, store.ErrInvalidDateRange) {
			sendJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "validation failed",
				"fields": map[string]string{"end_date": "must be on or after start_date"},
			})
			return
		}
		s.logger.Error("update record", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		sendError(w, http.StatusNotFound, "weather request not found")
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	deleted, err := s.store.Delete(id)
	if err != nil {
		s.logger.Error("delete record", "id", id, "error", err)
		sendError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !deleted {
		sendError(w, http.StatusNotFound, "weather request not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func jsonFieldName(structField string) string {
	switch structField {
	case "Location":
		return "location"
	case "StartDate":
		return "start_date"
	case "EndDate":
		return "end_date"
	}
	return structField
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, map[string]string{"error": msg})
}
