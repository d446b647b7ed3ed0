package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vuminh/adsboard-backend/api/responses"
	"github.com/vuminh/adsboard-backend/api/validators"
	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/internal/warehouse/refresh"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
	"github.com/vuminh/adsboard-backend/pkg/logger"
)

// refreshRequest is the optional JSON trigger body; query parameters cover
// the same fields for curl-friendly invocations.
type refreshRequest struct {
	DatePreset string `json:"date_preset" validate:"omitempty,max=32"`
	Since      string `json:"since" validate:"omitempty,datetime=2006-01-02"`
	Until      string `json:"until" validate:"omitempty,datetime=2006-01-02"`
}

// TimeSpecFromQuery reads either date_preset or a since/until pair.
func TimeSpecFromQuery(r *http.Request) (meta.TimeSpec, error) {
	q := r.URL.Query()
	preset := validators.SanitizeString(q.Get("date_preset"), 32)
	sinceRaw := q.Get("since")
	untilRaw := q.Get("until")

	return buildTimeSpec(preset, sinceRaw, untilRaw)
}

func buildTimeSpec(preset, sinceRaw, untilRaw string) (meta.TimeSpec, error) {
	if sinceRaw == "" && untilRaw == "" {
		if preset == "" {
			preset = meta.PresetYesterday
		}
		if _, _, err := meta.ResolvePreset(preset, time.Now()); err != nil {
			return meta.TimeSpec{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		return meta.TimeSpec{Preset: preset}, nil
	}

	if sinceRaw == "" || untilRaw == "" {
		return meta.TimeSpec{}, pkgerrors.New(pkgerrors.CodeValidation, "since and until must be provided together")
	}
	since, err := time.Parse("2006-01-02", sinceRaw)
	if err != nil {
		return meta.TimeSpec{}, pkgerrors.New(pkgerrors.CodeValidation, "since must be formatted YYYY-MM-DD")
	}
	until, err := time.Parse("2006-01-02", untilRaw)
	if err != nil {
		return meta.TimeSpec{}, pkgerrors.New(pkgerrors.CodeValidation, "until must be formatted YYYY-MM-DD")
	}
	if until.Before(since) {
		return meta.TimeSpec{}, pkgerrors.New(pkgerrors.CodeValidation, "until must not precede since")
	}
	return meta.TimeSpec{Since: since, Until: until}, nil
}

// timeSpecFromRequest prefers a JSON body when one is supplied, falling
// back to query parameters.
func timeSpecFromRequest(r *http.Request) (meta.TimeSpec, error) {
	if r.Body != nil && r.ContentLength > 0 {
		var req refreshRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return meta.TimeSpec{}, err
		}
		return buildTimeSpec(validators.SanitizeString(req.DatePreset, 32), req.Since, req.Until)
	}
	return TimeSpecFromQuery(r)
}

// TriggerRefresh starts a warehouse refresh and returns immediately with
// 202. A refresh already in flight answers 409.
func TriggerRefresh(svc *refresh.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouse := chi.URLParam(r, "warehouse")

		ts, err := timeSpecFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Trigger(r.Context(), warehouse, ts); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"warehouse": warehouse,
			"status":    "started",
		})
	}
}

// RefreshStatus reports the guard state for a warehouse.
func RefreshStatus(svc *refresh.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouse := chi.URLParam(r, "warehouse")

		status, err := svc.Status(r.Context(), warehouse)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
