package controllers

import (
	"net/http"
	"time"

	"github.com/vuminh/adsboard-backend/api/responses"
	"github.com/vuminh/adsboard-backend/api/validators"
	"github.com/vuminh/adsboard-backend/internal/warehouse/performance"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
	"github.com/vuminh/adsboard-backend/pkg/logger"
)

// PerformanceSummary answers the dashboard aggregation read. The window
// resolves presets against the server clock; CTR/CPM come back recomputed
// from the summed counters.
func PerformanceSummary(svc *performance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := TimeSpecFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		since, until, err := ts.RangeFor(time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date preset"))
			return
		}

		groupBy := r.URL.Query().Get("group_by")
		if groupBy == "" {
			groupBy = performance.GroupByCampaign
		}

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Summary(r.Context(), performance.Query{
			Since:   since,
			Until:   until,
			GroupBy: groupBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(rows) > limit {
			rows = rows[:limit]
		}

		responses.WriteSuccess(w, map[string]any{
			"since":    since.Format("2006-01-02"),
			"until":    until.Format("2006-01-02"),
			"group_by": groupBy,
			"rows":     rows,
		})
	}
}
