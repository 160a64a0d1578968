package handlers

import (
	"net/http"

	"genqueue/internal/sqlinline"
)

// StatsSummary reports per-status job counts for dashboards and operators.
func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := a.SQL.Query(r.Context(), sqlinline.QJobStatusCounts)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
			return
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": counts})
}
