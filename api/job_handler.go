package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// HealthResponse reports the dispatch mode.
type HealthResponse struct {
	Status string   `json:"status"`
	Mode   job.Mode `json:"mode"`
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Mode: a.eng.Mode()})
}

// listJobs lists broker jobs by state (default waiting), optionally by
// queue.
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	state := job.State(r.URL.Query().Get("state"))
	if state == "" {
		state = job.StateWaiting
	}
	if !state.Valid() {
		a.writeError(w, r, badState(state))
		return
	}

	jobs, err := a.eng.Store().ListJobsByState(r.Context(), state, job.ListOpts{
		Limit:  limit,
		Offset: offset,
		Queue:  r.URL.Query().Get("queue"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	a.writeJSON(w, http.StatusOK, jobs)
}

// getJob looks in the broker, then in the process-local fallback record.
func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.writeError(w, r, badID("job", err))
		return
	}
	j, err := a.eng.Job(r.Context(), jobID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, j)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		a.writeError(w, r, badID("job", err))
		return
	}
	if err := a.eng.Cancel(r.Context(), jobID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
