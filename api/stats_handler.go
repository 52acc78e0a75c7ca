package api

import (
	"net/http"

	"github.com/debnit/MsmeBazaar-sub000/job"
)

// StatsResponse summarizes the dispatch subsystem.
type StatsResponse struct {
	Mode        job.Mode            `json:"mode"`
	Jobs        map[job.State]int64 `json:"jobs"`
	DLQ         int64               `json:"dlq"`
	FallbackDLQ int64               `json:"fallback_dlq"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatsResponse{Mode: a.eng.Mode(), Jobs: make(map[job.State]int64)}

	for _, state := range []job.State{job.StateWaiting, job.StateActive, job.StateCompleted, job.StateFailed} {
		n, err := a.eng.Store().CountJobs(ctx, job.CountOpts{State: state})
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		resp.Jobs[state] = n
	}

	var err error
	if resp.DLQ, err = a.eng.DLQService().Count(ctx); err != nil {
		a.writeError(w, r, err)
		return
	}
	if resp.FallbackDLQ, err = a.eng.FallbackDLQ().Count(ctx); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}
