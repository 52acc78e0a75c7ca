package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
)

// ReplayResponse describes the job created by a replay.
type ReplayResponse struct {
	EntryID id.DLQID `json:"entry_id"`
	JobID   id.JobID `json:"job_id"`
	Queue   string   `json:"queue"`
	Type    string   `json:"type"`
	State   string   `json:"state"`
}

// dlqFor picks the broker DLQ or, with ?source=fallback, the entries
// exhausted inline while the broker was down.
func (a *API) dlqFor(r *http.Request) (*dlq.Service, bool) {
	if r.URL.Query().Get("source") == "fallback" {
		return a.eng.FallbackDLQ(), true
	}
	return a.eng.DLQService(), false
}

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	svc, _ := a.dlqFor(r)
	entries, err := svc.List(r.Context(), dlq.ListOpts{
		Limit:  limit,
		Offset: offset,
		Queue:  r.URL.Query().Get("queue"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *API) getDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryID"))
	if err != nil {
		a.writeError(w, r, badID("dlq entry", err))
		return
	}
	svc, _ := a.dlqFor(r)
	entry, err := svc.Get(r.Context(), entryID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entry)
}

// replayDLQ creates a fresh job from an entry. Broker entries go straight
// back to the broker; fallback entries are re-dispatched through the
// engine so they run wherever the current mode sends them.
func (a *API) replayDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryID"))
	if err != nil {
		a.writeError(w, r, badID("dlq entry", err))
		return
	}

	svc, fallback := a.dlqFor(r)
	if !fallback {
		j, err := svc.Replay(r.Context(), entryID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusAccepted, ReplayResponse{
			EntryID: entryID, JobID: j.ID, Queue: j.Queue, Type: j.Type, State: string(j.State),
		})
		return
	}

	entry, err := svc.Get(r.Context(), entryID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	h, err := a.eng.Enqueue(r.Context(), entry.Queue, entry.JobType, entry.Payload)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := svc.DLQStore().ReplayDLQ(r.Context(), entryID); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, ReplayResponse{
		EntryID: entryID, JobID: h.JobID, Queue: h.Queue, Type: h.Type, State: string(h.State),
	})
}
