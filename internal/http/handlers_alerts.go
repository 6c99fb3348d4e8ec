package http

import (
	"net/http"
	"time"

	"fintrack/internal/alerts"
)

// alertsView is the JSON form of the poller state.
type alertsView struct {
	Phase         alerts.Phase  `json:"phase"`
	Enabled       bool          `json:"enabled"`
	Alerts        []alerts.View `json:"alerts"`
	Changed       bool          `json:"changed"`
	Error         string        `json:"error,omitempty"`
	LastUpdatedAt *time.Time    `json:"lastUpdatedAt,omitempty"`
	Snapshot      *snapshotView `json:"snapshot,omitempty"`
}

type snapshotView struct {
	FetchedAt   time.Time `json:"fetchedAt"`
	ContentHash string    `json:"contentHash"`
	Seq         uint64    `json:"seq"`
	Count       int       `json:"count"`
}

func newAlertsView(st alerts.State) alertsView {
	v := alertsView{
		Phase:   st.Phase,
		Enabled: st.Enabled,
		Alerts:  alerts.Views(st.Alerts),
		Changed: st.Changed,
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	if !st.LastUpdatedAt.IsZero() {
		t := st.LastUpdatedAt
		v.LastUpdatedAt = &t
	}
	if st.Snapshot.Seq > 0 {
		v.Snapshot = &snapshotView{
			FetchedAt:   st.Snapshot.FetchedAt,
			ContentHash: st.Snapshot.ContentHash,
			Seq:         st.Snapshot.Seq,
			Count:       len(st.Snapshot.List),
		}
	}
	return v
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(newAlertsView(s.deps.Alerts.State())).Write(w)
}

// handleAlertsReload fetches out of band. Fetch failures still answer with
// the retained state, whose error field describes the failure.
func (s *Server) handleAlertsReload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Alerts.Reload(r.Context()); err != nil {
		if s.deps.Alerts.State().Phase != alerts.PhaseError {
			s.writeError(w, r, err)
			return
		}
	}
	NewJSONResponse().Data(newAlertsView(s.deps.Alerts.State())).Write(w)
}
