package checkin

import "checkin-desk-backend/internal/gateway"

// View is the snapshot the presentation layer renders.
type View struct {
	State            State                    `json:"state"`
	Step             Step                     `json:"step"`
	Session          Session                  `json:"session"`
	Duration         string                   `json:"duration"`
	CodeInput        string                   `json:"codeInput"`
	IsProcessing     bool                     `json:"isProcessing"`
	IsSearching      bool                     `json:"isSearching"`
	LoadingInstances bool                     `json:"loadingInstances"`
	SelectedDate     string                   `json:"selectedDate,omitempty"`
	Instances        []gateway.InstanceOption `json:"instances"`
	Pending          *gateway.CheckinResult   `json:"pending"`
	LastResult       *gateway.CheckinResult   `json:"lastResult"`
	ResultVariant    string                   `json:"resultVariant,omitempty"`
	ResultIcon       string                   `json:"resultIcon,omitempty"`
	Search           SearchView               `json:"search"`
}

// SearchView is the current page of search results.
type SearchView struct {
	Criteria       Criteria               `json:"criteria"`
	Results        []gateway.SearchResult `json:"results"`
	Total          int                    `json:"total"`
	Page           int                    `json:"page"`
	TotalPages     int                    `json:"totalPages"`
	HasNext        bool                   `json:"hasNext"`
	HasPrevious    bool                   `json:"hasPrevious"`
	ShowPagination bool                   `json:"showPagination"`
}

// View returns a consistent snapshot of the desk.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		State:            m.stateLocked(),
		Step:             m.step,
		Session:          m.session,
		Duration:         "0 minutes",
		CodeInput:        m.codeInput,
		IsProcessing:     m.step == StepLookupInFlight || m.step == StepCommitInFlight || m.step == StepUndoInFlight,
		IsSearching:      m.searching,
		LoadingInstances: m.loadingInstances,
		SelectedDate:     m.selectedDate,
		Instances:        append([]gateway.InstanceOption(nil), m.instances...),
		Search: SearchView{
			Criteria:       m.criteria,
			Results:        m.results.Current(),
			Total:          m.results.Len(),
			Page:           m.results.Page(),
			TotalPages:     m.results.TotalPages(),
			HasNext:        m.results.HasNext(),
			HasPrevious:    m.results.HasPrev(),
			ShowPagination: m.results.Visible(),
		},
	}
	if m.session.StartedAt != nil {
		started := *m.session.StartedAt
		v.Session.StartedAt = &started
		if m.session.Active {
			v.Duration = FormatDuration(m.now().Sub(started))
		}
	}
	if m.pending != nil {
		p := *m.pending
		v.Pending = &p
	}
	if m.last != nil {
		l := *m.last
		v.LastResult = &l
		v.ResultVariant, v.ResultIcon = resultPresentation(&l)
	}
	return v
}

// resultPresentation picks the result card style: green for a new check-in,
// amber for a duplicate, red for anything else.
func resultPresentation(r *gateway.CheckinResult) (string, string) {
	switch {
	case r.Success && !r.AlreadyCheckedIn:
		return "success", "utility:success"
	case r.AlreadyCheckedIn:
		return "warning", "utility:warning"
	default:
		return "error", "utility:error"
	}
}
