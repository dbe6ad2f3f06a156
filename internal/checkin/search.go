package checkin

import (
	"context"
	"fmt"
	"strings"

	"checkin-desk-backend/internal/gateway"
)

// Criteria are the name/email fields of a registration search.
type Criteria struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

func (c Criteria) trimmed() Criteria {
	return Criteria{
		FirstName: strings.TrimSpace(c.FirstName),
		LastName:  strings.TrimSpace(c.LastName),
		Email:     strings.TrimSpace(c.Email),
	}
}

func (c Criteria) empty() bool {
	return c.FirstName == "" && c.LastName == "" && c.Email == ""
}

// Search looks registrations up by name or email within the session's
// instance and replaces the result list. It returns the first page.
func (m *Machine) Search(ctx context.Context, criteria Criteria) ([]gateway.SearchResult, error) {
	criteria = criteria.trimmed()

	m.mu.Lock()
	if err := m.requireSessionLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if criteria.empty() {
		m.noticeLocked(VariantWarning, "Search Criteria Required",
			"Please enter a first name, last name, or email to search.")
		m.mu.Unlock()
		return nil, ErrEmptyCriteria
	}
	if err := m.refuseBusyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.searching = true
	m.criteria = criteria
	gen := m.generation
	req := gateway.SearchRequest{
		FirstName:     criteria.FirstName,
		LastName:      criteria.LastName,
		Email:         criteria.Email,
		InstanceID:    m.session.SelectedInstanceID,
		CheckinStatus: m.status,
	}
	m.mu.Unlock()

	var results []gateway.SearchResult
	err := guard(func() error {
		var err error
		results, err = m.gw.SearchRegistrations(ctx, req)
		return err
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil, ErrStale
	}
	m.searching = false

	if err != nil {
		m.rec.Search("error")
		m.log.Error().Err(err).Msg("registration search failed")
		m.noticeLocked(VariantError, "Error", "Search failed. Please try again.")
		return nil, fmt.Errorf("%w: search: %v", ErrTransport, err)
	}

	m.results.Reset(results)
	if len(results) == 0 {
		m.rec.Search("empty")
		m.noticeLocked(VariantInfo, "No Results", "No registrations matched your search.")
		return nil, nil
	}
	m.rec.Search("found")
	return m.results.Current(), nil
}

// SelectSearchResult clears the search and runs the chosen registration
// through the normal lookup and confirmation pipeline.
func (m *Machine) SelectSearchResult(ctx context.Context, id string) (*gateway.CheckinResult, error) {
	id = strings.TrimSpace(id)

	m.mu.Lock()
	if err := m.requireSessionLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.refuseBusyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, ok := m.results.Find(func(r gateway.SearchResult) bool { return r.ID == id }); !ok || id == "" {
		m.mu.Unlock()
		return nil, ErrUnknownResult
	}
	m.criteria = Criteria{}
	m.results.Clear()
	m.mu.Unlock()

	return m.SubmitCode(ctx, id)
}

// ClearSearch drops the criteria and results.
func (m *Machine) ClearSearch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria = Criteria{}
	m.results.Clear()
}

// NextPage moves to the next result page; false at the last page.
func (m *Machine) NextPage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results.Next()
}

// PreviousPage moves to the previous result page; false at page 1.
func (m *Machine) PreviousPage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results.Prev()
}
