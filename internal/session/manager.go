package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsAnalyst/internal/apperr"
	"NewsAnalyst/internal/domain"
)

// MaxCandidates is the number of discrete picks a chat surface can offer.
const MaxCandidates = 9

// Scope addresses one interaction: a user in a channel.
type Scope struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

func (s Scope) String() string {
	return fmt.Sprintf("%s@%s", s.UserID, s.ChannelID)
}

// Candidate is one pickable article.
type Candidate struct {
	ArticleID int64  `json:"article_id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	URL       string `json:"url"`
}

// View is a snapshot of an open session. Picked holds 0-based candidate
// positions in ascending order.
type View struct {
	ID         string      `json:"id"`
	Scope      Scope       `json:"scope"`
	Candidates []Candidate `json:"candidates"`
	Picked     []int       `json:"picked"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

type selection struct {
	id         string
	candidates []Candidate
	picked     map[int]struct{}
	createdAt  time.Time
	expiresAt  time.Time
}

// Manager owns every open selection session. All signals go through one
// mutex, so signals for a scope are applied in arrival order.
type Manager struct {
	mu       sync.Mutex
	sessions map[Scope]*selection
	busy     map[Scope]uint64

	// gen numbers busy marks so a release only clears its own mark
	gen uint64

	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time

	logger *slog.Logger
}

// NewManager creates an empty manager. Non-positive durations fall back to
// a five minute TTL and a one minute sweep.
func NewManager(ttl, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[Scope]*selection),
		busy:     make(map[Scope]uint64),
		ttl:      ttl,
		sweep:    sweepInterval,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Start opens a session over the first MaxCandidates articles, replacing
// any session already open for scope. It fails with ErrScopeBusy while a
// confirmed selection or a question for scope is still being answered.
func (m *Manager) Start(scope Scope, articles []domain.Article) (View, error) {
	if len(articles) == 0 {
		return View{}, apperr.NewValidation("no articles to select from")
	}
	if len(articles) > MaxCandidates {
		articles = articles[:MaxCandidates]
	}

	candidates := make([]Candidate, 0, len(articles))
	for _, a := range articles {
		candidates = append(candidates, Candidate{
			ArticleID: a.ID,
			Title:     a.Title,
			Source:    a.Source,
			URL:       a.URL,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.busy[scope]; ok {
		return View{}, apperr.ErrScopeBusy
	}

	now := m.now()
	if prev, ok := m.sessions[scope]; ok {
		m.logger.Debug("replacing open selection", "scope", scope.String(), "session_id", prev.id)
	}
	s := &selection{
		id:         uuid.NewString(),
		candidates: candidates,
		picked:     make(map[int]struct{}),
		createdAt:  now,
		expiresAt:  now.Add(m.ttl),
	}
	m.sessions[scope] = s
	return s.view(scope), nil
}

// Toggle flips the pick at the 0-based index. Toggling twice restores the
// previous pick set. An index past the candidates leaves the session as is.
func (m *Manager) Toggle(scope Scope, index int) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.openLocked(scope)
	if err != nil {
		return View{}, err
	}
	if index < 0 || index >= len(s.candidates) {
		return s.view(scope), apperr.ErrInvalidIndex
	}

	if _, ok := s.picked[index]; ok {
		delete(s.picked, index)
	} else {
		s.picked[index] = struct{}{}
	}
	return s.view(scope), nil
}

// SelectAll picks every candidate.
func (m *Manager) SelectAll(scope Scope) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.openLocked(scope)
	if err != nil {
		return View{}, err
	}
	for i := range s.candidates {
		s.picked[i] = struct{}{}
	}
	return s.view(scope), nil
}

// View returns the open session for scope.
func (m *Manager) View(scope Scope) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.openLocked(scope)
	if err != nil {
		return View{}, err
	}
	return s.view(scope), nil
}

// Confirm consumes the session and returns the picked article ids in
// candidate order. An empty pick set is valid. The scope stays busy until
// release is called; release is safe to call more than once.
func (m *Manager) Confirm(scope Scope) (ids []int64, release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.openLocked(scope)
	if err != nil {
		return nil, nil, err
	}
	delete(m.sessions, scope)

	positions := sortedPicks(s.picked)
	ids = make([]int64, 0, len(positions))
	for _, i := range positions {
		ids = append(ids, s.candidates[i].ArticleID)
	}

	return ids, m.markBusyLocked(scope), nil
}

// Acquire marks scope busy while a question is answered for it.
func (m *Manager) Acquire(scope Scope) (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.busy[scope]; ok {
		return nil, apperr.ErrScopeBusy
	}
	return m.markBusyLocked(scope), nil
}

// Sweep drops every expired session and reports how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for scope, s := range m.sessions {
		if !now.Before(s.expiresAt) {
			delete(m.sessions, scope)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of sessions held, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("expired selections dropped", "count", n)
			}
		}
	}
}

// Close drops all sessions and busy marks.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.sessions)
	clear(m.busy)
}

// openLocked returns the live session for scope, destroying it first when
// its TTL has elapsed.
func (m *Manager) openLocked(scope Scope) (*selection, error) {
	s, ok := m.sessions[scope]
	if !ok {
		return nil, apperr.ErrSessionExpired
	}
	if !m.now().Before(s.expiresAt) {
		delete(m.sessions, scope)
		return nil, apperr.ErrSessionExpired
	}
	return s, nil
}

// markBusyLocked marks scope busy and returns the release for that mark.
func (m *Manager) markBusyLocked(scope Scope) func() {
	m.gen++
	mark := m.gen
	m.busy[scope] = mark

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.busy[scope] == mark {
				delete(m.busy, scope)
			}
			m.mu.Unlock()
		})
	}
}

func (s *selection) view(scope Scope) View {
	candidates := make([]Candidate, len(s.candidates))
	copy(candidates, s.candidates)
	return View{
		ID:         s.id,
		Scope:      scope,
		Candidates: candidates,
		Picked:     sortedPicks(s.picked),
		CreatedAt:  s.createdAt,
		ExpiresAt:  s.expiresAt,
	}
}

func sortedPicks(picked map[int]struct{}) []int {
	out := make([]int, 0, len(picked))
	for i := range picked {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
