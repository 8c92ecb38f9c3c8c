package conversation

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/reasoning"
)

// Markers that tie a query to earlier turns even without topic overlap.
var referentialPattern = regexp.MustCompile(`(?i)\b(?:it|they|them|those|these|that one|the same)\b|\btell me more\b|\bwhat about\b|\bhow about\b|\band also\b`)

const carriedSourceCap = 3

// Manager merges finished reasoning chains into session state. Turns for the
// same session are serialized; different sessions proceed in parallel.
type Manager struct {
	store      Store
	holder     *knowledge.Holder
	logger     *log.Logger
	maxHistory int
	discount   float64

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is reference-counted so the lock table only holds entries for
// sessions with a turn in flight.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager(store Store, holder *knowledge.Holder, logger *log.Logger, maxHistory int, discount float64) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[CONVERSATION] ", log.LstdFlags)
	}
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &Manager{
		store:      store,
		holder:     holder,
		logger:     logger,
		maxHistory: maxHistory,
		discount:   discount,
		locks:      make(map[string]*sessionLock),
	}
}

func (m *Manager) lockSession(sessionID string) *sessionLock {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Manager) unlockSession(sessionID string, l *sessionLock) {
	l.mu.Unlock()

	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, sessionID)
	}
	m.mu.Unlock()
}

// LastTopics returns the prior turn's topics for a session, for feeding the
// analyzer before the pipeline runs. Missing sessions yield nil.
func (m *Manager) LastTopics(ctx context.Context, sessionID string) []string {
	lock := m.lockSession(sessionID)
	defer m.unlockSession(sessionID, lock)

	sess, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		m.logger.Printf("session %s lookup failed: %v", sessionID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return sess.LastTopics
}

// Merge folds a completed chain into the session: detects follow-ups, carries
// forward discounted sources from the previous turn, appends the turn, and
// caps the history oldest-first.
func (m *Manager) Merge(ctx context.Context, sessionID string, chain *reasoning.Chain) (*SessionContext, error) {
	lock := m.lockSession(sessionID)
	defer m.unlockSession(sessionID, lock)

	now := time.Now()
	sess, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !ok {
		sess = &SessionContext{SessionID: sessionID, CreatedAt: now}
	}

	if len(sess.History) > 0 && m.isFollowUp(chain, sess) {
		chain.IsFollowUp = true
		m.carryForward(chain, sess)
	}

	sess.History = append(sess.History, Turn{
		Query: chain.Analysis.OriginalQuery,
		Chain: chain,
		At:    now,
	})
	if len(sess.History) > m.maxHistory {
		sess.History = sess.History[len(sess.History)-m.maxHistory:]
	}
	sess.LastTopics = topicsOf(chain)
	sess.UpdatedAt = now

	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session %s: %w", sessionID, err)
	}
	return sess, nil
}

func (m *Manager) isFollowUp(chain *reasoning.Chain, sess *SessionContext) bool {
	if referentialPattern.MatchString(chain.Analysis.OriginalQuery) {
		return true
	}
	prior := make(map[string]bool, len(sess.LastTopics))
	for _, t := range sess.LastTopics {
		prior[normalizeTopic(t)] = true
	}
	for _, e := range chain.Analysis.Entities {
		if prior[normalizeTopic(e.Text)] || prior[normalizeTopic(e.Category)] {
			return true
		}
	}
	return false
}

// carryForward re-ranks the previous turn's top-cited articles into the
// current retrieval set at a discounted relevance and records the merge as a
// context integration step.
func (m *Manager) carryForward(chain *reasoning.Chain, sess *SessionContext) {
	noCarry := func() {
		chain.AddStep(reasoning.Step{
			Kind:       reasoning.StepContextIntegration,
			Content:    "Follow-up continues the previous topic; its sources were already retrieved.",
			Confidence: 0.7,
		})
	}
	prev := sess.History[len(sess.History)-1].Chain
	if prev == nil || len(prev.Citations) == 0 {
		noCarry()
		return
	}
	ix := m.holder.Load()
	if ix == nil {
		noCarry()
		return
	}
	present := chain.RetrievedIDs()
	var carriedIDs, carriedTitles []string
	for _, cit := range prev.Citations {
		if len(carriedIDs) >= carriedSourceCap {
			break
		}
		if present[cit.ArticleID] {
			continue
		}
		art, ok := ix.ArticleByID(cit.ArticleID)
		if !ok {
			continue
		}
		chain.Retrieved = append(chain.Retrieved, knowledge.Scored{
			Article:   art,
			Relevance: cit.Relevance * m.discount,
		})
		carriedIDs = append(carriedIDs, cit.ArticleID)
		carriedTitles = append(carriedTitles, cit.Title)
	}
	if len(carriedIDs) == 0 {
		noCarry()
		return
	}
	knowledge.SortScored(chain.Retrieved)
	chain.AddStep(reasoning.Step{
		Kind:       reasoning.StepContextIntegration,
		Content:    fmt.Sprintf("Carried forward %d sources from the previous turn: %s.", len(carriedIDs), strings.Join(carriedTitles, "; ")),
		Confidence: 0.7,
		Sources:    carriedIDs,
	})
}

func topicsOf(chain *reasoning.Chain) []string {
	seen := make(map[string]bool)
	var topics []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		topics = append(topics, t)
	}
	for _, e := range chain.Analysis.Entities {
		add(e.Text)
		add(e.Category)
	}
	return topics
}

func normalizeTopic(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if v, ok := strings.CutSuffix(t, "es"); ok && len(v) > 2 {
		return v
	}
	if v, ok := strings.CutSuffix(t, "s"); ok && len(v) > 2 {
		return v
	}
	return t
}
