package conversation

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/reasoning"
	"github.com/radeon-ai/reasoner/internal/semantic"
)

func testHolder(t *testing.T) *knowledge.Holder {
	t.Helper()
	corpus := []knowledge.Article{
		{
			ID: "robot", Title: "Robot", URL: "https://kb.local/robot",
			Content:  "A robot is a machine. Robots automate tasks.",
			Keywords: []string{"robot", "machine"}, QualityScore: 0.9, WordCount: 1500,
		},
		{
			ID: "automation", Title: "Automation", URL: "https://kb.local/automation",
			Content:  "Automation is the use of control systems. It reduces manual labour.",
			Keywords: []string{"automation", "control systems"}, QualityScore: 0.85, WordCount: 1200,
		},
	}
	ix, err := knowledge.Build(corpus)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return knowledge.NewHolder(ix)
}

func testManager(t *testing.T) (*Manager, Store) {
	t.Helper()
	store := NewInMemoryStore(time.Hour)
	m := NewManager(store, testHolder(t), log.New(io.Discard, "", 0), 10, 0.8)
	return m, store
}

func chainFor(query string, entities ...semantic.Entity) *reasoning.Chain {
	return &reasoning.Chain{
		Analysis: semantic.Analysis{
			OriginalQuery: query,
			Intent:        semantic.IntentFactual,
			Entities:      entities,
		},
		Answer: "answer for " + query,
	}
}

func TestMergeCreatesSession(t *testing.T) {
	m, _ := testManager(t)
	chain := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	sess, err := m.Merge(context.Background(), "s1", chain)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(sess.History) != 1 {
		t.Fatalf("history = %d", len(sess.History))
	}
	if chain.IsFollowUp {
		t.Fatalf("first turn cannot be a follow-up")
	}
	if len(sess.LastTopics) == 0 {
		t.Fatalf("topics not recorded")
	}
}

func TestMergeDetectsFollowUpByTopicOverlap(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	first := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	first.Citations = []reasoning.Citation{{ArticleID: "robot", Title: "Robot", Relevance: 0.97}}
	if _, err := m.Merge(ctx, "s1", first); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// plural surface form still overlaps the prior topic
	second := chainFor("Where are robots used?", semantic.Entity{Text: "robots", Category: "robotics"})
	sess, err := m.Merge(ctx, "s1", second)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !second.IsFollowUp {
		t.Fatalf("expected follow-up detection")
	}
	if len(sess.History) != 2 {
		t.Fatalf("history = %d, want 2", len(sess.History))
	}
}

func TestMergeDetectsFollowUpByReferentialMarker(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	first := chainFor("What is automation?", semantic.Entity{Text: "automation", Category: "automation"})
	if _, err := m.Merge(ctx, "s1", first); err != nil {
		t.Fatalf("merge: %v", err)
	}
	second := chainFor("tell me more")
	if _, err := m.Merge(ctx, "s1", second); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !second.IsFollowUp {
		t.Fatalf("referential query not flagged as follow-up")
	}
}

func TestMergeCarriesForwardDiscountedSources(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	first := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	first.Citations = []reasoning.Citation{{ArticleID: "robot", Title: "Robot", Relevance: 0.9}}
	if _, err := m.Merge(ctx, "s1", first); err != nil {
		t.Fatalf("merge: %v", err)
	}

	second := chainFor("tell me more about them", semantic.Entity{Text: "robots", Category: "robotics"})
	if _, err := m.Merge(ctx, "s1", second); err != nil {
		t.Fatalf("merge: %v", err)
	}

	found := false
	for _, s := range second.Retrieved {
		if s.Article.ID == "robot" {
			found = true
			if math.Abs(s.Relevance-0.72) > 1e-9 {
				t.Fatalf("carried relevance = %v, want discounted 0.72", s.Relevance)
			}
		}
	}
	if !found {
		t.Fatalf("previous citation not carried forward")
	}
	last := second.Steps[len(second.Steps)-1]
	if last.Kind != reasoning.StepContextIntegration {
		t.Fatalf("missing context integration step, got %s", last.Kind)
	}
	if last.Confidence != 0.7 {
		t.Fatalf("context step confidence = %v", last.Confidence)
	}
}

func TestMergeSkipsCarryoverForSourcesAlreadyRetrieved(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	first := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	first.Citations = []reasoning.Citation{{ArticleID: "robot", Title: "Robot", Relevance: 0.9}}
	if _, err := m.Merge(ctx, "s1", first); err != nil {
		t.Fatalf("merge: %v", err)
	}

	ix := testHolder(t).Load()
	art, _ := ix.ArticleByID("robot")
	second := chainFor("robots again", semantic.Entity{Text: "robots", Category: "robotics"})
	second.Retrieved = []knowledge.Scored{{Article: art, Relevance: 0.97}}
	if _, err := m.Merge(ctx, "s1", second); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(second.Retrieved) != 1 {
		t.Fatalf("already-present source duplicated: %v", second.Retrieved)
	}
	last := second.Steps[len(second.Steps)-1]
	if last.Kind != reasoning.StepContextIntegration {
		t.Fatalf("follow-up should still record a context step")
	}
	if len(last.Sources) != 0 {
		t.Fatalf("nothing should be carried, got sources %v", last.Sources)
	}
}

func TestMergeCapsHistoryFIFO(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	m := NewManager(store, testHolder(t), log.New(io.Discard, "", 0), 3, 0.8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		chain := chainFor(fmt.Sprintf("query %d about robots", i), semantic.Entity{Text: "robot", Category: "robotics"})
		if _, err := m.Merge(ctx, "s1", chain); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
	}
	sess, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("session missing: %v %v", ok, err)
	}
	if len(sess.History) != 3 {
		t.Fatalf("history = %d, want cap 3", len(sess.History))
	}
	if sess.History[0].Query != "query 2 about robots" {
		t.Fatalf("oldest turn not evicted, have %q", sess.History[0].Query)
	}
}

func TestMergeSessionsAreIndependent(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	first := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	if _, err := m.Merge(ctx, "s1", first); err != nil {
		t.Fatalf("merge: %v", err)
	}
	other := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
	sess, err := m.Merge(ctx, "s2", other)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if other.IsFollowUp {
		t.Fatalf("fresh session must not see another session's history")
	}
	if len(sess.History) != 1 {
		t.Fatalf("history = %d", len(sess.History))
	}
}

func TestMergeConcurrentSameSession(t *testing.T) {
	m, store := testManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chain := chainFor(fmt.Sprintf("robot query %d", i), semantic.Entity{Text: "robot", Category: "robotics"})
			if _, err := m.Merge(ctx, "shared", chain); err != nil {
				t.Errorf("merge: %v", err)
			}
		}(i)
	}
	wg.Wait()

	sess, ok, err := store.Get(ctx, "shared")
	if err != nil || !ok {
		t.Fatalf("session missing")
	}
	if len(sess.History) != 10 {
		t.Fatalf("history = %d, want the cap of 10", len(sess.History))
	}
}

func TestLastTopicsConcurrentWithMerge(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			chain := chainFor(fmt.Sprintf("robot query %d", i), semantic.Entity{Text: "robot", Category: "robotics"})
			if _, err := m.Merge(ctx, "shared", chain); err != nil {
				t.Errorf("merge: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			for _, topic := range m.LastTopics(ctx, "shared") {
				if topic == "" {
					t.Errorf("empty topic observed")
				}
			}
		}()
	}
	wg.Wait()
}

func TestSessionLocksPrunedAfterUse(t *testing.T) {
	m, _ := testManager(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		chain := chainFor("What is a robot?", semantic.Entity{Text: "robot", Category: "robotics"})
		if _, err := m.Merge(ctx, id, chain); err != nil {
			t.Fatalf("merge: %v", err)
		}
		m.LastTopics(ctx, id)
	}
	m.mu.Lock()
	remaining := len(m.locks)
	m.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("lock table holds %d entries after all turns finished, want 0", remaining)
	}
}

func TestInMemoryStoreGetReturnsDetachedCopy(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()
	if err := store.Put(ctx, &SessionContext{
		SessionID:  "s1",
		History:    []Turn{{Query: "What is a robot?"}},
		LastTopics: []string{"robot"},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	sess, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	sess.History[0].Query = "mutated"
	sess.LastTopics[0] = "mutated"
	sess.History = append(sess.History, Turn{Query: "extra"})

	fresh, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("second get: ok=%v err=%v", ok, err)
	}
	if len(fresh.History) != 1 || fresh.History[0].Query != "What is a robot?" {
		t.Fatalf("stored history changed through a returned copy: %+v", fresh.History)
	}
	if fresh.LastTopics[0] != "robot" {
		t.Fatalf("stored topics changed through a returned copy: %v", fresh.LastTopics)
	}
}

func TestInMemoryStoreTTL(t *testing.T) {
	store := NewInMemoryStore(10 * time.Millisecond)
	ctx := context.Background()
	sess := &SessionContext{SessionID: "s1"}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1"); !ok {
		t.Fatalf("session should exist before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatalf("session should expire")
	}
}

func TestInMemoryStoreEvict(t *testing.T) {
	store := NewInMemoryStore(time.Hour)
	ctx := context.Background()
	if err := store.Put(ctx, &SessionContext{SessionID: "s1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Evict(ctx, "s1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatalf("session survived eviction")
	}
}
