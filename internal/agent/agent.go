package agent

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/radeon-ai/reasoner/config"
	"github.com/radeon-ai/reasoner/internal/conversation"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	"github.com/radeon-ai/reasoner/internal/reasoning"
	"github.com/radeon-ai/reasoner/internal/semantic"
	"github.com/radeon-ai/reasoner/internal/synthesis"
	"github.com/radeon-ai/reasoner/internal/telemetry"
)

// Request is one incoming chat query.
type Request struct {
	Message   string `json:"message"`
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// Agent wires the full query path: analysis, reasoning, context merge,
// confidence scoring, and response synthesis.
type Agent struct {
	cfg       *config.Config
	logger    *log.Logger
	analyzer  *semantic.Analyzer
	holder    *knowledge.Holder
	pipeline  *reasoning.Pipeline
	manager   *conversation.Manager
	synth     *synthesis.Synthesizer
	cache     *responseCache
	telemetry *telemetry.Telemetry
}

func New(cfg *config.Config, holder *knowledge.Holder, store conversation.Store, tele *telemetry.Telemetry) *Agent {
	logger := log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	categories := cfg.Analysis.Categories
	if len(categories) == 0 {
		categories = config.DefaultCategories()
	}
	a := &Agent{
		cfg:       cfg,
		logger:    logger,
		analyzer:  semantic.NewAnalyzer(categories),
		holder:    holder,
		pipeline:  reasoning.NewPipeline(holder, logger, cfg.Retrieval.Limit),
		manager:   conversation.NewManager(store, holder, logger, cfg.Session.MaxHistory, cfg.Retrieval.CarryoverDiscount),
		synth:     synthesis.NewSynthesizer(),
		telemetry: tele,
	}
	if cfg.Cache.Enabled {
		a.cache = newResponseCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}
	return a
}

// Process runs one query end to end and returns the response envelope.
func (a *Agent) Process(ctx context.Context, req Request) (*synthesis.Response, error) {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	format := synthesis.ParseFormat(req.Format)

	key := cacheKey(sessionID, req.Message, string(format))
	if a.cache != nil {
		if cached, ok := a.cache.get(key); ok {
			hit := *cached
			hit.ID = uuid.NewString()
			hit.FromCache = true
			a.record(&hit, start, true, false)
			return &hit, nil
		}
	}

	priorTopics := a.manager.LastTopics(ctx, sessionID)
	analysis, err := a.analyzer.Analyze(req.Message, priorTopics)
	if err != nil {
		return nil, err
	}

	chain, err := a.pipeline.Execute(analysis)
	if err != nil {
		return nil, err
	}

	sess, err := a.manager.Merge(ctx, sessionID, chain)
	if err != nil {
		return nil, err
	}

	confidence := reasoning.CalculateConfidence(chain)
	resp := a.synth.Synthesize(chain, confidence, sess, format)
	resp.ID = uuid.NewString()
	resp.SessionID = sessionID

	if a.cache != nil {
		a.cache.put(key, resp)
	}
	a.record(resp, start, false, chain.NoEvidence)
	return resp, nil
}

func (a *Agent) record(resp *synthesis.Response, start time.Time, cacheHit, noEvidence bool) {
	if a.telemetry == nil {
		return
	}
	a.telemetry.RecordQuery(telemetry.QueryEvent{
		Intent:     resp.Intent,
		Complexity: resp.Complexity,
		Duration:   time.Since(start),
		Confidence: resp.Confidence,
		Sources:    resp.Sources,
		CacheHit:   cacheHit,
		NoEvidence: noEvidence,
	})
}
