package handlers

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"argus/internal/alias"
	"argus/internal/clustering"
	"argus/internal/config"
	"argus/internal/entity"
	"argus/internal/extract"
	"argus/internal/llm"
	"argus/internal/logger"
	"argus/internal/model"
	"argus/internal/similarity"
	"argus/internal/store"
	"argus/internal/vectorstore"
	"argus/internal/worker"
)

// NewWorkCmd starts the Decision and Analysis Workers, each polling its own
// queue priority list until an interrupt is received.
func NewWorkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run the Decision and Analysis Workers against the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			return runWorkers(cmd.Context(), cfg)
		},
	}
}

// analysisStore composes the Article and Entity repositories behind the
// Analysis Worker's AnalysisStore interface: article reads/writes plus a
// type-joined entity lookup, which lives on two different repositories in
// the Persistent Store.
type analysisStore struct {
	articles *store.ArticleRepo
	entities *store.EntityRepo
}

func (s *analysisStore) Get(ctx context.Context, id int64) (*model.Article, error) {
	return s.articles.Get(ctx, id)
}

func (s *analysisStore) UpdateStatus(ctx context.Context, id int64, status model.ArticleStatus, reason model.RejectReason) error {
	return s.articles.UpdateStatus(ctx, id, status, reason)
}

func (s *analysisStore) UpdateAnalysis(ctx context.Context, id int64, analysis, summary, tinySummary, tinyTitle, eli5 *string, quality *model.QualityScores) error {
	return s.articles.UpdateAnalysis(ctx, id, analysis, summary, tinySummary, tinyTitle, eli5, quality)
}

func (s *analysisStore) ForArticle(ctx context.Context, articleID int64) ([]similarity.WithType, error) {
	return s.entities.ForArticleTyped(ctx, articleID)
}

func runWorkers(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	vectors := vectorstore.New(db.Conn(), cfg.VectorStore.Dimensions)
	if err := vectors.EnsureIndex(ctx); err != nil {
		return err
	}

	aliasRepo := alias.New(db.Conn(), cfg.Alias.CacheCapacity, cfg.Alias.CacheTTL)
	matcher := entity.NewMatcher(aliasRepo, aliasRepo, &cfg.Entity)

	decisionLLM, err := llm.NewClient(ctx, cfg.LLM.Decision.Model, cfg.LLM.Decision.APIKey,
		llm.WithTemperature(cfg.LLM.Decision.Temperature),
		llm.WithReasoningMode(cfg.LLM.ReasoningMode),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithBackoff(cfg.LLM.BaseBackoff, cfg.LLM.MaxBackoff),
	)
	if err != nil {
		return err
	}
	analysisLLM, err := llm.NewClient(ctx, cfg.LLM.Analysis.Model, cfg.LLM.Analysis.APIKey,
		llm.WithTemperature(cfg.LLM.Analysis.Temperature),
		llm.WithReasoningMode(cfg.LLM.ReasoningMode),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithBackoff(cfg.LLM.BaseBackoff, cfg.LLM.MaxBackoff),
	)
	if err != nil {
		return err
	}

	extractor := extract.New(analysisLLM, matcher, db.Entities())
	simEngine := similarity.New(&cfg.Similarity)
	summaries := worker.NewLLMSummaryGenerator(analysisLLM)
	clusterEngine := clustering.New(db.Clusters(), simEngine, summaries, &cfg.Clustering)

	decisionProc := worker.NewDecision(
		db.Articles(),
		worker.NewStoreTextExtractor(db.Articles()),
		worker.NewLLMClassifier(decisionLLM),
		db.Queue(),
		cfg.Decision.Topics,
		cfg.Queue.RejectOlderThan,
	)

	analysisProc := worker.NewAnalysis(
		&analysisStore{articles: db.Articles(), entities: db.Entities()},
		vectors,
		extractor,
		worker.NewLLMAnalyzer(analysisLLM, int32(cfg.VectorStore.Dimensions)),
		simEngine,
		clusterEngine,
	)

	workerCfg := worker.Config{
		Lease:        cfg.Queue.Lease,
		PollInterval: cfg.Queue.PollInterval,
		PollJitter:   cfg.Queue.PollJitter,
		MaxAttempts:  cfg.Queue.MaxAttempts,
	}

	decisionWorker := worker.New("decision-1", []model.QueueKind{model.QueueRSS}, db.Queue(), decisionProc, workerCfg)
	analysisWorker := worker.New("analysis-1", []model.QueueKind{model.QueueSafety, model.QueueTopic}, db.Queue(), analysisProc, workerCfg)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	decisionWorker.Start(runCtx)
	analysisWorker.Start(runCtx)

	log.Info("workers started", "decision_queue", model.QueueRSS, "analysis_queues", []model.QueueKind{model.QueueSafety, model.QueueTopic})
	<-runCtx.Done()
	log.Info("shutting down workers")

	// Both workers' Stop() blocks until their poll loop has exited; run them
	// concurrently so total shutdown latency is the slower of the two, not
	// their sum.
	var g errgroup.Group
	g.Go(func() error { decisionWorker.Stop(); return nil })
	g.Go(func() error { analysisWorker.Stop(); return nil })
	return g.Wait()
}
