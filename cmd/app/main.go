package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ctroy978/edagent/internal/application"
	"github.com/ctroy978/edagent/internal/config"
	"github.com/ctroy978/edagent/internal/domain/ports/adapter"
	clsAdapters "github.com/ctroy978/edagent/internal/infra/adapters/classifier"
	tele "github.com/ctroy978/edagent/internal/infra/adapters/telegram"
	toolAdapters "github.com/ctroy978/edagent/internal/infra/adapters/tools"
	pg "github.com/ctroy978/edagent/internal/infra/db/postgres"
	"github.com/ctroy978/edagent/internal/infra/logging"
	"github.com/ctroy978/edagent/internal/infra/metrics"
	red "github.com/ctroy978/edagent/internal/infra/redis"
	"github.com/ctroy978/edagent/internal/infra/sched"
	"github.com/ctroy978/edagent/internal/infra/web"
	"github.com/ctroy978/edagent/internal/infra/worker"
	"github.com/ctroy978/edagent/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console bot, noop gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		log.Info().Msg("dev mode enabled")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	stateRepo := pg.NewPostgresWorkflowStateRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	stateCache := red.NewStateCache(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Tool gateway ----
	var gw adapter.ToolGateway
	if cfg.Runtime.Dev {
		gw = toolAdapters.NewNoopGateway()
		log.Info().Msg("tool gateway: noop")
	} else {
		gw, err = toolAdapters.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("tool gateway")
		}
		log.Info().Str("base_url", cfg.Gateway.BaseURL).Msg("tool gateway: http")
	}

	// ---- Intent classifier ----
	var cls adapter.IntentClassifier
	if cfg.Runtime.Dev || cfg.Classifier.APIKey == "" {
		cls = clsAdapters.NewKeywordClassifier()
		log.Info().Msg("intent classifier: keyword")
	} else {
		cls, err = clsAdapters.NewOpenAIClassifier(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("intent classifier")
		}
		log.Info().Str("model", cfg.Classifier.Model).Msg("intent classifier: openai")
	}

	// ---- Phase executors ----
	budget := cfg.Workflow.CallBudget
	evalExec, err := workflow.NewEvaluateExecutor(gw, budget, cfg.Workflow.MaxContextTokens, log)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluate executor")
	}
	execs := workflow.NewSet(
		workflow.NewGatherExecutor(gw, budget, log),
		workflow.NewPrepareExecutor(gw, budget, cfg.Workflow.AutoNormalize, log),
		workflow.NewValidateExecutor(gw, budget, log),
		workflow.NewScrubExecutor(gw, budget, log),
		evalExec,
		workflow.NewReportExecutor(gw, budget, log),
		workflow.NewEmailExecutor(gw, budget, log),
	)
	router := workflow.NewRouter(cls, log)

	// ---- Facade ----
	facade := application.NewAgentFacade(execs, router, stateRepo, txm, stateCache, locker, log)

	// ---- Bot transport ----
	pool2 := worker.NewPool(cfg.Bot.Workers, log)
	pool2.Start(ctx)
	defer pool2.Stop()

	if cfg.Runtime.Dev && cfg.Bot.Token == "dev" {
		console := tele.NewNoopBotAdapter(facade, log)
		go func() {
			if err := console.StartPolling(ctx); err != nil {
				log.Warn().Err(err).Msg("console stopped")
			}
		}()
	} else {
		botAdapter, err := tele.NewRealBotAdapter(&cfg.Bot, facade, pool2, log)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram")
		}
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil {
				log.Warn().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Ops API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, 30*time.Minute)
	srv := web.NewServer(stateRepo, auth, cfg.Admin.JWTSecret, log)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: srv.Router()}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("ops api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops api error")
		}
	}()

	// ---- Stale-thread worker ----
	staleWorker := sched.NewStaleWorker(time.Hour, cfg.Workflow.StaleAfter, stateRepo, log)
	go func() { _ = staleWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
