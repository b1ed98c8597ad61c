package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/coachman/internal/config"
	"github.com/hitoshi/coachman/internal/database"
	"github.com/hitoshi/coachman/internal/handler"
	"github.com/hitoshi/coachman/internal/interview"
	"github.com/hitoshi/coachman/internal/llm"
	"github.com/hitoshi/coachman/internal/logger"
	"github.com/hitoshi/coachman/internal/metrics"
	"github.com/hitoshi/coachman/internal/middleware"
	"github.com/hitoshi/coachman/internal/notify"
	"github.com/hitoshi/coachman/internal/plangen"
	"github.com/hitoshi/coachman/internal/repository"
	"github.com/hitoshi/coachman/internal/security"
	"github.com/hitoshi/coachman/internal/telephony"
	"github.com/hitoshi/coachman/internal/worker/dispatch"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildNotifier は設定に応じてNotifier実装を選択する。
// SMTPが未設定の環境では何も送信しないNotifierを使用する。
func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.SMTPAddr == "" {
		slog.Info("SMTP未設定のため通知は無効です")
		return notify.NopNotifier{}
	}
	return notify.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPFrom, slog.Default())
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	plannerRepo := repository.NewPostgresPlannerRepo(db)
	interviewRepo := repository.NewPostgresInterviewRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部プロバイダクライアントの初期化
	generator := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, &http.Client{Timeout: cfg.LLMTimeout}, slog.Default())

	caller := telephony.NewClient(telephony.Config{
		APIKey:        cfg.TelephonyAPIKey,
		BaseURL:       cfg.TelephonyBaseURL,
		PhoneNumberID: cfg.TelephonyPhoneID,
	}, &http.Client{Timeout: 30 * time.Second}, slog.Default())

	// 5. ドメインサービスの初期化
	planService := plangen.NewService(
		generator, plannerRepo, collector, slog.Default(), cfg.LLMMaxRetries,
	)

	sanitizer := security.NewTranscriptSanitizer()
	notifier := buildNotifier(cfg)

	interviewService := interview.NewService(
		interviewRepo, plannerRepo, profileRepo,
		caller, sanitizer, notifier, collector, slog.Default(),
	)

	// 進捗マイルストーンフックの登録（相互依存を避けるためワイヤリング時に注入）
	planService.SetProgressObserver(interviewService)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPlanGen),
		),

		HealthChecker: db,
		Gatherer:      registry,

		ProfileStore:     profileRepo,
		PlanService:      planService,
		InterviewService: interviewService,

		WebhookProcessor: interviewService,
		WebhookSecret:    cfg.WebhookSecret,

		Logger: slog.Default(),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // プラン生成はプロバイダ応答を待つため長めに取る
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、デイリー配信スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	plannerRepo := repository.NewPostgresPlannerRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 配信コンポーネントの初期化
	notifier := buildNotifier(cfg)
	dispatcher := dispatch.NewDispatcher(
		plannerRepo, notifier, slog.Default(), cfg.DispatchLocalHour,
	)

	// 5. スケジューラの起動
	scheduler := dispatch.NewScheduler(
		profileRepo, dispatcher, collector, slog.Default(), cfg.DispatchMaxConcurrent,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("dispatch_interval", cfg.DispatchInterval),
		slog.Int("max_concurrent", cfg.DispatchMaxConcurrent),
		slog.Int("local_hour", cfg.DispatchLocalHour),
	)

	// Prometheusスクレイプ用のメトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// 配信スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.DispatchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
