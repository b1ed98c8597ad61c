package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/coachman/internal/metrics"
	"github.com/hitoshi/coachman/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック・メトリクス
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	// プロフィール管理
	ProfileStore ProfileStoreInterface

	// プラン生成
	PlanService PlanServiceInterface

	// 面接ライフサイクル
	InterviewService InterviewServiceInterface

	// Webhook
	WebhookProcessor WebhookProcessorInterface
	WebhookSecret    string

	Logger *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → UserMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// Webhookルート（/webhooks/*）はユーザーミドルウェアの外に配置し、
// 共有シークレットで認証する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// panicリカバリを最上位に適用（全ルートに効く）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	profileHandler := NewProfileHandler(deps.ProfileStore)
	planHandler := NewPlanHandler(deps.PlanService)
	interviewHandler := NewInterviewHandler(deps.InterviewService)
	webhookHandler := NewWebhookHandler(deps.WebhookProcessor, deps.WebhookSecret, deps.Logger)

	// --- ユーザー識別不要のルート ---

	// ヘルスチェック（DB疎通を確認する）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// テレフォニープロバイダからのWebhook
	r.Post("/webhooks/interview", webhookHandler.HandleInterviewCallback)

	// --- ユーザー識別が必要なルート ---
	// ミドルウェアスタック: User → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewUserMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// キャリアプロフィール管理
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Put("/", profileHandler.UpsertProfile)
		})

		// 学習プラン管理
		r.Route("/api/plans", func(r chi.Router) {
			// POST /api/plans - プラン生成（LLM呼び出しを伴うため専用レート制限を追加）
			r.With(deps.RateLimiter.PlanGenerationMiddleware()).Post("/", planHandler.GeneratePlan)

			r.Get("/latest", planHandler.GetLatestPlan)
			r.Put("/{id}/progress", planHandler.UpdateProgress)
		})

		// 模擬面接管理
		r.Route("/api/interviews", func(r chi.Router) {
			r.Get("/eligibility", interviewHandler.CheckEligibility)
			r.Post("/", interviewHandler.Schedule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", interviewHandler.GetInterview)
				r.Put("/", interviewHandler.Reschedule)
				r.Delete("/", interviewHandler.Cancel)
				r.Post("/start", interviewHandler.Start)
			})
		})
	})

	return r
}
