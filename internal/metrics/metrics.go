// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordPlanGenerated(source string)
	RecordPlanAttemptFailure()
	RecordInterviewScheduled(trigger string)
	RecordWebhookReceived(matched bool)
	RecordDispatchCycle(users, dispatched, failures int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	planGenerated        *prometheus.CounterVec
	planAttemptFailures  prometheus.Counter
	interviewsScheduled  *prometheus.CounterVec
	webhooksReceived     *prometheus.CounterVec
	dispatchCycles       prometheus.Counter
	dispatchUsers        prometheus.Counter
	dispatchSent         prometheus.Counter
	dispatchFailures     prometheus.Counter
	dispatchCycleLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		planGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachman_plan_generated_total",
			Help: "生成された学習プランの合計数（生成元別）",
		}, []string{"source"}),
		planAttemptFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachman_plan_attempt_failures_total",
			Help: "プラン生成試行の失敗合計数",
		}),
		interviewsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachman_interviews_scheduled_total",
			Help: "スケジュールされた模擬面接の合計数（契機別）",
		}, []string{"trigger"}),
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachman_interview_webhooks_total",
			Help: "受信した面接Webhookの合計数（照合結果別）",
		}, []string{"matched"}),
		dispatchCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachman_dispatch_cycles_total",
			Help: "デイリー配信サイクルの実行合計数",
		}),
		dispatchUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachman_dispatch_users_total",
			Help: "配信サイクルで評価したユーザーの合計数",
		}),
		dispatchSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachman_dispatch_sent_total",
			Help: "配信されたデイリータスク通知の合計数",
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachman_dispatch_failures_total",
			Help: "ユーザー単位の配信失敗の合計数",
		}),
		dispatchCycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coachman_dispatch_cycle_seconds",
			Help:    "配信サイクルの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.planGenerated,
		c.planAttemptFailures,
		c.interviewsScheduled,
		c.webhooksReceived,
		c.dispatchCycles,
		c.dispatchUsers,
		c.dispatchSent,
		c.dispatchFailures,
		c.dispatchCycleLatency,
	)

	return c
}

// RecordPlanGenerated はプラン生成の成功を生成元（ai / fallback）別に記録する。
func (c *Collector) RecordPlanGenerated(source string) {
	c.planGenerated.WithLabelValues(source).Inc()
}

// RecordPlanAttemptFailure はプラン生成試行の失敗を記録する。
func (c *Collector) RecordPlanAttemptFailure() {
	c.planAttemptFailures.Inc()
}

// RecordInterviewScheduled は面接スケジュールを契機（request / milestone）別に記録する。
func (c *Collector) RecordInterviewScheduled(trigger string) {
	c.interviewsScheduled.WithLabelValues(trigger).Inc()
}

// RecordWebhookReceived はWebhook受信を照合結果別に記録する。
func (c *Collector) RecordWebhookReceived(matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	c.webhooksReceived.WithLabelValues(label).Inc()
}

// RecordDispatchCycle は配信サイクル1回分の結果を記録する。
func (c *Collector) RecordDispatchCycle(users, dispatched, failures int, duration time.Duration) {
	c.dispatchCycles.Inc()
	c.dispatchUsers.Add(float64(users))
	c.dispatchSent.Add(float64(dispatched))
	c.dispatchFailures.Add(float64(failures))
	c.dispatchCycleLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
