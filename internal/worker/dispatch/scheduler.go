package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/repository"
)

// UserDispatcher は1ユーザー分の配信処理インターフェース。
type UserDispatcher interface {
	// Dispatch は配信判定と配信実行を行い、配信した場合にtrueを返す。
	Dispatch(ctx context.Context, profile *model.Profile, now time.Time) (bool, error)
}

// MetricsRecorder はデイリー配信のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordDispatchCycle(users, dispatched, failures int, duration time.Duration)
}

// Scheduler はデイリー配信のスケジューリングと並列制御を行う。
// 1時間間隔のティッカーで配信サイクルを起動し、
// semaphoreパターンで最大並列数を制御しながらユーザーごとの配信を実行する。
// ユーザー単位の失敗はサイクル全体に伝播しない。
type Scheduler struct {
	profileRepo    repository.ProfileRepository
	dispatcher     UserDispatcher
	metrics        MetricsRecorder
	logger         *slog.Logger
	maxConcurrency int
	running        atomic.Bool
	now            func() time.Time // テスト用に差し替え可能
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	profileRepo repository.ProfileRepository,
	dispatcher UserDispatcher,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		profileRepo:    profileRepo,
		dispatcher:     dispatcher,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("デイリー配信スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("配信サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("デイリー配信スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("配信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は配信サイクルを1回実行する。
// 前回サイクルが実行中の場合は新しいサイクルを開始せずスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("前回の配信サイクルが実行中のためスキップします")
		return nil
	}
	defer s.running.Store(false)

	start := s.now()

	profiles, err := s.profileRepo.ListWithTimezone(ctx)
	if err != nil {
		return err
	}

	if len(profiles) == 0 {
		s.logger.Info("配信対象のユーザーはいません")
		return nil
	}

	s.logger.Info("配信サイクルを開始します",
		slog.Int("user_count", len(profiles)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup
	var dispatched, failures atomic.Int64

	for _, profile := range profiles {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(p *model.Profile) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			sent, err := s.dispatcher.Dispatch(ctx, p, start)
			if err != nil {
				failures.Add(1)
				s.logger.Error("ユーザーへの配信に失敗しました",
					slog.String("user_id", p.UserID),
					slog.String("error", err.Error()),
				)
				return
			}
			if sent {
				dispatched.Add(1)
			}
		}(profile)
	}

	wg.Wait()

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordDispatchCycle(len(profiles), int(dispatched.Load()), int(failures.Load()), duration)
	}

	s.logger.Info("配信サイクルが完了しました",
		slog.Int("user_count", len(profiles)),
		slog.Int64("dispatched", dispatched.Load()),
		slog.Int64("failures", failures.Load()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
