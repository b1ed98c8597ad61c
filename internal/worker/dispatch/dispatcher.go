// Package dispatch はデイリータスク配信のバックグラウンド処理を提供する。
// 1時間間隔のティッカーで全ユーザーのタイムゾーンを評価し、
// 現地時刻が配信時刻（デフォルト8時）のユーザーにのみ当日分タスクを配信する。
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/notify"
	"github.com/hitoshi/coachman/internal/repository"
)

// Dispatcher は1ユーザー分の配信判定と配信実行を行う。
type Dispatcher struct {
	plannerRepo repository.PlannerRepository
	notifier    notify.Notifier
	logger      *slog.Logger
	localHour   int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// localHourが範囲外（0-23以外）の場合はデフォルトの8時を使用する。
func NewDispatcher(
	plannerRepo repository.PlannerRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
	localHour int,
) *Dispatcher {
	if localHour < 0 || localHour > 23 {
		localHour = 8
	}
	return &Dispatcher{
		plannerRepo: plannerRepo,
		notifier:    notifier,
		logger:      logger,
		localHour:   localHour,
	}
}

// Dispatch は指定ユーザーの配信判定を行い、条件を満たす場合に当日分を配信する。
// 配信しなかった場合（時間外・プランなし・当日分なし）はfalseを返す。
func (d *Dispatcher) Dispatch(ctx context.Context, profile *model.Profile, now time.Time) (bool, error) {
	loc, err := time.LoadLocation(profile.Timezone)
	if err != nil {
		return false, fmt.Errorf("タイムゾーンの解決に失敗しました（%s）: %w", profile.Timezone, err)
	}

	localNow := now.In(loc)
	if localNow.Hour() != d.localHour {
		return false, nil
	}

	planner, err := d.plannerRepo.FindActiveByUserID(ctx, profile.UserID, now)
	if err != nil {
		return false, fmt.Errorf("アクティブプランナーの検索に失敗しました: %w", err)
	}
	if planner == nil {
		return false, nil
	}

	day := resolveDay(planner, localNow)
	if day == nil || len(day.Tasks) == 0 {
		d.logger.Warn("配信対象の日が解決できませんでした",
			slog.String("user_id", profile.UserID),
			slog.String("planner_id", planner.ID),
		)
		return false, nil
	}

	if err := d.notifier.SendDailyTasks(ctx, profile, planner, day); err != nil {
		return false, fmt.Errorf("デイリータスクの配信に失敗しました: %w", err)
	}

	d.logger.Info("デイリータスクを配信しました",
		slog.String("user_id", profile.UserID),
		slog.String("planner_id", planner.ID),
		slog.Int("day_index", day.Index),
	)
	return true, nil
}

// resolveDay は配信すべき当日分のDayを解決する。
//   1. 開始日からの経過日数によるインデックス一致
//   2. 現地日付とDayのdate一致によるフォールバック
//   3. インデックスを[0, len-1]にクランプした最終フォールバック
func resolveDay(planner *model.Planner, localNow time.Time) *model.Day {
	if len(planner.Plan.Days) == 0 {
		return nil
	}

	idx := elapsedDayIndex(planner.StartDate, localNow)
	if idx >= 0 && idx < len(planner.Plan.Days) {
		return &planner.Plan.Days[idx]
	}

	today := localNow.Format("2006-01-02")
	for i := range planner.Plan.Days {
		if planner.Plan.Days[i].Date == today {
			return &planner.Plan.Days[i]
		}
	}

	if idx < 0 {
		idx = 0
	}
	if idx >= len(planner.Plan.Days) {
		idx = len(planner.Plan.Days) - 1
	}
	return &planner.Plan.Days[idx]
}

// elapsedDayIndex は開始日からの経過日数を算出する。開始日当日は0。
func elapsedDayIndex(startDate, now time.Time) int {
	elapsed := now.Sub(startDate)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}
