// Package plangen は学習プラン生成エンジンを提供する。
// テキスト生成プロバイダへの最大3回の試行と、決定的フォールバックプランへの
// 切り替えにより、有効な入力に対しては必ずスキーマ妥当なプランを返す。
package plangen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/coachman/internal/llm"
	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/repository"
)

const (
	// minDurationDays / maxDurationDays はプラン日数の許容範囲。
	minDurationDays = 1
	maxDurationDays = 56
	// defaultDurationDays は日数未指定かつ週あたり時間からも導出できない場合のデフォルト。
	defaultDurationDays = 7
	// defaultMaxAttempts はプロバイダ呼び出しの最大試行回数。
	defaultMaxAttempts = 3
)

// SkillGap はスキルギャップ分析の結果を表す。プラン生成の補正データとして使用する。
type SkillGap struct {
	MissingCoreSkills []string
	PriorityGaps      []string
}

// GenerateSpec はプラン生成リクエストを表す。
type GenerateSpec struct {
	UserID            string
	Role              string
	DurationDays      int // 0の場合はWeeklyHoursまたはデフォルトから導出
	StartDate         time.Time
	DailyHours        float64
	ExperienceSummary string
	FocusAreas        []string
	AdditionalContext string
	WeeklyHours       int
	SkillGap          *SkillGap
}

// normalized はデフォルト適用済みのスペックを返す。
func (s GenerateSpec) normalized(now time.Time) GenerateSpec {
	out := s
	if out.DurationDays == 0 {
		// 週あたり学習時間が多いユーザーには短期集中プランを導出する
		switch {
		case out.WeeklyHours >= 20:
			out.DurationDays = 14
		case out.WeeklyHours > 0:
			out.DurationDays = 28
		default:
			out.DurationDays = defaultDurationDays
		}
	}
	if out.StartDate.IsZero() {
		out.StartDate = now.Truncate(24 * time.Hour)
	}
	return out
}

// validate は入力検証を行う。検証エラー時はプロバイダ呼び出しを行わない。
func (s GenerateSpec) validate() error {
	if strings.TrimSpace(s.Role) == "" {
		return model.NewInvalidRoleError()
	}
	if s.DurationDays < minDurationDays || s.DurationDays > maxDurationDays {
		return model.NewInvalidDurationError(s.DurationDays)
	}
	return nil
}

// ProgressObserver は進捗更新の通知を受けるフック。
// 面接ライフサイクルの80%マイルストーン判定が実装する。
type ProgressObserver interface {
	OnProgressUpdated(ctx context.Context, planner *model.Planner, oldPercent, newPercent int)
}

// MetricsRecorder はプラン生成のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordPlanGenerated(source string)
	RecordPlanAttemptFailure()
}

// Service は学習プラン生成のサービス層。
type Service struct {
	generator   llm.Generator
	plannerRepo repository.PlannerRepository
	observer    ProgressObserver
	metrics     MetricsRecorder
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time // テスト用に差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
// maxAttemptsが0以下の場合はデフォルト値3を使用する。
func NewService(
	generator llm.Generator,
	plannerRepo repository.PlannerRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxAttempts int,
) *Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Service{
		generator:   generator,
		plannerRepo: plannerRepo,
		metrics:     metrics,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// SetProgressObserver は進捗マイルストーンフックを登録する。
// プラン生成と面接ライフサイクルの相互依存を避けるため、ワイヤリング時に注入する。
func (s *Service) SetProgressObserver(observer ProgressObserver) {
	s.observer = observer
}

// GeneratePlan は検証済みスペックからプランナーを生成・永続化して返す。
// プロバイダ呼び出しは最大maxAttempts回試行し、パース・スキーマ検証の失敗は
// 失敗した試行として扱う。全試行が失敗した場合、認証情報がない場合、
// プロバイダに到達できない場合は決定的フォールバックプランを構築するため、
// 有効な入力に対してこの操作がエラーを返すことはない。
func (s *Service) GeneratePlan(ctx context.Context, spec GenerateSpec) (*model.Planner, error) {
	now := s.now()
	spec = spec.normalized(now)
	if err := spec.validate(); err != nil {
		return nil, err
	}

	plan, source := s.generateWithFallback(ctx, spec)

	planner := &model.Planner{
		ID:           uuid.NewString(),
		UserID:       spec.UserID,
		TargetRole:   spec.Role,
		StartDate:    spec.StartDate,
		DurationDays: spec.DurationDays,
		EndDate:      spec.StartDate.AddDate(0, 0, spec.DurationDays-1),
		Source:       source,
		Plan:         plan,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.plannerRepo.Create(ctx, planner); err != nil {
		return nil, fmt.Errorf("プランナーの保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPlanGenerated(string(source))
	}

	s.logger.Info("学習プランを生成しました",
		slog.String("planner_id", planner.ID),
		slog.String("user_id", planner.UserID),
		slog.String("source", string(source)),
		slog.Int("duration_days", planner.DurationDays),
		slog.Int("task_count", planner.Plan.TaskCount()),
	)

	return planner, nil
}

// generateWithFallback はプロバイダ試行とフォールバック構築を行い、
// 採用したプランと生成元を返す。
func (s *Service) generateWithFallback(ctx context.Context, spec GenerateSpec) (model.Plan, model.PlanSource) {
	system, user := buildPrompt(spec)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, err := s.generator.GenerateJSON(ctx, system, user)
		if err != nil {
			if errors.Is(err, llm.ErrNoCredentials) {
				// 認証情報がない環境ではネットワーク試行を繰り返さない
				s.logger.Info("テキスト生成プロバイダの認証情報がないためフォールバックプランを使用します")
				break
			}
			s.recordAttemptFailure(attempt, err)
			continue
		}

		plan, err := parseAndValidate(raw, spec)
		if err != nil {
			s.recordAttemptFailure(attempt, err)
			continue
		}

		return normalizePlan(plan, spec), model.PlanSourceAI
	}

	return buildFallbackPlan(spec), model.PlanSourceFallback
}

// recordAttemptFailure は失敗した試行をログとメトリクスに記録する。
func (s *Service) recordAttemptFailure(attempt int, err error) {
	if s.metrics != nil {
		s.metrics.RecordPlanAttemptFailure()
	}
	s.logger.Warn("プラン生成の試行に失敗しました",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", s.maxAttempts),
		slog.String("error", err.Error()),
	)
}

// UpdateProgress はプランナーの進捗率を検証して保存し、
// 登録済みの進捗マイルストーンフックを起動する。
// フックの失敗は進捗報告の呼び出し元には伝播しない。
func (s *Service) UpdateProgress(ctx context.Context, plannerID string, percent int) (*model.Planner, error) {
	if percent < 0 || percent > 100 {
		return nil, model.NewInvalidProgressError(percent)
	}

	planner, err := s.plannerRepo.FindByID(ctx, plannerID)
	if err != nil {
		return nil, fmt.Errorf("プランナーの取得に失敗しました: %w", err)
	}
	if planner == nil {
		return nil, model.NewPlannerNotFoundError(plannerID)
	}

	oldPercent := planner.ProgressPercent
	if err := s.plannerRepo.UpdateProgress(ctx, plannerID, percent); err != nil {
		return nil, err
	}
	planner.ProgressPercent = percent

	if s.observer != nil {
		s.observer.OnProgressUpdated(ctx, planner, oldPercent, percent)
	}

	return planner, nil
}

// GetLatest はユーザーの最新作成プランナーを返す。存在しない場合はnilを返す。
func (s *Service) GetLatest(ctx context.Context, userID string) (*model.Planner, error) {
	planner, err := s.plannerRepo.FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プランナーの取得に失敗しました: %w", err)
	}
	return planner, nil
}

// rawPlan / rawDay / rawTask はプロバイダ出力の寛容なパース用の型。
// durationMinutesとdayIndexは数値・数値文字列の両方を受け付ける。
type rawPlan struct {
	Summary string   `json:"summary"`
	Days    []rawDay `json:"days"`
}

type rawDay struct {
	Index flexInt   `json:"dayIndex"`
	Date  string    `json:"date"`
	Focus string    `json:"focus"`
	Tasks []rawTask `json:"tasks"`
}

type rawTask struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationMinutes flexInt  `json:"durationMinutes"`
	Resources       []string `json:"resources"`
}

// flexInt は数値または数値文字列を受け付けるint。
// 不正な値は0として扱い、後段の正規化でクランプ・再割り当てされる。
type flexInt int

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = flexInt(i)
			return nil
		}
		if fl, err := n.Float64(); err == nil {
			*f = flexInt(fl)
			return nil
		}
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		var n2 json.Number = json.Number(strings.TrimSpace(str))
		if i, err := n2.Int64(); err == nil {
			*f = flexInt(i)
			return nil
		}
		if fl, err := n2.Float64(); err == nil {
			*f = flexInt(fl)
			return nil
		}
	}
	*f = 0
	return nil
}

// parseAndValidate はプロバイダ出力をパースしスキーマ検証を行う。
// パース失敗・スキーマ違反は致命的エラーではなく、失敗した試行として扱われる。
func parseAndValidate(raw []byte, spec GenerateSpec) (rawPlan, error) {
	var plan rawPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return rawPlan{}, fmt.Errorf("プロバイダ出力のJSONパースに失敗しました: %w", err)
	}

	if len(plan.Days) == 0 {
		return rawPlan{}, fmt.Errorf("プロバイダ出力にdaysが含まれていません")
	}
	if len(plan.Days) != spec.DurationDays {
		return rawPlan{}, fmt.Errorf("日数が一致しません: got %d, want %d", len(plan.Days), spec.DurationDays)
	}

	usable := 0
	for i, day := range plan.Days {
		for _, task := range day.Tasks {
			if strings.TrimSpace(task.Title) == "" {
				return rawPlan{}, fmt.Errorf("day %d に空タイトルのタスクが含まれています", i)
			}
			usable++
		}
	}
	if usable == 0 {
		return rawPlan{}, fmt.Errorf("使用可能なタスクが1件もありません")
	}

	return plan, nil
}
