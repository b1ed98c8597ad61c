// Package interview は模擬面接の適格性判定とライフサイクル管理を提供する。
// プランナー進捗の80%閾値によるゲート、スケジューリング、セッション開始、
// 非同期完了コールバックの処理を含む。
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/notify"
	"github.com/hitoshi/coachman/internal/repository"
	"github.com/hitoshi/coachman/internal/telephony"
)

// phoneNumberPattern は国番号付き電話番号（E.164）の簡易パターン。
var phoneNumberPattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// EligibilityResult は適格性判定の結果を表す。
type EligibilityResult struct {
	IsEligible        bool   `json:"isEligible"`
	CurrentProgress   int    `json:"currentProgress"`
	RequiredProgress  int    `json:"requiredProgress"`
	DaysUntilEligible *int   `json:"daysUntilEligible,omitempty"`
	Message           string `json:"message"`
}

// MetricsRecorder は面接ライフサイクルのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordInterviewScheduled(trigger string)
	RecordWebhookReceived(matched bool)
}

// Service は面接ライフサイクルのサービス層。
type Service struct {
	interviewRepo repository.InterviewRepository
	plannerRepo   repository.PlannerRepository
	profileRepo   repository.ProfileRepository
	caller        telephony.CallStarter
	sanitizer     TranscriptSanitizer
	notifier      notify.Notifier
	metrics       MetricsRecorder
	logger        *slog.Logger
	now           func() time.Time // テスト用に差し替え可能
}

// TranscriptSanitizer はプロバイダ由来テキストのサニタイズインターフェース。
// security.TranscriptSanitizerServiceの部分集合として定義する。
type TranscriptSanitizer interface {
	Sanitize(raw string) string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	interviewRepo repository.InterviewRepository,
	plannerRepo repository.PlannerRepository,
	profileRepo repository.ProfileRepository,
	caller telephony.CallStarter,
	sanitizer TranscriptSanitizer,
	notifier notify.Notifier,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		interviewRepo: interviewRepo,
		plannerRepo:   plannerRepo,
		profileRepo:   profileRepo,
		caller:        caller,
		sanitizer:     sanitizer,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// resolvePlanner は対象プランナーを解決する。
// plannerIDが指定されていればそのプランナー（所有者一致が必要）、
// 未指定の場合はユーザーの最新作成プランナーを返す。見つからない場合はnilを返す。
func (s *Service) resolvePlanner(ctx context.Context, userID, plannerID string) (*model.Planner, error) {
	if plannerID != "" {
		planner, err := s.plannerRepo.FindByID(ctx, plannerID)
		if err != nil {
			return nil, err
		}
		if planner == nil || planner.UserID != userID {
			return nil, nil
		}
		return planner, nil
	}
	return s.plannerRepo.FindLatestByUserID(ctx, userID)
}

// CheckEligibility は面接スケジューリングの適格性を判定する。
// pendingの面接が既に存在する場合は進捗に関わらず不適格となり、
// 「スケジュール済み」と「進捗不足」を区別したメッセージを返す。
func (s *Service) CheckEligibility(ctx context.Context, userID, plannerID string) (*EligibilityResult, error) {
	result, _, err := s.checkEligibility(ctx, userID, plannerID)
	return result, err
}

// checkEligibility は適格性判定の本体。解決済みプランナーも返し、
// Scheduleが同じプランナーを再解決せずに使えるようにする。
// 適格（IsEligible=true）の場合、プランナーは必ず非nil。
func (s *Service) checkEligibility(ctx context.Context, userID, plannerID string) (*EligibilityResult, *model.Planner, error) {
	planner, err := s.resolvePlanner(ctx, userID, plannerID)
	if err != nil {
		return nil, nil, fmt.Errorf("プランナーの解決に失敗しました: %w", err)
	}
	if planner == nil {
		return &EligibilityResult{
			IsEligible:       false,
			CurrentProgress:  0,
			RequiredProgress: model.EligibilityThreshold,
			Message:          "学習プランがまだ作成されていません。",
		}, nil, nil
	}

	result := &EligibilityResult{
		CurrentProgress:  planner.ProgressPercent,
		RequiredProgress: model.EligibilityThreshold,
	}

	pending, err := s.interviewRepo.FindPendingByUserAndPlanner(ctx, userID, planner.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("pending面接の検索に失敗しました: %w", err)
	}
	if pending != nil {
		result.IsEligible = false
		result.Message = "模擬面接は既にスケジュール済みです。"
		return result, planner, nil
	}

	if planner.ProgressPercent >= model.EligibilityThreshold {
		result.IsEligible = true
		result.Message = "模擬面接をスケジュールできます。"
		return result, planner, nil
	}

	result.IsEligible = false
	result.Message = fmt.Sprintf("進捗が不足しています（現在%d%%、必要%d%%）。",
		planner.ProgressPercent, model.EligibilityThreshold)
	if days := estimateDaysUntilEligible(planner, s.now()); days > 0 {
		result.DaysUntilEligible = &days
	}
	return result, planner, nil
}

// estimateDaysUntilEligible は開始日からの経過日数あたりの進捗率で
// 線形外挿し、閾値到達までの残り日数を見積もる。
// プラン序盤の不安定な推定を避けるため、経過日数は1日以上、
// 推定値は[1, 365]にクランプする。進捗0の場合は推定不能として0を返す。
func estimateDaysUntilEligible(planner *model.Planner, now time.Time) int {
	if planner.ProgressPercent <= 0 {
		return 0
	}
	elapsed := now.Sub(planner.StartDate).Hours() / 24
	if elapsed < 1 {
		elapsed = 1
	}
	rate := float64(planner.ProgressPercent) / elapsed
	remaining := float64(model.EligibilityThreshold - planner.ProgressPercent)
	days := int(math.Ceil(remaining / rate))
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	return days
}

// Schedule は適格性を再判定した上でpending状態の面接を作成する。
// 不適格の場合は判定結果と不適格エラーを返す（呼び出し元は同じ結果ペイロードで拒否応答する）。
// scheduledAt省略時は3日後を適用し、24時間以上先であることを強制する。
func (s *Service) Schedule(ctx context.Context, userID, plannerID string, scheduledAt *time.Time) (*model.Interview, *EligibilityResult, error) {
	result, planner, err := s.checkEligibility(ctx, userID, plannerID)
	if err != nil {
		return nil, nil, err
	}
	if !result.IsEligible {
		return nil, result, model.NewNotEligibleError(result.Message)
	}

	now := s.now()
	at := now.Add(model.DefaultScheduleLead)
	if scheduledAt != nil {
		at = *scheduledAt
	}
	if at.Before(now.Add(model.MinScheduleLead)) {
		return nil, nil, model.NewInvalidScheduleTimeError()
	}

	interview := &model.Interview{
		ID:          uuid.NewString(),
		UserID:      userID,
		PlannerID:   planner.ID,
		ScheduledAt: at,
		Status:      model.InterviewStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.interviewRepo.Create(ctx, interview); err != nil {
		return nil, nil, fmt.Errorf("面接の作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordInterviewScheduled("request")
	}

	s.logger.Info("模擬面接をスケジュールしました",
		slog.String("interview_id", interview.ID),
		slog.String("user_id", userID),
		slog.String("planner_id", planner.ID),
		slog.Time("scheduled_at", at),
	)

	return interview, nil, nil
}

// Get は指定IDの面接を取得する。所有者が一致しない場合はnot foundとして扱う。
func (s *Service) Get(ctx context.Context, userID, interviewID string) (*model.Interview, error) {
	interview, err := s.interviewRepo.FindByID(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("面接の取得に失敗しました: %w", err)
	}
	if interview == nil || interview.UserID != userID {
		return nil, model.NewInterviewNotFoundError(interviewID)
	}
	return interview, nil
}

// Start はpending状態の面接セッションをテレフォニープロバイダで開始する。
// プロバイダから得た相関IDを保存してin_progressへ遷移する。
// 面接自体の実施を待たず、即座に返る。
func (s *Service) Start(ctx context.Context, userID, interviewID, phoneNumber string) (*model.Interview, error) {
	if !phoneNumberPattern.MatchString(phoneNumber) {
		return nil, model.NewInvalidPhoneNumberError()
	}

	interview, err := s.Get(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if interview.Status != model.InterviewStatusPending {
		return nil, model.NewInterviewNotPendingError(interview.Status)
	}

	prompt := defaultAssistantPrompt
	if interview.PlannerID != "" {
		planner, err := s.plannerRepo.FindByID(ctx, interview.PlannerID)
		if err != nil {
			return nil, fmt.Errorf("プランナーの取得に失敗しました: %w", err)
		}
		if planner != nil {
			prompt = buildAssistantPrompt(planner)
		}
	}

	callID, err := s.caller.CreateCall(ctx, telephony.CallRequest{
		PhoneNumber:     phoneNumber,
		AssistantPrompt: prompt,
		Metadata: map[string]string{
			"interviewId": interview.ID,
			"userId":      interview.UserID,
		},
	})
	if err != nil {
		s.logger.Error("面接セッションの開始に失敗しました",
			slog.String("interview_id", interview.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewTelephonyFailedError(err.Error())
	}

	interview.ProviderCallID = callID
	interview.Status = model.InterviewStatusInProgress
	interview.UpdatedAt = s.now()

	if err := s.interviewRepo.Update(ctx, interview); err != nil {
		return nil, fmt.Errorf("面接の更新に失敗しました: %w", err)
	}

	s.logger.Info("面接セッションを開始しました",
		slog.String("interview_id", interview.ID),
		slog.String("provider_call_id", callID),
	)

	return interview, nil
}

// Reschedule は面接の予定時刻を変更する。
// 現在の予定時刻まで24時間を切っている場合は変更できない。
// 新しい予定時刻も24時間以上先である必要がある。
func (s *Service) Reschedule(ctx context.Context, userID, interviewID string, newAt time.Time) (*model.Interview, error) {
	interview, err := s.Get(ctx, userID, interviewID)
	if err != nil {
		return nil, err
	}
	if interview.Status != model.InterviewStatusPending {
		return nil, model.NewInterviewNotPendingError(interview.Status)
	}

	now := s.now()
	if !interview.ScheduledAt.After(now.Add(model.MinScheduleLead)) {
		return nil, model.NewRescheduleClosedError()
	}
	if newAt.Before(now.Add(model.MinScheduleLead)) {
		return nil, model.NewInvalidScheduleTimeError()
	}

	interview.ScheduledAt = newAt
	interview.UpdatedAt = now
	if err := s.interviewRepo.Update(ctx, interview); err != nil {
		return nil, fmt.Errorf("面接の更新に失敗しました: %w", err)
	}

	return interview, nil
}

// Cancel はpending状態の面接をキャンセル（ハード削除）する。
func (s *Service) Cancel(ctx context.Context, userID, interviewID string) error {
	interview, err := s.Get(ctx, userID, interviewID)
	if err != nil {
		return err
	}
	if interview.Status != model.InterviewStatusPending {
		return model.NewInterviewNotPendingError(interview.Status)
	}

	if err := s.interviewRepo.Delete(ctx, interview.ID); err != nil {
		return fmt.Errorf("面接の削除に失敗しました: %w", err)
	}

	s.logger.Info("模擬面接をキャンセルしました",
		slog.String("interview_id", interview.ID),
		slog.String("user_id", userID),
	)
	return nil
}

// OnProgressUpdated は進捗マイルストーンフック。
// 進捗が初めて80%閾値を越え、かつアクティブな面接（pending/in_progress）が
// 存在しない場合に限り、3日後の面接を自動スケジュールして通知する。
// リクエスト駆動でない唯一の暗黙的遷移であり、失敗はログのみで呼び出し元に伝播しない。
func (s *Service) OnProgressUpdated(ctx context.Context, planner *model.Planner, oldPercent, newPercent int) {
	if oldPercent >= model.EligibilityThreshold || newPercent < model.EligibilityThreshold {
		return
	}

	active, err := s.interviewRepo.FindActiveByUserAndPlanner(ctx, planner.UserID, planner.ID)
	if err != nil {
		s.logger.Error("マイルストーン判定中の面接検索に失敗しました",
			slog.String("planner_id", planner.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if active != nil {
		return
	}

	now := s.now()
	interview := &model.Interview{
		ID:          uuid.NewString(),
		UserID:      planner.UserID,
		PlannerID:   planner.ID,
		ScheduledAt: now.Add(model.DefaultScheduleLead),
		Status:      model.InterviewStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.interviewRepo.Create(ctx, interview); err != nil {
		s.logger.Error("マイルストーン面接の自動作成に失敗しました",
			slog.String("planner_id", planner.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordInterviewScheduled("milestone")
	}

	s.logger.Info("進捗80%到達により模擬面接を自動スケジュールしました",
		slog.String("interview_id", interview.ID),
		slog.String("planner_id", planner.ID),
		slog.Int("progress", newPercent),
	)

	s.notifyScheduled(ctx, planner.UserID, interview)
}

// notifyScheduled は面接スケジュール通知を送信する。失敗はログのみ。
func (s *Service) notifyScheduled(ctx context.Context, userID string, interview *model.Interview) {
	if s.notifier == nil || s.profileRepo == nil {
		return
	}
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil || profile == nil {
		s.logger.Warn("面接通知用プロフィールの取得に失敗しました",
			slog.String("user_id", userID),
		)
		return
	}
	if err := s.notifier.SendInterviewScheduled(ctx, profile, interview); err != nil {
		s.logger.Error("面接スケジュール通知の送信に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// defaultAssistantPrompt はプランナーが紐づかない面接のセッション設定。
const defaultAssistantPrompt = `You are a professional mock interviewer.
Conduct a structured behavioral interview in a supportive but realistic tone.
Ask one question at a time and follow up on vague answers.`

// buildAssistantPrompt はプランナーの目標ロールと修了済みモジュールから
// セッション設定を構築する。修了済みモジュールは進捗率から日単位で近似する。
func buildAssistantPrompt(planner *model.Planner) string {
	completedDays := planner.DurationDays * planner.ProgressPercent / 100
	if completedDays > len(planner.Plan.Days) {
		completedDays = len(planner.Plan.Days)
	}

	prompt := fmt.Sprintf(`You are a professional mock interviewer for a %s position.
Conduct a structured interview covering both behavioral and role-specific questions.
Ask one question at a time and follow up on vague answers.`, planner.TargetRole)

	var topics []string
	for _, day := range planner.Plan.Days[:completedDays] {
		if day.Focus != "" {
			topics = append(topics, day.Focus)
		}
	}
	if len(topics) > 0 {
		prompt += "\nThe candidate has recently completed study modules on: "
		for i, t := range topics {
			if i > 0 {
				prompt += ", "
			}
			prompt += t
		}
		prompt += ". Probe their understanding of these topics."
	}

	return prompt
}
