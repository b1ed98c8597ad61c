// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/coachman/internal/middleware"
	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/plangen"
)

// PlanServiceInterface はプランハンドラーが必要とするサービスインターフェース。
type PlanServiceInterface interface {
	// GeneratePlan は学習プランを生成して永続化する。
	GeneratePlan(ctx context.Context, spec plangen.GenerateSpec) (*model.Planner, error)
	// UpdateProgress はプランナーの進捗率を更新する。
	UpdateProgress(ctx context.Context, plannerID string, percent int) (*model.Planner, error)
	// GetLatest はユーザーの最新プランナーを取得する。
	GetLatest(ctx context.Context, userID string) (*model.Planner, error)
}

// PlanHandler は学習プラン管理のHTTPハンドラー。
type PlanHandler struct {
	service PlanServiceInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service PlanServiceInterface) *PlanHandler {
	return &PlanHandler{service: service}
}

// generatePlanRequest はプラン生成リクエストのボディ。
type generatePlanRequest struct {
	TargetRole        string   `json:"targetRole"`
	DurationDays      int      `json:"durationDays"`
	StartDate         string   `json:"startDate"` // YYYY-MM-DD
	DailyHours        float64  `json:"dailyHours"`
	WeeklyHours       int      `json:"weeklyHours"`
	ExperienceSummary string   `json:"experienceSummary"`
	FocusAreas        []string `json:"focusAreas"`
	AdditionalContext string   `json:"additionalContext"`
	MissingCoreSkills []string `json:"missingCoreSkills"`
	PriorityGaps      []string `json:"priorityGaps"`
}

// updateProgressRequest は進捗更新リクエストのボディ。
type updateProgressRequest struct {
	ProgressPercent int `json:"progressPercent"`
}

// plannerResponse はプランナーのAPIレスポンス。
// ネストされたプラン本体に加えて、クライアントが一覧表示に使う
// フラット化タスクリストを含む。
type plannerResponse struct {
	ID              string         `json:"id"`
	TargetRole      string         `json:"targetRole"`
	StartDate       string         `json:"startDate"`
	EndDate         string         `json:"endDate"`
	DurationDays    int            `json:"durationDays"`
	ProgressPercent int            `json:"progressPercent"`
	Source          string         `json:"source"`
	Plan            model.Plan     `json:"plan"`
	Tasks           []taskListItem `json:"tasks"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// taskListItem はフラット化タスクリストの1要素。所属する日の情報を併せ持つ。
type taskListItem struct {
	DayIndex        int      `json:"dayIndex"`
	Date            string   `json:"date"`
	Focus           string   `json:"focus,omitempty"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"durationMinutes"`
	Resources       []string `json:"resources,omitempty"`
	Status          string   `json:"status"`
}

// GeneratePlan は学習プラン生成を処理する。
// POST /api/plans
func (h *PlanHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	spec := plangen.GenerateSpec{
		UserID:            userID,
		Role:              req.TargetRole,
		DurationDays:      req.DurationDays,
		DailyHours:        req.DailyHours,
		WeeklyHours:       req.WeeklyHours,
		ExperienceSummary: req.ExperienceSummary,
		FocusAreas:        req.FocusAreas,
		AdditionalContext: req.AdditionalContext,
	}

	if req.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidStartDateError(req.StartDate))
			return
		}
		spec.StartDate = startDate
	}

	if len(req.MissingCoreSkills) > 0 || len(req.PriorityGaps) > 0 {
		spec.SkillGap = &plangen.SkillGap{
			MissingCoreSkills: req.MissingCoreSkills,
			PriorityGaps:      req.PriorityGaps,
		}
	}

	planner, err := h.service.GeneratePlan(r.Context(), spec)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPlannerResponse(planner))
}

// UpdateProgress はプランナーの進捗更新を処理する。
// PUT /api/plans/:id/progress
func (h *PlanHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	plannerID := chi.URLParam(r, "id")

	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	planner, err := h.service.UpdateProgress(r.Context(), plannerID, req.ProgressPercent)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPlannerResponse(planner))
}

// GetLatestPlan はユーザーの最新プランを取得する。
// GET /api/plans/latest
func (h *PlanHandler) GetLatestPlan(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	planner, err := h.service.GetLatest(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if planner == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPlannerNotFoundError("latest"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPlannerResponse(planner))
}

// --- ヘルパー関数 ---

// toPlannerResponse はmodel.PlannerからAPIレスポンスに変換する。
func toPlannerResponse(planner *model.Planner) plannerResponse {
	return plannerResponse{
		ID:              planner.ID,
		TargetRole:      planner.TargetRole,
		StartDate:       planner.StartDate.Format("2006-01-02"),
		EndDate:         planner.EndDate.Format("2006-01-02"),
		DurationDays:    planner.DurationDays,
		ProgressPercent: planner.ProgressPercent,
		Source:          string(planner.Source),
		Plan:            planner.Plan,
		Tasks:           flattenTasks(&planner.Plan),
		CreatedAt:       planner.CreatedAt,
		UpdatedAt:       planner.UpdatedAt,
	}
}

// flattenTasks はネストされた日次プランを日順・タスク順のフラットリストに展開する。
func flattenTasks(plan *model.Plan) []taskListItem {
	items := make([]taskListItem, 0, plan.TaskCount())
	for _, day := range plan.Days {
		for _, task := range day.Tasks {
			items = append(items, taskListItem{
				DayIndex:        day.Index,
				Date:            day.Date,
				Focus:           day.Focus,
				Title:           task.Title,
				Description:     task.Description,
				DurationMinutes: task.DurationMinutes,
				Resources:       task.Resources,
				Status:          string(task.Status),
			})
		}
	}
	return items
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
// 拒否レスポンスへの埋め込み用（書き込み自体はmiddleware.WriteErrorResponseに委譲）。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeUnauthorizedResponse は401レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "ユーザー識別情報がありません。",
		Category: "auth",
		Action:   "X-User-IDヘッダーを設定してください。",
	})
}

// writeInvalidRequestResponse はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRole,
		model.ErrCodeInvalidDuration,
		model.ErrCodeInvalidStartDate,
		model.ErrCodeInvalidProgress,
		model.ErrCodeInvalidPhoneNumber,
		model.ErrCodeInvalidScheduleTime:
		return http.StatusBadRequest
	case model.ErrCodePlannerNotFound,
		model.ErrCodeInterviewNotFound,
		model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotEligible:
		return http.StatusForbidden
	case model.ErrCodeInterviewNotPending,
		model.ErrCodeRescheduleClosed:
		return http.StatusConflict
	case model.ErrCodeTelephonyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
