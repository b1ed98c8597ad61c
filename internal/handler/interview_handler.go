package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/coachman/internal/interview"
	"github.com/hitoshi/coachman/internal/middleware"
	"github.com/hitoshi/coachman/internal/model"
)

// InterviewServiceInterface は面接ハンドラーが必要とするサービスインターフェース。
type InterviewServiceInterface interface {
	// CheckEligibility は面接スケジューリングの適格性を判定する。
	CheckEligibility(ctx context.Context, userID, plannerID string) (*interview.EligibilityResult, error)
	// Schedule は面接をスケジュールする。不適格の場合は判定結果とエラーを返す。
	Schedule(ctx context.Context, userID, plannerID string, scheduledAt *time.Time) (*model.Interview, *interview.EligibilityResult, error)
	// Get は面接を取得する。
	Get(ctx context.Context, userID, interviewID string) (*model.Interview, error)
	// Start は面接セッションを開始する。
	Start(ctx context.Context, userID, interviewID, phoneNumber string) (*model.Interview, error)
	// Reschedule は面接の予定時刻を変更する。
	Reschedule(ctx context.Context, userID, interviewID string, newAt time.Time) (*model.Interview, error)
	// Cancel は面接をキャンセルする。
	Cancel(ctx context.Context, userID, interviewID string) error
}

// InterviewHandler は模擬面接管理のHTTPハンドラー。
type InterviewHandler struct {
	service InterviewServiceInterface
}

// NewInterviewHandler はInterviewHandlerを生成する。
func NewInterviewHandler(service InterviewServiceInterface) *InterviewHandler {
	return &InterviewHandler{service: service}
}

// scheduleInterviewRequest は面接スケジュールリクエストのボディ。
type scheduleInterviewRequest struct {
	PlannerID   string     `json:"plannerId"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// startInterviewRequest は面接開始リクエストのボディ。
type startInterviewRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// rescheduleInterviewRequest はリスケジュールリクエストのボディ。
type rescheduleInterviewRequest struct {
	ScheduledAt time.Time `json:"scheduledAt"`
}

// interviewResponse は面接のAPIレスポンス。
type interviewResponse struct {
	ID           string                `json:"id"`
	PlannerID    string                `json:"plannerId,omitempty"`
	ScheduledAt  time.Time             `json:"scheduledAt"`
	Status       string                `json:"status"`
	RecordingURL string                `json:"recordingUrl,omitempty"`
	Transcript   string                `json:"transcript,omitempty"`
	Score        *model.InterviewScore `json:"score,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// CheckEligibility は面接スケジューリングの適格性判定を処理する。
// GET /api/interviews/eligibility?plannerId=...
func (h *InterviewHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	plannerID := r.URL.Query().Get("plannerId")

	result, err := h.service.CheckEligibility(r.Context(), userID, plannerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// scheduleRejectedResponse は不適格によるスケジュール拒否のレスポンス。
// 適格性判定と同じペイロードを含み、フロントエンドが理由を表示できるようにする。
type scheduleRejectedResponse struct {
	apiErrorResponse
	Eligibility *interview.EligibilityResult `json:"eligibility"`
}

// Schedule は面接のスケジュールを処理する。
// POST /api/interviews
func (h *InterviewHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req scheduleInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	iv, eligibility, err := h.service.Schedule(r.Context(), userID, req.PlannerID, req.ScheduledAt)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNotEligible && eligibility != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(scheduleRejectedResponse{
				apiErrorResponse: apiErrorResponse{
					Code:     apiErr.Code,
					Message:  apiErr.Message,
					Category: apiErr.Category,
					Action:   apiErr.Action,
				},
				Eligibility: eligibility,
			})
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toInterviewResponse(iv))
}

// GetInterview は面接詳細を取得する。
// GET /api/interviews/:id
func (h *InterviewHandler) GetInterview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	iv, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toInterviewResponse(iv))
}

// Start は面接セッションの開始を処理する。
// POST /api/interviews/:id/start
func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req startInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	iv, err := h.service.Start(r.Context(), userID, chi.URLParam(r, "id"), req.PhoneNumber)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toInterviewResponse(iv))
}

// Reschedule は面接のリスケジュールを処理する。
// PUT /api/interviews/:id
func (h *InterviewHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req rescheduleInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	if req.ScheduledAt.IsZero() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidScheduleTimeError())
		return
	}

	iv, err := h.service.Reschedule(r.Context(), userID, chi.URLParam(r, "id"), req.ScheduledAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toInterviewResponse(iv))
}

// Cancel は面接のキャンセルを処理する。
// DELETE /api/interviews/:id
func (h *InterviewHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	if err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toInterviewResponse はmodel.InterviewからAPIレスポンスに変換する。
// ProviderCallIDは内部の相関IDであり、レスポンスには含めない。
func toInterviewResponse(iv *model.Interview) interviewResponse {
	return interviewResponse{
		ID:           iv.ID,
		PlannerID:    iv.PlannerID,
		ScheduledAt:  iv.ScheduledAt,
		Status:       string(iv.Status),
		RecordingURL: iv.RecordingURL,
		Transcript:   iv.Transcript,
		Score:        iv.Score,
		CreatedAt:    iv.CreatedAt,
		UpdatedAt:    iv.UpdatedAt,
	}
}
