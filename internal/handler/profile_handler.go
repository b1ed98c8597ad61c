package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/coachman/internal/middleware"
	"github.com/hitoshi/coachman/internal/model"
)

// ProfileStoreInterface はプロフィールハンドラーが必要とする永続化インターフェース。
// repository.ProfileRepositoryがそのまま満たす。
type ProfileStoreInterface interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Upsert(ctx context.Context, profile *model.Profile) error
}

// ProfileHandler はキャリアプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	store ProfileStoreInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(store ProfileStoreInterface) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// upsertProfileRequest はプロフィール登録・更新リクエストのボディ。
type upsertProfileRequest struct {
	Email       string `json:"email"`
	DesiredRole string `json:"desiredRole"`
	WeeklyHours int    `json:"weeklyHours"`
	// Timezone はIANAタイムゾーン文字列。空の場合はデイリー配信の対象外。
	Timezone    string `json:"timezone"`
	Preferences struct {
		Format        string `json:"format"`
		LearningStyle string `json:"learningStyle"`
		NotifyOptIn   bool   `json:"notifyOptIn"`
	} `json:"preferences"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DesiredRole string `json:"desiredRole"`
	WeeklyHours int    `json:"weeklyHours"`
	Timezone    string `json:"timezone,omitempty"`
	Preferences struct {
		Format        string `json:"format"`
		LearningStyle string `json:"learningStyle"`
		NotifyOptIn   bool   `json:"notifyOptIn"`
	} `json:"preferences"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetProfile は認証ユーザーのプロフィールを取得する。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	profile, err := h.store.FindByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProfileNotFoundError(userID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// UpsertProfile は認証ユーザーのプロフィールを登録・更新する。
// PUT /api/profile
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestResponse(w)
		return
	}

	// タイムゾーンはIANA名として解決できる場合のみ受け付ける
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_TIMEZONE",
				Message:  "タイムゾーンが不正です。",
				Category: "validation",
				Action:   "IANA形式のタイムゾーン名（例: Asia/Tokyo）を指定してください。",
			})
			return
		}
	}

	now := time.Now()
	profile := &model.Profile{
		UserID:      userID,
		Email:       req.Email,
		DesiredRole: req.DesiredRole,
		WeeklyHours: req.WeeklyHours,
		Timezone:    req.Timezone,
		Preferences: model.Preferences{
			Format:        req.Preferences.Format,
			LearningStyle: req.Preferences.LearningStyle,
			NotifyOptIn:   req.Preferences.NotifyOptIn,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 既存プロフィールがあればIDと作成日時を引き継ぐ
	existing, err := h.store.FindByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if existing != nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.ID = uuid.NewString()
	}

	if err := h.store.Upsert(r.Context(), profile); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(profile *model.Profile) profileResponse {
	resp := profileResponse{
		ID:          profile.ID,
		UserID:      profile.UserID,
		Email:       profile.Email,
		DesiredRole: profile.DesiredRole,
		WeeklyHours: profile.WeeklyHours,
		Timezone:    profile.Timezone,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   profile.UpdatedAt,
	}
	resp.Preferences.Format = profile.Preferences.Format
	resp.Preferences.LearningStyle = profile.Preferences.LearningStyle
	resp.Preferences.NotifyOptIn = profile.Preferences.NotifyOptIn
	return resp
}
