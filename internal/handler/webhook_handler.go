package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/coachman/internal/interview"
	"github.com/hitoshi/coachman/internal/telephony"
)

// WebhookProcessorInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookProcessorInterface interface {
	// OnCallback はテレフォニープロバイダからの完了コールバックを処理する。
	OnCallback(ctx context.Context, payload *telephony.CallbackPayload) (*interview.CallbackResult, error)
}

// webhookSecretHeader はプロバイダ側に設定する共有シークレットのヘッダー。
const webhookSecretHeader = "X-Webhook-Secret"

// WebhookHandler はテレフォニープロバイダからのWebhookを処理するHTTPハンドラー。
// ユーザー識別ミドルウェアの外に配置され、共有シークレットで認証する。
type WebhookHandler struct {
	processor WebhookProcessorInterface
	secret    string
	logger    *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(processor WebhookProcessorInterface, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		secret:    secret,
		logger:    logger,
	}
}

// HandleInterviewCallback は面接完了Webhookを処理する。
// POST /webhooks/interview
//
// 未知のcallIdや解析不能なペイロードは再送しても結果が変わらないため
// acknowledged=trueで受理する。一方、内部エラー（DB障害など）は一時的で
// あり得るため500を返し、プロバイダの再送に委ねる。処理は冪等なので
// 再送は安全に自己回復する。
func (h *WebhookHandler) HandleInterviewCallback(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(webhookSecretHeader)), []byte(h.secret)) != 1 {
		h.logger.Warn("Webhookシークレットが一致しません",
			slog.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload telephony.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("Webhookペイロードの解析に失敗しました",
			slog.String("error", err.Error()),
		)
		writeWebhookAck(w, false)
		return
	}

	result, err := h.processor.OnCallback(r.Context(), &payload)
	if err != nil {
		// 一時的な内部エラーは500でプロバイダの再送に委ねる（処理は冪等）
		h.logger.Error("Webhook処理に失敗しました",
			slog.String("call_id", payload.CallID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"acknowledged": true,
		"matched":      result.Matched,
	})
}

// writeWebhookAck は照合なしの受理レスポンスを書き込む。
func writeWebhookAck(w http.ResponseWriter, matched bool) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"acknowledged": true,
		"matched":      matched,
	})
}
