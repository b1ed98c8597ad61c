// Package telephony は音声面接プロバイダのクライアントを提供する。
// セッション（アウトバウンドコール）の作成と、完了Webhookペイロードの型を含む。
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// CallStarter は面接セッション開始のインターフェース。
// 面接ライフサイクルサービスから利用する。
type CallStarter interface {
	// CreateCall はアウトバウンドコールを作成し、プロバイダ発行のコールIDを返す。
	// このIDは完了コールバックとの照合に使用される相関IDとなる。
	CreateCall(ctx context.Context, req CallRequest) (string, error)
}

// CallRequest はセッション作成リクエストを表す。
type CallRequest struct {
	PhoneNumber     string
	AssistantPrompt string
	Metadata        map[string]string
}

// CallbackPayload はプロバイダからの完了Webhookのペイロード。
// callIdをキーに保存済みの相関IDと照合される。
type CallbackPayload struct {
	CallID        string           `json:"callId"`
	Transcript    string           `json:"transcript"`
	FunctionCalls []map[string]any `json:"functionCalls,omitempty"`
	RecordingURL  string           `json:"recordingUrl"`
	Status        string           `json:"status"`
	EndedReason   string           `json:"endedReason"`
	Duration      float64          `json:"duration"`
	Cost          float64          `json:"cost"`
}

// CallEnded はペイロードが通話終了を示しているかを返す。
// 終了を示す場合のみ面接はcompletedに遷移する。
func (p *CallbackPayload) CallEnded() bool {
	return p.Status == "ended" || p.EndedReason != ""
}

// Config はClientの接続設定を保持する。
type Config struct {
	APIKey        string
	BaseURL       string // 例: "https://api.vapi.ai"。テスト用に差し替え可能
	PhoneNumberID string
}

// Client はテレフォニープロバイダのREST APIクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// createCallRequest はコール作成APIのリクエストボディ。
type createCallRequest struct {
	PhoneNumberID string            `json:"phoneNumberId"`
	Customer      callCustomer      `json:"customer"`
	Assistant     callAssistant     `json:"assistant"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type callCustomer struct {
	Number string `json:"number"`
}

type callAssistant struct {
	FirstMessage string `json:"firstMessage"`
	Instructions string `json:"instructions"`
}

// createCallResponse はコール作成APIのレスポンスボディ（必要なフィールドのみ）。
type createCallResponse struct {
	ID string `json:"id"`
}

// CreateCall はアウトバウンドコールを作成し、プロバイダ発行のコールIDを返す。
// 失敗時は自動リトライせずエラーを返す（呼び出し側が5xx相当として扱う）。
func (c *Client) CreateCall(ctx context.Context, req CallRequest) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("テレフォニープロバイダのAPIキーが設定されていません")
	}

	reqBody := createCallRequest{
		PhoneNumberID: c.config.PhoneNumberID,
		Customer:      callCustomer{Number: req.PhoneNumber},
		Assistant: callAssistant{
			FirstMessage: "こんにちは。本日は模擬面接にご参加いただきありがとうございます。",
			Instructions: req.AssistantPrompt,
		},
		Metadata: req.Metadata,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("テレフォニーAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("テレフォニーAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("テレフォニーAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("テレフォニーAPIがステータス %d を返しました", resp.StatusCode)
	}

	var callResp createCallResponse
	if err := json.Unmarshal(body, &callResp); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if callResp.ID == "" {
		return "", fmt.Errorf("テレフォニーAPIのレスポンスにコールIDが含まれていません")
	}

	return callResp.ID, nil
}

// compile-time interface check
var _ CallStarter = (*Client)(nil)
