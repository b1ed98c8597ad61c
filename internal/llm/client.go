// Package llm はテキスト生成プロバイダ（OpenAI互換API）のクライアントを提供する。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrNoCredentials はAPIキーが設定されていない場合に返されるセンチネルエラー。
// 呼び出し側はネットワーク試行なしでフォールバックに切り替えられる。
var ErrNoCredentials = errors.New("llm: APIキーが設定されていません")

// Generator はJSON出力のテキスト生成インターフェース。
// プラン生成エンジンから利用する。
type Generator interface {
	// GenerateJSON はsystem/userプロンプトからJSONオブジェクトの生成を要求する。
	// レスポンス本文（モデル出力のテキスト）をそのまま返す。JSONとしての
	// 妥当性検証は呼び出し側が行う。
	GenerateJSON(ctx context.Context, system, user string) ([]byte, error)
}

// Config はClientの接続設定を保持する。
type Config struct {
	APIKey  string
	BaseURL string // 例: "https://api.openai.com"。テスト用に差し替え可能
	Model   string
}

// Client はOpenAI互換のchat completionsエンドポイントを呼び出すクライアント。
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

// chatRequest はchat completions APIのリクエストボディ。
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse はchat completions APIのレスポンスボディ（必要なフィールドのみ）。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateJSON はプロンプトを送信し、モデル出力のテキストを返す。
// APIキー未設定の場合はErrNoCredentialsを即座に返す。
func (c *Client) GenerateJSON(ctx context.Context, system, user string) ([]byte, error) {
	if c.config.APIKey == "" {
		return nil, ErrNoCredentials
	}

	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("テキスト生成APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("model", c.config.Model),
		)
		return nil, fmt.Errorf("テキスト生成APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("テキスト生成APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.config.Model),
		)
		return nil, fmt.Errorf("テキスト生成APIがステータス %d を返しました", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("テキスト生成APIのレスポンスにchoicesが含まれていません")
	}

	return []byte(chatResp.Choices[0].Message.Content), nil
}

// compile-time interface check
var _ Generator = (*Client)(nil)
