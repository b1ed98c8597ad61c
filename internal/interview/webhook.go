package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/telephony"
)

// CallbackResult はWebhook処理の結果を表す。
// 相関IDが既知の面接と照合できたかどうかに関わらず、呼び出し元は常に受理応答を返す。
type CallbackResult struct {
	Matched     bool   `json:"matched"`
	InterviewID string `json:"interviewId,omitempty"`
	Completed   bool   `json:"completed,omitempty"`
}

// OnCallback はテレフォニープロバイダからの完了コールバックを処理する。
// callIdで面接を照合し、トランスクリプト・録音URL・構造化評価を保存する。
// 通話終了を示すペイロードの場合のみcompletedへ遷移する。
//
// 未知のcallIdは警告ログのみで正常受理する（Matched=false）。
// プロバイダはリトライ配送を行うため、処理は冪等である必要がある。
func (s *Service) OnCallback(ctx context.Context, payload *telephony.CallbackPayload) (*CallbackResult, error) {
	if payload.CallID == "" {
		s.logger.Warn("callIdのないWebhookペイロードを受信しました")
		if s.metrics != nil {
			s.metrics.RecordWebhookReceived(false)
		}
		return &CallbackResult{Matched: false}, nil
	}

	interview, err := s.interviewRepo.FindByProviderCallID(ctx, payload.CallID)
	if err != nil {
		return nil, fmt.Errorf("相関IDによる面接検索に失敗しました: %w", err)
	}
	if interview == nil {
		s.logger.Warn("未知のcallIdのWebhookを受信しました",
			slog.String("call_id", payload.CallID),
		)
		if s.metrics != nil {
			s.metrics.RecordWebhookReceived(false)
		}
		return &CallbackResult{Matched: false}, nil
	}

	if s.metrics != nil {
		s.metrics.RecordWebhookReceived(true)
	}

	// リトライ配送に対する冪等性: 完了済みレコードには再適用しない
	if interview.Status == model.InterviewStatusCompleted {
		s.logger.Info("完了済み面接へのWebhook再配送を無視します",
			slog.String("interview_id", interview.ID),
			slog.String("call_id", payload.CallID),
		)
		return &CallbackResult{
			Matched:     true,
			InterviewID: interview.ID,
			Completed:   true,
		}, nil
	}

	if payload.Transcript != "" {
		interview.Transcript = s.sanitizer.Sanitize(payload.Transcript)
	}
	if payload.RecordingURL != "" {
		interview.RecordingURL = payload.RecordingURL
	}
	if score := extractScore(payload.FunctionCalls, s.sanitizer); score != nil {
		interview.Score = score
	}

	completed := payload.CallEnded()
	if completed {
		interview.Status = model.InterviewStatusCompleted
	}
	interview.UpdatedAt = s.now()

	if err := s.interviewRepo.Update(ctx, interview); err != nil {
		return nil, fmt.Errorf("面接の更新に失敗しました: %w", err)
	}

	s.logger.Info("面接Webhookを処理しました",
		slog.String("interview_id", interview.ID),
		slog.String("call_id", payload.CallID),
		slog.Bool("completed", completed),
	)

	return &CallbackResult{
		Matched:     true,
		InterviewID: interview.ID,
		Completed:   completed,
	}, nil
}

// extractScore はプロバイダのfunction call列から構造化評価を取り出す。
// submit_evaluation呼び出しのparametersを評価ドキュメントとして解釈する。
// 解釈できないペイロードはnilを返し、評価なしとして扱う。
func extractScore(calls []map[string]any, sanitizer TranscriptSanitizer) *model.InterviewScore {
	for _, call := range calls {
		name, _ := call["name"].(string)
		if name != "submit_evaluation" {
			continue
		}
		params, ok := call["parameters"].(map[string]any)
		if !ok {
			continue
		}
		// map[string]anyから型付き構造体へJSON経由で詰め替える
		data, err := json.Marshal(params)
		if err != nil {
			continue
		}
		var score model.InterviewScore
		if err := json.Unmarshal(data, &score); err != nil {
			continue
		}
		score.Feedback = sanitizer.Sanitize(score.Feedback)
		for i, v := range score.Strengths {
			score.Strengths[i] = sanitizer.Sanitize(v)
		}
		for i, v := range score.Weaknesses {
			score.Weaknesses[i] = sanitizer.Sanitize(v)
		}
		return &score
	}
	return nil
}
