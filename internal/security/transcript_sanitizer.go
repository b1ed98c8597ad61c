// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TranscriptSanitizerService はテレフォニープロバイダから受信した
// トランスクリプト・評価フィードバックのテキストをサニタイズし、
// 外部入力経由のHTML/スクリプト混入からユーザーを保護する。
// bluemondayライブラリの厳格ポリシーで全タグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TranscriptSanitizerService はプロバイダ由来テキストのサニタイズ機能の
// インターフェースを定義する。Webhook処理での保存前に使用される。
type TranscriptSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// transcriptSanitizer はTranscriptSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type transcriptSanitizer struct {
	policy *bluemonday.Policy
}

// NewTranscriptSanitizer はTranscriptSanitizerServiceの新しいインスタンスを生成する。
// トランスクリプトは常にプレーンテキストとして扱うため、
// 許可タグなしのStrictPolicyを使用する。
func NewTranscriptSanitizer() *transcriptSanitizer {
	return &transcriptSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
// bluemondayはエスケープされたエンティティを残すため、アンエスケープして
// 表示用のプレーンテキストに戻す。
func (s *transcriptSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
