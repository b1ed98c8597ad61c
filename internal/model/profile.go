// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はユーザーのキャリアプロフィールを表す。
// ユーザーごとに1件作成され、オンボーディング時に作成・随時更新される。
type Profile struct {
	ID          string
	UserID      string
	Email       string
	DesiredRole string
	WeeklyHours int
	// Timezone はIANAタイムゾーン文字列（例: "Asia/Tokyo"）。
	// 未設定の場合はデイリー配信の対象外となる。
	Timezone    string
	Preferences Preferences
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Preferences は学習・通知に関するユーザー設定を表す。
type Preferences struct {
	Format        string // 学習フォーマット（video, text, mixed など）
	LearningStyle string // 学習スタイル（hands-on, theory-first など）
	NotifyOptIn   bool   // デイリータスクメール配信の許諾
}
