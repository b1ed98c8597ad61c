// Package notify はデイリータスクメール・面接通知の配信機能を提供する。
// PDFレンダリングや本文整形の詳細は外部コラボレータとして扱い、
// このパッケージは配信の窓口のみを担う。
package notify

import (
	"context"

	"github.com/hitoshi/coachman/internal/model"
)

// Notifier は通知配信のインターフェース。
// デイリー配信スケジューラと面接ライフサイクルから利用する。
type Notifier interface {
	// SendDailyTasks は当日分のタスクをユーザーに配信する。
	// プロフィールの配信許諾（NotifyOptIn）の尊重は実装側の責務。
	SendDailyTasks(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error

	// SendInterviewScheduled は面接が（自動）スケジュールされたことを通知する。
	SendInterviewScheduled(ctx context.Context, profile *model.Profile, interview *model.Interview) error
}
