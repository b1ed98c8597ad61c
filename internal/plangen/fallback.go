package plangen

import (
	"fmt"
	"time"

	"github.com/hitoshi/coachman/internal/model"
)

// buildFallbackPlan は決定的フォールバックプランを構築する。
// プロバイダが利用できない場合でも呼び出し元に対して操作が失敗しないよう、
// 全日に固定3タスク（リサーチ・ハンズオン・振り返り）のテンプレートを適用する。
func buildFallbackPlan(spec GenerateSpec) model.Plan {
	days := make([]model.Day, spec.DurationDays)
	for i := range days {
		days[i] = model.Day{
			Index: i,
			Date:  spec.StartDate.AddDate(0, 0, i).Format("2006-01-02"),
			Focus: fmt.Sprintf("%s 基礎学習 %d日目", spec.Role, i+1),
			Tasks: fallbackTasksForDay(spec.Role, i),
		}
	}
	return model.Plan{
		Summary: fmt.Sprintf("%s を目指す%d日間の標準学習プラン", spec.Role, spec.DurationDays),
		Days:    days,
	}
}

// fallbackTasksForDay は1日分の固定タスクテンプレートを返す。
// 正規化で全タスクが落ちた日の補填にも使用される。
func fallbackTasksForDay(role string, dayIndex int) []model.Task {
	return []model.Task{
		{
			Title:           fmt.Sprintf("%s に関するトピックのリサーチ（%d日目）", role, dayIndex+1),
			Description:     "目標ロールに必要なスキル・ツール・業界動向を調査し、要点をノートにまとめる。",
			DurationMinutes: 60,
			Status:          model.TaskStatusPending,
		},
		{
			Title:           "ハンズオン演習",
			Description:     "調査したトピックに関する実践的な演習・チュートリアルに取り組む。",
			DurationMinutes: 90,
			Status:          model.TaskStatusPending,
		},
		{
			Title:           "学習内容の振り返り",
			Description:     "今日学んだことを振り返り、理解が浅い箇所を翌日の課題として記録する。",
			DurationMinutes: 30,
			Status:          model.TaskStatusPending,
		},
	}
}

// fallbackDayDate はフォールバック・正規化で共用する日付計算。
func fallbackDayDate(start time.Time, index int) string {
	return start.AddDate(0, 0, index).Format("2006-01-02")
}
