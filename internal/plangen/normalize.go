package plangen

import (
	"net/url"
	"strings"

	"github.com/hitoshi/coachman/internal/model"
)

const (
	// minTaskMinutes / maxTaskMinutes はタスク時間のクランプ範囲。
	minTaskMinutes = 15
	maxTaskMinutes = 480
	// maxResources はタスクあたりの参考リンク上限。
	maxResources = 3
)

// normalizePlan はプロバイダ出力のプランを正規化する。
//   - タスク時間を[15, 480]にクランプする
//   - 不正な参考リンクを除去し、最大3件に制限する
//   - 空タイトルのタスクを除去する
//   - dayIndexを順序どおりに再割り当てし、日付を開始日から補完する
//   - タスクが全て落ちた日はフォールバックテンプレートで補填する
func normalizePlan(raw rawPlan, spec GenerateSpec) model.Plan {
	days := make([]model.Day, 0, len(raw.Days))

	for i, rd := range raw.Days {
		day := model.Day{
			Index: i,
			Date:  rd.Date,
			Focus: strings.TrimSpace(rd.Focus),
		}
		if !isValidDate(day.Date) {
			day.Date = fallbackDayDate(spec.StartDate, i)
		}

		for _, rt := range rd.Tasks {
			title := strings.TrimSpace(rt.Title)
			if title == "" {
				continue
			}
			day.Tasks = append(day.Tasks, model.Task{
				Title:           title,
				Description:     strings.TrimSpace(rt.Description),
				DurationMinutes: clampDuration(int(rt.DurationMinutes)),
				Resources:       filterResources(rt.Resources),
				Status:          model.TaskStatusPending,
			})
		}

		// 全タスクが落ちた日にはテンプレートを補填し、全日≥1タスクを保証する
		if len(day.Tasks) == 0 {
			day.Tasks = fallbackTasksForDay(spec.Role, i)
		}

		days = append(days, day)
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		summary = spec.Role + " を目指す学習プラン"
	}

	return model.Plan{Summary: summary, Days: days}
}

// clampDuration はタスク時間を[15, 480]分にクランプする。
// 0以下（欠損・型不正を含む）はデフォルトの60分にする。
func clampDuration(minutes int) int {
	if minutes <= 0 {
		return 60
	}
	if minutes < minTaskMinutes {
		return minTaskMinutes
	}
	if minutes > maxTaskMinutes {
		return maxTaskMinutes
	}
	return minutes
}

// filterResources は整形式のhttp(s) URLのみを残し、最大3件に制限する。
func filterResources(resources []string) []string {
	var out []string
	for _, r := range resources {
		if len(out) >= maxResources {
			break
		}
		if isValidResourceURL(r) {
			out = append(out, strings.TrimSpace(r))
		}
	}
	return out
}

// isValidResourceURL は参考リンクとして許容されるURLかを検証する。
func isValidResourceURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// isValidDate は日付文字列がYYYY-MM-DD形式かを緩く検証する。
func isValidDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	return s[4] == '-' && s[7] == '-'
}
