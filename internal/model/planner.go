package model

import "time"

// Planner は1ユーザー・1目標ロールに紐づく複数日の学習プランを表す。
// プラン本体（Plan）はJSONBドキュメントとして永続化される。
type Planner struct {
	ID           string
	UserID       string
	TargetRole   string
	StartDate    time.Time
	DurationDays int
	// EndDate は StartDate + DurationDays - 1 日。
	EndDate time.Time
	// ProgressPercent は外部の進捗報告によって設定される（0-100）。
	// 内部では計算しない。
	ProgressPercent int
	// Source はプランの生成元を表す（AI生成かフォールバックか）。
	Source    PlanSource
	Plan      Plan
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanSource はプランの生成元を表す。
type PlanSource string

const (
	// PlanSourceAI はテキスト生成プロバイダによって生成されたプラン。
	PlanSourceAI PlanSource = "ai"
	// PlanSourceFallback は決定的フォールバックテンプレートによるプラン。
	PlanSourceFallback PlanSource = "fallback"
)

// Plan は日次エントリの順序付き列を持つプランドキュメント。
type Plan struct {
	Summary string `json:"summary"`
	Days    []Day  `json:"days"`
}

// Day はプラン内の1日分のエントリを表す。スタンドアロンのレコードではない。
type Day struct {
	// Index は0始まりの日インデックス。
	Index int    `json:"dayIndex"`
	Date  string `json:"date"` // ISO日付文字列（YYYY-MM-DD）
	Focus string `json:"focus,omitempty"`
	Tasks []Task `json:"tasks"`
}

// Task はDay内の学習タスクの最小単位を表す。
type Task struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"durationMinutes"`
	// Resources は0〜3件の参考リンク（整形式URLのみ）。
	Resources []string `json:"resources,omitempty"`
	// Status は生成エンジンでは情報提供のみ。完了セマンティクスは利用側が持つ。
	Status TaskStatus `json:"status"`
}

// TaskStatus はタスクの状態タグを表す。
type TaskStatus string

const (
	// TaskStatusPending は未着手のタスク。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusCompleted は完了済みのタスク。
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskCount はプラン全体のタスク総数を返す。
func (p *Plan) TaskCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Tasks)
	}
	return n
}

// IsActiveAt はnowがプラン期間内（StartDate <= now <= EndDate）かを返す。
func (pl *Planner) IsActiveAt(now time.Time) bool {
	start := pl.StartDate.Truncate(24 * time.Hour)
	// EndDateはその日の終わりまで有効
	end := pl.EndDate.Add(24*time.Hour - time.Nanosecond)
	return !now.Before(start) && !now.After(end)
}
