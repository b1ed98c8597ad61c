package model

import "time"

// Interview は模擬面接のレコードを表す。
// スケジューリング操作によって作成され、開始・Webhook処理によって更新される。
// キャンセル（pending中のみ）以外でハード削除されることはない。
type Interview struct {
	ID     string
	UserID string
	// PlannerID は面接の根拠となるプランナー。NULLの場合もある。
	PlannerID   string
	ScheduledAt time.Time
	Status      InterviewStatus
	// ProviderCallID はセッション開始時にテレフォニープロバイダから得る相関ID。
	// 非同期の完了コールバックとの照合に使用する。
	ProviderCallID string
	// RecordingURL は完了コールバックで通知される録音URL。
	// 相関IDとは別の独立したフィールドとして保持する。
	RecordingURL string
	Transcript   string
	Score        *InterviewScore
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InterviewStatus は面接レコードの状態を表す。
type InterviewStatus string

const (
	// InterviewStatusPending はスケジュール済み・未実施の状態。
	InterviewStatusPending InterviewStatus = "pending"
	// InterviewStatusInProgress はセッション開始済みの状態。
	InterviewStatusInProgress InterviewStatus = "in_progress"
	// InterviewStatusCompleted は完了コールバック受領済みの状態。
	InterviewStatusCompleted InterviewStatus = "completed"
)

// InterviewScore はプロバイダの構造化評価を表すネストドキュメント。
type InterviewScore struct {
	Overall        float64  `json:"overall"`
	Communication  float64  `json:"communication"`
	TechnicalDepth float64  `json:"technicalDepth"`
	Structure      float64  `json:"structure"`
	Strengths      []string `json:"strengths,omitempty"`
	Weaknesses     []string `json:"weaknesses,omitempty"`
	Feedback       string   `json:"feedback,omitempty"`
}

const (
	// EligibilityThreshold は面接スケジューリングを解放するプランナー進捗の閾値（%）。
	EligibilityThreshold = 80
	// MinScheduleLead は作成・リスケジュール時にscheduledAtに要求される最小リード時間。
	MinScheduleLead = 24 * time.Hour
	// DefaultScheduleLead はscheduledAt省略時に適用されるデフォルトのリード時間。
	DefaultScheduleLead = 72 * time.Hour
)
