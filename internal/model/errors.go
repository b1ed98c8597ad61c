package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, plan, interview, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeInvalidDuration     = "INVALID_DURATION"
	ErrCodeInvalidStartDate    = "INVALID_START_DATE"
	ErrCodeInvalidProgress     = "INVALID_PROGRESS"
	ErrCodeInvalidPhoneNumber  = "INVALID_PHONE_NUMBER"
	ErrCodeInvalidScheduleTime = "INVALID_SCHEDULE_TIME"
	ErrCodePlannerNotFound     = "PLANNER_NOT_FOUND"
	ErrCodeInterviewNotFound   = "INTERVIEW_NOT_FOUND"
	ErrCodeInterviewNotPending = "INTERVIEW_NOT_PENDING"
	ErrCodeNotEligible         = "NOT_ELIGIBLE"
	ErrCodeRescheduleClosed    = "RESCHEDULE_WINDOW_CLOSED"
	ErrCodeTelephonyFailed     = "TELEPHONY_FAILED"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
)

// NewInvalidRoleError は目標ロールが無効な場合のエラーを生成する。
func NewInvalidRoleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  "目標ロールが指定されていません。",
		Category: "validation",
		Action:   "目指す職種名（例: データアナリスト）を入力してください。",
	}
}

// NewInvalidDurationError はプラン日数が範囲外の場合のエラーを生成する。
func NewInvalidDurationError(days int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuration,
		Message:  fmt.Sprintf("無効なプラン日数です: %d日", days),
		Category: "validation",
		Action:   "プラン日数は1日から56日の範囲で指定してください。",
	}
}

// NewInvalidStartDateError は開始日が解析できない場合のエラーを生成する。
func NewInvalidStartDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStartDate,
		Message:  fmt.Sprintf("開始日を解析できませんでした: %s", value),
		Category: "validation",
		Action:   "開始日はYYYY-MM-DD形式で指定してください。",
	}
}

// NewInvalidProgressError は進捗率が範囲外の場合のエラーを生成する。
func NewInvalidProgressError(percent int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProgress,
		Message:  fmt.Sprintf("無効な進捗率です: %d", percent),
		Category: "validation",
		Action:   "進捗率は0から100の範囲で指定してください。",
	}
}

// NewInvalidPhoneNumberError は電話番号が無効な場合のエラーを生成する。
func NewInvalidPhoneNumberError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhoneNumber,
		Message:  "電話番号の形式が正しくありません。",
		Category: "validation",
		Action:   "国番号付きの電話番号（例: +819012345678）を入力してください。",
	}
}

// NewInvalidScheduleTimeError は面接予定時刻が24時間以内の場合のエラーを生成する。
func NewInvalidScheduleTimeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScheduleTime,
		Message:  "面接の予定時刻は現在から24時間以上先である必要があります。",
		Category: "validation",
		Action:   "24時間以上先の日時を指定してください。",
	}
}

// NewPlannerNotFoundError はプランナーが見つからない場合のエラーを生成する。
func NewPlannerNotFoundError(plannerID string) *APIError {
	return &APIError{
		Code:     ErrCodePlannerNotFound,
		Message:  fmt.Sprintf("指定されたプランナーが見つかりません: %s", plannerID),
		Category: "plan",
		Action:   "プランナーIDを確認するか、先に学習プランを生成してください。",
	}
}

// NewInterviewNotFoundError は面接レコードが見つからない場合のエラーを生成する。
func NewInterviewNotFoundError(interviewID string) *APIError {
	return &APIError{
		Code:     ErrCodeInterviewNotFound,
		Message:  fmt.Sprintf("指定された面接が見つかりません: %s", interviewID),
		Category: "interview",
		Action:   "面接IDを確認してください。",
	}
}

// NewInterviewNotPendingError は面接がpending状態でない場合のエラーを生成する。
func NewInterviewNotPendingError(status InterviewStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInterviewNotPending,
		Message:  fmt.Sprintf("この操作はpending状態の面接にのみ実行できます（現在: %s）。", status),
		Category: "interview",
		Action:   "面接の状態を確認してください。",
	}
}

// NewNotEligibleError は面接スケジューリングの要件を満たしていない場合のエラーを生成する。
func NewNotEligibleError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNotEligible,
		Message:  message,
		Category: "interview",
		Action:   "学習プランの進捗を80%以上にしてから再度お試しください。",
	}
}

// NewRescheduleClosedError はリスケジュール可能期間を過ぎている場合のエラーを生成する。
func NewRescheduleClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeRescheduleClosed,
		Message:  "面接予定時刻まで24時間を切っているため、リスケジュールできません。",
		Category: "interview",
		Action:   "予定時刻の24時間前までにリスケジュールしてください。",
	}
}

// NewTelephonyFailedError はテレフォニープロバイダ呼び出しに失敗した場合のエラーを生成する。
func NewTelephonyFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTelephonyFailed,
		Message:  fmt.Sprintf("面接セッションの開始に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定されたユーザーのプロフィールが見つかりません: %s", userID),
		Category: "validation",
		Action:   "先にプロフィールを登録してください。",
	}
}
