// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/coachman/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はプロフィールをuser_idをキーに冪等にUPSERTする。
	Upsert(ctx context.Context, profile *model.Profile) error

	// ListWithTimezone はタイムゾーンが設定されている全プロフィールを返す。
	// デイリー配信スケジューラの走査対象の列挙に使用する。
	ListWithTimezone(ctx context.Context) ([]*model.Profile, error)
}

// PlannerRepository はプランナーデータの永続化インターフェース。
type PlannerRepository interface {
	// FindByID は指定IDのプランナーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Planner, error)

	// Create はプランナーを作成する。
	Create(ctx context.Context, planner *model.Planner) error

	// FindLatestByUserID はユーザーの最新作成プランナーを返す。見つからない場合はnilを返す。
	FindLatestByUserID(ctx context.Context, userID string) (*model.Planner, error)

	// FindActiveByUserID は now が期間内（start_date <= now <= end_date）の
	// プランナーのうち最新作成のものを返す。見つからない場合はnilを返す。
	FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Planner, error)

	// UpdateProgress はプランナーの進捗率を更新する。
	// 進捗は外部の進捗報告が所有し、ここでは検証済みの値を保存するのみ。
	UpdateProgress(ctx context.Context, id string, percent int) error
}

// InterviewRepository は面接データの永続化インターフェース。
type InterviewRepository interface {
	// FindByID は指定IDの面接を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Interview, error)

	// Create は面接を作成する。
	Create(ctx context.Context, interview *model.Interview) error

	// Update は面接レコードを上書き更新する。
	Update(ctx context.Context, interview *model.Interview) error

	// FindPendingByUserAndPlanner は(user, planner)のpending面接を返す。
	// 見つからない場合はnilを返す。
	FindPendingByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error)

	// FindActiveByUserAndPlanner は(user, planner)のpendingまたはin_progressの
	// 面接を返す。進捗マイルストーンフックの重複防止に使用する。見つからない場合はnilを返す。
	FindActiveByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error)

	// FindByProviderCallID はプロバイダ相関IDで面接を検索する。見つからない場合はnilを返す。
	FindByProviderCallID(ctx context.Context, callID string) (*model.Interview, error)

	// Delete は指定IDの面接を削除する。pending中のユーザーキャンセルのみが使用する。
	Delete(ctx context.Context, id string) error
}
