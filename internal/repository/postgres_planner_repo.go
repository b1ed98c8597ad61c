package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/coachman/internal/model"
)

// PostgresPlannerRepo はPostgreSQLを使用したプランナーリポジトリ。
// plan列（days -> tasks のネストドキュメント）はJSONBとして保存する。
type PostgresPlannerRepo struct {
	db *sql.DB
}

// NewPostgresPlannerRepo はPostgresPlannerRepoを生成する。
func NewPostgresPlannerRepo(db *sql.DB) *PostgresPlannerRepo {
	return &PostgresPlannerRepo{db: db}
}

const plannerColumns = `id, user_id, target_role, start_date, duration_days, end_date,
	        progress_percent, source, summary, plan, created_at, updated_at`

// FindByID は指定IDのプランナーを取得する。見つからない場合はnilを返す。
func (r *PostgresPlannerRepo) FindByID(ctx context.Context, id string) (*model.Planner, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+plannerColumns+` FROM planners WHERE id = $1`, id,
	)
	planner, err := scanPlanner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プランナーの取得に失敗しました: %w", err)
	}
	return planner, nil
}

// Create はプランナーを作成する。
func (r *PostgresPlannerRepo) Create(ctx context.Context, planner *model.Planner) error {
	planJSON, err := json.Marshal(planner.Plan)
	if err != nil {
		return fmt.Errorf("プランドキュメントのシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO planners (id, user_id, target_role, start_date, duration_days, end_date,
		                       progress_percent, source, summary, plan, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		planner.ID, planner.UserID, planner.TargetRole,
		planner.StartDate, planner.DurationDays, planner.EndDate,
		planner.ProgressPercent, planner.Source, planner.Plan.Summary,
		planJSON, planner.CreatedAt, planner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プランナーの作成に失敗しました: %w", err)
	}
	return nil
}

// FindLatestByUserID はユーザーの最新作成プランナーを返す。見つからない場合はnilを返す。
func (r *PostgresPlannerRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.Planner, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+plannerColumns+`
		 FROM planners WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		userID,
	)
	planner, err := scanPlanner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新プランナーの取得に失敗しました: %w", err)
	}
	return planner, nil
}

// FindActiveByUserID は期間内のプランナーのうち最新作成のものを返す。
// 見つからない場合はnilを返す。
func (r *PostgresPlannerRepo) FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+plannerColumns+`
		 FROM planners
		 WHERE user_id = $1 AND start_date <= $2::date AND end_date >= $2::date
		 ORDER BY created_at DESC LIMIT 1`,
		userID, now,
	)
	planner, err := scanPlanner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブプランナーの取得に失敗しました: %w", err)
	}
	return planner, nil
}

// UpdateProgress はプランナーの進捗率を更新する。
func (r *PostgresPlannerRepo) UpdateProgress(ctx context.Context, id string, percent int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE planners SET progress_percent = $2, updated_at = now() WHERE id = $1`,
		id, percent,
	)
	if err != nil {
		return fmt.Errorf("進捗率の更新に失敗しました: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("進捗率更新の結果取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewPlannerNotFoundError(id)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPlanner は1行分のプランナーレコードを読み取る。
func scanPlanner(row rowScanner) (*model.Planner, error) {
	planner := &model.Planner{}
	var planJSON []byte
	var summary string

	if err := row.Scan(
		&planner.ID, &planner.UserID, &planner.TargetRole,
		&planner.StartDate, &planner.DurationDays, &planner.EndDate,
		&planner.ProgressPercent, &planner.Source, &summary,
		&planJSON, &planner.CreatedAt, &planner.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(planJSON, &planner.Plan); err != nil {
		return nil, fmt.Errorf("プランドキュメントのデシリアライズに失敗しました: %w", err)
	}
	if planner.Plan.Summary == "" {
		planner.Plan.Summary = summary
	}

	return planner, nil
}

// compile-time interface check
var _ PlannerRepository = (*PostgresPlannerRepo)(nil)
