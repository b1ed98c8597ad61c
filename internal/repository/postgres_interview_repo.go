package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/coachman/internal/model"
)

// PostgresInterviewRepo はPostgreSQLを使用した面接リポジトリ。
// score列（サブスコア・強み/弱み・フィードバックのネストドキュメント）はJSONBとして保存する。
type PostgresInterviewRepo struct {
	db *sql.DB
}

// NewPostgresInterviewRepo はPostgresInterviewRepoを生成する。
func NewPostgresInterviewRepo(db *sql.DB) *PostgresInterviewRepo {
	return &PostgresInterviewRepo{db: db}
}

const interviewColumns = `id, user_id, planner_id, scheduled_at, status,
	        provider_call_id, recording_url, transcript, score, created_at, updated_at`

// FindByID は指定IDの面接を取得する。見つからない場合はnilを返す。
func (r *PostgresInterviewRepo) FindByID(ctx context.Context, id string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id,
	)
	interview, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("面接の取得に失敗しました: %w", err)
	}
	return interview, nil
}

// Create は面接を作成する。
func (r *PostgresInterviewRepo) Create(ctx context.Context, interview *model.Interview) error {
	scoreJSON, err := marshalScore(interview.Score)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO interviews (id, user_id, planner_id, scheduled_at, status,
		                         provider_call_id, recording_url, transcript, score,
		                         created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		interview.ID, interview.UserID, nullString(interview.PlannerID),
		interview.ScheduledAt, interview.Status,
		nullString(interview.ProviderCallID), nullString(interview.RecordingURL),
		nullString(interview.Transcript), scoreJSON,
		interview.CreatedAt, interview.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("面接の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は面接レコードを上書き更新する。
func (r *PostgresInterviewRepo) Update(ctx context.Context, interview *model.Interview) error {
	scoreJSON, err := marshalScore(interview.Score)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE interviews SET
		    scheduled_at = $2, status = $3, provider_call_id = $4,
		    recording_url = $5, transcript = $6, score = $7, updated_at = now()
		 WHERE id = $1`,
		interview.ID, interview.ScheduledAt, interview.Status,
		nullString(interview.ProviderCallID), nullString(interview.RecordingURL),
		nullString(interview.Transcript), scoreJSON,
	)
	if err != nil {
		return fmt.Errorf("面接の更新に失敗しました: %w", err)
	}
	return nil
}

// FindPendingByUserAndPlanner は(user, planner)のpending面接を返す。
// 見つからない場合はnilを返す。
func (r *PostgresInterviewRepo) FindPendingByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews
		 WHERE user_id = $1 AND planner_id = $2 AND status = 'pending'`,
		userID, plannerID,
	)
	interview, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending面接の検索に失敗しました: %w", err)
	}
	return interview, nil
}

// FindActiveByUserAndPlanner は(user, planner)のpendingまたはin_progressの面接を返す。
// 見つからない場合はnilを返す。
func (r *PostgresInterviewRepo) FindActiveByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews
		 WHERE user_id = $1 AND planner_id = $2 AND status IN ('pending', 'in_progress')
		 ORDER BY created_at DESC LIMIT 1`,
		userID, plannerID,
	)
	interview, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブ面接の検索に失敗しました: %w", err)
	}
	return interview, nil
}

// FindByProviderCallID はプロバイダ相関IDで面接を検索する。見つからない場合はnilを返す。
func (r *PostgresInterviewRepo) FindByProviderCallID(ctx context.Context, callID string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+interviewColumns+`
		 FROM interviews WHERE provider_call_id = $1`,
		callID,
	)
	interview, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("相関IDによる面接の検索に失敗しました: %w", err)
	}
	return interview, nil
}

// Delete は指定IDの面接を削除する。
func (r *PostgresInterviewRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("面接の削除に失敗しました: %w", err)
	}
	return nil
}

// marshalScore はスコアドキュメントをJSONBに変換する。nilはNULLとして保存する。
func marshalScore(score *model.InterviewScore) ([]byte, error) {
	if score == nil {
		return nil, nil
	}
	b, err := json.Marshal(score)
	if err != nil {
		return nil, fmt.Errorf("スコアドキュメントのシリアライズに失敗しました: %w", err)
	}
	return b, nil
}

// scanInterview は1行分の面接レコードを読み取る。
func scanInterview(row rowScanner) (*model.Interview, error) {
	interview := &model.Interview{}
	var plannerID, providerCallID, recordingURL, transcript sql.NullString
	var scoreJSON []byte

	if err := row.Scan(
		&interview.ID, &interview.UserID, &plannerID,
		&interview.ScheduledAt, &interview.Status,
		&providerCallID, &recordingURL, &transcript, &scoreJSON,
		&interview.CreatedAt, &interview.UpdatedAt,
	); err != nil {
		return nil, err
	}

	interview.PlannerID = nullStringValue(plannerID)
	interview.ProviderCallID = nullStringValue(providerCallID)
	interview.RecordingURL = nullStringValue(recordingURL)
	interview.Transcript = nullStringValue(transcript)

	if len(scoreJSON) > 0 {
		score := &model.InterviewScore{}
		if err := json.Unmarshal(scoreJSON, score); err != nil {
			return nil, fmt.Errorf("スコアドキュメントのデシリアライズに失敗しました: %w", err)
		}
		interview.Score = score
	}

	return interview, nil
}

// compile-time interface check
var _ InterviewRepository = (*PostgresInterviewRepo)(nil)
