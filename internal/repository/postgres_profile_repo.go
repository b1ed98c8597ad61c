package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/coachman/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var timezone sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, email, desired_role, weekly_hours, timezone,
		        pref_format, pref_learning_style, pref_notify_opt_in,
		        created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.ID, &profile.UserID, &profile.Email, &profile.DesiredRole,
		&profile.WeeklyHours, &timezone,
		&profile.Preferences.Format, &profile.Preferences.LearningStyle,
		&profile.Preferences.NotifyOptIn,
		&profile.CreatedAt, &profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	profile.Timezone = nullStringValue(timezone)

	return profile, nil
}

// Upsert はプロフィールをuser_idをキーに冪等にUPSERTする。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, email, desired_role, weekly_hours, timezone,
		                       pref_format, pref_learning_style, pref_notify_opt_in,
		                       created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
		    email = EXCLUDED.email,
		    desired_role = EXCLUDED.desired_role,
		    weekly_hours = EXCLUDED.weekly_hours,
		    timezone = EXCLUDED.timezone,
		    pref_format = EXCLUDED.pref_format,
		    pref_learning_style = EXCLUDED.pref_learning_style,
		    pref_notify_opt_in = EXCLUDED.pref_notify_opt_in,
		    updated_at = now()`,
		profile.ID, profile.UserID, profile.Email, profile.DesiredRole,
		profile.WeeklyHours, nullString(profile.Timezone),
		profile.Preferences.Format, profile.Preferences.LearningStyle,
		profile.Preferences.NotifyOptIn,
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// ListWithTimezone はタイムゾーンが設定されている全プロフィールを返す。
func (r *PostgresProfileRepo) ListWithTimezone(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, email, desired_role, weekly_hours, timezone,
		        pref_format, pref_learning_style, pref_notify_opt_in,
		        created_at, updated_at
		 FROM profiles
		 WHERE timezone IS NOT NULL AND timezone <> ''
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象プロフィールの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		profile := &model.Profile{}
		var timezone sql.NullString

		if err := rows.Scan(
			&profile.ID, &profile.UserID, &profile.Email, &profile.DesiredRole,
			&profile.WeeklyHours, &timezone,
			&profile.Preferences.Format, &profile.Preferences.LearningStyle,
			&profile.Preferences.NotifyOptIn,
			&profile.CreatedAt, &profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("配信対象プロフィールの読み取りに失敗しました: %w", err)
		}

		profile.Timezone = nullStringValue(timezone)
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信対象プロフィールの走査に失敗しました: %w", err)
	}

	return profiles, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
