package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hitoshi/coachman/internal/model"
)

// SMTPNotifier はSMTP経由でメール配信を行うNotifier実装。
type SMTPNotifier struct {
	addr   string // "host:port"
	from   string
	logger *slog.Logger
	// send はテスト用に差し替え可能な送信関数。
	send func(addr, from string, to []string, msg []byte) error
}

// NewSMTPNotifier はSMTPNotifierを生成する。
func NewSMTPNotifier(addr, from string, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr:   addr,
		from:   from,
		logger: logger,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// SendDailyTasks は当日分のタスクをプレーンテキストメールで配信する。
// 配信許諾がないプロフィールにはスキップしてnilを返す。
func (n *SMTPNotifier) SendDailyTasks(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error {
	if !profile.Preferences.NotifyOptIn {
		n.logger.Info("配信許諾がないためデイリー配信をスキップします",
			slog.String("user_id", profile.UserID),
		)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subject: 本日の学習タスク（%d日目）\r\n", day.Index+1)
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\n\r\n", n.from, profile.Email)
	fmt.Fprintf(&b, "%s さん、本日の学習タスクをお届けします。\r\n\r\n", profile.UserID)
	fmt.Fprintf(&b, "目標ロール: %s\r\n", planner.TargetRole)
	if day.Focus != "" {
		fmt.Fprintf(&b, "本日のフォーカス: %s\r\n", day.Focus)
	}
	b.WriteString("\r\n")
	for i, task := range day.Tasks {
		fmt.Fprintf(&b, "%d. %s（%d分）\r\n", i+1, task.Title, task.DurationMinutes)
		if task.Description != "" {
			fmt.Fprintf(&b, "   %s\r\n", task.Description)
		}
		for _, res := range task.Resources {
			fmt.Fprintf(&b, "   - %s\r\n", res)
		}
	}

	if err := n.send(n.addr, n.from, []string{profile.Email}, []byte(b.String())); err != nil {
		return fmt.Errorf("デイリータスクメールの送信に失敗しました: %w", err)
	}
	return nil
}

// SendInterviewScheduled は面接スケジュール通知を配信する。
func (n *SMTPNotifier) SendInterviewScheduled(ctx context.Context, profile *model.Profile, interview *model.Interview) error {
	var b strings.Builder
	b.WriteString("Subject: 模擬面接のご案内\r\n")
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\n\r\n", n.from, profile.Email)
	b.WriteString("学習プランの進捗が80%に到達したため、模擬面接をスケジュールしました。\r\n")
	fmt.Fprintf(&b, "予定日時: %s\r\n", interview.ScheduledAt.Format("2006-01-02 15:04 MST"))
	b.WriteString("日時の変更は予定時刻の24時間前まで可能です。\r\n")

	if err := n.send(n.addr, n.from, []string{profile.Email}, []byte(b.String())); err != nil {
		return fmt.Errorf("面接通知メールの送信に失敗しました: %w", err)
	}
	return nil
}

// NopNotifier は何も送信しないNotifier実装。
// SMTP未設定の環境とテストで使用する。
type NopNotifier struct{}

// SendDailyTasks は何もせずnilを返す。
func (NopNotifier) SendDailyTasks(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error {
	return nil
}

// SendInterviewScheduled は何もせずnilを返す。
func (NopNotifier) SendInterviewScheduled(ctx context.Context, profile *model.Profile, interview *model.Interview) error {
	return nil
}

// compile-time interface check
var (
	_ Notifier = (*SMTPNotifier)(nil)
	_ Notifier = NopNotifier{}
)
