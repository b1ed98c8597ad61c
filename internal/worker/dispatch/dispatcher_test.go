package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/coachman/internal/model"
)

// --- モック定義 ---

// mockPlannerRepo はPlannerRepositoryのテスト用モック。
type mockPlannerRepo struct {
	findActiveByUserIDFunc func(ctx context.Context, userID string, now time.Time) (*model.Planner, error)
}

func (m *mockPlannerRepo) FindByID(ctx context.Context, id string) (*model.Planner, error) {
	return nil, nil
}

func (m *mockPlannerRepo) Create(ctx context.Context, planner *model.Planner) error {
	return nil
}

func (m *mockPlannerRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.Planner, error) {
	return nil, nil
}

func (m *mockPlannerRepo) FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
	if m.findActiveByUserIDFunc != nil {
		return m.findActiveByUserIDFunc(ctx, userID, now)
	}
	return nil, nil
}

func (m *mockPlannerRepo) UpdateProgress(ctx context.Context, id string, percent int) error {
	return nil
}

// mockNotifier はNotifierのテスト用モック。
type mockNotifier struct {
	sendDailyTasksFunc func(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error
	sentDays           []*model.Day
}

func (m *mockNotifier) SendDailyTasks(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error {
	m.sentDays = append(m.sentDays, day)
	if m.sendDailyTasksFunc != nil {
		return m.sendDailyTasksFunc(ctx, profile, planner, day)
	}
	return nil
}

func (m *mockNotifier) SendInterviewScheduled(ctx context.Context, profile *model.Profile, interview *model.Interview) error {
	return nil
}

// --- テストヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func testProfile(tz string) *model.Profile {
	return &model.Profile{
		ID:       "profile-1",
		UserID:   "user-1",
		Email:    "user@example.com",
		Timezone: tz,
	}
}

// newYorkAt8UTC はニューヨークの現地時刻が朝8時になるUTC時刻を返す。
// 2026-03-10はEDT（UTC-4）。
var newYorkAt8UTC = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func activePlanner(startDate time.Time, days int) *model.Planner {
	planner := &model.Planner{
		ID:           "planner-1",
		UserID:       "user-1",
		TargetRole:   "Data Analyst",
		StartDate:    startDate,
		DurationDays: days,
		EndDate:      startDate.AddDate(0, 0, days-1),
	}
	for i := 0; i < days; i++ {
		planner.Plan.Days = append(planner.Plan.Days, model.Day{
			Index: i,
			Date:  startDate.AddDate(0, 0, i).Format("2006-01-02"),
			Tasks: []model.Task{{Title: "task", DurationMinutes: 60}},
		})
	}
	return planner
}

// --- Dispatch ---

func TestDispatch_LocalHourMatches_Sends(t *testing.T) {
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	notifier := &mockNotifier{}
	d := NewDispatcher(&mockPlannerRepo{
		findActiveByUserIDFunc: func(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
			return activePlanner(start, 14), nil
		},
	}, notifier, testLogger(), 8)

	sent, err := d.Dispatch(context.Background(), testProfile("America/New_York"), newYorkAt8UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !sent {
		t.Fatal("現地時刻8時なのに配信されなかった")
	}
	if len(notifier.sentDays) != 1 {
		t.Fatalf("配信回数 = %d, want 1", len(notifier.sentDays))
	}
}

func TestDispatch_LocalHourMismatch_Skips(t *testing.T) {
	notifier := &mockNotifier{}
	d := NewDispatcher(&mockPlannerRepo{}, notifier, testLogger(), 8)

	// 同じUTC時刻でも東京の現地時刻は21時
	sent, err := d.Dispatch(context.Background(), testProfile("Asia/Tokyo"), newYorkAt8UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent {
		t.Error("現地時刻が8時でないのに配信された")
	}
	if len(notifier.sentDays) != 0 {
		t.Error("時間外のユーザーに配信が実行された")
	}
}

func TestDispatch_InvalidTimezone_ReturnsError(t *testing.T) {
	d := NewDispatcher(&mockPlannerRepo{}, &mockNotifier{}, testLogger(), 8)

	_, err := d.Dispatch(context.Background(), testProfile("Invalid/Zone"), newYorkAt8UTC)
	if err == nil {
		t.Error("不正なタイムゾーンがエラーにならなかった")
	}
}

func TestDispatch_NoActivePlanner_Skips(t *testing.T) {
	notifier := &mockNotifier{}
	d := NewDispatcher(&mockPlannerRepo{
		findActiveByUserIDFunc: func(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
			return nil, nil
		},
	}, notifier, testLogger(), 8)

	sent, err := d.Dispatch(context.Background(), testProfile("America/New_York"), newYorkAt8UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent {
		t.Error("アクティブプランなしで配信された")
	}
}

// 経過日数に対応する日が配信される。
func TestDispatch_SendsElapsedDay(t *testing.T) {
	// 開始はニューヨーク現地で2日前
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	start := time.Date(2026, 3, 8, 8, 0, 0, 0, loc)
	notifier := &mockNotifier{}
	d := NewDispatcher(&mockPlannerRepo{
		findActiveByUserIDFunc: func(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
			return activePlanner(start, 14), nil
		},
	}, notifier, testLogger(), 8)

	sent, err := d.Dispatch(context.Background(), testProfile("America/New_York"), newYorkAt8UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !sent {
		t.Fatal("配信されなかった")
	}
	if notifier.sentDays[0].Index != 2 {
		t.Errorf("配信された日のIndex = %d, want 2", notifier.sentDays[0].Index)
	}
}

func TestDispatch_NotifierFailure_ReturnsError(t *testing.T) {
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	d := NewDispatcher(&mockPlannerRepo{
		findActiveByUserIDFunc: func(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
			return activePlanner(start, 14), nil
		},
	}, &mockNotifier{
		sendDailyTasksFunc: func(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error {
			return errors.New("smtp down")
		},
	}, testLogger(), 8)

	sent, err := d.Dispatch(context.Background(), testProfile("America/New_York"), newYorkAt8UTC)
	if err == nil {
		t.Error("配信失敗がエラーにならなかった")
	}
	if sent {
		t.Error("失敗した配信がsent=trueを返した")
	}
}

func TestNewDispatcher_InvalidLocalHour_DefaultsTo8(t *testing.T) {
	for _, hour := range []int{-1, 24, 100} {
		d := NewDispatcher(&mockPlannerRepo{}, &mockNotifier{}, testLogger(), hour)
		if d.localHour != 8 {
			t.Errorf("localHour(%d) = %d, want 8", hour, d.localHour)
		}
	}
}

// --- resolveDay ---

func TestResolveDay_DateMatchFallback(t *testing.T) {
	// 経過日数がプラン範囲外だが、日付一致する日が存在する場合
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	planner := activePlanner(start, 3)
	planner.Plan.Days[1].Date = "2026-03-10"

	localNow := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	day := resolveDay(planner, localNow)
	if day == nil {
		t.Fatal("day = nil")
	}
	if day.Index != 1 {
		t.Errorf("Index = %d, want 1（日付一致）", day.Index)
	}
}

func TestResolveDay_ClampsToLastDay(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	planner := activePlanner(start, 3)

	// 経過日数超過・日付一致なし -> 最終日にクランプ
	localNow := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	day := resolveDay(planner, localNow)
	if day == nil {
		t.Fatal("day = nil")
	}
	if day.Index != 2 {
		t.Errorf("Index = %d, want 2（最終日）", day.Index)
	}
}

func TestResolveDay_BeforeStart_ClampsToFirstDay(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	planner := activePlanner(start, 3)

	localNow := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	day := resolveDay(planner, localNow)
	if day == nil {
		t.Fatal("day = nil")
	}
	if day.Index != 0 {
		t.Errorf("Index = %d, want 0（初日）", day.Index)
	}
}

func TestResolveDay_EmptyPlan_ReturnsNil(t *testing.T) {
	planner := &model.Planner{ID: "planner-1"}
	if day := resolveDay(planner, time.Now()); day != nil {
		t.Errorf("day = %+v, want nil", day)
	}
}
