package interview

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/coachman/internal/model"
	"github.com/hitoshi/coachman/internal/telephony"
)

// --- モック定義 ---

// mockInterviewRepo はInterviewRepositoryのテスト用モック。
type mockInterviewRepo struct {
	findByIDFunc                   func(ctx context.Context, id string) (*model.Interview, error)
	createFunc                     func(ctx context.Context, interview *model.Interview) error
	updateFunc                     func(ctx context.Context, interview *model.Interview) error
	findPendingByUserAndPlannerFn  func(ctx context.Context, userID, plannerID string) (*model.Interview, error)
	findActiveByUserAndPlannerFunc func(ctx context.Context, userID, plannerID string) (*model.Interview, error)
	findByProviderCallIDFunc       func(ctx context.Context, callID string) (*model.Interview, error)
	deleteFunc                     func(ctx context.Context, id string) error
}

func (m *mockInterviewRepo) FindByID(ctx context.Context, id string) (*model.Interview, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockInterviewRepo) Create(ctx context.Context, interview *model.Interview) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, interview)
	}
	return nil
}

func (m *mockInterviewRepo) Update(ctx context.Context, interview *model.Interview) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, interview)
	}
	return nil
}

func (m *mockInterviewRepo) FindPendingByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
	if m.findPendingByUserAndPlannerFn != nil {
		return m.findPendingByUserAndPlannerFn(ctx, userID, plannerID)
	}
	return nil, nil
}

func (m *mockInterviewRepo) FindActiveByUserAndPlanner(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
	if m.findActiveByUserAndPlannerFunc != nil {
		return m.findActiveByUserAndPlannerFunc(ctx, userID, plannerID)
	}
	return nil, nil
}

func (m *mockInterviewRepo) FindByProviderCallID(ctx context.Context, callID string) (*model.Interview, error) {
	if m.findByProviderCallIDFunc != nil {
		return m.findByProviderCallIDFunc(ctx, callID)
	}
	return nil, nil
}

func (m *mockInterviewRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

// mockPlannerRepo はPlannerRepositoryのテスト用モック。
type mockPlannerRepo struct {
	findByIDFunc           func(ctx context.Context, id string) (*model.Planner, error)
	findLatestByUserIDFunc func(ctx context.Context, userID string) (*model.Planner, error)
}

func (m *mockPlannerRepo) FindByID(ctx context.Context, id string) (*model.Planner, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockPlannerRepo) Create(ctx context.Context, planner *model.Planner) error {
	return nil
}

func (m *mockPlannerRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.Planner, error) {
	if m.findLatestByUserIDFunc != nil {
		return m.findLatestByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockPlannerRepo) FindActiveByUserID(ctx context.Context, userID string, now time.Time) (*model.Planner, error) {
	return nil, nil
}

func (m *mockPlannerRepo) UpdateProgress(ctx context.Context, id string, percent int) error {
	return nil
}

// mockProfileRepo はProfileRepositoryのテスト用モック。
type mockProfileRepo struct {
	findByUserIDFunc func(ctx context.Context, userID string) (*model.Profile, error)
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if m.findByUserIDFunc != nil {
		return m.findByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	return nil
}

func (m *mockProfileRepo) ListWithTimezone(ctx context.Context) ([]*model.Profile, error) {
	return nil, nil
}

// mockCallStarter はtelephony.CallStarterのテスト用モック。
type mockCallStarter struct {
	createCallFunc func(ctx context.Context, req telephony.CallRequest) (string, error)
}

func (m *mockCallStarter) CreateCall(ctx context.Context, req telephony.CallRequest) (string, error) {
	if m.createCallFunc != nil {
		return m.createCallFunc(ctx, req)
	}
	return "call-1", nil
}

// mockSanitizer は入力をそのまま返すサニタイザ。
type mockSanitizer struct{}

func (mockSanitizer) Sanitize(raw string) string { return raw }

// mockNotifier はNotifierのテスト用モック。
type mockNotifier struct {
	sentInterviews []*model.Interview
}

func (m *mockNotifier) SendDailyTasks(ctx context.Context, profile *model.Profile, planner *model.Planner, day *model.Day) error {
	return nil
}

func (m *mockNotifier) SendInterviewScheduled(ctx context.Context, profile *model.Profile, interview *model.Interview) error {
	m.sentInterviews = append(m.sentInterviews, interview)
	return nil
}

// --- テストヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testPlanner(progress int) *model.Planner {
	return &model.Planner{
		ID:              "planner-1",
		UserID:          "user-1",
		TargetRole:      "Data Analyst",
		StartDate:       testNow.AddDate(0, 0, -10),
		DurationDays:    14,
		EndDate:         testNow.AddDate(0, 0, 3),
		ProgressPercent: progress,
		Plan: model.Plan{
			Days: []model.Day{
				{Index: 0, Focus: "SQL基礎", Tasks: []model.Task{{Title: "SELECT文", DurationMinutes: 60}}},
				{Index: 1, Focus: "集計関数", Tasks: []model.Task{{Title: "GROUP BY", DurationMinutes: 60}}},
			},
		},
	}
}

func newTestService(ivRepo *mockInterviewRepo, pRepo *mockPlannerRepo, profRepo *mockProfileRepo, caller *mockCallStarter, notifier *mockNotifier) *Service {
	if ivRepo == nil {
		ivRepo = &mockInterviewRepo{}
	}
	if pRepo == nil {
		pRepo = &mockPlannerRepo{}
	}
	if profRepo == nil {
		profRepo = &mockProfileRepo{}
	}
	if caller == nil {
		caller = &mockCallStarter{}
	}
	var n *mockNotifier
	if notifier != nil {
		n = notifier
	} else {
		n = &mockNotifier{}
	}
	s := NewService(ivRepo, pRepo, profRepo, caller, mockSanitizer{}, n, nil, testLogger())
	s.now = func() time.Time { return testNow }
	return s
}

// --- CheckEligibility ---

func TestCheckEligibility_NoPlanner_Ineligible(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return nil, nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsEligible {
		t.Error("planner無しで適格と判定された")
	}
	if result.RequiredProgress != 80 {
		t.Errorf("RequiredProgress = %d, want 80", result.RequiredProgress)
	}
}

func TestCheckEligibility_ProgressAboveThreshold_Eligible(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(85), nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.IsEligible {
		t.Error("進捗85%で不適格と判定された")
	}
	if result.CurrentProgress != 85 {
		t.Errorf("CurrentProgress = %d, want 85", result.CurrentProgress)
	}
}

func TestCheckEligibility_ExactThreshold_Eligible(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(80), nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.IsEligible {
		t.Error("進捗ちょうど80%は適格であるべき")
	}
}

// pending面接が存在する場合は進捗100%でも不適格となる。
func TestCheckEligibility_PendingExists_IneligibleEvenAt100(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findPendingByUserAndPlannerFn: func(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", Status: model.InterviewStatusPending}, nil
		},
	}, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(100), nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsEligible {
		t.Error("pending面接が存在するのに適格と判定された")
	}
	if result.Message == "" {
		t.Error("スケジュール済みを区別するメッセージが空")
	}
}

func TestCheckEligibility_BelowThreshold_EstimatesDays(t *testing.T) {
	// 開始10日経過で進捗40% -> 4%/日 -> 残り40%は10日
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(40), nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsEligible {
		t.Error("進捗40%で適格と判定された")
	}
	if result.DaysUntilEligible == nil {
		t.Fatal("DaysUntilEligibleが設定されていない")
	}
	if *result.DaysUntilEligible != 10 {
		t.Errorf("DaysUntilEligible = %d, want 10", *result.DaysUntilEligible)
	}
}

func TestCheckEligibility_ZeroProgress_NoEstimate(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(0), nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.DaysUntilEligible != nil {
		t.Errorf("進捗0では推定不能としてDaysUntilEligibleは省略されるべき: got %d", *result.DaysUntilEligible)
	}
}

func TestCheckEligibility_SpecifiedPlannerOwnedByOther_TreatedAsMissing(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Planner, error) {
			p := testPlanner(90)
			p.UserID = "other-user"
			return p, nil
		},
	}, nil, nil, nil)

	result, err := s.CheckEligibility(context.Background(), "user-1", "planner-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsEligible {
		t.Error("他ユーザーのプランナーで適格と判定された")
	}
}

// --- Schedule ---

// 適格性判定で解決したプランナーをそのまま使い、再解決しない。
// 判定と作成の間にプランナーが消えても古い解決結果で安全に進む。
func TestSchedule_ResolvesPlannerOnce(t *testing.T) {
	lookups := 0
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			return nil
		},
	}, &mockPlannerRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Planner, error) {
			lookups++
			return testPlanner(85), nil
		},
	}, nil, nil, nil)

	iv, _, err := s.Schedule(context.Background(), "user-1", "planner-1", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if lookups != 1 {
		t.Errorf("planner lookups = %d, want 1", lookups)
	}
	if iv.PlannerID != "planner-1" {
		t.Errorf("PlannerID = %q, want planner-1", iv.PlannerID)
	}
}

func TestSchedule_Eligible_CreatesPendingInterview(t *testing.T) {
	var created *model.Interview
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			created = interview
			return nil
		},
	}, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(85), nil
		},
	}, nil, nil, nil)

	iv, rejected, err := s.Schedule(context.Background(), "user-1", "", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rejected != nil {
		t.Error("適格なのに拒否結果が返された")
	}
	if created == nil {
		t.Fatal("面接が作成されていない")
	}
	if iv.Status != model.InterviewStatusPending {
		t.Errorf("Status = %q, want pending", iv.Status)
	}
	// scheduledAt省略時は72時間後がデフォルト
	wantAt := testNow.Add(72 * time.Hour)
	if !iv.ScheduledAt.Equal(wantAt) {
		t.Errorf("ScheduledAt = %v, want %v", iv.ScheduledAt, wantAt)
	}
}

func TestSchedule_Ineligible_ReturnsEligibilityResult(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(50), nil
		},
	}, nil, nil, nil)

	_, rejected, err := s.Schedule(context.Background(), "user-1", "", nil)
	if err == nil {
		t.Fatal("不適格でもエラーが返されなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotEligible {
		t.Errorf("error = %v, want NOT_ELIGIBLE", err)
	}
	if rejected == nil {
		t.Fatal("拒否時は適格性判定結果を返すべき")
	}
	if rejected.CurrentProgress != 50 {
		t.Errorf("CurrentProgress = %d, want 50", rejected.CurrentProgress)
	}
}

func TestSchedule_LessThan24HoursAhead_Rejected(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(85), nil
		},
	}, nil, nil, nil)

	at := testNow.Add(23 * time.Hour)
	_, _, err := s.Schedule(context.Background(), "user-1", "", &at)
	if err == nil {
		t.Fatal("24時間未満の予定時刻がエラーにならなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidScheduleTime {
		t.Errorf("error = %v, want INVALID_SCHEDULE_TIME", err)
	}
}

func TestSchedule_Exactly24HoursAhead_Accepted(t *testing.T) {
	s := newTestService(nil, &mockPlannerRepo{
		findLatestByUserIDFunc: func(ctx context.Context, userID string) (*model.Planner, error) {
			return testPlanner(85), nil
		},
	}, nil, nil, nil)

	at := testNow.Add(24 * time.Hour)
	iv, _, err := s.Schedule(context.Background(), "user-1", "", &at)
	if err != nil {
		t.Fatalf("ちょうど24時間後の予定時刻は許容されるべき: %v", err)
	}
	if !iv.ScheduledAt.Equal(at) {
		t.Errorf("ScheduledAt = %v, want %v", iv.ScheduledAt, at)
	}
}

// --- Start ---

func TestStart_ValidPhone_TransitionsToInProgress(t *testing.T) {
	pending := &model.Interview{
		ID:        "iv-1",
		UserID:    "user-1",
		PlannerID: "planner-1",
		Status:    model.InterviewStatusPending,
	}
	var updated *model.Interview
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return pending, nil
		},
		updateFunc: func(ctx context.Context, interview *model.Interview) error {
			updated = interview
			return nil
		},
	}, &mockPlannerRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Planner, error) {
			return testPlanner(85), nil
		},
	}, nil, &mockCallStarter{
		createCallFunc: func(ctx context.Context, req telephony.CallRequest) (string, error) {
			return "provider-call-123", nil
		},
	}, nil)

	iv, err := s.Start(context.Background(), "user-1", "iv-1", "+819012345678")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if iv.Status != model.InterviewStatusInProgress {
		t.Errorf("Status = %q, want in_progress", iv.Status)
	}
	if iv.ProviderCallID != "provider-call-123" {
		t.Errorf("ProviderCallID = %q, want provider-call-123", iv.ProviderCallID)
	}
	if updated == nil {
		t.Error("面接が永続化されていない")
	}
}

func TestStart_InvalidPhoneNumber_Rejected(t *testing.T) {
	s := newTestService(nil, nil, nil, nil, nil)

	cases := []string{"", "09012345678", "+abc", "+0123", "not-a-phone"}
	for _, phone := range cases {
		_, err := s.Start(context.Background(), "user-1", "iv-1", phone)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidPhoneNumber {
			t.Errorf("phone %q: error = %v, want INVALID_PHONE_NUMBER", phone, err)
		}
	}
}

func TestStart_NotPending_Rejected(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "user-1", Status: model.InterviewStatusCompleted}, nil
		},
	}, nil, nil, nil, nil)

	_, err := s.Start(context.Background(), "user-1", "iv-1", "+819012345678")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInterviewNotPending {
		t.Errorf("error = %v, want INTERVIEW_NOT_PENDING", err)
	}
}

func TestStart_TelephonyFailure_NoStateChange(t *testing.T) {
	updateCalled := false
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "user-1", Status: model.InterviewStatusPending}, nil
		},
		updateFunc: func(ctx context.Context, interview *model.Interview) error {
			updateCalled = true
			return nil
		},
	}, nil, nil, &mockCallStarter{
		createCallFunc: func(ctx context.Context, req telephony.CallRequest) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}, nil)

	_, err := s.Start(context.Background(), "user-1", "iv-1", "+819012345678")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTelephonyFailed {
		t.Errorf("error = %v, want TELEPHONY_FAILED", err)
	}
	if updateCalled {
		t.Error("プロバイダ失敗時に面接が更新された")
	}
}

func TestStart_SessionPromptIncludesCompletedFocus(t *testing.T) {
	var gotPrompt string
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "user-1", PlannerID: "planner-1", Status: model.InterviewStatusPending}, nil
		},
	}, &mockPlannerRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Planner, error) {
			return testPlanner(100), nil
		},
	}, nil, &mockCallStarter{
		createCallFunc: func(ctx context.Context, req telephony.CallRequest) (string, error) {
			gotPrompt = req.AssistantPrompt
			return "call-1", nil
		},
	}, nil)

	if _, err := s.Start(context.Background(), "user-1", "iv-1", "+819012345678"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Contains([]byte(gotPrompt), []byte("Data Analyst")) {
		t.Error("セッション設定に目標ロールが含まれていない")
	}
	if !bytes.Contains([]byte(gotPrompt), []byte("SQL基礎")) {
		t.Error("セッション設定に修了済みモジュールのフォーカスが含まれていない")
	}
}

// --- Reschedule ---

func TestReschedule_WindowOpen_Updates(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{
				ID: "iv-1", UserID: "user-1",
				Status:      model.InterviewStatusPending,
				ScheduledAt: testNow.Add(72 * time.Hour),
			}, nil
		},
	}, nil, nil, nil, nil)

	newAt := testNow.Add(96 * time.Hour)
	iv, err := s.Reschedule(context.Background(), "user-1", "iv-1", newAt)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !iv.ScheduledAt.Equal(newAt) {
		t.Errorf("ScheduledAt = %v, want %v", iv.ScheduledAt, newAt)
	}
}

// 現在の予定時刻まで24時間を切っている場合はリスケジュール不可。
func TestReschedule_WindowClosed_Rejected(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{
				ID: "iv-1", UserID: "user-1",
				Status:      model.InterviewStatusPending,
				ScheduledAt: testNow.Add(12 * time.Hour),
			}, nil
		},
	}, nil, nil, nil, nil)

	_, err := s.Reschedule(context.Background(), "user-1", "iv-1", testNow.Add(96*time.Hour))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRescheduleClosed {
		t.Errorf("error = %v, want RESCHEDULE_WINDOW_CLOSED", err)
	}
}

func TestReschedule_NewTimeTooSoon_Rejected(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{
				ID: "iv-1", UserID: "user-1",
				Status:      model.InterviewStatusPending,
				ScheduledAt: testNow.Add(72 * time.Hour),
			}, nil
		},
	}, nil, nil, nil, nil)

	_, err := s.Reschedule(context.Background(), "user-1", "iv-1", testNow.Add(12*time.Hour))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidScheduleTime {
		t.Errorf("error = %v, want INVALID_SCHEDULE_TIME", err)
	}
}

// --- Cancel ---

func TestCancel_Pending_Deletes(t *testing.T) {
	deleted := ""
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "user-1", Status: model.InterviewStatusPending}, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}, nil, nil, nil, nil)

	if err := s.Cancel(context.Background(), "user-1", "iv-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != "iv-1" {
		t.Errorf("deleted = %q, want iv-1", deleted)
	}
}

func TestCancel_InProgress_Rejected(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "user-1", Status: model.InterviewStatusInProgress}, nil
		},
	}, nil, nil, nil, nil)

	err := s.Cancel(context.Background(), "user-1", "iv-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInterviewNotPending {
		t.Errorf("error = %v, want INTERVIEW_NOT_PENDING", err)
	}
}

func TestCancel_OtherUsersInterview_NotFound(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", UserID: "other-user", Status: model.InterviewStatusPending}, nil
		},
	}, nil, nil, nil, nil)

	err := s.Cancel(context.Background(), "user-1", "iv-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInterviewNotFound {
		t.Errorf("error = %v, want INTERVIEW_NOT_FOUND", err)
	}
}

// --- OnProgressUpdated（80%マイルストーン） ---

// 進捗が60%から85%に更新されると面接が自動スケジュールされ通知される。
func TestOnProgressUpdated_CrossesThreshold_AutoSchedules(t *testing.T) {
	var created *model.Interview
	notifier := &mockNotifier{}
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			created = interview
			return nil
		},
	}, nil, &mockProfileRepo{
		findByUserIDFunc: func(ctx context.Context, userID string) (*model.Profile, error) {
			return &model.Profile{UserID: userID, Email: "user@example.com"}, nil
		},
	}, nil, notifier)

	s.OnProgressUpdated(context.Background(), testPlanner(85), 60, 85)

	if created == nil {
		t.Fatal("マイルストーン到達で面接が自動作成されていない")
	}
	if created.Status != model.InterviewStatusPending {
		t.Errorf("Status = %q, want pending", created.Status)
	}
	wantAt := testNow.Add(72 * time.Hour)
	if !created.ScheduledAt.Equal(wantAt) {
		t.Errorf("ScheduledAt = %v, want %v（3日後）", created.ScheduledAt, wantAt)
	}
	if len(notifier.sentInterviews) != 1 {
		t.Errorf("通知回数 = %d, want 1", len(notifier.sentInterviews))
	}
}

func TestOnProgressUpdated_AlreadyAboveThreshold_NoOp(t *testing.T) {
	created := false
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			created = true
			return nil
		},
	}, nil, nil, nil, nil)

	// 85 -> 90 は閾値の初回通過ではない
	s.OnProgressUpdated(context.Background(), testPlanner(90), 85, 90)

	if created {
		t.Error("既に閾値超えの進捗更新で面接が作成された")
	}
}

func TestOnProgressUpdated_BelowThreshold_NoOp(t *testing.T) {
	created := false
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			created = true
			return nil
		},
	}, nil, nil, nil, nil)

	s.OnProgressUpdated(context.Background(), testPlanner(70), 60, 70)

	if created {
		t.Error("閾値未満の進捗更新で面接が作成された")
	}
}

func TestOnProgressUpdated_ActiveInterviewExists_NoOp(t *testing.T) {
	created := false
	s := newTestService(&mockInterviewRepo{
		findActiveByUserAndPlannerFunc: func(ctx context.Context, userID, plannerID string) (*model.Interview, error) {
			return &model.Interview{ID: "iv-1", Status: model.InterviewStatusInProgress}, nil
		},
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			created = true
			return nil
		},
	}, nil, nil, nil, nil)

	s.OnProgressUpdated(context.Background(), testPlanner(85), 60, 85)

	if created {
		t.Error("アクティブな面接が存在するのに自動スケジュールされた")
	}
}

// フックの失敗は呼び出し元にpanic・エラーを伝播しない。
func TestOnProgressUpdated_CreateFails_DoesNotPanic(t *testing.T) {
	s := newTestService(&mockInterviewRepo{
		createFunc: func(ctx context.Context, interview *model.Interview) error {
			return errors.New("db down")
		},
	}, nil, nil, nil, nil)

	s.OnProgressUpdated(context.Background(), testPlanner(85), 60, 85)
}
