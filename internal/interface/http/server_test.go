package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agepath/placement-engine/internal/application/command"
	"github.com/agepath/placement-engine/internal/application/query"
	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/memory"
	"github.com/agepath/placement-engine/internal/interface/http/handlers"
	"github.com/agepath/placement-engine/pkg/logger"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

var testNow = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

type identity struct {
	userID   string
	role     string
	tenantID string
}

var (
	asTeacher  = identity{"teacher-1", "TEACHER", "tenant-a"}
	asAdmin    = identity{"admin-1", "CENTRE_ADMIN", "tenant-a"}
	asStudent1 = identity{"student-1", "STUDENT", "tenant-a"}
	asOutsider = identity{"teacher-b", "TEACHER", "tenant-b"}
)

// envelope mirrors JSONResponse with a raw payload.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *ResponseMeta `json:"meta"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T, health handlers.HealthChecker) *testAPI {
	t.Helper()

	store := memory.NewStore()
	for _, age := range [][2]int{{6, 1}, {7, 0}, {8, 0}, {8, 1}} {
		l, err := assessment.NewLevel(age[0], age[1], nil, testNow)
		require.NoError(t, err)
		store.SeedLevels(l)
	}

	dir := memory.NewDirectory()
	dob := testNow.AddDate(0, 0, -2922)
	dir.AddUser(directory.User{ID: "student-1", TenantID: "tenant-a", FullName: "Sam One", Role: shared.RoleStudent, DateOfBirth: &dob, IsActive: true})
	dir.AddUser(directory.User{ID: "student-2", TenantID: "tenant-a", FullName: "Sky Two", Role: shared.RoleStudent, IsActive: true})
	dir.AddUser(directory.User{ID: "teacher-1", TenantID: "tenant-a", FullName: "Tess Teacher", Role: shared.RoleTeacher, IsActive: true})
	for i := 1; i <= 3; i++ {
		dir.AddLesson(directory.Lesson{
			ID:           fmt.Sprintf("eng-%d", i),
			Subject:      "ENGLISH",
			LessonNumber: i,
			Title:        fmt.Sprintf("Phonics %d", i),
			MaxScore:     10,
		})
	}

	clock := timeutil.NewFixedClock(testNow)
	cmdDeps := command.Deps{Store: store, Directory: dir, Clock: clock, Logger: logger.Nop()}
	qryDeps := query.Deps{Store: store, Directory: dir, Clock: clock, Logger: logger.Nop()}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{
		CreatePlacement:  command.NewCreatePlacementHandler(cmdDeps),
		RecordCompletion: command.NewRecordLessonCompletionHandler(cmdDeps),
		ApplyOverride:    command.NewApplyManualOverrideHandler(cmdDeps),
		ArchivePlacement: command.NewArchivePlacementHandler(cmdDeps),
		Levels:           command.NewLevelHandler(cmdDeps),
		Placements:       query.NewPlacementHandler(qryDeps),
		Grid:             query.NewBuildGridHandler(qryDeps),
		Logger:           logger.Nop(),
		HealthChecker:    health,
	})
	return &testAPI{t: t, handler: srv.Handler()}
}

func (a *testAPI) do(method, path string, who *identity, body string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set(HeaderUserID, who.userID)
		req.Header.Set(HeaderUserRole, who.role)
		req.Header.Set(HeaderTenantID, who.tenantID)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (a *testAPI) createPlacement(subject string, year, month int) query.PlacementDTO {
	a.t.Helper()
	body := fmt.Sprintf(`{"studentId":"student-1","subject":%q,"ageYear":%d,"ageMonth":%d,"placementMethod":"ASSESSMENT_TEST","notes":"baseline"}`,
		subject, year, month)
	rec, env := a.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto query.PlacementDTO
	require.NoError(a.t, json.Unmarshal(env.Data, &dto))
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreatePlacement(t *testing.T) {
	api := newTestAPI(t, nil)

	dto := api.createPlacement("ENGLISH", 8, 1)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "student-1", dto.StudentID)
	assert.Equal(t, "tenant-a", dto.TenantID)
	assert.Equal(t, "ACTIVE", dto.Status)
	assert.Equal(t, "teacher-1", dto.PlacedBy)
	assert.Equal(t, dto.CurrentAgeID, dto.InitialAgeID)
	require.NotNil(t, dto.CurrentLevel)
	assert.Equal(t, "8.1", dto.CurrentLevel.DisplayLabel)
	assert.Equal(t, 1, dto.CurrentLessonNumber)
	assert.Equal(t, "0/25", dto.LessonProgress)
}

func TestCreatePlacement_Envelope(t *testing.T) {
	api := newTestAPI(t, nil)

	body := `{"studentId":"student-1","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`
	rec, env := api.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	require.NotNil(t, env.Meta)
	assert.NotEmpty(t, env.Meta.RequestID)
	assert.Equal(t, env.Meta.RequestID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestCreatePlacement_Errors(t *testing.T) {
	tests := []struct {
		name       string
		who        *identity
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing identity",
			who:        nil,
			body:       `{"studentId":"student-1","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "forbidden",
		},
		{
			name:       "student caller",
			who:        &asStudent1,
			body:       `{"studentId":"student-1","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "forbidden",
		},
		{
			name:       "other tenant",
			who:        &asOutsider,
			body:       `{"studentId":"student-1","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusForbidden,
			wantCode:   "forbidden",
		},
		{
			name:       "unknown student",
			who:        &asTeacher,
			body:       `{"studentId":"ghost","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "unknown level",
			who:        &asTeacher,
			body:       `{"studentId":"student-1","subject":"ENGLISH","ageYear":12,"ageMonth":3,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "bad subject",
			who:        &asTeacher,
			body:       `{"studentId":"student-1","subject":"HISTORY","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_error",
		},
		{
			name:       "malformed json",
			who:        &asTeacher,
			body:       `{"studentId":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)

			rec, env := api.do(http.MethodPost, "/api/v1/placements", tt.who, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestCreatePlacement_ValidationDetails(t *testing.T) {
	api := newTestAPI(t, nil)

	body := `{"studentId":"student-1","subject":"HISTORY","ageYear":8,"ageMonth":1,"placementMethod":"OTHER"}`
	rec, env := api.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var fields []shared.FieldError
	require.NoError(t, json.Unmarshal(env.Error.Details, &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "subject", fields[0].Field)
	assert.NotEmpty(t, fields[0].Message)
}

func TestCreatePlacement_MissingAge(t *testing.T) {
	api := newTestAPI(t, nil)

	body := `{"studentId":"student-1","subject":"MATHEMATICS","placementMethod":"OTHER"}`
	rec, env := api.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_error", env.Error.Code)

	var fields []shared.FieldError
	require.NoError(t, json.Unmarshal(env.Error.Details, &fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	assert.ElementsMatch(t, []string{"ageYear", "ageMonth"}, names)
}

func TestCreatePlacement_DuplicateConflicts(t *testing.T) {
	api := newTestAPI(t, nil)
	api.createPlacement("ENGLISH", 8, 1)

	body := `{"studentId":"student-1","subject":"ENGLISH","ageYear":7,"ageMonth":0,"placementMethod":"OTHER"}`
	rec, env := api.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Code)
}

func TestGetPlacement(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)

	rec, env := api.do(http.MethodGet, "/api/v1/placements/"+created.ID, &asStudent1, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var detail query.PlacementDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, created.ID, detail.Placement.ID)
	require.NotNil(t, detail.Gap)
	assert.Equal(t, 0.1, *detail.Gap)
	require.NotNil(t, detail.Band)
	assert.Equal(t, "ON_LEVEL", *detail.Band)
	assert.Empty(t, detail.Completions)
}

func TestGetPlacement_NotFound(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, env := api.do(http.MethodGet, "/api/v1/placements/missing", &asTeacher, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestGetPlacement_OtherStudentForbidden(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)

	other := identity{"student-2", "STUDENT", "tenant-a"}
	rec, _ := api.do(http.MethodGet, "/api/v1/placements/"+created.ID, &other, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOverridePlacement(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)

	rec, env := api.do(http.MethodPatch, "/api/v1/placements/"+created.ID, &asTeacher, `{"ageYear":7,"ageMonth":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res overrideResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.LevelChanged)
	assert.Equal(t, "7.0", res.Placement.CurrentLevel.DisplayLabel)
	assert.Equal(t, "8.1", res.Placement.InitialLevel.DisplayLabel)
	assert.Equal(t, 1, res.Placement.CurrentLessonNumber)
}

func TestArchivePlacement(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)

	rec, env := api.do(http.MethodPost, "/api/v1/placements/"+created.ID+"/archive", &asTeacher, `{"reason":"left centre"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.PlacementDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "ARCHIVED", dto.Status)
	assert.NotNil(t, dto.ArchivedAt)

	// A new placement in the same subject is allowed once archived.
	api.createPlacement("ENGLISH", 7, 0)

	rec, env = api.do(http.MethodGet, "/api/v1/students/student-1/placements", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta.TotalCount)
	assert.Equal(t, 1, *env.Meta.TotalCount)

	rec, env = api.do(http.MethodGet, "/api/v1/students/student-1/placements?includeArchived=true", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *env.Meta.TotalCount)
}

func TestPlacementHistory(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)

	rec, _ := api.do(http.MethodPatch, "/api/v1/placements/"+created.ID, &asTeacher, `{"ageYear":8,"ageMonth":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := api.do(http.MethodGet, "/api/v1/placements/"+created.ID+"/history", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entries []query.HistoryEntryDTO
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "INITIAL_PLACEMENT", entries[0].ChangeType)
	assert.Nil(t, entries[0].FromLevelID)
	assert.Equal(t, "MANUAL_OVERRIDE", entries[1].ChangeType)
	require.NotNil(t, entries[1].FromLabel)
	assert.Equal(t, "8.1", *entries[1].FromLabel)
	assert.Equal(t, "8.0", entries[1].ToLabel)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordCompletion(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)
	path := "/api/v1/placements/" + created.ID + "/lessons/eng-1/completion"

	rec, _ := api.do(http.MethodPut, path, &asStudent1, `{"status":"SUBMITTED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := api.do(http.MethodPut, path, &asTeacher, `{"status":"MARKED","score":7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res completionResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "MARKED", res.Completion.Status)
	require.NotNil(t, res.Completion.PercentageScore)
	assert.Equal(t, 70.0, *res.Completion.PercentageScore)
	assert.NotNil(t, res.Completion.SubmittedAt)
	assert.Equal(t, 1, res.Placement.LessonsCompleted)
	assert.Equal(t, "1/25", res.Placement.LessonProgress)
	assert.False(t, res.BecameReady)
}

func TestRecordCompletion_StudentMayNotMark(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)
	path := "/api/v1/placements/" + created.ID + "/lessons/eng-1/completion"

	rec, env := api.do(http.MethodPut, path, &asStudent1, `{"status":"MARKED"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)
}

func TestRecordCompletion_ScoreOutOfRange(t *testing.T) {
	api := newTestAPI(t, nil)
	created := api.createPlacement("ENGLISH", 8, 1)
	path := "/api/v1/placements/" + created.ID + "/lessons/eng-2/completion"

	rec, env := api.do(http.MethodPut, path, &asTeacher, `{"status":"MARKED","score":11}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVELS & GRID
// ══════════════════════════════════════════════════════════════════════════════

func TestLevels(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, _ := api.do(http.MethodPost, "/api/v1/levels", &asTeacher, `{"ageYear":9,"ageMonth":0}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := api.do(http.MethodPost, "/api/v1/levels", &asAdmin, `{"ageYear":9,"ageMonth":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var level query.LevelDTO
	require.NoError(t, json.Unmarshal(env.Data, &level))
	assert.Equal(t, "9.0", level.DisplayLabel)
	assert.True(t, level.IsActive)

	rec, _ = api.do(http.MethodPost, "/api/v1/levels", &asAdmin, `{"ageYear":9,"ageMonth":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(http.MethodPatch, "/api/v1/levels/"+level.ID, &asAdmin, `{"isActive":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &level))
	assert.False(t, level.IsActive)

	rec, env = api.do(http.MethodGet, "/api/v1/levels", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, *env.Meta.TotalCount)

	rec, env = api.do(http.MethodGet, "/api/v1/levels?includeInactive=true", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, *env.Meta.TotalCount)
}

func TestAssessmentGrid(t *testing.T) {
	api := newTestAPI(t, nil)
	api.createPlacement("ENGLISH", 8, 1)

	rec, env := api.do(http.MethodGet, "/api/v1/assessment-grid?subject=ENGLISH", &asTeacher, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var grid query.GridResult
	require.NoError(t, json.Unmarshal(env.Data, &grid))
	require.Len(t, grid.Rows, 2)
	assert.Equal(t, 2, *env.Meta.TotalCount)

	row := grid.Rows[0]
	assert.Equal(t, "student-1", row.StudentID)
	cell := row.Cells["ENGLISH"]
	require.NotNil(t, cell)
	assert.Equal(t, "8.1", cell.Label)
	assert.Equal(t, "ON_LEVEL", *cell.Band)

	rec, _ = api.do(http.MethodGet, "/api/v1/assessment-grid", &asStudent1, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddDetailedCheck("database", func(context.Context) (map[string]any, error) {
		return map[string]any{"total_conns": 3}, nil
	})
	checker.AddOptionalCheck("cache", func(context.Context) error { return errors.New("refused") })
	api := newTestAPI(t, checker)

	rec, env := api.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Healthy)
	assert.True(t, status.Degraded)
	assert.Equal(t, float64(3), status.Checks["database"].Details["total_conns"])

	rec, _ = api.do(http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, "/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("database", func(context.Context) error { return errors.New("down") })
	rec, _ = api.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, env = api.do(http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", env.Error.Code)
}

func TestServerLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{Logger: logger.Nop()})
	assert.False(t, srv.IsRunning())
	assert.Zero(t, srv.Uptime())

	errCh := srv.StartAsync()
	require.Eventually(t, srv.IsRunning, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, srv.IsRunning())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerLifecycle_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = taken.Addr().(*net.TCPAddr).Port
	cfg.RateLimitPerMinute = 0
	srv := NewServer(cfg, Dependencies{Logger: logger.Nop()})

	select {
	case err := <-srv.StartAsync():
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not fail")
	}
	assert.False(t, srv.IsRunning())
}

func TestNotConfigured(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{Logger: logger.Nop()})
	defer srv.rateLimiter.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessment-grid", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	api := newTestAPI(t, nil)

	notes := strings.Repeat("x", 2<<20)
	body := fmt.Sprintf(`{"studentId":"student-1","subject":"ENGLISH","ageYear":8,"ageMonth":1,"placementMethod":"OTHER","notes":%q}`, notes)
	rec, env := api.do(http.MethodPost, "/api/v1/placements", &asTeacher, body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", env.Error.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 2
	srv := NewServer(cfg, Dependencies{Logger: logger.Nop()})
	defer srv.rateLimiter.Stop()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestActorFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, " teacher-1 ")
	req.Header.Set(HeaderUserRole, "teacher")
	req.Header.Set(HeaderTenantID, "tenant-a")

	actor := actorFromRequest(req)
	assert.Equal(t, "teacher-1", actor.UserID)
	assert.Equal(t, "tenant-a", actor.TenantID)

	req.Header.Set(HeaderUserRole, "JANITOR")
	actor = actorFromRequest(req)
	assert.Error(t, actor.Validate("test", "op"))
}
