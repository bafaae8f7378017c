package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/security"
	"kinship/internal/service"
	"kinship/internal/testutil"
)

// otpMailer keeps the last OTP sent to each address
type otpMailer struct {
	mu   sync.Mutex
	otps map[string]string
}

func (m *otpMailer) IsEnabled() bool { return false }

func (m *otpMailer) SendOTPEmail(_ context.Context, to, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[to] = otp
	return nil
}

func (m *otpMailer) SendNotificationEmail(context.Context, string, string, string) error {
	return nil
}

func (m *otpMailer) otp(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otps[to]
}

type apiFixture struct {
	t      *testing.T
	db     *database.DB
	server *httptest.Server
	mailer *otpMailer
}

func newAPIFixture(t *testing.T, ratePerMinute int) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zaptest.NewLogger(t)
	uow := database.NewUnitOfWork(db, logger)

	users := repository.NewUserRepository()
	families := repository.NewFamilyRepository()
	members := repository.NewMemberRepository()
	inbox := repository.NewNotificationRepository()

	tokens, err := security.NewTokenIssuer("handler-test-secret", time.Hour)
	require.NoError(t, err)
	hasher := security.NewPasswordHasher(4)
	mailer := &otpMailer{otps: map[string]string{}}
	limiter := security.NewRateLimiter(ratePerMinute)
	t.Cleanup(limiter.Close)

	notifications := service.NewNotificationService(uow, inbox, users, mailer, nil, logger)
	media := service.MediaURLs{BaseURL: "https://kin.example"}

	router := NewRouter(Handlers{
		Middleware:    NewMiddleware(tokens, limiter, logger),
		Metrics:       NewMetrics(),
		Health:        NewHealthHandler(db),
		Auth:          NewAuthHandler(service.NewAuthService(uow, users, hasher, tokens, mailer, 5*time.Minute, logger), logger),
		Families:      NewFamilyHandler(service.NewFamilyService(uow, families, members, users, logger), logger),
		Members: NewMemberHandler(
			service.NewMembershipService(uow, users, families, members, notifications, media, logger),
			service.NewRegistrationService(uow, users, families, members, notifications, hasher, logger),
			logger,
		),
		Notifications: NewNotificationHandler(notifications, logger),
	}, nil)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiFixture{t: t, db: db, server: server, mailer: mailer}
}

type apiResponse struct {
	Status  int
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Header  http.Header
}

func (a *apiFixture) do(method, path, token string, body interface{}) apiResponse {
	a.t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&reader).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Header: resp.Header}
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *apiFixture) data(resp apiResponse, dst interface{}) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(resp.Data, dst))
}

// signup registers and verifies an account, returning its token and ID
func (a *apiFixture) signup(email string) (string, int64) {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "firstName": "Test", "lastName": email,
	})
	require.Equal(a.t, http.StatusCreated, resp.Status, resp.Message)

	resp = a.do(http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"email": email, "otp": a.mailer.otp(email)})
	require.Equal(a.t, http.StatusOK, resp.Status, resp.Message)

	var result service.AuthResult
	a.data(resp, &result)
	return result.Token, result.User.ID
}

func TestHealth(t *testing.T) {
	a := newAPIFixture(t, 100)

	resp := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	resp = a.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPIFixture(t, 100)
	a.do(http.MethodGet, "/healthz", "", nil)
	a.do(http.MethodGet, "/api/families", "", nil)

	resp, err := a.server.Client().Get(a.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, string(body), `status="401"`)
}

func TestRequireAuth(t *testing.T) {
	a := newAPIFixture(t, 100)

	for _, token := range []string{"", "not-a-jwt"} {
		resp := a.do(http.MethodGet, "/api/families", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
		assert.Equal(t, ErrUnauthorized, resp.Message)
	}
}

func TestAuthFlow(t *testing.T) {
	a := newAPIFixture(t, 100)

	token, id := a.signup("a@x.com")

	resp := a.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var me models.User
	a.data(resp, &me)
	assert.Equal(t, id, me.ID)
	assert.NotContains(t, string(resp.Data), "password")

	resp = a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "correct-horse", "firstName": "Again",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, service.ErrEmailRegistered.Message, resp.Message)

	resp = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestAuthRateLimit(t *testing.T) {
	a := newAPIFixture(t, 2)

	body := map[string]string{"email": "ghost@x.com", "password": "whatever1"}
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/auth/login", "", body).Status)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/auth/login", "", body).Status)

	resp := a.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, ErrTooManyRequests, resp.Message)
}

func TestMembershipFlow(t *testing.T) {
	a := newAPIFixture(t, 100)
	ownerToken, ownerID := a.signup("owner@x.com")
	memberToken, memberID := a.signup("member@x.com")
	outsiderToken, _ := a.signup("outsider@x.com")

	resp := a.do(http.MethodPost, "/api/families", ownerToken, map[string]string{"name": "The Owners"})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	var family models.Family
	a.data(resp, &family)

	resp = a.do(http.MethodGet, "/api/families/code/"+family.FamilyCode, memberToken, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = a.do(http.MethodPost, "/api/family-members/request", memberToken, map[string]string{"familyCode": "NOPE1"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, service.ErrInvalidFamilyCode.Message, resp.Message)

	resp = a.do(http.MethodPost, "/api/family-members/request", memberToken, map[string]string{"familyCode": family.FamilyCode})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	assert.Equal(t, "Family join request submitted successfully", resp.Message)

	resp = a.do(http.MethodGet, "/api/notifications/unread-count", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var count map[string]int
	a.data(resp, &count)
	assert.Equal(t, 1, count["count"])

	resp = a.do(http.MethodGet, "/api/family-members/pending", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var pending []models.MemberListing
	a.data(resp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, memberID, pending[0].MemberID)

	approvePath := fmt.Sprintf("/api/family-members/%d/approve/%s", memberID, family.FamilyCode)
	resp = a.do(http.MethodPut, approvePath, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = a.do(http.MethodPut, approvePath, ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Status, resp.Message)

	resp = a.do(http.MethodPut, approvePath, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, service.ErrPendingRequestNotFound.Message, resp.Message)

	resp = a.do(http.MethodGet, "/api/family-members/family/"+family.FamilyCode, memberToken, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var approved []models.MemberListing
	a.data(resp, &approved)
	assert.Len(t, approved, 2)
	assert.Equal(t, "2 approved family members found.", resp.Message)

	resp = a.do(http.MethodGet, "/api/family-members/family/"+family.FamilyCode+"/stats", memberToken, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var stats models.FamilyStats
	a.data(resp, &stats)
	assert.Equal(t, 2, stats.TotalMembers)

	resp = a.do(http.MethodGet, "/api/family-members/family/"+family.FamilyCode, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, service.ErrFamilyViewDenied.Message, resp.Message)
	resp = a.do(http.MethodGet, "/api/family-members/family/"+family.FamilyCode+"/stats", outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = a.do(http.MethodGet, fmt.Sprintf("/api/family-members/%d", memberID), outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = a.do(http.MethodGet, fmt.Sprintf("/api/family-members/%d", memberID), ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	resp = a.do(http.MethodGet, "/api/family-members/abc", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = a.do(http.MethodGet, "/api/notifications", memberToken, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var page notificationPage
	a.data(resp, &page)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Welcome to the Family!", page.Items[0].Title)

	resp = a.do(http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", page.Items[0].ID), memberToken, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	resp = a.do(http.MethodPut, fmt.Sprintf("/api/notifications/%d/read", page.Items[0].ID), outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	// the owner is not an admin-class user, so rejection is refused
	rejectPath := fmt.Sprintf("/api/family-members/%d/reject/%s", memberID, family.FamilyCode)
	resp = a.do(http.MethodPut, rejectPath, ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, service.ErrAccessDenied.Message, resp.Message)

	resp = a.do(http.MethodDelete, fmt.Sprintf("/api/family-members/%d/family/%s", memberID, family.FamilyCode), ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = a.do(http.MethodGet, "/api/family-members/family/"+family.FamilyCode, ownerToken, nil)
	a.data(resp, &approved)
	require.Len(t, approved, 1)
	assert.Equal(t, ownerID, approved[0].MemberID)
}

func TestRegisterAndJoinEndpoint(t *testing.T) {
	a := newAPIFixture(t, 100)
	ownerToken, _ := a.signup("owner@x.com")

	resp := a.do(http.MethodPost, "/api/families", ownerToken, map[string]string{"name": "The Owners"})
	require.Equal(t, http.StatusCreated, resp.Status)
	var family models.Family
	a.data(resp, &family)

	body := map[string]interface{}{
		"email":      "kid@x.com",
		"password":   "correct-horse",
		"familyCode": family.FamilyCode,
		"firstName":  "Kid",
		"lastName":   "Owner",
	}
	resp = a.do(http.MethodPost, "/api/family-members/register-and-join", ownerToken, body)
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	var result service.RegistrationResult
	a.data(resp, &result)
	assert.Equal(t, models.ApproveStatusApproved, result.Membership.ApproveStatus)

	resp = a.do(http.MethodPost, "/api/family-members/register-and-join", ownerToken, body)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, service.ErrUserExists.Message, resp.Message)

	resp = a.do(http.MethodPost, "/api/family-members/register-and-join", ownerToken, "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, ErrInvalidRequestBody, resp.Message)

	outsiderToken, _ := a.signup("outsider@x.com")
	body["email"] = "planted@x.com"
	resp = a.do(http.MethodPost, "/api/family-members/register-and-join", outsiderToken, body)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, service.ErrRegisterDenied.Message, resp.Message)

	body["role"] = models.RoleAdmin
	resp = a.do(http.MethodPost, "/api/family-members/register-and-join", ownerToken, body)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, service.ErrRoleDenied.Message, resp.Message)

	planted, err := repository.NewUserRepository().FindByEmail(context.Background(), a.db, "planted@x.com")
	require.NoError(t, err)
	assert.Nil(t, planted)
}

func TestRequestJoinOnBehalfEndpoint(t *testing.T) {
	a := newAPIFixture(t, 100)
	members := repository.NewMemberRepository()
	ownerToken, _ := a.signup("owner@x.com")
	otherOwnerToken, _ := a.signup("other-owner@x.com")
	victimToken, victimID := a.signup("victim@x.com")
	outsiderToken, _ := a.signup("outsider@x.com")
	_, newcomerID := a.signup("newcomer@x.com")

	var ours, theirs models.Family
	resp := a.do(http.MethodPost, "/api/families", ownerToken, map[string]string{"name": "Ours"})
	require.Equal(t, http.StatusCreated, resp.Status)
	a.data(resp, &ours)
	resp = a.do(http.MethodPost, "/api/families", otherOwnerToken, map[string]string{"name": "Theirs"})
	require.Equal(t, http.StatusCreated, resp.Status)
	a.data(resp, &theirs)

	resp = a.do(http.MethodPost, "/api/family-members/request", victimToken, map[string]string{"familyCode": theirs.FamilyCode})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	before, err := members.FindByMember(context.Background(), a.db, victimID)
	require.NoError(t, err)
	require.NotNil(t, before)

	for _, token := range []string{outsiderToken, ownerToken} {
		resp = a.do(http.MethodPost, "/api/family-members/request", token, map[string]interface{}{
			"familyCode": ours.FamilyCode, "memberId": victimID,
		})
		assert.Equal(t, http.StatusForbidden, resp.Status)
		assert.Equal(t, service.ErrRequestForMemberDenied.Message, resp.Message)
	}

	after, err := members.FindByMember(context.Background(), a.db, victimID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, theirs.FamilyCode, after.FamilyCode)
	assert.Equal(t, before.ApproveStatus, after.ApproveStatus)

	resp = a.do(http.MethodPost, "/api/family-members/request", ownerToken, map[string]interface{}{
		"familyCode": ours.FamilyCode, "memberId": newcomerID,
	})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Message)
	var filed models.FamilyMember
	a.data(resp, &filed)
	assert.Equal(t, newcomerID, filed.MemberID)
	assert.Equal(t, ours.FamilyCode, filed.FamilyCode)
}

func TestFamilyEndpoints(t *testing.T) {
	a := newAPIFixture(t, 100)
	ownerToken, _ := a.signup("owner@x.com")
	otherToken, _ := a.signup("other@x.com")

	resp := a.do(http.MethodPost, "/api/families", ownerToken, map[string]string{"name": "Searchable Clan"})
	require.Equal(t, http.StatusCreated, resp.Status)
	var family models.Family
	a.data(resp, &family)

	resp = a.do(http.MethodGet, "/api/families/search?query=sea", otherToken, nil)
	var found []models.Family
	a.data(resp, &found)
	assert.Empty(t, found)

	resp = a.do(http.MethodGet, "/api/families/search?query=searchable", otherToken, nil)
	a.data(resp, &found)
	assert.Len(t, found, 1)

	path := fmt.Sprintf("/api/families/%d", family.ID)
	resp = a.do(http.MethodPut, path, otherToken, map[string]string{"name": "Stolen"})
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = a.do(http.MethodPut, path, ownerToken, map[string]string{"name": "Renamed Clan"})
	require.Equal(t, http.StatusOK, resp.Status)
	a.data(resp, &family)
	assert.Equal(t, "Renamed Clan", family.Name)

	resp = a.do(http.MethodPut, "/api/families/zero", ownerToken, map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = a.do(http.MethodDelete, path, ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = a.do(http.MethodGet, "/api/families/code/"+family.FamilyCode, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = a.do(http.MethodGet, "/api/families", ownerToken, nil)
	var all []models.Family
	a.data(resp, &all)
	assert.Empty(t, all)
}
