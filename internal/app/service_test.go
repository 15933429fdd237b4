package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authotp"
	"taskboard/api/internal/board"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/membership"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

// fakeStore is an in-memory dataStore. saveErr forces SaveProject failures.
type fakeStore struct {
	users     map[string]store.User // keyed by id
	projects  map[string]store.Project
	saveErr   error
	saveCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]store.User{},
		projects: map[string]store.Project{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) SetOTP(_ context.Context, userID, otpHash string, expiresAt time.Time) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.OTPHash = otpHash
	user.OTPExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) ClearOTP(_ context.Context, userID string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	f.users[userID] = user
	return nil
}

func (f *fakeStore) MarkUserVerified(_ context.Context, userID string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.IsVerified = true
	user.OTPHash = ""
	user.OTPExpiresAt = nil
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserAvatar(_ context.Context, userID, avatarKey string) error {
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.AvatarKey = avatarKey
	f.users[userID] = user
	return nil
}

func (f *fakeStore) DeleteExpiredOTPs(_ context.Context) error { return nil }

func (f *fakeStore) InsertProject(_ context.Context, project store.Project) error {
	f.projects[project.ID] = project
	return nil
}

func (f *fakeStore) GetProjectForUser(_ context.Context, id, userID string) (store.Project, error) {
	project, ok := f.projects[id]
	if !ok || !membership.IsMember(project.Members, userID) {
		return store.Project{}, sql.ErrNoRows
	}
	return project, nil
}

func (f *fakeStore) GetProjectByID(_ context.Context, id string) (store.Project, error) {
	project, ok := f.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return project, nil
}

func (f *fakeStore) ListProjectsForUser(_ context.Context, userID string) ([]store.Project, error) {
	var out []store.Project
	for _, project := range f.projects {
		if membership.IsMember(project.Members, userID) {
			out = append(out, project)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveProject(_ context.Context, project store.Project) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	current, ok := f.projects[project.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if current.Version != project.Version {
		return store.ErrVersionConflict
	}
	project.Version++
	f.projects[project.ID] = project
	f.saveCount++
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSessions is an in-memory single-slot session store.
type fakeSessions struct {
	slots map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{slots: map[string]string{}}
}

func (f *fakeSessions) Set(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.slots[userID] = tokenHash
	return nil
}

func (f *fakeSessions) Check(_ context.Context, userID, tokenHash string) error {
	if current, ok := f.slots[userID]; ok && current == tokenHash {
		return nil
	}
	return session.ErrNoSession
}

func (f *fakeSessions) Clear(_ context.Context, userID string) error {
	delete(f.slots, userID)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret: "test-secret",
		AccessTTL: time.Hour,
		OTPTTL:    10 * time.Minute,
	}
}

func newTestService() (*Service, *fakeStore, *fakeSessions) {
	data := newFakeStore()
	sessions := newFakeSessions()
	otp := authotp.NewService(data, 10*time.Minute)
	mailer := email.NewService(email.Config{})
	svc := New(testConfig(), data, sessions, otp, mailer, nil, nil)
	return svc, data, sessions
}

func seedUser(data *fakeStore, id, emailAddr, name string) Session {
	data.users[id] = store.User{ID: id, Email: emailAddr, DisplayName: name, IsVerified: true}
	return Session{UserID: id, Email: emailAddr, UserName: name}
}

func mustCreateProject(t *testing.T, svc *Service, sess Session, input CreateProjectInput) store.Project {
	t.Helper()
	payload, err := svc.CreateProject(context.Background(), sess, input)
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}
	project := payload["project"].(map[string]any)
	id := project["id"].(string)
	stored, err := svc.store.GetProjectByID(context.Background(), id)
	if err != nil {
		t.Fatalf("created project missing from store: %v", err)
	}
	return stored
}

func TestCreateProjectDefaults(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")

	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "  Apollo  "})

	if project.Name != "Apollo" {
		t.Fatalf("name should be trimmed, got %q", project.Name)
	}
	if project.Status != store.StatusCreated || project.BoardType != store.BoardScrum {
		t.Fatalf("unexpected defaults: %q %q", project.Status, project.BoardType)
	}
	if project.Version != 1 {
		t.Fatalf("new projects start at version 1, got %d", project.Version)
	}
	if len(project.Columns) != 4 {
		t.Fatalf("expected default board, got %d columns", len(project.Columns))
	}
	if len(project.Columns[0].Cards) != 1 || project.Columns[0].Cards[0].Title != board.DefaultSeedCardTitle {
		t.Fatalf("expected seed card in first column, got %+v", project.Columns[0].Cards)
	}
	if len(project.Members) != 1 || project.Members[0].Role != membership.RoleOwner || project.Members[0].UserID != "usr_owner" {
		t.Fatalf("creator should be the sole owner member, got %+v", project.Members)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	ctx := context.Background()

	if _, err := svc.CreateProject(ctx, owner, CreateProjectInput{Name: "  "}); !isStatus(err, 400) {
		t.Fatalf("blank name should be a 400, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, owner, CreateProjectInput{Name: "X", Status: "archived"}); !isStatus(err, 400) {
		t.Fatalf("invalid status should be a 400, got %v", err)
	}
	if _, err := svc.CreateProject(ctx, owner, CreateProjectInput{Name: "X", BoardType: "gantt"}); !isStatus(err, 400) {
		t.Fatalf("invalid board type should be a 400, got %v", err)
	}
}

func TestGetProjectRequiresMembership(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	stranger := seedUser(data, "usr_other", "other@example.com", "Other")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})

	if _, err := svc.GetProject(context.Background(), stranger, project.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("non-members should see not-found, got %v", err)
	}
}

func TestUpdateProjectOwnerOnly(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	collab := seedUser(data, "usr_collab", "collab@example.com", "Collab")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	if _, err := svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{{Email: "collab@example.com"}}); err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if _, err := svc.UpdateProject(ctx, collab, project.ID, UpdateProjectInput{Name: strPtr("Hijack")}); !isStatus(err, 403) {
		t.Fatalf("collaborator update should be a 403, got %v", err)
	}

	status := "in-progress"
	if _, err := svc.UpdateProject(ctx, owner, project.ID, UpdateProjectInput{Status: &status}); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	stored := data.projects[project.ID]
	if stored.Status != store.StatusInProgress {
		t.Fatalf("status not persisted, got %q", stored.Status)
	}
}

func TestUpdateProjectReplacesBoardWithoutSeedCards(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})

	columns := []board.ColumnInput{{Name: strPtr("Solo")}}
	if _, err := svc.UpdateProject(context.Background(), owner, project.ID, UpdateProjectInput{Columns: &columns}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored := data.projects[project.ID]
	if len(stored.Columns) != 1 || stored.Columns[0].Name != "Solo" {
		t.Fatalf("board should be replaced, got %+v", stored.Columns)
	}
	if len(stored.Columns[0].Cards) != 0 {
		t.Fatalf("board updates must not seed default cards, got %+v", stored.Columns[0].Cards)
	}
}

func TestCreateColumn(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	payload, err := svc.CreateColumn(ctx, owner, project.ID, board.ColumnInput{Name: strPtr("Blocked"), Order: intPtr(2)})
	if err != nil {
		t.Fatalf("create column failed: %v", err)
	}
	column := payload["column"].(board.Column)
	if column.Name != "Blocked" || column.Order != 2 {
		t.Fatalf("unexpected column: %+v", column)
	}
	columns := payload["columns"].([]board.Column)
	if len(columns) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(columns))
	}

	if _, err := svc.CreateColumn(ctx, owner, project.ID, board.ColumnInput{Name: strPtr("blocked")}); !isStatus(err, 409) {
		t.Fatalf("duplicate name should be a 409, got %v", err)
	}
	if _, err := svc.CreateColumn(ctx, owner, project.ID, board.ColumnInput{}); !isStatus(err, 400) {
		t.Fatalf("missing name should be a 400, got %v", err)
	}
}

func TestUpdateColumnRenameMirrorsStatuses(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	payload, err := svc.UpdateColumn(ctx, owner, project.ID, UpdateColumnInput{
		Name:    "To Do",
		NewName: strPtr("Backlog"),
	})
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	columns := payload["columns"].([]board.Column)
	if columns[0].Name != "Backlog" {
		t.Fatalf("expected renamed column, got %+v", columns[0])
	}
	for _, card := range columns[0].Cards {
		if card.Status != "Backlog" {
			t.Fatalf("card status not rewritten: %+v", card)
		}
	}

	if _, err := svc.UpdateColumn(ctx, owner, project.ID, UpdateColumnInput{Name: "Ghost", Order: intPtr(1)}); !isStatus(err, 404) {
		t.Fatalf("unknown column should be a 404, got %v", err)
	}
	if _, err := svc.UpdateColumn(ctx, owner, project.ID, UpdateColumnInput{Name: " "}); !isStatus(err, 400) {
		t.Fatalf("blank name should be a 400, got %v", err)
	}
}

func TestUpdateColumnReplaceCardsAndReorder(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})

	cards := []board.CardInput{{Title: strPtr("Replaced")}}
	payload, err := svc.UpdateColumn(context.Background(), owner, project.ID, UpdateColumnInput{
		Name:  "Done",
		Cards: &cards,
		Order: intPtr(1),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	columns := payload["columns"].([]board.Column)
	if columns[0].Name != "Done" {
		t.Fatalf("Done should now be first, got %+v", columns[0])
	}
	if len(columns[0].Cards) != 1 || columns[0].Cards[0].Title != "Replaced" || columns[0].Cards[0].Status != "Done" {
		t.Fatalf("cards should be replaced and normalized, got %+v", columns[0].Cards)
	}
}

func TestDeleteColumnMigratesCards(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	// "To Do" holds the seed card, so deleting without a target fails.
	if _, err := svc.DeleteColumn(ctx, owner, project.ID, "To Do", ""); !isStatus(err, 400) {
		t.Fatalf("delete without target should be a 400, got %v", err)
	}
	if _, err := svc.DeleteColumn(ctx, owner, project.ID, "To Do", "Nowhere"); !isStatus(err, 404) {
		t.Fatalf("unknown target should be a 404, got %v", err)
	}

	payload, err := svc.DeleteColumn(ctx, owner, project.ID, "To Do", "Done")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	removed := payload["removedColumn"].(board.Column)
	if removed.Name != "To Do" || len(removed.Cards) != 1 {
		t.Fatalf("unexpected removed column: %+v", removed)
	}
	columns := payload["columns"].([]board.Column)
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	for _, column := range columns {
		if column.Name == "Done" {
			if len(column.Cards) != 1 || column.Cards[0].Status != "Done" {
				t.Fatalf("cards should migrate with rewritten status, got %+v", column.Cards)
			}
		}
	}
}

func TestSaveConflictSurfacesVersionError(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})

	data.saveErr = store.ErrVersionConflict
	_, err := svc.CreateColumn(context.Background(), owner, project.ID, board.ColumnInput{Name: strPtr("New")})
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected version conflict to surface, got %v", err)
	}
	status, _, _, _ := mapError(err)
	if status != 409 {
		t.Fatalf("version conflict should map to 409, got %d", status)
	}
}

func TestInviteMembersOutcomes(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	seedUser(data, "usr_dana", "dana@example.com", "Dana")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	payload, err := svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{
		{Email: "dana@example.com"},    // existing account -> added
		{Email: "new@example.com"},     // no account -> invited
		{Email: "owner@example.com"},   // already a member
		{Email: "  "},                  // invalid
		{Email: "NEW@example.com"},     // duplicate of invited, deduped
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	result := payload["results"].(InviteResult)
	if len(result.Added) != 1 || result.Added[0] != "dana@example.com" {
		t.Fatalf("expected dana added, got %+v", result)
	}
	if len(result.Invited) != 1 || result.Invited[0] != "new@example.com" {
		t.Fatalf("expected new invited, got %+v", result)
	}
	if len(result.AlreadyMembers) != 1 || len(result.InvalidEmails) != 1 {
		t.Fatalf("unexpected buckets: %+v", result)
	}

	// Second round: the pending invite reports alreadyInvited.
	payload, err = svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{{Email: "new@example.com"}})
	if err != nil {
		t.Fatalf("second invite failed: %v", err)
	}
	result = payload["results"].(InviteResult)
	if len(result.AlreadyInvited) != 1 {
		t.Fatalf("expected alreadyInvited, got %+v", result)
	}

	stored := data.projects[project.ID]
	if !membership.IsMember(stored.Members, "usr_dana") {
		t.Fatalf("dana should be a member")
	}
	if len(stored.Invites) != 1 || stored.Invites[0].Status != membership.InvitePending {
		t.Fatalf("expected one pending invite, got %+v", stored.Invites)
	}
}

func TestInviteMembersOwnerOnly(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	collab := seedUser(data, "usr_collab", "collab@example.com", "Collab")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	if _, err := svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{{Email: "collab@example.com"}}); err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if _, err := svc.InviteMembers(ctx, collab, project.ID, []InviteEntry{{Email: "x@y.z"}}); !isStatus(err, 403) {
		t.Fatalf("collaborator invite should be a 403, got %v", err)
	}
}

func TestAcceptInvite(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	if _, err := svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{{Email: "late@example.com"}}); err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	// The account registers after being invited.
	invitee := seedUser(data, "usr_late", "late@example.com", "Late")

	if _, err := svc.AcceptInvite(ctx, invitee, project.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	stored := data.projects[project.ID]
	if !membership.IsMember(stored.Members, "usr_late") {
		t.Fatalf("invitee should be a member after accepting")
	}
	if stored.Invites[0].Status != membership.InviteAccepted {
		t.Fatalf("invite should be accepted, got %+v", stored.Invites[0])
	}

	// No second pending invite to accept.
	if _, err := svc.AcceptInvite(ctx, invitee, project.ID); !isStatus(err, 404) {
		t.Fatalf("second accept should be a 404, got %v", err)
	}
}

func TestRemoveMembersOutcomes(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	seedUser(data, "usr_dana", "dana@example.com", "Dana")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})
	ctx := context.Background()

	if _, err := svc.InviteMembers(ctx, owner, project.ID, []InviteEntry{
		{Email: "dana@example.com"},
		{Email: "pending@example.com"},
	}); err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	payload, err := svc.RemoveMembers(ctx, owner, project.ID, []string{
		"dana@example.com",
		"pending@example.com",
		"owner@example.com",
		"ghost@example.com",
	})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	result := payload["result"].(RemoveResult)
	if len(result.Removed) != 1 || result.Removed[0] != "dana@example.com" {
		t.Fatalf("expected dana removed, got %+v", result)
	}
	if len(result.Cancelled) != 1 || result.Cancelled[0] != "pending@example.com" {
		t.Fatalf("expected pending cancelled, got %+v", result)
	}
	if len(result.NotRemovable) != 1 || result.NotRemovable[0] != "owner@example.com" {
		t.Fatalf("owner should be notRemovable, got %+v", result)
	}
	if len(result.NotFound) != 1 {
		t.Fatalf("expected one notFound, got %+v", result)
	}

	stored := data.projects[project.ID]
	if membership.IsMember(stored.Members, "usr_dana") {
		t.Fatalf("dana should be removed")
	}
	if !membership.IsOwner(stored.Members, "usr_owner") {
		t.Fatalf("owner must survive")
	}
}

func TestRemoveMembersAllNoOpIs404WithoutWrite(t *testing.T) {
	svc, data, _ := newTestService()
	owner := seedUser(data, "usr_owner", "owner@example.com", "Owner")
	project := mustCreateProject(t, svc, owner, CreateProjectInput{Name: "Apollo"})

	before := data.saveCount
	_, err := svc.RemoveMembers(context.Background(), owner, project.ID, []string{
		"ghost@example.com",
		"owner@example.com",
	})
	if !isStatus(err, 404) {
		t.Fatalf("all-no-op removal should be a 404, got %v", err)
	}
	if data.saveCount != before {
		t.Fatalf("no write should happen when nothing changed")
	}
}

func TestVerifyOTPIssuesSingleSlotSession(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dana@example.com", "password1", "Dana"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, code, err := svc.otp.Login(ctx, "dana@example.com", "password1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	first, err := svc.VerifyOTP(ctx, "dana@example.com", code)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, first.Token); err != nil {
		t.Fatalf("first token should be valid: %v", err)
	}

	// A second login fills the slot with a new token.
	_, code, err = svc.otp.Login(ctx, "dana@example.com", "password1")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	second, err := svc.VerifyOTP(ctx, "dana@example.com", code)
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}

	if _, err := svc.SessionFromToken(ctx, first.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("first token should be invalid after the second login, got %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, second.Token); err != nil {
		t.Fatalf("second token should be valid: %v", err)
	}

	if err := svc.Logout(ctx, second); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, second.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("logged-out token should be invalid, got %v", err)
	}
	if len(sessions.slots) != 0 {
		t.Fatalf("slot should be empty after logout")
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dana@example.com", "password1", "Dana"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.VerifyOTP(ctx, "dana@example.com", "0000000"); !isStatus(err, 401) {
		t.Fatalf("wrong code should be a 401, got %v", err)
	}
}

func isStatus(err error, status int) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Status == status
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
