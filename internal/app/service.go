package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authotp"
	"taskboard/api/internal/board"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/membership"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/uploads"
	"taskboard/api/internal/util"
)

// Session is the authenticated caller attached to a request.
type Session struct {
	Token     string
	UserID    string
	Email     string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SetOTP(context.Context, string, string, time.Time) error
	ClearOTP(context.Context, string) error
	MarkUserVerified(context.Context, string) error
	UpdateUserAvatar(context.Context, string, string) error
	DeleteExpiredOTPs(context.Context) error
	InsertProject(context.Context, store.Project) error
	GetProjectForUser(context.Context, string, string) (store.Project, error)
	GetProjectByID(context.Context, string) (store.Project, error)
	ListProjectsForUser(context.Context, string) ([]store.Project, error)
	SaveProject(context.Context, store.Project) error
	Ping(context.Context) error
}

type sessionStore interface {
	Set(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	Check(ctx context.Context, userID, tokenHash string) error
	Clear(ctx context.Context, userID string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	otp      *authotp.Service
	email    *email.Service
	search   *search.Service
	uploads  *uploads.Service
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, otp *authotp.Service, mailer *email.Service, searcher *search.Service, uploader *uploads.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		otp:      otp,
		email:    mailer,
		search:   searcher,
		uploads:  uploader,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap runs passive maintenance at startup: sweeping OTP slots whose
// expiry already passed. Expiry itself is enforced at verification time.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.store.DeleteExpiredOTPs(ctx)
}

// ----- auth & session -----

func (s *Service) Register(ctx context.Context, emailAddr, password, displayName string) (map[string]any, error) {
	resp, err := s.otp.Register(ctx, authotp.RegisterRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authotp.ErrEmailTaken) {
			return nil, conflictError("Email already registered")
		}
		return nil, validationError(err.Error())
	}

	s.sendOTPEmail(emailAddr, displayName, resp.Code)

	return map[string]any{
		"userId": resp.UserID,
		"email":  strings.ToLower(strings.TrimSpace(emailAddr)),
	}, nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (map[string]any, error) {
	user, code, err := s.otp.Login(ctx, emailAddr, password)
	if err != nil {
		if errors.Is(err, authotp.ErrInvalidCredentials) {
			return nil, unauthorizedError("Invalid email or password")
		}
		return nil, err
	}

	s.sendOTPEmail(user.Email, user.DisplayName, code)

	return map[string]any{"email": user.Email}, nil
}

func (s *Service) ResendOTP(ctx context.Context, emailAddr string) (map[string]any, error) {
	user, code, err := s.otp.ResendOTP(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, authotp.ErrUserNotFound) {
			return nil, notFoundError("No account for that email")
		}
		return nil, err
	}

	s.sendOTPEmail(user.Email, user.DisplayName, code)

	return map[string]any{"email": user.Email}, nil
}

// VerifyOTP completes authentication: the code is checked against the stored
// hash and expiry, then a JWT is minted and placed into the user's session
// slot. Any previously issued token for the user stops working.
func (s *Service) VerifyOTP(ctx context.Context, emailAddr, code string) (Session, error) {
	user, err := s.otp.VerifyOTP(ctx, emailAddr, code)
	if err != nil {
		return Session{}, unauthorizedError("Invalid or expired code")
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Email, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Set(ctx, user.ID, auth.HashToken(token), expiresAt); err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		UserName:  user.DisplayName,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken validates the JWT and requires it to still occupy the
// user's session slot, so a newer login invalidates it.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Check(ctx, claims.Subject, auth.HashToken(token)); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		UserName:  user.DisplayName,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session) error {
	if sess.UserID == "" {
		return nil
	}
	return s.sessions.Clear(ctx, sess.UserID)
}

func (s *Service) sendOTPEmail(to, userName, code string) {
	if s.email == nil || !s.email.IsConfigured() {
		log.Printf("email not configured; otp for %s not sent", to)
		return
	}
	if userName == "" {
		userName = "there"
	}
	if err := s.email.SendOTPEmail(to, userName, code, s.cfg.OTPTTL.String()); err != nil {
		log.Printf("send otp email to %s: %v", to, err)
	}
}

// ----- profile -----

func (s *Service) Profile(ctx context.Context, sess Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName,
		"isVerified":  user.IsVerified,
	}
	if user.AvatarKey != "" && s.uploads != nil {
		if url, err := s.uploads.AvatarURL(ctx, user.AvatarKey, time.Hour); err == nil {
			payload["avatarUrl"] = url
		}
	}
	return payload, nil
}

func (s *Service) UploadAvatar(ctx context.Context, sess Session, contentType string, body []byte) (map[string]any, error) {
	if s.uploads == nil {
		return nil, domainError(503, "UPLOADS_UNAVAILABLE", "Avatar storage not configured", nil)
	}
	if len(body) == 0 {
		return nil, validationError("Avatar body is required")
	}
	key, err := s.uploads.PutAvatar(ctx, sess.UserID, contentType, strings.NewReader(string(body)), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	if err := s.store.UpdateUserAvatar(ctx, sess.UserID, key); err != nil {
		return nil, err
	}
	url, err := s.uploads.AvatarURL(ctx, key, time.Hour)
	if err != nil {
		return nil, err
	}
	return map[string]any{"avatarUrl": url}, nil
}

// ----- search -----

func (s *Service) Search(ctx context.Context, sess Session, query string, limit int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": query}, nil
	}
	resp := s.search.Search(ctx, search.Query{Text: query, UserID: sess.UserID, Limit: limit})
	return map[string]any{"results": resp.Results, "total": resp.Total, "query": resp.Query}, nil
}

func (s *Service) indexProject(project store.Project) {
	if s.search == nil {
		return
	}
	titles := make([]string, 0)
	for _, column := range project.Columns {
		for _, card := range column.Cards {
			titles = append(titles, card.Title)
		}
	}
	memberIDs := make([]string, 0, len(project.Members))
	for _, m := range project.Members {
		memberIDs = append(memberIDs, m.UserID)
	}
	s.search.IndexProject(search.ProjectRecord{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		CardTitles:  titles,
		MemberIDs:   memberIDs,
	})
}

// ----- projects -----

type CreateProjectInput struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Status        string              `json:"status"`
	BoardType     string              `json:"boardType"`
	CurrentSprint string              `json:"currentSprint"`
	Columns       []board.ColumnInput `json:"columns"`
}

type UpdateProjectInput struct {
	Name          *string              `json:"name"`
	Description   *string              `json:"description"`
	Status        *string              `json:"status"`
	BoardType     *string              `json:"boardType"`
	CurrentSprint *string              `json:"currentSprint"`
	Columns       *[]board.ColumnInput `json:"columns"`
}

func (s *Service) CreateProject(ctx context.Context, sess Session, input CreateProjectInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("Project name is required")
	}

	status := store.StatusCreated
	if input.Status != "" {
		if !store.ValidProjectStatus(input.Status) {
			return nil, validationError("Invalid project status")
		}
		status = store.ProjectStatus(input.Status)
	}
	boardType := store.BoardScrum
	if input.BoardType != "" {
		if !store.ValidBoardType(input.BoardType) {
			return nil, validationError("Invalid board type")
		}
		boardType = store.BoardType(input.BoardType)
	}

	now := time.Now().UTC()
	project := store.Project{
		ID:            util.NewID("prj"),
		OwnerID:       sess.UserID,
		Name:          name,
		Description:   strings.TrimSpace(input.Description),
		Status:        status,
		BoardType:     boardType,
		CurrentSprint: strings.TrimSpace(input.CurrentSprint),
		Columns:       board.Normalize(input.Columns, true, now),
		Members:       []membership.Member{membership.NewOwnerMember(sess.UserID, now)},
		Invites:       []membership.Invite{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}
	s.indexProject(project)

	return map[string]any{"project": projectPayload(project)}, nil
}

func (s *Service) ListProjects(ctx context.Context, sess Session) (map[string]any, error) {
	projects, err := s.store.ListProjectsForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		payloads = append(payloads, projectPayload(project))
	}
	return map[string]any{"projects": payloads}, nil
}

func (s *Service) GetProject(ctx context.Context, sess Session, projectID string) (map[string]any, error) {
	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"project": projectPayload(project)}, nil
}

// UpdateProject changes project metadata and, when a columns array is
// supplied, replaces the whole board with its normalized form. Owner only.
func (s *Service) UpdateProject(ctx context.Context, sess Session, projectID string, input UpdateProjectInput) (map[string]any, error) {
	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !membership.IsOwner(project.Members, sess.UserID) {
		return nil, forbiddenError("Only the project owner can update the project")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, validationError("Project name is required")
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if !store.ValidProjectStatus(*input.Status) {
			return nil, validationError("Invalid project status")
		}
		project.Status = store.ProjectStatus(*input.Status)
	}
	if input.BoardType != nil {
		if !store.ValidBoardType(*input.BoardType) {
			return nil, validationError("Invalid board type")
		}
		project.BoardType = store.BoardType(*input.BoardType)
	}
	if input.CurrentSprint != nil {
		project.CurrentSprint = strings.TrimSpace(*input.CurrentSprint)
	}
	if input.Columns != nil {
		project.Columns = board.Normalize(*input.Columns, false, time.Now().UTC())
	}

	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	project.Version++
	s.indexProject(project)

	return map[string]any{"project": projectPayload(project)}, nil
}

// ----- columns -----

type UpdateColumnInput struct {
	Name    string             `json:"name"`
	NewName *string            `json:"newName"`
	Cards   *[]board.CardInput `json:"cards"`
	Order   *int               `json:"order"`
}

func (s *Service) CreateColumn(ctx context.Context, sess Session, projectID string, input board.ColumnInput) (map[string]any, error) {
	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}

	columns, column, err := board.Insert(board.Sanitize(project.Columns), input, time.Now().UTC())
	if err != nil {
		return nil, mapBoardError(err)
	}
	project.Columns = columns

	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	s.indexProject(project)

	return map[string]any{"column": column, "columns": columns}, nil
}

// UpdateColumn applies a rename, a full card replacement, a reorder, or any
// combination, in that order, against the sanitized column list.
func (s *Service) UpdateColumn(ctx context.Context, sess Session, projectID string, input UpdateColumnInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, validationError("Column name is required")
	}

	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}

	columns := board.Sanitize(project.Columns)
	name := input.Name

	if input.NewName != nil {
		columns, err = board.Rename(columns, name, *input.NewName)
		if err != nil {
			return nil, mapBoardError(err)
		}
		name = strings.TrimSpace(*input.NewName)
	}
	if input.Cards != nil {
		columns, err = board.ReplaceCards(columns, name, *input.Cards, time.Now().UTC())
		if err != nil {
			return nil, mapBoardError(err)
		}
	}
	if input.Order != nil {
		columns, err = board.Reorder(columns, name, *input.Order)
		if err != nil {
			return nil, mapBoardError(err)
		}
	}

	project.Columns = columns
	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	s.indexProject(project)

	return map[string]any{"columns": columns}, nil
}

func (s *Service) DeleteColumn(ctx context.Context, sess Session, projectID, name, targetColumn string) (map[string]any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validationError("Column name is required")
	}

	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}

	columns, removed, err := board.Delete(board.Sanitize(project.Columns), name, targetColumn)
	if err != nil {
		return nil, mapBoardError(err)
	}
	project.Columns = columns

	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	s.indexProject(project)

	return map[string]any{"removedColumn": removed, "columns": columns}, nil
}

func mapBoardError(err error) error {
	switch {
	case errors.Is(err, board.ErrNameRequired):
		return validationError("Column name is required")
	case errors.Is(err, board.ErrTargetRequired):
		return validationError("A target column is required to migrate remaining cards")
	case errors.Is(err, board.ErrColumnExists):
		return conflictError("A column with that name already exists")
	case errors.Is(err, board.ErrColumnNotFound):
		return notFoundError("Column not found")
	case errors.Is(err, board.ErrTargetNotFound):
		return notFoundError("Target column not found")
	}
	return err
}

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":            project.ID,
		"owner":         project.OwnerID,
		"name":          project.Name,
		"description":   project.Description,
		"status":        project.Status,
		"boardType":     project.BoardType,
		"currentSprint": project.CurrentSprint,
		"columns":       project.Columns,
		"members":       project.Members,
		"invites":       project.Invites,
		"version":       project.Version,
		"createdAt":     project.CreatedAt,
		"updatedAt":     project.UpdatedAt,
	}
}
