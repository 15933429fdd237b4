package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrVersionConflict is returned when a conditional project save finds the
// row already advanced past the version the caller read.
var ErrVersionConflict = errors.New("project version conflict")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ----- users -----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, is_verified)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, user.IsVerified)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, COALESCE(avatar_key, ''), is_verified,
		       COALESCE(otp_hash, ''), otp_expires_at, created_at, updated_at
		FROM users WHERE email = $1
	`, email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, COALESCE(avatar_key, ''), is_verified,
		       COALESCE(otp_hash, ''), otp_expires_at, created_at, updated_at
		FROM users WHERE id = $1
	`, userID))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.AvatarKey,
		&user.IsVerified, &user.OTPHash, &user.OTPExpiresAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SetOTP(ctx context.Context, userID, otpHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET otp_hash=$2, otp_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, otpHash, expiresAt)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearOTP(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET otp_hash=NULL, otp_expires_at=NULL, updated_at=NOW() WHERE id=$1
	`, userID)
	if err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkUserVerified(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_verified=TRUE, otp_hash=NULL, otp_expires_at=NULL, updated_at=NOW() WHERE id=$1
	`, userID)
	if err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserAvatar(ctx context.Context, userID, avatarKey string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET avatar_key=$2, updated_at=NOW() WHERE id=$1
	`, userID, avatarKey)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs is a passive sweep run at boot. Expiry is authoritative
// at verification time; this only keeps the table tidy.
func (s *PostgresStore) DeleteExpiredOTPs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET otp_hash=NULL, otp_expires_at=NULL
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at < NOW()
	`)
	if err != nil {
		return fmt.Errorf("sweep expired otps: %w", err)
	}
	return nil
}

// ----- projects -----

const projectColumns = `
	id, owner_id, name, description, status, board_type, current_sprint,
	columns, members, invites, version, created_at, updated_at
`

// memberPredicate restricts a query to projects the user can read: the
// member set inside the JSONB document is the source of truth.
const memberPredicate = `members @> jsonb_build_array(jsonb_build_object('userId', $2::text))`

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	columnsJSON, membersJSON, invitesJSON, err := marshalAggregate(project)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, status, board_type, current_sprint,
		                      columns, members, invites, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, project.ID, project.OwnerID, project.Name, project.Description, project.Status,
		project.BoardType, project.CurrentSprint, columnsJSON, membersJSON, invitesJSON, project.Version)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProjectForUser loads a project only when the user is a member.
func (s *PostgresStore) GetProjectForUser(ctx context.Context, projectID, userID string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND `+memberPredicate+`
	`, projectID, userID)
	return scanProject(row)
}

// GetProjectByID loads a project without an access predicate. Used by the
// invitation flow, where the caller is not yet a member.
func (s *PostgresStore) GetProjectByID(ctx context.Context, projectID string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1
	`, projectID)
	return scanProject(row)
}

func (s *PostgresStore) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE members @> jsonb_build_array(jsonb_build_object('userId', $1::text))
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// SaveProject writes every mutable field of the aggregate, conditional on
// the version the caller read. A zero-row update means another writer
// committed in between and surfaces as ErrVersionConflict.
func (s *PostgresStore) SaveProject(ctx context.Context, project Project) error {
	columnsJSON, membersJSON, invitesJSON, err := marshalAggregate(project)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name=$3, description=$4, status=$5, board_type=$6, current_sprint=$7,
		    columns=$8, members=$9, invites=$10, version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$2
	`, project.ID, project.Version, project.Name, project.Description, project.Status,
		project.BoardType, project.CurrentSprint, columnsJSON, membersJSON, invitesJSON)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save project affected rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var project Project
	var columnsJSON, membersJSON, invitesJSON []byte
	err := row.Scan(
		&project.ID, &project.OwnerID, &project.Name, &project.Description,
		&project.Status, &project.BoardType, &project.CurrentSprint,
		&columnsJSON, &membersJSON, &invitesJSON,
		&project.Version, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return Project{}, err
	}
	if err := json.Unmarshal(columnsJSON, &project.Columns); err != nil {
		return Project{}, fmt.Errorf("decode columns: %w", err)
	}
	if err := json.Unmarshal(membersJSON, &project.Members); err != nil {
		return Project{}, fmt.Errorf("decode members: %w", err)
	}
	if err := json.Unmarshal(invitesJSON, &project.Invites); err != nil {
		return Project{}, fmt.Errorf("decode invites: %w", err)
	}
	return project, nil
}

func marshalAggregate(project Project) (columns, members, invites []byte, err error) {
	if columns, err = json.Marshal(project.Columns); err != nil {
		return nil, nil, nil, fmt.Errorf("encode columns: %w", err)
	}
	if members, err = json.Marshal(project.Members); err != nil {
		return nil, nil, nil, fmt.Errorf("encode members: %w", err)
	}
	if invites, err = json.Marshal(project.Invites); err != nil {
		return nil, nil, nil, fmt.Errorf("encode invites: %w", err)
	}
	return columns, members, invites, nil
}
