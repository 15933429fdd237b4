package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"taskboard/api/internal/membership"
	"taskboard/api/internal/store"
)

// InviteEntry is one element of an invite batch. Clients send either a bare
// email string or an object with an email field; decodeInviteEntries accepts
// both.
type InviteEntry struct {
	Email string `json:"email"`
}

// InviteResult buckets every entry of an invite batch by what happened to it.
type InviteResult struct {
	Added          []string `json:"added"`
	AlreadyMembers []string `json:"alreadyMembers"`
	Invited        []string `json:"invited"`
	AlreadyInvited []string `json:"alreadyInvited"`
	InvalidEmails  []string `json:"invalidEmails"`
}

// RemoveResult buckets every entry of a removal batch by what happened to it.
type RemoveResult struct {
	Removed      []string `json:"removed"`
	Cancelled    []string `json:"cancelled"`
	NotRemovable []string `json:"notRemovable"`
	NotFound     []string `json:"notFound"`
}

// InviteMembers processes an invite batch. Emails that resolve to existing
// accounts join as collaborators immediately; the rest get a pending invite.
// Owner only.
func (s *Service) InviteMembers(ctx context.Context, sess Session, projectID string, entries []InviteEntry) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, validationError("At least one email is required")
	}

	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !membership.IsOwner(project.Members, sess.UserID) {
		return nil, forbiddenError("Only the project owner can invite members")
	}

	now := time.Now().UTC()
	result := InviteResult{
		Added:          []string{},
		AlreadyMembers: []string{},
		Invited:        []string{},
		AlreadyInvited: []string{},
		InvalidEmails:  []string{},
	}
	seen := make(map[string]bool)
	changed := false

	for _, entry := range entries {
		email := membership.NormalizeEmail(entry.Email)
		if email == "" {
			result.InvalidEmails = append(result.InvalidEmails, entry.Email)
			continue
		}
		if seen[email] {
			continue
		}
		seen[email] = true

		existingUserID, err := s.lookupUserID(ctx, email)
		if err != nil {
			return nil, err
		}

		var outcome membership.InviteOutcome
		project.Members, project.Invites, outcome = membership.ApplyInvite(
			project.Members, project.Invites, email, existingUserID, sess.UserID, now)

		switch outcome {
		case membership.OutcomeAdded:
			result.Added = append(result.Added, email)
			changed = true
		case membership.OutcomeAlreadyMember:
			result.AlreadyMembers = append(result.AlreadyMembers, email)
		case membership.OutcomeInvited:
			result.Invited = append(result.Invited, email)
			changed = true
			s.sendInviteEmail(email, project, sess)
		case membership.OutcomeAlreadyInvited:
			result.AlreadyInvited = append(result.AlreadyInvited, email)
		}
	}

	if changed {
		if err := s.store.SaveProject(ctx, project); err != nil {
			return nil, err
		}
		project.Version++
		s.indexProject(project)
	}

	return map[string]any{"results": result, "members": project.Members, "invites": project.Invites}, nil
}

// AcceptInvite lets the caller accept the pending invite addressed to their
// own email. Any member may have invited them, so the project is loaded
// without the membership predicate.
func (s *Service) AcceptInvite(ctx context.Context, sess Session, projectID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	project, err := s.store.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	members, invites, ok := membership.ApplyAccept(
		project.Members, project.Invites, membership.NormalizeEmail(user.Email), user.ID, time.Now().UTC())
	if !ok {
		return nil, notFoundError("No pending invite for this account")
	}
	project.Members = members
	project.Invites = invites

	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	project.Version++
	s.indexProject(project)

	return map[string]any{"project": projectPayload(project)}, nil
}

// RemoveMembers processes a removal batch: members are removed, pending
// invites cancelled. When nothing in the batch matched, the project is left
// untouched and the whole request is a 404. Owner only.
func (s *Service) RemoveMembers(ctx context.Context, sess Session, projectID string, emails []string) (map[string]any, error) {
	if len(emails) == 0 {
		return nil, validationError("At least one email is required")
	}

	project, err := s.store.GetProjectForUser(ctx, projectID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !membership.IsOwner(project.Members, sess.UserID) {
		return nil, forbiddenError("Only the project owner can remove members")
	}

	now := time.Now().UTC()
	result := RemoveResult{
		Removed:      []string{},
		Cancelled:    []string{},
		NotRemovable: []string{},
		NotFound:     []string{},
	}
	seen := make(map[string]bool)

	for _, raw := range emails {
		email := membership.NormalizeEmail(raw)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		existingUserID, err := s.lookupUserID(ctx, email)
		if err != nil {
			return nil, err
		}

		var outcome membership.RemoveOutcome
		project.Members, project.Invites, outcome = membership.ApplyRemove(
			project.Members, project.Invites, email, existingUserID, now)

		switch outcome {
		case membership.OutcomeRemoved:
			result.Removed = append(result.Removed, email)
		case membership.OutcomeCancelled:
			result.Cancelled = append(result.Cancelled, email)
		case membership.OutcomeNotRemovable:
			result.NotRemovable = append(result.NotRemovable, email)
		case membership.OutcomeNotFound:
			result.NotFound = append(result.NotFound, email)
		}
	}

	if len(result.Removed) == 0 && len(result.Cancelled) == 0 {
		return nil, notFoundError("No members or pending invites matched")
	}

	if err := s.store.SaveProject(ctx, project); err != nil {
		return nil, err
	}
	project.Version++
	s.indexProject(project)

	return map[string]any{"result": result, "members": project.Members, "invites": project.Invites}, nil
}

func (s *Service) lookupUserID(ctx context.Context, email string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return user.ID, nil
}

func (s *Service) sendInviteEmail(to string, project store.Project, sess Session) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	inviter := sess.UserName
	if inviter == "" {
		inviter = sess.Email
	}
	acceptURL := fmt.Sprintf("%s/projects/%s/accept", s.cfg.AppBaseURL, project.ID)
	if err := s.email.SendInviteEmail(to, project.Name, inviter, acceptURL); err != nil {
		log.Printf("send invite email to %s: %v", to, err)
	}
}
