// Package membership holds the per-project membership and invitation state
// machine. All transitions are pure: they take the current member and invite
// sets and return the updated sets plus a per-email outcome, leaving
// persistence and user-directory lookups to the caller.
package membership

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
)

type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteCancelled InviteStatus = "cancelled"
)

type Member struct {
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	AddedBy  string    `json:"addedBy"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Invite struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	InvitedBy   string       `json:"invitedBy"`
	Status      InviteStatus `json:"status"`
	InvitedAt   time.Time    `json:"invitedAt"`
	AcceptedAt  *time.Time   `json:"acceptedAt,omitempty"`
	CancelledAt *time.Time   `json:"cancelledAt,omitempty"`
}

// InviteOutcome classifies what happened to a single invited email.
type InviteOutcome string

const (
	OutcomeAdded          InviteOutcome = "added"
	OutcomeAlreadyMember  InviteOutcome = "alreadyMember"
	OutcomeInvited        InviteOutcome = "invited"
	OutcomeAlreadyInvited InviteOutcome = "alreadyInvited"
)

// RemoveOutcome classifies what happened to a single removal request.
type RemoveOutcome string

const (
	OutcomeRemoved      RemoveOutcome = "removed"
	OutcomeCancelled    RemoveOutcome = "cancelled"
	OutcomeNotRemovable RemoveOutcome = "notRemovable"
	OutcomeNotFound     RemoveOutcome = "notFound"
)

// NormalizeEmail lowercases and trims an email address. Empty results mean
// the entry is malformed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsMember reports whether the user appears in the member set.
func IsMember(members []Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether the user holds the owner role. The member set is
// the source of truth, not the project's denormalized owner column.
func IsOwner(members []Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return m.Role == RoleOwner
		}
	}
	return false
}

// CanRead reports whether the user may read the project at all.
func CanRead(members []Member, userID string) bool {
	return IsMember(members, userID)
}

// NewOwnerMember seeds the single owner-role member created with a project.
func NewOwnerMember(ownerID string, now time.Time) Member {
	return Member{UserID: ownerID, Role: RoleOwner, AddedBy: ownerID, JoinedAt: now}
}

func pendingInviteIndex(invites []Invite, email string) int {
	for i, inv := range invites {
		if inv.Status == InvitePending && inv.Email == email {
			return i
		}
	}
	return -1
}

// ApplyInvite processes one normalized email of an invite batch.
// existingUserID is the account id the email resolves to, or empty when no
// account exists. Accounts become collaborators immediately, superseding any
// pending invite for the same email; unknown emails get at most one pending
// invite.
func ApplyInvite(members []Member, invites []Invite, email, existingUserID, invitedBy string, now time.Time) ([]Member, []Invite, InviteOutcome) {
	if existingUserID != "" {
		if IsMember(members, existingUserID) {
			return members, invites, OutcomeAlreadyMember
		}
		members = append(members, Member{
			UserID:   existingUserID,
			Role:     RoleCollaborator,
			AddedBy:  invitedBy,
			JoinedAt: now,
		})
		if i := pendingInviteIndex(invites, email); i >= 0 {
			accepted := now
			invites[i].Status = InviteAccepted
			invites[i].AcceptedAt = &accepted
		}
		return members, invites, OutcomeAdded
	}

	if pendingInviteIndex(invites, email) >= 0 {
		return members, invites, OutcomeAlreadyInvited
	}

	invites = append(invites, Invite{
		ID:        uuid.NewString(),
		Email:     email,
		InvitedBy: invitedBy,
		Status:    InvitePending,
		InvitedAt: now,
	})
	return members, invites, OutcomeInvited
}

// ApplyAccept marks the pending invite for the caller's own email accepted
// and adds the caller as a collaborator. It reports false when no pending
// invite matches.
func ApplyAccept(members []Member, invites []Invite, email, userID string, now time.Time) ([]Member, []Invite, bool) {
	i := pendingInviteIndex(invites, email)
	if i < 0 {
		return members, invites, false
	}
	accepted := now
	invites[i].Status = InviteAccepted
	invites[i].AcceptedAt = &accepted
	if !IsMember(members, userID) {
		members = append(members, Member{
			UserID:   userID,
			Role:     RoleCollaborator,
			AddedBy:  invites[i].InvitedBy,
			JoinedAt: now,
		})
	}
	return members, invites, true
}

// ApplyRemove processes one entry of a removal batch. existingUserID is the
// account the email resolves to, or empty. The owner is never removable.
func ApplyRemove(members []Member, invites []Invite, email, existingUserID string, now time.Time) ([]Member, []Invite, RemoveOutcome) {
	if existingUserID != "" && IsOwner(members, existingUserID) {
		return members, invites, OutcomeNotRemovable
	}

	if existingUserID != "" && IsMember(members, existingUserID) {
		kept := make([]Member, 0, len(members)-1)
		for _, m := range members {
			if m.UserID != existingUserID {
				kept = append(kept, m)
			}
		}
		return kept, invites, OutcomeRemoved
	}

	if i := pendingInviteIndex(invites, email); i >= 0 {
		cancelled := now
		invites[i].Status = InviteCancelled
		invites[i].CancelledAt = &cancelled
		return members, invites, OutcomeCancelled
	}

	return members, invites, OutcomeNotFound
}
