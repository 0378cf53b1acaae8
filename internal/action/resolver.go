// Package action decides which single action a viewer gets for a document
// row and carries it out.
package action

import "esign-dashboard/internal/domain"

type Kind string

const (
	KindNone         Kind = "none"
	KindEdit         Kind = "edit"
	KindSign         Kind = "sign"
	KindApprove      Kind = "approve"
	KindView         Kind = "view"
	KindViewDisabled Kind = "view_disabled"
	KindDownload     Kind = "download"
	KindShare        Kind = "share"
)

// Viewer is the session user. A nil *Viewer means no session.
type Viewer struct {
	UserID uint64
	Email  string
}

// Subject is everything the resolver looks at for one document row.
type Subject struct {
	Viewer   *Viewer
	Document *domain.Document
	// Team is the team the dashboard is currently scoped to, if any.
	Team *domain.Team
}

// Recipient returns the viewer's own recipient entry on the document.
func (s Subject) Recipient() *domain.Recipient {
	if s.Viewer == nil || s.Document == nil {
		return nil
	}
	return s.Document.RecipientByEmail(s.Viewer.Email)
}

func (s Subject) IsOwner() bool {
	return s.Viewer != nil && s.Document != nil && s.Document.IsOwnedBy(s.Viewer.UserID)
}

// Flags is the precomputed discriminant the rules match on.
type Flags struct {
	IsOwner               bool
	IsRecipient           bool
	IsCurrentTeamDocument bool
	IsDraft               bool
	IsPending             bool
	IsComplete            bool
	IsSigned              bool
	Role                  domain.RecipientRole
}

func NewFlags(isOwner bool, recipient *domain.Recipient, status domain.DocumentStatus) Flags {
	f := Flags{
		IsOwner:    isOwner,
		IsDraft:    status == domain.DocumentStatusDraft,
		IsPending:  status == domain.DocumentStatusPending,
		IsComplete: status == domain.DocumentStatusCompleted,
	}
	if recipient != nil {
		f.IsRecipient = true
		f.IsSigned = recipient.HasSigned()
		f.Role = recipient.Role
	}
	return f
}

type rule struct {
	name    string
	matches func(Flags) bool
	outcome func(Flags) Kind
}

func always(k Kind) func(Flags) Kind {
	return func(Flags) Kind { return k }
}

// First match wins. The flag tuples overlap, so order is the policy.
var rules = []rule{
	{
		// copies only become visible once the document is done
		name: "cc-before-completion",
		matches: func(f Flags) bool {
			return f.IsRecipient && f.Role == domain.RoleViewer && !f.IsComplete
		},
		outcome: always(KindNone),
	},
	{
		name: "edit-draft",
		matches: func(f Flags) bool {
			if f.IsOwner {
				return f.IsDraft
			}
			return f.IsDraft && f.IsCurrentTeamDocument
		},
		outcome: always(KindEdit),
	},
	{
		name: "respond-to-role",
		matches: func(f Flags) bool {
			return f.IsRecipient && f.IsPending && !f.IsSigned
		},
		outcome: func(f Flags) Kind {
			switch f.Role {
			case domain.RoleSigner:
				return KindSign
			case domain.RoleApprover:
				return KindApprove
			default:
				return KindView
			}
		},
	},
	{
		name: "already-signed",
		matches: func(f Flags) bool {
			return f.IsPending && f.IsSigned
		},
		outcome: always(KindViewDisabled),
	},
	{
		name: "download-completed",
		matches: func(f Flags) bool {
			return f.IsComplete
		},
		outcome: always(KindDownload),
	},
	{
		name:    "share",
		matches: func(Flags) bool { return true },
		outcome: always(KindShare),
	},
}

// Evaluate runs the rule table. The last rule always matches.
func Evaluate(f Flags) Kind {
	kind, _ := evaluate(f)
	return kind
}

// MatchedRule names the rule that decided f, for logging.
func MatchedRule(f Flags) string {
	_, name := evaluate(f)
	return name
}

func evaluate(f Flags) (Kind, string) {
	for _, r := range rules {
		if r.matches(f) {
			return r.outcome(f), r.name
		}
	}
	return KindShare, "share"
}

// Resolve picks the action for a viewer that is known to have a session.
func Resolve(viewerIsOwner bool, recipient *domain.Recipient, status domain.DocumentStatus) Kind {
	return Evaluate(NewFlags(viewerIsOwner, recipient, status))
}

// ResolveFor derives the flags from the subject. No session, no action.
func ResolveFor(s Subject) Kind {
	if s.Viewer == nil || s.Document == nil {
		return KindNone
	}
	return Evaluate(FlagsFor(s))
}

func FlagsFor(s Subject) Flags {
	f := NewFlags(s.IsOwner(), s.Recipient(), s.Document.Status)
	f.IsCurrentTeamDocument = s.Document.BelongsToTeam(s.Team)
	return f
}
