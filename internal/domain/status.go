package domain

import "strings"

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusCompleted DocumentStatus = "COMPLETED"
)

var DocumentStatuses = []DocumentStatus{
	DocumentStatusDraft,
	DocumentStatusPending,
	DocumentStatusCompleted,
}

func (s DocumentStatus) rank() int {
	switch s {
	case DocumentStatusDraft:
		return 1
	case DocumentStatusPending:
		return 2
	case DocumentStatusCompleted:
		return 3
	}
	return 0
}

func (s DocumentStatus) Valid() bool {
	return s.rank() > 0
}

// CanAdvanceTo reports whether next is the single step after s.
// Draft -> Pending -> Completed, never backwards.
func (s DocumentStatus) CanAdvanceTo(next DocumentStatus) bool {
	return s.Valid() && next.rank() == s.rank()+1
}

type SigningStatus string

const (
	SigningStatusNotSigned SigningStatus = "NOT_SIGNED"
	SigningStatusSigned    SigningStatus = "SIGNED"
)

var SigningStatuses = []SigningStatus{
	SigningStatusNotSigned,
	SigningStatusSigned,
}

type RecipientRole string

const (
	RoleSigner   RecipientRole = "SIGNER"
	RoleApprover RecipientRole = "APPROVER"
	// RoleViewer only receives a copy. CC in the dashboard.
	RoleViewer RecipientRole = "VIEWER"
)

var RecipientRoles = []RecipientRole{
	RoleSigner,
	RoleApprover,
	RoleViewer,
}

// ParseRecipientRole normalises user input. Unknown values are kept verbatim.
func ParseRecipientRole(s string) RecipientRole {
	role := strings.ToUpper(strings.TrimSpace(s))
	if role == "CC" {
		return RoleViewer
	}
	return RecipientRole(role)
}

// NeedsAction is true for roles whose response completes a document.
func (r RecipientRole) NeedsAction() bool {
	return r == RoleSigner || r == RoleApprover
}

type DocumentDataType string

const (
	DocumentDataBytes64 DocumentDataType = "BYTES_64"
	DocumentDataS3Path  DocumentDataType = "S3_PATH"
)
