package action

import (
	"context"
	defError "errors"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/internal/metrics"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DocumentStore loads documents together with their DocumentData.
// Both lookups return nil, nil when nothing matches.
type DocumentStore interface {
	GetDocumentByID(ctx context.Context, id uint64, teamID *uint64) (*domain.Document, error)
	GetDocumentByToken(ctx context.Context, token string) (*domain.Document, error)
}

type FileStore interface {
	GetFile(ctx context.Context, data *domain.DocumentData) ([]byte, error)
}

type ShareRequest struct {
	DocumentID uint64
	// Token is the viewer's recipient token, empty for owners and team members.
	Token  string
	UserID uint64
	Email  string
}

// ShareLinks returns the same link for repeated requests on one document and token.
type ShareLinks interface {
	CreateOrGetLink(ctx context.Context, req ShareRequest) (string, error)
}

type AuditRecorder interface {
	Record(entry domain.DocumentAuditLog)
}

type Navigation struct {
	Path string `json:"path"`
}

type File struct {
	Name        string
	ContentType string
	Bytes       []byte
}

type Outcome struct {
	Kind       Kind        `json:"action"`
	Navigation *Navigation `json:"navigation,omitempty"`
	ShareLink  string      `json:"share_link,omitempty"`
	Inert      bool        `json:"inert"`
	File       *File       `json:"-"`
}

type Executor struct {
	documents DocumentStore
	files     FileStore
	shares    ShareLinks
	audit     AuditRecorder
	metrics   *metrics.Metrics
}

func NewExecutor(
	documents DocumentStore,
	files FileStore,
	shares ShareLinks,
	audit AuditRecorder,
	m *metrics.Metrics,
) *Executor {
	return &Executor{
		documents: documents,
		files:     files,
		shares:    shares,
		audit:     audit,
		metrics:   m,
	}
}

// Execute performs the side effect of kind for the subject. Only Download and
// Share do any I/O.
func (e *Executor) Execute(ctx context.Context, s Subject, kind Kind) (*Outcome, error) {
	outcome, err := e.execute(ctx, s, kind)

	result := "ok"
	if err != nil {
		result = errorCode(err)
		log.Warn().Err(err).
			Str("action", string(kind)).
			Uint64("document_id", documentID(s)).
			Msg("document action failed")
	}
	e.metrics.IncExecuted(string(kind), result)

	return outcome, err
}

func (e *Executor) execute(ctx context.Context, s Subject, kind Kind) (*Outcome, error) {
	if s.Document == nil && kind != KindNone && kind != KindViewDisabled {
		return nil, errors.ErrNotFound(nil).WithMessage("Document not found")
	}

	switch kind {
	case KindEdit:
		return &Outcome{
			Kind:       kind,
			Navigation: &Navigation{Path: EditPath(teamURL(s), s.Document.ID)},
		}, nil

	case KindSign, KindApprove, KindView:
		recipient := s.Recipient()
		if recipient == nil {
			return nil, errors.ErrForbidden(nil).WithMessage("Not a recipient of this document")
		}
		return &Outcome{
			Kind:       kind,
			Navigation: &Navigation{Path: SigningPath(recipient.Token)},
		}, nil

	case KindDownload:
		file, err := e.download(ctx, s)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: kind, File: file}, nil

	case KindShare:
		link, err := e.share(ctx, s)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: kind, ShareLink: link}, nil

	case KindViewDisabled, KindNone:
		return &Outcome{Kind: kind, Inert: true}, nil
	}

	return nil, errors.ErrInvalidInput(nil).WithMessage(fmt.Sprintf("Unknown action %q", kind))
}

func (e *Executor) download(ctx context.Context, s Subject) (*File, error) {
	var (
		doc *domain.Document
		err error
	)

	// recipients always go through their token, even when they also own the document
	if recipient := s.Recipient(); recipient != nil {
		doc, err = e.documents.GetDocumentByToken(ctx, recipient.Token)
	} else {
		// scoped by the document's own team, the ?team= of the page may differ
		doc, err = e.documents.GetDocumentByID(ctx, s.Document.ID, s.Document.TeamID)
	}
	if err != nil {
		return nil, errors.ErrFetchFailed(err)
	}

	if doc == nil {
		return nil, errors.ErrNotFound(nil).WithMessage("Document not found")
	}
	if doc.DocumentData == nil {
		return nil, errors.ErrContentUnavailable(nil)
	}

	content, err := e.files.GetFile(ctx, doc.DocumentData)
	if err != nil {
		return nil, errors.ErrFetchFailed(err)
	}

	e.metrics.ObserveDownload(len(content))
	e.record(s, domain.AuditDocumentDownloaded, "")

	return &File{
		Name:        DownloadFileName(s.Document.Title),
		ContentType: "application/pdf",
		Bytes:       content,
	}, nil
}

func (e *Executor) share(ctx context.Context, s Subject) (string, error) {
	req := ShareRequest{DocumentID: s.Document.ID}
	if s.Viewer != nil {
		req.UserID = s.Viewer.UserID
		req.Email = s.Viewer.Email
	}
	if recipient := s.Recipient(); recipient != nil {
		req.Token = recipient.Token
	}

	link, err := e.shares.CreateOrGetLink(ctx, req)
	if err != nil {
		var appErr *errors.AppError
		if defError.As(err, &appErr) && appErr.Kind == errors.KindShareLinkError {
			return "", err
		}
		return "", errors.ErrShareLink(err)
	}

	e.record(s, domain.AuditShareLinkCreated, link)
	return link, nil
}

func (e *Executor) record(s Subject, typ domain.AuditLogType, data string) {
	if e.audit == nil || s.Viewer == nil {
		return
	}
	userID := s.Viewer.UserID
	e.audit.Record(domain.DocumentAuditLog{
		DocumentID: s.Document.ID,
		Type:       typ,
		UserID:     &userID,
		Email:      s.Viewer.Email,
		Data:       data,
	})
}

func errorCode(err error) string {
	var appErr *errors.AppError
	if defError.As(err, &appErr) {
		return appErr.Kind
	}
	return errors.KindInternal
}

func teamURL(s Subject) string {
	if s.Team == nil {
		return ""
	}
	return s.Team.URL
}

func documentID(s Subject) uint64 {
	if s.Document == nil {
		return 0
	}
	return s.Document.ID
}
