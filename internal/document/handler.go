package document

import (
	"context"
	"esign-dashboard/internal/action"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/internal/metrics"
	"esign-dashboard/internal/middleware"
	"esign-dashboard/internal/utils"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 20 << 20

type ActionExecutor interface {
	Execute(ctx context.Context, s action.Subject, kind action.Kind) (*action.Outcome, error)
}

type Handler struct {
	service  Service
	executor ActionExecutor
	metrics  *metrics.Metrics
}

func NewHandler(service Service, executor ActionExecutor, m *metrics.Metrics) *Handler {
	return &Handler{service: service, executor: executor, metrics: m}
}

type RecipientRow struct {
	Email         string               `json:"email"`
	Name          string               `json:"name"`
	Role          domain.RecipientRole `json:"role"`
	SigningStatus domain.SigningStatus `json:"signing_status"`
}

// DocumentRow is one dashboard line with the controls resolved for the
// requesting viewer.
type DocumentRow struct {
	ID          uint64                `json:"id"`
	Title       string                `json:"title"`
	Status      domain.DocumentStatus `json:"status"`
	OwnerName   string                `json:"owner_name"`
	OwnerEmail  string                `json:"owner_email"`
	TeamURL     string                `json:"team_url,omitempty"`
	Recipients  []RecipientRow        `json:"recipients"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Control     *action.Control       `json:"control"`
	Menu        []action.MenuItem     `json:"menu"`
}

func (h *Handler) present(c *gin.Context, s action.Subject) DocumentRow {
	doc := s.Document
	t := middleware.Translator(c)

	kind := action.ResolveFor(s)
	h.metrics.IncResolved(string(kind))

	row := DocumentRow{
		ID:          doc.ID,
		Title:       doc.Title,
		Status:      doc.Status,
		OwnerName:   doc.User.Name,
		OwnerEmail:  doc.User.Email,
		Recipients:  make([]RecipientRow, 0, len(doc.Recipients)),
		CreatedAt:   doc.CreatedAt,
		CompletedAt: doc.CompletedAt,
		Control:     action.Present(kind, s, t),
		Menu:        action.PresentMenu(action.Menu(s), t),
	}
	if doc.Team != nil {
		row.TeamURL = doc.Team.URL
	}
	for _, r := range doc.Recipients {
		row.Recipients = append(row.Recipients, RecipientRow{
			Email:         r.Email,
			Name:          r.Name,
			Role:          r.Role,
			SigningStatus: r.SigningStatus,
		})
	}
	return row
}

func viewerFrom(c *gin.Context) (action.Viewer, bool) {
	userID, email, ok := middleware.CurrentUser(c)
	return action.Viewer{UserID: userID, Email: email}, ok
}

func (h *Handler) ListDocuments(c *gin.Context) {
	viewer, _ := viewerFrom(c)

	page, pageSize := utils.GetPaginationParams(c)
	result, team, err := h.service.ListDocuments(c.Request.Context(), viewer, c.Query("team"), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	rows := make([]DocumentRow, 0, len(result.Documents))
	for i := range result.Documents {
		rows = append(rows, h.present(c, action.Subject{
			Viewer:   &viewer,
			Document: &result.Documents[i],
			Team:     team,
		}))
	}

	c.JSON(http.StatusOK, gin.H{"data": rows, "meta": result.Meta})
}

func (h *Handler) ShowDocument(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.present(c, subject))
}

// ShowAction returns the single control for the document. Anonymous callers
// get no control at all.
func (h *Handler) ShowAction(c *gin.Context) {
	if _, ok := viewerFrom(c); !ok {
		h.metrics.IncResolved(string(action.KindNone))
		c.JSON(http.StatusOK, gin.H{"action": action.KindNone, "control": nil})
		return
	}

	subject, ok := h.subject(c)
	if !ok {
		return
	}

	kind := action.ResolveFor(subject)
	h.metrics.IncResolved(string(kind))
	c.JSON(http.StatusOK, gin.H{
		"action":  kind,
		"control": action.Present(kind, subject, middleware.Translator(c)),
	})
}

// ExecuteAction performs whatever the resolver picks for the caller right now.
func (h *Handler) ExecuteAction(c *gin.Context) {
	if _, ok := viewerFrom(c); !ok {
		outcome, _ := h.executor.Execute(c.Request.Context(), action.Subject{}, action.KindNone)
		c.JSON(http.StatusOK, outcome)
		return
	}

	subject, ok := h.subject(c)
	if !ok {
		return
	}

	kind := action.ResolveFor(subject)
	h.metrics.IncResolved(string(kind))

	outcome, err := h.executor.Execute(c.Request.Context(), subject, kind)
	if err != nil {
		c.Error(err)
		return
	}
	if outcome.File != nil {
		writeFile(c, outcome.File)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) Download(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !action.Allowed(subject, action.MenuDownload) {
		c.Error(errors.ErrForbidden(nil).WithMessage("Document is not completed yet"))
		return
	}

	outcome, err := h.executor.Execute(c.Request.Context(), subject, action.KindDownload)
	if err != nil {
		c.Error(err)
		return
	}
	writeFile(c, outcome.File)
}

func (h *Handler) Share(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		return
	}
	if !action.Allowed(subject, action.MenuShare) {
		c.Error(errors.ErrForbidden(nil).WithMessage("Drafts cannot be shared"))
		return
	}

	outcome, err := h.executor.Execute(c.Request.Context(), subject, action.KindShare)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_link": outcome.ShareLink})
}

type CreateRequest struct {
	Title string `form:"title" binding:"max=255"`
}

func (h *Handler) Create(c *gin.Context) {
	viewer, _ := viewerFrom(c)

	var form CreateRequest
	if err := c.ShouldBind(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.ErrInvalidInput(err).WithMessage("A PDF file is required"))
		return
	}
	if header.Size > maxUploadSize {
		c.Error(errors.ErrUnprocessableEntity(nil).WithMessage(fmt.Sprintf("File is larger than %d MB", maxUploadSize>>20)))
		return
	}

	file, err := header.Open()
	if err != nil {
		c.Error(errors.ErrInvalidInput(err).WithMessage("Could not read upload"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		c.Error(errors.ErrInvalidInput(err).WithMessage("Could not read upload"))
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), viewer, c.Query("team"), Upload{
		Title:    form.Title,
		FileName: header.Filename,
		Content:  content,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, h.present(c, action.Subject{Viewer: &viewer, Document: doc, Team: doc.Team}))
}

type SendRequest struct {
	Recipients []RecipientInput `json:"recipients" binding:"required,min=1,dive"`
}

func (h *Handler) Send(c *gin.Context) {
	viewer, _ := viewerFrom(c)
	docID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var input SendRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.SendDocument(c.Request.Context(), viewer, docID, c.Query("team"), input.Recipients)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, h.present(c, action.Subject{Viewer: &viewer, Document: doc, Team: doc.Team}))
}

func (h *Handler) SaveAsTemplate(c *gin.Context) {
	viewer, _ := viewerFrom(c)
	docID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	template, err := h.service.SaveAsTemplate(c.Request.Context(), viewer, docID, c.Query("team"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *Handler) Delete(c *gin.Context) {
	viewer, _ := viewerFrom(c)
	docID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.service.DeleteDraft(c.Request.Context(), viewer, docID, c.Query("team")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	viewer, _ := viewerFrom(c)
	docID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	logs, err := h.service.ListAuditLogs(c.Request.Context(), viewer, docID, c.Query("team"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// MarkSigned is called by the signing service once a recipient responded.
func (h *Handler) MarkSigned(c *gin.Context) {
	result, err := h.service.MarkRecipientSigned(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": result.DocumentID,
		"completed":   result.Completed,
	})
}

func (h *Handler) subject(c *gin.Context) (action.Subject, bool) {
	viewer, ok := viewerFrom(c)
	if !ok {
		c.Error(errors.ErrUnauthorized(nil).WithMessage("Authorization is not found!"))
		return action.Subject{}, false
	}

	docID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return action.Subject{}, false
	}

	subject, err := h.service.GetSubject(c.Request.Context(), viewer, docID, c.Query("team"))
	if err != nil {
		c.Error(err)
		return action.Subject{}, false
	}
	return subject, true
}

func writeFile(c *gin.Context, file *action.File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Bytes)
}
