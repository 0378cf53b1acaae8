package document

import (
	"context"
	"esign-dashboard/internal/action"
	"esign-dashboard/internal/domain"
	"esign-dashboard/internal/errors"
	"esign-dashboard/redis"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, document *domain.Document) error {
	args := m.Called(ctx, document)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uint64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockRepository) FindByRecipientToken(ctx context.Context, token string) (*domain.Document, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockRepository) ListVisible(ctx context.Context, filter ListFilter, page, pageSize int) ([]domain.Document, DocumentsMeta, error) {
	args := m.Called(ctx, filter, page, pageSize)
	return args.Get(0).([]domain.Document), args.Get(1).(DocumentsMeta), args.Error(2)
}

func (m *MockRepository) Send(ctx context.Context, docID uint64, recipients []domain.Recipient) error {
	args := m.Called(ctx, docID, recipients)
	return args.Error(0)
}

func (m *MockRepository) MarkRecipientSigned(ctx context.Context, token string, at time.Time) (*SignResult, error) {
	args := m.Called(ctx, token, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SignResult), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, docID uint64) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockRepository) CreateTemplate(ctx context.Context, template *domain.Template, data *domain.DocumentData) error {
	args := m.Called(ctx, template, data)
	return args.Error(0)
}

// fakeTeams knows one team, "acme", with members 1 and 2.
type fakeTeams struct{}

var acme = &domain.Team{ID: 5, URL: "acme", Name: "Acme"}

func (fakeTeams) ResolveForUser(ctx context.Context, url string, userID uint64) (*domain.Team, error) {
	switch {
	case url == "":
		return nil, nil
	case url != acme.URL:
		return nil, errors.ErrNotFound(nil).WithMessage("Team not found")
	case userID != 1 && userID != 2:
		return nil, errors.ErrForbidden(nil).WithMessage("You are not a member of this team")
	}
	return acme, nil
}

func (fakeTeams) IsMember(ctx context.Context, teamID, userID uint64) (bool, error) {
	return teamID == acme.ID && (userID == 1 || userID == 2), nil
}

type fakeFiles struct {
	puts int
}

func (f *fakeFiles) PutFile(ctx context.Context, fileName string, content []byte) (*domain.DocumentData, error) {
	f.puts++
	return &domain.DocumentData{ID: "data-1", Type: domain.DocumentDataBytes64, Data: "JVBERg=="}, nil
}

func (f *fakeFiles) Copy(ctx context.Context, data *domain.DocumentData) (*domain.DocumentData, error) {
	return &domain.DocumentData{ID: "copy-1", Type: data.Type, Data: data.Data}, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.DocumentAuditLog
}

func (f *fakeAudit) Record(entry domain.DocumentAuditLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) types() []domain.AuditLogType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditLogType, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Type)
	}
	return out
}

type fakeAuditLogs struct {
	logs []domain.DocumentAuditLog
}

func (f fakeAuditLogs) ListByDocument(ctx context.Context, docID uint64, limit int) ([]domain.DocumentAuditLog, error) {
	return f.logs, nil
}

type serviceFixture struct {
	repo  *MockRepository
	files *fakeFiles
	audit *fakeAudit
	mr    *miniredis.Miniredis
	svc   *DefaultService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	mr := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &serviceFixture{
		repo:  new(MockRepository),
		files: &fakeFiles{},
		audit: &fakeAudit{},
		mr:    mr,
	}
	f.svc = NewService(f.repo, fakeTeams{}, f.files, f.audit,
		fakeAuditLogs{logs: []domain.DocumentAuditLog{{ID: 1, DocumentID: 7}}},
		redis.NewCache(client), time.Minute)
	f.svc.pageCount = func(b []byte) (int, error) {
		if string(b) != "%PDF" {
			return 0, assert.AnError
		}
		return 2, nil
	}
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func ownerDoc(status domain.DocumentStatus) *domain.Document {
	return &domain.Document{
		ID:           7,
		Title:        "Contract",
		Status:       status,
		UserID:       owner.UserID,
		DocumentData: &domain.DocumentData{ID: "data-1", Type: domain.DocumentDataBytes64, Data: "JVBERg=="},
	}
}

func TestListDocuments_CachesUntilInvalidated(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	docs := []domain.Document{*ownerDoc(domain.DocumentStatusDraft)}
	meta := DocumentsMeta{Total: 1, CurrentPage: 1, PerPage: 10, TotalPage: 1}

	f.repo.On("ListVisible", ctx, ListFilter{UserID: 1, Email: owner.Email}, 1, 10).
		Return(docs, meta, nil).Twice()

	page, team, err := f.svc.ListDocuments(ctx, owner, "", 1, 10)
	require.NoError(t, err)
	assert.Nil(t, team)
	assert.Len(t, page.Documents, 1)

	// served from redis
	_, _, err = f.svc.ListDocuments(ctx, owner, "", 1, 10)
	require.NoError(t, err)

	f.svc.invalidate(ctx, ownerDoc(domain.DocumentStatusDraft))
	_, _, err = f.svc.ListDocuments(ctx, owner, "", 1, 10)
	require.NoError(t, err)

	f.repo.AssertExpectations(t)
}

func TestListDocuments_TeamScope(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	teamID := acme.ID
	f.repo.On("ListVisible", ctx, ListFilter{UserID: 2, Email: "mate@example.com", TeamID: &teamID}, 1, 10).
		Return([]domain.Document{}, DocumentsMeta{CurrentPage: 1, PerPage: 10}, nil)

	_, team, err := f.svc.ListDocuments(ctx, action.Viewer{UserID: 2, Email: "mate@example.com"}, "acme", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, acme, team)

	_, _, err = f.svc.ListDocuments(ctx, action.Viewer{UserID: 3, Email: "x@example.com"}, "acme", 1, 10)
	assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindForbidden})
}

func TestListDocuments_CacheHoldsNoCredentialsOrContent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	payload := strings.Repeat("A", 1<<20)
	doc := ownerDoc(domain.DocumentStatusCompleted)
	doc.User = domain.User{ID: 1, Name: "Owner", Email: owner.Email, PasswordHash: "$2a$10$SECRETHASH"}
	doc.DocumentData.Data = payload

	f.repo.On("ListVisible", ctx, ListFilter{UserID: 1, Email: owner.Email}, 1, 10).
		Return([]domain.Document{*doc}, DocumentsMeta{Total: 1, CurrentPage: 1, PerPage: 10, TotalPage: 1}, nil).Once()

	_, _, err := f.svc.ListDocuments(ctx, owner, "", 1, 10)
	require.NoError(t, err)

	var cached string
	for _, key := range f.mr.Keys() {
		if strings.HasPrefix(key, "docs:u:1:") {
			cached = mustGet(t, f.mr, key)
		}
	}
	require.NotEmpty(t, cached)
	assert.NotContains(t, cached, "SECRETHASH")
	assert.NotContains(t, cached, "PasswordHash")
	assert.NotContains(t, cached, payload[:64])
	assert.Less(t, len(cached), 4096)

	// the cached page still carries what a dashboard row needs
	page, _, err := f.svc.ListDocuments(ctx, owner, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "Owner", page.Documents[0].User.Name)
	assert.Equal(t, domain.DocumentStatusCompleted, page.Documents[0].Status)
	f.repo.AssertExpectations(t)
}

func TestGetSubject_Visibility(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	teamID := acme.ID
	doc := ownerDoc(domain.DocumentStatusPending)
	doc.TeamID = &teamID
	doc.Recipients = []domain.Recipient{{Email: "Signer@Example.com", Role: domain.RoleSigner, Token: "tok"}}
	f.repo.On("FindByID", ctx, uint64(7)).Return(doc, nil)
	f.repo.On("FindByID", ctx, uint64(8)).Return(nil, gorm.ErrRecordNotFound)

	cases := []struct {
		name    string
		viewer  action.Viewer
		visible bool
	}{
		{"owner", owner, true},
		{"recipient ignores email case", action.Viewer{UserID: 9, Email: "signer@example.com"}, true},
		{"team member", action.Viewer{UserID: 2, Email: "mate@example.com"}, true},
		{"stranger", action.Viewer{UserID: 3, Email: "x@example.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subject, err := f.svc.GetSubject(ctx, tc.viewer, 7, "")
			if tc.visible {
				require.NoError(t, err)
				assert.Equal(t, doc, subject.Document)
			} else {
				assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindNotFound})
			}
		})
	}

	_, err := f.svc.GetSubject(ctx, owner, 8, "")
	assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindNotFound})
}

func TestCreateDraft(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Title == "nda.pdf" && d.Status == domain.DocumentStatusDraft &&
			d.UserID == 1 && d.TeamID != nil && *d.TeamID == acme.ID && d.DocumentData != nil
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Document).ID = 12
	})

	doc, err := f.svc.CreateDraft(ctx, owner, "acme", Upload{FileName: "nda.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), doc.ID)
	assert.Equal(t, []domain.AuditLogType{domain.AuditDocumentCreated}, f.audit.types())
	assert.Equal(t, "1", mustGet(t, f.mr, "team:5:docs:version"))
}

func TestCreateDraft_RejectsNonPDF(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), owner, "", Upload{FileName: "x.pdf", Content: []byte("hello")})

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.KindUnprocessableEntity, appErr.Kind)
	assert.Zero(t, f.files.puts)
}

func TestSendDocument(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	draft := ownerDoc(domain.DocumentStatusDraft)
	sent := ownerDoc(domain.DocumentStatusPending)
	sent.Recipients = []domain.Recipient{{Email: "a@example.com", Role: domain.RoleSigner}, {Email: "b@example.com", Role: domain.RoleViewer}}

	f.repo.On("FindByID", ctx, uint64(7)).Return(draft, nil).Once()
	f.repo.On("Send", ctx, uint64(7), mock.MatchedBy(func(rs []domain.Recipient) bool {
		return len(rs) == 2 &&
			rs[0].Email == "a@example.com" && rs[0].Role == domain.RoleSigner && rs[0].Token != "" &&
			rs[1].Role == domain.RoleViewer && rs[0].Token != rs[1].Token &&
			rs[1].SigningStatus == domain.SigningStatusNotSigned
	})).Return(nil)
	f.repo.On("FindByID", ctx, uint64(7)).Return(sent, nil).Once()

	doc, err := f.svc.SendDocument(ctx, owner, 7, "", []RecipientInput{
		{Email: " A@example.com ", Role: "signer"},
		{Email: "b@example.com", Role: "cc"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Equal(t, "1", mustGet(t, f.mr, "email:b@example.com:docs:version"))
	f.repo.AssertExpectations(t)
}

func TestSendDocument_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not a draft", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusPending), nil)

		_, err := f.svc.SendDocument(ctx, owner, 7, "", []RecipientInput{{Email: "a@example.com", Role: "SIGNER"}})
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindConflict})
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newServiceFixture(t)
		teamID := acme.ID
		doc := ownerDoc(domain.DocumentStatusDraft)
		doc.TeamID = &teamID
		f.repo.On("FindByID", ctx, uint64(7)).Return(doc, nil)

		_, err := f.svc.SendDocument(ctx, action.Viewer{UserID: 2, Email: "mate@example.com"}, 7, "", []RecipientInput{{Email: "a@example.com", Role: "SIGNER"}})
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindForbidden})
	})

	t.Run("bad recipients", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusDraft), nil)

		for _, inputs := range [][]RecipientInput{
			nil,
			{{Email: "a@example.com", Role: "SIGNER"}, {Email: "A@example.com", Role: "VIEWER"}},
			{{Email: "a@example.com", Role: "WITNESS"}},
			{{Email: "a@example.com", Role: "CC"}},
		} {
			_, err := f.svc.SendDocument(ctx, owner, 7, "", inputs)
			assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindUnprocessableEntity})
		}
		f.repo.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost race", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusDraft), nil)
		f.repo.On("Send", ctx, uint64(7), mock.Anything).Return(ErrStateChanged)

		_, err := f.svc.SendDocument(ctx, owner, 7, "", []RecipientInput{{Email: "a@example.com", Role: "SIGNER"}})
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindConflict})
	})
}

func TestMarkRecipientSigned(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	at := f.svc.now().UTC()

	completed := ownerDoc(domain.DocumentStatusCompleted)
	completed.Recipients = []domain.Recipient{{Email: "a@example.com", Role: domain.RoleSigner}}

	f.repo.On("MarkRecipientSigned", ctx, "tok", at).Return(&SignResult{
		DocumentID: 7,
		Recipient:  domain.Recipient{Email: "a@example.com", Role: domain.RoleSigner},
		Completed:  true,
	}, nil)
	f.repo.On("MarkRecipientSigned", ctx, "again", at).Return(nil, ErrAlreadySigned)
	f.repo.On("MarkRecipientSigned", ctx, "ghost", at).Return(nil, gorm.ErrRecordNotFound)
	f.repo.On("FindByID", ctx, uint64(7)).Return(completed, nil)

	result, err := f.svc.MarkRecipientSigned(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, []domain.AuditLogType{domain.AuditRecipientSigned, domain.AuditDocumentCompleted}, f.audit.types())
	assert.Equal(t, "1", mustGet(t, f.mr, "email:a@example.com:docs:version"))

	_, err = f.svc.MarkRecipientSigned(ctx, "again")
	assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindConflict})

	_, err = f.svc.MarkRecipientSigned(ctx, "ghost")
	assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindNotFound})
}

func TestDeleteDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes draft", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusDraft), nil)
		f.repo.On("Delete", ctx, uint64(7)).Return(nil)

		require.NoError(t, f.svc.DeleteDraft(ctx, owner, 7, ""))
		f.repo.AssertExpectations(t)
	})

	t.Run("sent documents stay", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusPending), nil)

		err := f.svc.DeleteDraft(ctx, owner, 7, "")
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindForbidden})
		f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestSaveAsTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("copies the binary", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusPending), nil)
		f.repo.On("CreateTemplate", ctx, mock.MatchedBy(func(tpl *domain.Template) bool {
			return tpl.Title == "Contract" && tpl.UserID == 1
		}), mock.MatchedBy(func(d *domain.DocumentData) bool {
			return d.ID == "copy-1"
		})).Return(nil)

		tpl, err := f.svc.SaveAsTemplate(ctx, owner, 7, "")
		require.NoError(t, err)
		assert.Equal(t, "Contract", tpl.Title)
	})

	t.Run("completed documents are rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		f.repo.On("FindByID", ctx, uint64(7)).Return(ownerDoc(domain.DocumentStatusCompleted), nil)

		_, err := f.svc.SaveAsTemplate(ctx, owner, 7, "")
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindForbidden})
	})

	t.Run("missing binary", func(t *testing.T) {
		f := newServiceFixture(t)
		doc := ownerDoc(domain.DocumentStatusDraft)
		doc.DocumentData = nil
		f.repo.On("FindByID", ctx, uint64(7)).Return(doc, nil)

		_, err := f.svc.SaveAsTemplate(ctx, owner, 7, "")
		assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindContentUnavailable})
	})
}

func TestListAuditLogs_OwnerOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	doc := ownerDoc(domain.DocumentStatusPending)
	doc.Recipients = []domain.Recipient{{Email: "signer@example.com", Role: domain.RoleSigner}}
	f.repo.On("FindByID", ctx, uint64(7)).Return(doc, nil)

	logs, err := f.svc.ListAuditLogs(ctx, owner, 7, "")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	_, err = f.svc.ListAuditLogs(ctx, action.Viewer{UserID: 9, Email: "signer@example.com"}, 7, "")
	assert.ErrorIs(t, err, &errors.AppError{Kind: errors.KindForbidden})
}

func TestStore(t *testing.T) {
	repo := new(MockRepository)
	store := NewStore(repo)
	ctx := context.Background()

	teamID := acme.ID
	other := uint64(99)
	doc := ownerDoc(domain.DocumentStatusCompleted)
	doc.TeamID = &teamID
	repo.On("FindByID", ctx, uint64(7)).Return(doc, nil)
	repo.On("FindByID", ctx, uint64(8)).Return(nil, gorm.ErrRecordNotFound)
	repo.On("FindByRecipientToken", ctx, "missing").Return(nil, gorm.ErrRecordNotFound)

	got, err := store.GetDocumentByID(ctx, 7, &teamID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	got, err = store.GetDocumentByID(ctx, 7, &other)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetDocumentByID(ctx, 8, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetDocumentByToken(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
