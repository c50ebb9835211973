package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
)

type fakeAppRepo struct {
	mu   sync.Mutex
	apps []model.Application
}

func (r *fakeAppRepo) Create(_ context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app.CreatedAt = time.Now()
	r.apps = append(r.apps, *app)
	return nil
}

func (r *fakeAppRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Application
	for i := len(r.apps) - 1; i >= 0; i-- {
		if r.apps[i].UserID == userID {
			out = append(out, r.apps[i])
		}
	}
	return out, nil
}

type fakeOptimizer struct {
	result *model.TailorResult
	err    error
	gotURL string
	gotJD  string
}

func (o *fakeOptimizer) Tailor(_ context.Context, cvURL, jobDescription string) (*model.TailorResult, error) {
	o.gotURL = cvURL
	o.gotJD = jobDescription
	if o.err != nil {
		return nil, o.err
	}
	return o.result, nil
}

type fakeMailer struct {
	err   error
	sends int
	to    string
	body  string
}

func (m *fakeMailer) Send(_ context.Context, _ uuid.UUID, to, _, body string) error {
	m.sends++
	m.to = to
	m.body = body
	return m.err
}

type appFixture struct {
	svc   *ApplicationServiceImpl
	apps  *fakeAppRepo
	cvs   *fakeCVRepo
	opt   *fakeOptimizer
	mail  *fakeMailer
	user  uuid.UUID
	cvID  uuid.UUID
	cvKey string
}

func newAppFixture(t *testing.T, result *model.TailorResult) *appFixture {
	t.Helper()
	cvs := newFakeCVRepo()
	user := uuid.Must(uuid.NewV4())
	cv := &model.CV{ID: uuid.Must(uuid.NewV4()), UserID: user, FileName: "resume.pdf", StorageKey: user.String() + "/cv.pdf"}
	require.NoError(t, cvs.Create(context.Background(), cv))

	apps := &fakeAppRepo{}
	opt := &fakeOptimizer{result: result}
	mail := &fakeMailer{}
	svc := NewApplicationService(apps, cvs, fakeSigner{}, opt, mail, zap.NewNop())
	return &appFixture{svc: svc, apps: apps, cvs: cvs, opt: opt, mail: mail, user: user, cvID: cv.ID, cvKey: cv.StorageKey}
}

func TestApplicationCreate_OptimizerSentMail(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{Score: 87, DocumentURL: "https://docs.test/out.pdf", EmailSent: true})

	app, err := f.svc.Create(context.Background(), f.user, f.cvID, "Go developer", "hr@company.com")
	require.NoError(t, err)
	require.Equal(t, 87, app.Score)
	require.Equal(t, "https://docs.test/out.pdf", app.DocumentURL)
	require.True(t, app.EmailSent)
	require.Zero(t, f.mail.sends)

	require.Equal(t, "https://cdn.test/"+f.cvKey, f.opt.gotURL)
	require.Equal(t, "Go developer", f.opt.gotJD)
	require.Len(t, f.apps.apps, 1)
}

func TestApplicationCreate_SendsMailWhenOptimizerDidNot(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{Score: 61, DocumentURL: "https://docs.test/out.pdf"})

	app, err := f.svc.Create(context.Background(), f.user, f.cvID, "Go developer", "hr@company.com")
	require.NoError(t, err)
	require.True(t, app.EmailSent)
	require.Equal(t, 1, f.mail.sends)
	require.Equal(t, "hr@company.com", f.mail.to)
	require.True(t, strings.Contains(f.mail.body, "https://docs.test/out.pdf"))
}

func TestApplicationCreate_MailFailureIsNotFatal(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{Score: 61, DocumentURL: "https://docs.test/out.pdf"})
	f.mail.err = errs.ErrReauthRequired

	app, err := f.svc.Create(context.Background(), f.user, f.cvID, "Go developer", "hr@company.com")
	require.NoError(t, err)
	require.False(t, app.EmailSent)
	require.Len(t, f.apps.apps, 1)
}

func TestApplicationCreate_NoRecipientNoMail(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{Score: 61, DocumentURL: "https://docs.test/out.pdf"})

	app, err := f.svc.Create(context.Background(), f.user, f.cvID, "Go developer", "")
	require.NoError(t, err)
	require.False(t, app.EmailSent)
	require.Zero(t, f.mail.sends)
}

func TestApplicationCreate_Validation(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{})

	_, err := f.svc.Create(context.Background(), f.user, f.cvID, "   ", "hr@company.com")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = f.svc.Create(context.Background(), f.user, uuid.Must(uuid.NewV4()), "Go developer", "")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Empty(t, f.apps.apps)
}

func TestApplicationCreate_OptimizerFailure(t *testing.T) {
	f := newAppFixture(t, nil)
	f.opt.err = errs.ErrProviderUnavailable

	_, err := f.svc.Create(context.Background(), f.user, f.cvID, "Go developer", "")
	require.ErrorIs(t, err, errs.ErrProviderUnavailable)
	require.Empty(t, f.apps.apps)
}

func TestApplicationList_NewestFirstPerUser(t *testing.T) {
	f := newAppFixture(t, &model.TailorResult{Score: 10})

	_, err := f.svc.Create(context.Background(), f.user, f.cvID, "first", "")
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), f.user, f.cvID, "second", "")
	require.NoError(t, err)

	apps, err := f.svc.List(context.Background(), f.user)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.Equal(t, "second", apps[0].JobDescription)

	other, err := f.svc.List(context.Background(), uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	require.Empty(t, other)
}
