package service

import (
	"bytes"
	"context"
	"io"
	"sort"
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

type fakeCVRepo struct {
	mu        sync.Mutex
	cvs       map[uuid.UUID]model.CV
	createErr error
}

func newFakeCVRepo() *fakeCVRepo {
	return &fakeCVRepo{cvs: make(map[uuid.UUID]model.CV)}
}

func (r *fakeCVRepo) Create(_ context.Context, cv *model.CV) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cv.UploadedAt = time.Now()
	r.cvs[cv.ID] = *cv
	return nil
}

func (r *fakeCVRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*model.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[id]
	if !ok || cv.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return &cv, nil
}

func (r *fakeCVRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CV
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			out = append(out, cv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *fakeCVRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[id]
	if !ok || cv.UserID != userID {
		return errs.ErrNotFound
	}
	delete(r.cvs, id)
	return nil
}

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (s *fakeBlobStore) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return int64(len(data)), nil
}

func (s *fakeBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

type fakeSigner struct{}

func (fakeSigner) SignedURL(key string) string { return "https://cdn.test/" + key }

func newCVService(repo *fakeCVRepo, blobs *fakeBlobStore) *CVServiceImpl {
	return NewCVService(repo, blobs, fakeSigner{}, zap.NewNop())
}

func TestCVUpload_StoresBlobAndRow(t *testing.T) {
	repo := newFakeCVRepo()
	blobs := newFakeBlobStore()
	svc := newCVService(repo, blobs)
	userID := uuid.Must(uuid.NewV4())

	content := "pdf bytes"
	cv, err := svc.Upload(context.Background(), userID, "resume.pdf", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, "resume.pdf", cv.FileName)
	require.Equal(t, int64(len(content)), cv.SizeBytes)
	require.True(t, strings.HasPrefix(cv.StorageKey, userID.String()+"/"))
	require.True(t, strings.HasSuffix(cv.StorageKey, ".pdf"))

	stored, err := blobs.Open(context.Background(), cv.StorageKey)
	require.NoError(t, err)
	data, err := io.ReadAll(stored)
	require.NoError(t, err)
	require.Equal(t, content, string(data))

	got, err := repo.GetByID(context.Background(), userID, cv.ID)
	require.NoError(t, err)
	require.Equal(t, cv.StorageKey, got.StorageKey)
}

func TestCVUpload_RejectsBadType(t *testing.T) {
	svc := newCVService(newFakeCVRepo(), newFakeBlobStore())

	_, err := svc.Upload(context.Background(), uuid.Must(uuid.NewV4()), "malware.exe", 100, strings.NewReader("x"))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestCVUpload_RejectsDeclaredOversize(t *testing.T) {
	svc := newCVService(newFakeCVRepo(), newFakeBlobStore())

	_, err := svc.Upload(context.Background(), uuid.Must(uuid.NewV4()), "big.pdf", maxCVSize+1, strings.NewReader("x"))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestCVUpload_EnforcesActualSize(t *testing.T) {
	blobs := newFakeBlobStore()
	svc := newCVService(newFakeCVRepo(), blobs)

	// Declared size lies; the stream is longer than the cap.
	big := strings.NewReader(strings.Repeat("a", maxCVSize+10))
	_, err := svc.Upload(context.Background(), uuid.Must(uuid.NewV4()), "big.pdf", 100, big)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Empty(t, blobs.blobs)
}

func TestCVUpload_BlobSaveFailure(t *testing.T) {
	repo := newFakeCVRepo()
	blobs := newFakeBlobStore()
	blobs.saveErr = errs.ErrStoreUnavailable
	svc := newCVService(repo, blobs)

	_, err := svc.Upload(context.Background(), uuid.Must(uuid.NewV4()), "resume.pdf", 10, strings.NewReader("0123456789"))
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	require.Empty(t, repo.cvs)
}

func TestCVUpload_CleansBlobWhenRowFails(t *testing.T) {
	repo := newFakeCVRepo()
	repo.createErr = errs.ErrStoreUnavailable
	blobs := newFakeBlobStore()
	svc := newCVService(repo, blobs)

	_, err := svc.Upload(context.Background(), uuid.Must(uuid.NewV4()), "resume.pdf", 10, strings.NewReader("0123456789"))
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	require.Empty(t, blobs.blobs)
}

func TestCVSignedURL_OwnershipEnforced(t *testing.T) {
	repo := newFakeCVRepo()
	svc := newCVService(repo, newFakeBlobStore())
	owner := uuid.Must(uuid.NewV4())

	cv, err := svc.Upload(context.Background(), owner, "resume.pdf", 3, strings.NewReader("abc"))
	require.NoError(t, err)

	url, err := svc.SignedURL(context.Background(), owner, cv.ID)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/"+cv.StorageKey, url)

	_, err = svc.SignedURL(context.Background(), uuid.Must(uuid.NewV4()), cv.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCVDelete_RemovesRowAndBlob(t *testing.T) {
	repo := newFakeCVRepo()
	blobs := newFakeBlobStore()
	svc := newCVService(repo, blobs)
	userID := uuid.Must(uuid.NewV4())

	cv, err := svc.Upload(context.Background(), userID, "resume.pdf", 3, strings.NewReader("abc"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), userID, cv.ID))
	require.Empty(t, repo.cvs)
	require.Empty(t, blobs.blobs)

	err = svc.Delete(context.Background(), userID, cv.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
