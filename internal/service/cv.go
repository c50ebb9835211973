package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
	"github.com/jobpilot/jobpilot/internal/repository"
	"github.com/jobpilot/jobpilot/internal/storage"
)

// maxCVSize caps an uploaded CV document.
const maxCVSize = 10 << 20

// URLSigner mints time-limited download links; the concrete implementation
// lives in internal/storage.
type URLSigner interface {
	SignedURL(key string) string
}

var _ URLSigner = (*storage.URLSigner)(nil)

// CVService manages uploaded CV documents: metadata rows plus the blobs
// behind them.
type CVService interface {
	// Upload validates and stores a CV, returning the created record.
	Upload(ctx context.Context, userID uuid.UUID, fileName string, size int64, r io.Reader) (*model.CV, error)
	// List returns the user's CVs, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.CV, error)
	// SignedURL returns a time-limited download URL for the user's CV.
	SignedURL(ctx context.Context, userID, id uuid.UUID) (string, error)
	// Delete removes the CV row and its blob.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// CVServiceImpl implements CVService over the repository, the blob store
// and the URL signer.
type CVServiceImpl struct {
	cvs    repository.CVRepository
	blobs  storage.Store
	signer URLSigner
	log    *zap.Logger
}

// NewCVService constructs the CV service.
func NewCVService(cvs repository.CVRepository, blobs storage.Store, signer URLSigner, log *zap.Logger) *CVServiceImpl {
	return &CVServiceImpl{cvs: cvs, blobs: blobs, signer: signer, log: log}
}

var allowedCVExt = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
}

// Upload stores the document under a per-user key and records its
// metadata. The declared size is validated up front and the actual byte
// count is enforced while streaming.
func (s *CVServiceImpl) Upload(ctx context.Context, userID uuid.UUID, fileName string, size int64, r io.Reader) (*model.CV, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := allowedCVExt[ext]; !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", errs.ErrInvalidInput, ext)
	}
	if size <= 0 || size > maxCVSize {
		return nil, fmt.Errorf("%w: file size must be between 1 byte and %d bytes", errs.ErrInvalidInput, maxCVSize)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate cv id: %w", err)
	}
	key := fmt.Sprintf("%s/%s%s", userID, id, ext)

	written, err := s.blobs.Save(ctx, key, io.LimitReader(r, maxCVSize+1))
	if err != nil {
		return nil, fmt.Errorf("save cv blob: %w", err)
	}
	if written > maxCVSize {
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("%w: file exceeds %d bytes", errs.ErrInvalidInput, maxCVSize)
	}

	cv := &model.CV{
		ID:         id,
		UserID:     userID,
		FileName:   filepath.Base(fileName),
		StorageKey: key,
		SizeBytes:  written,
		UploadedAt: time.Now(),
	}
	if err := s.cvs.Create(ctx, cv); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}

	s.log.Info("cv uploaded",
		zap.String("user_id", userID.String()),
		zap.String("cv_id", id.String()),
		zap.Int64("size", written))
	return cv, nil
}

func (s *CVServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.CV, error) {
	return s.cvs.ListByUser(ctx, userID)
}

func (s *CVServiceImpl) SignedURL(ctx context.Context, userID, id uuid.UUID) (string, error) {
	cv, err := s.cvs.GetByID(ctx, userID, id)
	if err != nil {
		return "", err
	}
	return s.signer.SignedURL(cv.StorageKey), nil
}

// Delete removes the row first so a half-failed delete leaves an orphan
// blob rather than a row pointing at nothing.
func (s *CVServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	cv, err := s.cvs.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.cvs.Delete(ctx, userID, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, cv.StorageKey); err != nil {
		s.log.Warn("cv blob delete failed",
			zap.String("key", cv.StorageKey), zap.Error(err))
	}
	return nil
}
