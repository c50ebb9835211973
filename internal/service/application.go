package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
	"github.com/jobpilot/jobpilot/internal/repository"
)

// OptimizerClient is the AI optimization upstream.
type OptimizerClient interface {
	// Tailor submits a CV (by URL) and a job description for optimization.
	Tailor(ctx context.Context, cvURL, jobDescription string) (*model.TailorResult, error)
}

// MailSender delivers mail on the user's behalf through their connected
// Gmail account.
type MailSender interface {
	Send(ctx context.Context, userID uuid.UUID, to, subject, body string) error
}

// ApplicationService runs the optimize-and-send flow and keeps the
// application history.
type ApplicationService interface {
	// Create tailors the given CV against a job description, persists the
	// result, and mails the tailored document when the optimizer did not.
	Create(ctx context.Context, userID, cvID uuid.UUID, jobDescription, recipient string) (*model.Application, error)
	// List returns the user's application history, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Application, error)
}

// ApplicationServiceImpl implements ApplicationService.
type ApplicationServiceImpl struct {
	apps      repository.ApplicationRepository
	cvs       repository.CVRepository
	signer    URLSigner
	optimizer OptimizerClient
	mail      MailSender
	log       *zap.Logger
}

// NewApplicationService constructs the application flow service.
func NewApplicationService(apps repository.ApplicationRepository, cvs repository.CVRepository, signer URLSigner, optimizer OptimizerClient, mail MailSender, log *zap.Logger) *ApplicationServiceImpl {
	return &ApplicationServiceImpl{
		apps:      apps,
		cvs:       cvs,
		signer:    signer,
		optimizer: optimizer,
		mail:      mail,
		log:       log,
	}
}

// Create loads the CV, hands the optimizer a signed URL to it, records the
// outcome and, if the optimizer left sending to us, mails the tailored
// document. A mail failure does not fail the application; it is recorded
// as email_sent=false.
func (s *ApplicationServiceImpl) Create(ctx context.Context, userID, cvID uuid.UUID, jobDescription, recipient string) (*model.Application, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return nil, fmt.Errorf("%w: job description is required", errs.ErrInvalidInput)
	}

	cv, err := s.cvs.GetByID(ctx, userID, cvID)
	if err != nil {
		return nil, err
	}

	result, err := s.optimizer.Tailor(ctx, s.signer.SignedURL(cv.StorageKey), jobDescription)
	if err != nil {
		return nil, err
	}

	emailSent := result.EmailSent
	if !emailSent && recipient != "" {
		subject := "Your tailored CV is ready"
		body := fmt.Sprintf("Your CV %q was tailored for the role (match score %d).\n\nDownload: %s\n",
			cv.FileName, result.Score, result.DocumentURL)
		if err := s.mail.Send(ctx, userID, recipient, subject, body); err != nil {
			s.log.Warn("tailored cv mail failed",
				zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			emailSent = true
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate application id: %w", err)
	}
	app := &model.Application{
		ID:             id,
		UserID:         userID,
		CVID:           cvID,
		JobDescription: jobDescription,
		Score:          result.Score,
		DocumentURL:    result.DocumentURL,
		EmailSent:      emailSent,
		CreatedAt:      time.Now(),
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	s.log.Info("application created",
		zap.String("user_id", userID.String()),
		zap.String("application_id", id.String()),
		zap.Int("score", result.Score),
		zap.Bool("email_sent", emailSent))
	return app, nil
}

func (s *ApplicationServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Application, error) {
	return s.apps.ListByUser(ctx, userID)
}
