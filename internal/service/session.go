package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Notifuse/emailbuilder/internal/domain"
	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/Notifuse/emailbuilder/pkg/logger"
	"github.com/Notifuse/emailbuilder/pkg/mailer"
	"github.com/Notifuse/emailbuilder/pkg/tracing"
	"github.com/asaskevich/govalidator"
)

// Session is one open document: its store, its drag coordinator and the
// persistence hook saving every committed change.
type Session struct {
	ID    string
	Name  string
	Store *emailbuilder.Store
	Drag  *emailbuilder.Coordinator

	service       *BuilderService
	logger        logger.Logger
	ctx           context.Context
	createdAt     time.Time
	schemaVersion int
	baseRevision  int64
	loadRevision  int64
	unsubscribe   func()
}

// Revision is the document revision the current tree would be saved under
func (s *Session) Revision() int64 {
	return s.baseRevision + s.Store.Revision() - s.loadRevision
}

// Save persists the current tree. A newer stored revision wins silently.
func (s *Session) Save(ctx context.Context) error {
	doc := s.document(s.Store.Tree(), s.Revision())
	if _, err := s.service.repo.SaveDocument(ctx, doc); err != nil {
		s.logger.Error(fmt.Sprintf("Failed to save document: %v", err))
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Preview renders the current tree as standalone HTML
func (s *Session) Preview() string {
	return emailbuilder.Export(s.Store.Tree())
}

// PreviewWithData renders the current tree after substituting template data
func (s *Session) PreviewWithData(ctx context.Context, data map[string]interface{}) (string, error) {
	tree, err := emailbuilder.ApplyTemplateData(ctx, s.Store.Tree(), data)
	if err != nil {
		return "", fmt.Errorf("failed to apply template data: %w", err)
	}
	return emailbuilder.Export(tree), nil
}

// CompiledPreview returns the MJML compilation of the current tree
func (s *Session) CompiledPreview(ctx context.Context) (*emailbuilder.CompileResult, error) {
	result, err := s.service.CompiledPreview(ctx, s.Store.Tree())
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to compile preview: %v", err))
		return nil, err
	}
	return result, nil
}

// SendTest renders the current tree with data, compiles it and mails it to one recipient
func (s *Session) SendTest(ctx context.Context, to, subject string, data map[string]interface{}) error {
	if s.service.mailer == nil {
		return domain.NewValidationError("test sends are not configured")
	}
	if !govalidator.IsEmail(to) {
		return domain.NewValidationError(fmt.Sprintf("invalid recipient %q", to))
	}
	if subject == "" {
		subject = s.Name
	}
	if limiter := s.service.sends; limiter != nil && !limiter.Allow(s.ID) {
		return &domain.ErrRateLimited{Action: "test send", RetryAfter: limiter.RetryAfter(s.ID)}
	}

	ctx, span := tracing.StartServiceSpan(ctx, "Session", "SendTest")
	err := s.sendTest(ctx, to, subject, data)
	tracing.EndSpan(span, err)
	return err
}

func (s *Session) sendTest(ctx context.Context, to, subject string, data map[string]interface{}) error {
	tree, err := emailbuilder.ApplyTemplateData(ctx, s.Store.Tree(), data)
	if err != nil {
		return fmt.Errorf("failed to apply template data: %w", err)
	}
	result, err := s.service.CompiledPreview(ctx, tree)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to compile test email: %v", err))
		return fmt.Errorf("failed to compile test email: %w", err)
	}

	err = s.service.mailer.Send(ctx, mailer.Message{
		To:      []string{to},
		Subject: subject,
		HTML:    result.HTML,
		Text:    mailer.PlainText(result.HTML),
	})
	if err != nil {
		s.logger.WithField("to", to).Error(fmt.Sprintf("Failed to send test email: %v", err))
		return fmt.Errorf("failed to send test email: %w", err)
	}
	s.logger.WithField("to", to).Info("Test email sent")
	return nil
}

// Close stops persisting changes
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// persist runs after every committed change. Failures are logged and the
// edit stays in memory; the next change retries with a higher revision.
func (s *Session) persist(change emailbuilder.Change) {
	revision := s.baseRevision + change.Revision - s.loadRevision
	doc := s.document(change.Tree, revision)

	op := change.Op
	ctx, span := tracing.StartServiceSpan(s.ctx, "Session", "persist",
		tracing.Attribute("document_id", s.ID),
		tracing.Attribute("revision", revision),
	)

	written, err := s.service.repo.SaveDocument(ctx, doc)
	tracing.EndSpan(span, err)
	if err != nil {
		tracing.RecordDocumentSave(ctx, op, "error")
		s.logger.WithFields(map[string]interface{}{
			"op":       op,
			"revision": revision,
		}).Error(fmt.Sprintf("Failed to persist document change: %v", err))
		return
	}
	if !written {
		tracing.RecordDocumentSave(ctx, op, "stale")
		s.logger.WithField("revision", revision).Warn("Skipped document save, a newer revision is stored")
		return
	}
	tracing.RecordDocumentSave(ctx, op, "written")
}

func (s *Session) document(tree emailbuilder.Tree, revision int64) *domain.EmailDocument {
	return &domain.EmailDocument{
		ID:            s.ID,
		Name:          s.Name,
		SchemaVersion: s.schemaVersion,
		Revision:      revision,
		Blocks:        domain.DocumentBlocks(tree.Blocks()),
		HTML:          emailbuilder.Export(tree),
		CreatedAt:     s.createdAt,
	}
}
