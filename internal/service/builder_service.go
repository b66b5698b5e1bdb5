package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Notifuse/emailbuilder/config"
	"github.com/Notifuse/emailbuilder/internal/domain"
	"github.com/Notifuse/emailbuilder/pkg/cache"
	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/Notifuse/emailbuilder/pkg/logger"
	"github.com/Notifuse/emailbuilder/pkg/mailer"
	"github.com/Notifuse/emailbuilder/pkg/ratelimiter"
	"github.com/Notifuse/emailbuilder/pkg/tracing"
	"golang.org/x/crypto/blake2b"
)

// MJMLCompiler turns a tree into compiled email HTML
type MJMLCompiler func(ctx context.Context, tree emailbuilder.Tree) (*emailbuilder.CompileResult, error)

// BuilderService opens persisted documents as live builder sessions
type BuilderService struct {
	repo     domain.DocumentRepository
	logger   logger.Logger
	cfg      *config.Config
	previews cache.Cache[*emailbuilder.CompileResult]
	compile  MJMLCompiler
	mailer   mailer.Mailer
	sends    *ratelimiter.RateLimiter
}

func NewBuilderService(repo domain.DocumentRepository, logger logger.Logger, cfg *config.Config, previews cache.Cache[*emailbuilder.CompileResult]) *BuilderService {
	s := &BuilderService{
		repo:     repo,
		logger:   logger,
		cfg:      cfg,
		previews: previews,
		compile:  emailbuilder.CompileMJML,
	}
	if cfg.SMTP.TestSendsPerMinute > 0 {
		s.sends = ratelimiter.NewRateLimiter(cfg.SMTP.TestSendsPerMinute, 1)
	}
	return s
}

// SetCompiler replaces the MJML compiler, mostly for tests
func (s *BuilderService) SetCompiler(compile MJMLCompiler) {
	s.compile = compile
}

// SetMailer enables test sends from sessions
func (s *BuilderService) SetMailer(m mailer.Mailer) {
	s.mailer = m
}

// CreateDocument stores an empty document and opens it
func (s *BuilderService) CreateDocument(ctx context.Context, id, name string) (*Session, error) {
	doc := &domain.EmailDocument{
		ID:            id,
		Name:          name,
		SchemaVersion: s.cfg.Builder.SchemaVersion,
		Blocks:        domain.DocumentBlocks{},
		HTML:          emailbuilder.Export(emailbuilder.EmptyTree()),
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	written, err := s.repo.SaveDocument(ctx, doc)
	if err != nil {
		s.logger.WithField("document_id", id).Error(fmt.Sprintf("Failed to create document: %v", err))
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if !written {
		return nil, domain.NewValidationError(fmt.Sprintf("document %s already exists", id))
	}

	return s.newSession(ctx, doc)
}

// OpenDocument loads a stored document into a new session
func (s *BuilderService) OpenDocument(ctx context.Context, id string) (*Session, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, err
		}
		s.logger.WithField("document_id", id).Error(fmt.Sprintf("Failed to get document: %v", err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if doc.SchemaVersion > s.cfg.Builder.SchemaVersion {
		return nil, domain.NewValidationError(fmt.Sprintf("document schema version %d is newer than supported version %d", doc.SchemaVersion, s.cfg.Builder.SchemaVersion))
	}

	return s.newSession(ctx, doc)
}

// ExportDocument renders the stored blocks of a document without opening a session
func (s *BuilderService) ExportDocument(ctx context.Context, id string) (string, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	return emailbuilder.ExportBlocks(doc.Blocks), nil
}

func (s *BuilderService) DeleteDocument(ctx context.Context, id string) error {
	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return err
		}
		s.logger.WithField("document_id", id).Error(fmt.Sprintf("Failed to delete document: %v", err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *BuilderService) ListDocuments(ctx context.Context, params domain.ListDocumentsParams) ([]*domain.EmailDocument, error) {
	docs, err := s.repo.ListDocuments(ctx, params)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to list documents: %v", err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// CompiledPreview compiles the tree through MJML, reusing results for identical markup
func (s *BuilderService) CompiledPreview(ctx context.Context, tree emailbuilder.Tree) (*emailbuilder.CompileResult, error) {
	ctx, span := tracing.StartServiceSpan(ctx, "BuilderService", "CompiledPreview")
	start := time.Now()

	if s.previews == nil {
		result, err := s.compile(ctx, tree)
		tracing.EndSpan(span, err)
		return result, err
	}

	compiled := false
	result, err := s.previews.GetOrSet(previewKey(tree), s.cfg.Preview.CacheTTL, func() (*emailbuilder.CompileResult, error) {
		compiled = true
		return s.compile(ctx, tree)
	})
	tracing.AddAttribute(ctx, "cache_hit", !compiled)
	if err == nil {
		tracing.RecordPreview(ctx, !compiled, time.Since(start))
	}
	tracing.EndSpan(span, err)
	return result, err
}

// previewKey hashes the MJML markup, so trees differing only in block ids share a key
func previewKey(tree emailbuilder.Tree) string {
	sum := blake2b.Sum256([]byte(emailbuilder.ToMJML(tree)))
	return hex.EncodeToString(sum[:])
}

func (s *BuilderService) newSession(ctx context.Context, doc *domain.EmailDocument) (*Session, error) {
	log := s.logger.WithField("document_id", doc.ID)

	opts := append(s.cfg.StoreOptions(), emailbuilder.WithLogger(log))
	store := emailbuilder.NewStore(opts...)
	if outcome := store.Load(doc.Blocks); !outcome.IsOK() {
		log.Error("Stored document has an invalid block tree")
		return nil, fmt.Errorf("failed to load document %s: %s", doc.ID, outcome)
	}

	session := &Session{
		ID:            doc.ID,
		Name:          doc.Name,
		Store:         store,
		Drag:          emailbuilder.NewCoordinator(store, s.cfg.SensorConfig()),
		service:       s,
		logger:        log,
		ctx:           context.WithoutCancel(ctx),
		createdAt:     doc.CreatedAt,
		schemaVersion: s.cfg.Builder.SchemaVersion,
		baseRevision:  doc.Revision,
		loadRevision:  store.Revision(),
	}
	session.unsubscribe = store.Subscribe(session.persist)
	return session, nil
}
