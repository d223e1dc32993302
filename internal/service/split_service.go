package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicesplit/internal/config"
	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/metrics"
	"invoicesplit/internal/parser"
	"invoicesplit/internal/port"
	"invoicesplit/internal/settlement"
)

// TextExtractor produces the text of a document on disk.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// InvoiceStructurer turns document text into an invoice.
type InvoiceStructurer interface {
	Structure(ctx context.Context, text string) (*parser.Result, error)
}

// SubmitInput names the document to process. Exactly one of Path and URI is set.
type SubmitInput struct {
	Path string // local file
	URI  string // s3://bucket/key
	Name string // display name; defaults to the base name of Path or URI
}

// ExportOutput is a rendered export ready to be served or stored.
type ExportOutput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SplitService defines the split session contract.
type SplitService interface {
	Create(ctx context.Context, names domain.Names) (*domain.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	List(ctx context.Context) ([]domain.Session, error)
	// Submit processes a document and replaces the session's invoice. On a
	// processing failure the failed session is returned together with the error.
	Submit(ctx context.Context, id uuid.UUID, input SubmitInput) (*domain.Session, error)
	Toggle(ctx context.Context, id uuid.UUID, p domain.Participant, index int) (*settlement.Summary, error)
	Rename(ctx context.Context, id uuid.UUID, names domain.Names) (*domain.Session, error)
	Summary(ctx context.Context, id uuid.UUID) (*settlement.Summary, error)
	Export(ctx context.Context, id uuid.UUID, format export.Format) (*ExportOutput, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type splitService struct {
	repo       port.SessionRepository
	extractor  TextExtractor
	structurer InvoiceStructurer
	storage    port.ObjectStorage
	cfg        config.SplitConfig

	// mu serializes read-modify-write cycles on sessions. It is never held
	// while a document is being processed.
	mu sync.Mutex
}

// NewSplitService creates a new SplitService implementation. storage may be
// nil, in which case s3:// documents are rejected.
func NewSplitService(
	repo port.SessionRepository,
	extractor TextExtractor,
	structurer InvoiceStructurer,
	storage port.ObjectStorage,
	cfg config.SplitConfig,
) SplitService {
	return &splitService{
		repo:       repo,
		extractor:  extractor,
		structurer: structurer,
		storage:    storage,
		cfg:        cfg,
	}
}

func (s *splitService) Create(ctx context.Context, names domain.Names) (*domain.Session, error) {
	session := &domain.Session{
		State: domain.SessionStateEmpty,
		Names: s.resolveNames(names, domain.Names{}),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	slog.Info("session.created", "session_id", session.ID)
	return session, nil
}

func (s *splitService) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *splitService) List(ctx context.Context) ([]domain.Session, error) {
	return s.repo.List(ctx)
}

func (s *splitService) Submit(ctx context.Context, id uuid.UUID, input SubmitInput) (*domain.Session, error) {
	if (input.Path == "") == (input.URI == "") {
		return nil, fmt.Errorf("%w: exactly one of path or uri is required", domain.ErrUnreadableDocument)
	}
	name := input.Name
	if name == "" {
		name = path.Base(input.Path + input.URI)
	}

	if err := s.beginProcessing(ctx, id, name); err != nil {
		return nil, err
	}
	log := slog.With("session_id", id, "document", name)
	log.Info("submit.start")
	start := time.Now()

	res, err := s.process(ctx, input)
	if err != nil {
		outcome := strings.ToLower(domain.ErrorCode(err))
		metrics.ObserveDocument(outcome, 0)
		log.Warn("submit.failed", "code", domain.ErrorCode(err), "error", err, "duration_ms", time.Since(start).Milliseconds())
		session, saveErr := s.finish(ctx, id, func(sess *domain.Session) {
			sess.State = domain.SessionStateFailed
			sess.Failure = failureFrom(err)
		})
		if saveErr != nil {
			log.Error("submit.save_failed", "error", saveErr, "cause", err)
			return nil, errors.Join(err, saveErr)
		}
		return session, err
	}

	session, err := s.finish(ctx, id, func(sess *domain.Session) {
		sess.State = domain.SessionStateReady
		sess.Invoice = res.Invoice
		sess.Warnings = res.Warnings
		sess.ModelUsed = res.ModelUsed
	})
	if err != nil {
		return nil, err
	}

	outcome := "ok"
	if session.IsEmptyInvoice() {
		outcome = "empty"
	}
	metrics.ObserveDocument(outcome, len(res.Invoice.LineItems))
	log.Info("submit.ok",
		"outcome", outcome,
		"line_items", len(res.Invoice.LineItems),
		"warnings", len(res.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return session, nil
}

// beginProcessing moves the session to processing, dropping the previous
// invoice and allocation.
func (s *splitService) beginProcessing(ctx context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.State == domain.SessionStateProcessing {
		return domain.ErrSessionBusy
	}
	session.State = domain.SessionStateProcessing
	session.DocumentName = name
	session.Invoice = nil
	session.Allocation.Reset()
	session.Failure = nil
	session.Warnings = nil
	session.ModelUsed = ""
	return s.repo.Update(ctx, session)
}

// finish applies the processing outcome to the stored session.
func (s *splitService) finish(ctx context.Context, id uuid.UUID, apply func(*domain.Session)) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Use a fresh context so a cancelled request cannot strand the session in processing.
	ctx = context.WithoutCancel(ctx)
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(session)
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

func (s *splitService) process(ctx context.Context, input SubmitInput) (*parser.Result, error) {
	docPath := input.Path
	if input.URI != "" {
		tmp, err := s.fetch(ctx, input.URI)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.Remove(tmp) }()
		docPath = tmp
	}

	text, err := s.extractor.Extract(ctx, docPath)
	if err != nil {
		return nil, err
	}
	return s.structurer.Structure(ctx, text)
}

// fetch downloads an s3:// document into a temporary file and returns its path.
func (s *splitService) fetch(ctx context.Context, uri string) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("%w: object storage is not configured", domain.ErrUnreadableDocument)
	}
	obj, err := port.ParseObjectURI(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	data, err := s.storage.Download(ctx, obj.Bucket, obj.Key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}

	f, err := os.CreateTemp("", "invoicesplit-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return f.Name(), nil
}

func (s *splitService) Toggle(ctx context.Context, id uuid.UUID, p domain.Participant, index int) (*settlement.Summary, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownParticipant, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != domain.SessionStateReady || session.Invoice == nil {
		return nil, domain.ErrNoInvoice
	}
	if index < 0 || index >= len(session.Invoice.LineItems) {
		return nil, fmt.Errorf("%w: %d (invoice has %d items)", domain.ErrItemOutOfRange, index, len(session.Invoice.LineItems))
	}

	on := session.Allocation.Toggle(p, index)
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	metrics.ObserveToggle()
	slog.Debug("allocation.toggled", "session_id", id, "participant", p, "index", index, "assigned", on)

	summary := s.summarize(session)
	return &summary, nil
}

func (s *splitService) Rename(ctx context.Context, id uuid.UUID, names domain.Names) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Names = s.resolveNames(names, session.Names)
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

func (s *splitService) Summary(ctx context.Context, id uuid.UUID) (*settlement.Summary, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != domain.SessionStateReady {
		return nil, domain.ErrNoInvoice
	}
	summary := s.summarize(session)
	return &summary, nil
}

func (s *splitService) Export(ctx context.Context, id uuid.UUID, format export.Format) (*ExportOutput, error) {
	summary, err := s.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.Render(&buf, format, summary); err != nil {
		return nil, err
	}
	return &ExportOutput{
		Filename:    export.BuildFilename(summary.InvoiceID, format),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func (s *splitService) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("session.deleted", "session_id", id)
	return nil
}

func (s *splitService) summarize(session *domain.Session) settlement.Summary {
	return settlement.Summarize(session.Invoice, session.Allocation, session.Names, s.cfg.Currency)
}

// resolveNames trims the requested names, keeping current (or the configured
// defaults) for blanks.
func (s *splitService) resolveNames(requested, current domain.Names) domain.Names {
	pick := func(req, cur, def string) string {
		if v := strings.TrimSpace(req); v != "" {
			return v
		}
		if cur != "" {
			return cur
		}
		return def
	}
	return domain.Names{
		A: pick(requested.A, current.A, s.cfg.ParticipantA),
		B: pick(requested.B, current.B, s.cfg.ParticipantB),
	}
}

func failureFrom(err error) *domain.Failure {
	f := &domain.Failure{Code: domain.ErrorCode(err), Message: err.Error()}
	var mre *domain.MalformedResponseError
	if errors.As(err, &mre) {
		f.Raw = mre.Raw
	}
	return f
}
