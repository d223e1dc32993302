package service_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicesplit/internal/config"
	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/parser"
	"invoicesplit/internal/repository/memory"
	"invoicesplit/internal/service"
	"invoicesplit/internal/settlement"
	"invoicesplit/mocks"
)

type fixture struct {
	svc        service.SplitService
	extractor  *mocks.MockTextExtractor
	structurer *mocks.MockInvoiceStructurer
	storage    *mocks.MockObjectStorage
}

func newFixture() *fixture {
	f := &fixture{
		extractor:  new(mocks.MockTextExtractor),
		structurer: new(mocks.MockInvoiceStructurer),
		storage:    new(mocks.MockObjectStorage),
	}
	f.svc = service.NewSplitService(memory.NewSessionRepo(), f.extractor, f.structurer, f.storage, config.SplitConfig{
		ParticipantA: "Person 1",
		ParticipantB: "Person 2",
		Currency:     "€",
	})
	return f
}

func threeItems() *domain.Invoice {
	return &domain.Invoice{
		InvoiceID: "INV-1",
		Date:      "2024-03-01",
		LineItems: []domain.LineItem{
			{Name: "A", TotalPrice: decimal.NewFromInt(10)},
			{Name: "B", TotalPrice: decimal.NewFromInt(20)},
			{Name: "C", TotalPrice: decimal.NewFromInt(30)},
		},
	}
}

// readySession creates a session and processes a document yielding inv.
func (f *fixture) readySession(t *testing.T, inv *domain.Invoice) uuid.UUID {
	t.Helper()
	session, err := f.svc.Create(context.Background(), domain.Names{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/inv.pdf").Return("text", nil).Once()
	f.structurer.On("Structure", mock.Anything, "text").
		Return(&parser.Result{Invoice: inv, ModelUsed: "openai/gpt-4o"}, nil).Once()

	got, err := f.svc.Submit(context.Background(), session.ID, service.SubmitInput{Path: "/docs/inv.pdf"})
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateReady, got.State)
	return session.ID
}

func TestSplitService_Create_DefaultNames(t *testing.T) {
	f := newFixture()

	session, err := f.svc.Create(context.Background(), domain.Names{A: "  Ana "})

	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateEmpty, session.State)
	assert.Equal(t, domain.Names{A: "Ana", B: "Person 2"}, session.Names)
}

func TestSplitService_Submit_Ready(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())

	session, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "inv.pdf", session.DocumentName)
	assert.Equal(t, "openai/gpt-4o", session.ModelUsed)
	assert.Len(t, session.Invoice.LineItems, 3)
	assert.Zero(t, session.Allocation.Len())
}

func TestSplitService_SettlementScenario(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())
	ctx := context.Background()

	_, err := f.svc.Toggle(ctx, id, domain.ParticipantA, 0)
	require.NoError(t, err)
	_, err = f.svc.Toggle(ctx, id, domain.ParticipantA, 2)
	require.NoError(t, err)
	summary, err := f.svc.Toggle(ctx, id, domain.ParticipantB, 1)
	require.NoError(t, err)

	assert.True(t, summary.Totals.A.Equal(decimal.NewFromInt(40)))
	assert.True(t, summary.Totals.B.Equal(decimal.NewFromInt(20)))
	assert.True(t, summary.Settlement.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, domain.ParticipantB, summary.Settlement.Payer)
	assert.Equal(t, "Person 2 owes Person 1: 10.00 €", summary.Message)

	// Toggling B on an item A owns moves it and flips the direction.
	summary, err = f.svc.Toggle(ctx, id, domain.ParticipantB, 2)
	require.NoError(t, err)
	assert.True(t, summary.Totals.B.Equal(decimal.NewFromInt(50)))
	assert.True(t, summary.Settlement.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, domain.ParticipantA, summary.Settlement.Payer)
	assert.Equal(t, domain.ParticipantB, summary.Items[2].Owner)
}

func TestSplitService_Toggle_TwiceUnassigns(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())
	ctx := context.Background()

	_, err := f.svc.Toggle(ctx, id, domain.ParticipantA, 1)
	require.NoError(t, err)
	summary, err := f.svc.Toggle(ctx, id, domain.ParticipantA, 1)
	require.NoError(t, err)

	assert.True(t, summary.Totals.A.IsZero())
	assert.True(t, summary.Totals.Unassigned.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, settlement.PerfectlySplitMessage, summary.Message)
}

func TestSplitService_Toggle_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	empty, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)
	_, err = f.svc.Toggle(ctx, empty.ID, domain.ParticipantA, 0)
	assert.ErrorIs(t, err, domain.ErrNoInvoice)

	id := f.readySession(t, threeItems())
	_, err = f.svc.Toggle(ctx, id, domain.ParticipantA, 3)
	assert.ErrorIs(t, err, domain.ErrItemOutOfRange)
	_, err = f.svc.Toggle(ctx, id, domain.ParticipantA, -1)
	assert.ErrorIs(t, err, domain.ErrItemOutOfRange)
	_, err = f.svc.Toggle(ctx, id, domain.Participant("c"), 0)
	assert.ErrorIs(t, err, domain.ErrUnknownParticipant)

	_, err = f.svc.Toggle(ctx, uuid.New(), domain.ParticipantA, 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSplitService_Submit_ResetsAllocation(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())
	ctx := context.Background()

	_, err := f.svc.Toggle(ctx, id, domain.ParticipantA, 0)
	require.NoError(t, err)

	second := &domain.Invoice{
		InvoiceID: "INV-2",
		LineItems: []domain.LineItem{{Name: "Only", TotalPrice: decimal.NewFromInt(5)}},
	}
	f.extractor.On("Extract", mock.Anything, "/docs/second.pdf").Return("second", nil).Once()
	f.structurer.On("Structure", mock.Anything, "second").Return(&parser.Result{Invoice: second}, nil).Once()

	session, err := f.svc.Submit(ctx, id, service.SubmitInput{Path: "/docs/second.pdf", Name: "March"})
	require.NoError(t, err)
	assert.Equal(t, "March", session.DocumentName)
	assert.Zero(t, session.Allocation.Len())
	assert.Equal(t, "INV-2", session.Invoice.InvoiceID)
}

func TestSplitService_Submit_MalformedResponse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/inv.pdf").Return("text", nil)
	f.structurer.On("Structure", mock.Anything, "text").
		Return(nil, domain.NewMalformedResponseError("Here is the invoice", errors.New("invalid character 'H'")))

	failed, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/inv.pdf"})

	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	require.NotNil(t, failed)
	assert.Equal(t, domain.SessionStateFailed, failed.State)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "MALFORMED_RESPONSE", failed.Failure.Code)
	assert.Equal(t, "Here is the invoice", failed.Failure.Raw)

	_, err = f.svc.Summary(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNoInvoice)
}

func TestSplitService_Submit_UnreadableDocumentSkipsStructurer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/bad.pdf").Return("", domain.ErrUnreadableDocument)

	failed, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/bad.pdf"})

	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	assert.Equal(t, "UNREADABLE_DOCUMENT", failed.Failure.Code)
	f.structurer.AssertNotCalled(t, "Structure", mock.Anything, mock.Anything)
}

func TestSplitService_Submit_DeletedDuringFailureKeepsCause(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/bad.pdf").
		Run(func(mock.Arguments) { require.NoError(t, f.svc.Delete(ctx, session.ID)) }).
		Return("", domain.ErrUnreadableDocument)

	got, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/bad.pdf"})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSplitService_Submit_FailedThenReady(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/bad.pdf").Return("", domain.ErrUnreadableDocument).Once()
	_, err = f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/bad.pdf"})
	require.Error(t, err)

	f.extractor.On("Extract", mock.Anything, "/docs/good.pdf").Return("text", nil).Once()
	f.structurer.On("Structure", mock.Anything, "text").Return(&parser.Result{Invoice: threeItems()}, nil).Once()

	ready, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/good.pdf"})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateReady, ready.State)
	assert.Nil(t, ready.Failure)
}

func TestSplitService_Submit_EmptyInvoice(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, &domain.Invoice{InvoiceID: domain.NotAvailable, Date: domain.NotAvailable, LineItems: []domain.LineItem{}})

	session, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, session.IsEmptyInvoice())

	summary, err := f.svc.Summary(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, summary.Empty)
	assert.Equal(t, settlement.PerfectlySplitMessage, summary.Message)
}

func TestSplitService_Submit_RequiresExactlyOneSource(t *testing.T) {
	f := newFixture()
	session, err := f.svc.Create(context.Background(), domain.Names{})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), session.ID, service.SubmitInput{})
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)

	_, err = f.svc.Submit(context.Background(), session.ID, service.SubmitInput{Path: "a.pdf", URI: "s3://b/a.pdf"})
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)

	got, err := f.svc.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateEmpty, got.State)
}

func TestSplitService_Submit_FromObjectStorage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	var tmpPath string
	f.storage.On("Download", mock.Anything, "invoices", "2024/inv.pdf").Return([]byte("%PDF-1.4"), nil)
	f.extractor.On("Extract", mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			tmpPath = args.String(1)
			data, err := os.ReadFile(tmpPath)
			assert.NoError(t, err)
			assert.Equal(t, "%PDF-1.4", string(data))
		}).
		Return("text", nil)
	f.structurer.On("Structure", mock.Anything, "text").Return(&parser.Result{Invoice: threeItems()}, nil)

	got, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{URI: "s3://invoices/2024/inv.pdf"})

	require.NoError(t, err)
	assert.Equal(t, "inv.pdf", got.DocumentName)
	_, statErr := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestSplitService_Submit_ObjectStorageFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	f.storage.On("Download", mock.Anything, "invoices", "missing.pdf").Return(nil, errors.New("NoSuchKey"))

	_, err = f.svc.Submit(ctx, session.ID, service.SubmitInput{URI: "s3://invoices/missing.pdf"})
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestSplitService_Submit_BusyWhileProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.extractor.On("Extract", mock.Anything, "/docs/slow.pdf").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return("text", nil)
	f.structurer.On("Structure", mock.Anything, "text").Return(&parser.Result{Invoice: threeItems()}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/slow.pdf"})
		done <- err
	}()
	<-entered

	_, err = f.svc.Submit(ctx, session.ID, service.SubmitInput{Path: "/docs/other.pdf"})
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	_, err = f.svc.Toggle(ctx, session.ID, domain.ParticipantA, 0)
	assert.ErrorIs(t, err, domain.ErrNoInvoice)

	close(release)
	require.NoError(t, <-done)
}

func TestSplitService_Rename(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())
	ctx := context.Background()

	session, err := f.svc.Rename(ctx, id, domain.Names{A: "Ana", B: "  "})
	require.NoError(t, err)
	assert.Equal(t, domain.Names{A: "Ana", B: "Person 2"}, session.Names)

	_, err = f.svc.Toggle(ctx, id, domain.ParticipantB, 0)
	require.NoError(t, err)
	summary, err := f.svc.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana owes Person 2: 5.00 €", summary.Message)
}

func TestSplitService_Export(t *testing.T) {
	f := newFixture()
	id := f.readySession(t, threeItems())

	out, err := f.svc.Export(context.Background(), id, export.FormatCSV)

	require.NoError(t, err)
	assert.Contains(t, out.Filename, "split_INV-1_")
	assert.Equal(t, "text/csv; charset=utf-8", out.ContentType)
	assert.Contains(t, string(out.Data), "Assigned To")
}

func TestSplitService_Delete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	session, err := f.svc.Create(ctx, domain.Names{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, session.ID))
	_, err = f.svc.Get(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, session.ID), domain.ErrSessionNotFound)
}
