package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"corpus-qa/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	docs []domain.SourceDocument
}

func (l fakeLoader) LoadDocuments(ctx context.Context, prefix, startAfter string, suffixes []string, fn func(domain.SourceDocument) error) error {
	for _, doc := range l.docs {
		if startAfter != "" && doc.Key <= startAfter {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) IndexDocument(ctx context.Context, doc domain.SourceDocument, collection string) (int, error) {
	args := m.Called(ctx, doc, collection)
	return args.Int(0), args.Error(1)
}

func (m *mockIndexer) ResetCollection(ctx context.Context, collection string) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

func runnerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runnerConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Collection = "docs"
	cfg.CursorFile = filepath.Join(t.TempDir(), "cursor.json")
	return cfg
}

func threeDocs() []domain.SourceDocument {
	return []domain.SourceDocument{
		{Bucket: "b", Key: "docs/01.md", Body: "one"},
		{Bucket: "b", Key: "docs/02.md", Body: "two"},
		{Bucket: "b", Key: "docs/03.md", Body: "three"},
	}
}

func TestRunner_IndexesAllDocumentsAndSavesCursor(t *testing.T) {
	cfg := runnerConfig(t)

	indexer := new(mockIndexer)
	indexer.On("IndexDocument", mock.Anything, mock.Anything, "docs").Return(2, nil).Times(3)

	runner, err := NewRunner(fakeLoader{docs: threeDocs()}, indexer, cfg, runnerTestLogger())
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Run(context.Background()))

	cursor, err := runner.GetCursor()
	require.NoError(t, err)
	assert.Equal(t, "docs/03.md", cursor.LastKey)
	assert.Equal(t, "docs", cursor.Collection)
	assert.Equal(t, 3, cursor.ProcessedCount)
	assert.Equal(t, 6, cursor.PassageCount)
	indexer.AssertExpectations(t)
}

func TestRunner_ResumesAfterCursor(t *testing.T) {
	cfg := runnerConfig(t)

	require.NoError(t, NewCursorManager(cfg.CursorFile).Save(Cursor{
		Collection:     "docs",
		LastKey:        "docs/02.md",
		ProcessedCount: 2,
	}))

	indexer := new(mockIndexer)
	indexer.On("IndexDocument", mock.Anything, mock.MatchedBy(func(doc domain.SourceDocument) bool {
		return doc.Key == "docs/03.md"
	}), "docs").Return(1, nil).Once()

	runner, err := NewRunner(fakeLoader{docs: threeDocs()}, indexer, cfg, runnerTestLogger())
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Run(context.Background()))

	cursor, err := runner.GetCursor()
	require.NoError(t, err)
	assert.Equal(t, "docs/03.md", cursor.LastKey)
	assert.Equal(t, 3, cursor.ProcessedCount)
	indexer.AssertExpectations(t)
}

func TestRunner_CollectionMismatchFails(t *testing.T) {
	cfg := runnerConfig(t)

	require.NoError(t, NewCursorManager(cfg.CursorFile).Save(Cursor{
		Collection: "other",
		LastKey:    "docs/01.md",
	}))

	indexer := new(mockIndexer)
	runner, err := NewRunner(fakeLoader{docs: threeDocs()}, indexer, cfg, runnerTestLogger())
	require.NoError(t, err)
	defer runner.Close()

	err = runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset-cursor")
	indexer.AssertNotCalled(t, "IndexDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_IndexFailureSavesProgress(t *testing.T) {
	cfg := runnerConfig(t)
	cfg.SaveEvery = 1

	indexer := new(mockIndexer)
	indexer.On("IndexDocument", mock.Anything, mock.MatchedBy(func(doc domain.SourceDocument) bool {
		return doc.Key == "docs/01.md"
	}), "docs").Return(1, nil).Once()
	indexer.On("IndexDocument", mock.Anything, mock.MatchedBy(func(doc domain.SourceDocument) bool {
		return doc.Key == "docs/02.md"
	}), "docs").Return(0, errors.New("embedder down")).Once()

	runner, err := NewRunner(fakeLoader{docs: threeDocs()}, indexer, cfg, runnerTestLogger())
	require.NoError(t, err)
	defer runner.Close()

	err = runner.Run(context.Background())
	require.Error(t, err)

	cursor, loadErr := runner.GetCursor()
	require.NoError(t, loadErr)
	assert.Equal(t, "docs/01.md", cursor.LastKey)
	assert.Equal(t, 1, cursor.ProcessedCount)
}

func TestRunner_SecondRunnerCannotAcquireLock(t *testing.T) {
	cfg := runnerConfig(t)

	first, err := NewRunner(fakeLoader{}, new(mockIndexer), cfg, runnerTestLogger())
	require.NoError(t, err)
	defer first.Close()

	_, err = NewRunner(fakeLoader{}, new(mockIndexer), cfg, runnerTestLogger())
	require.Error(t, err)
}

func TestNewRunner_RequiresCollection(t *testing.T) {
	cfg := runnerConfig(t)
	cfg.Collection = ""

	_, err := NewRunner(fakeLoader{}, new(mockIndexer), cfg, runnerTestLogger())
	require.Error(t, err)
}
