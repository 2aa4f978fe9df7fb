package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesrag/internal/ai"
	"github.com/xxxsen/notesrag/internal/chunker"
	"github.com/xxxsen/notesrag/internal/extract"
	"github.com/xxxsen/notesrag/internal/model"
	appErr "github.com/xxxsen/notesrag/internal/pkg/errors"
	"github.com/xxxsen/notesrag/internal/rag"
	"github.com/xxxsen/notesrag/internal/vectorstore"
)

type fakeExtractor struct {
	texts map[string]string
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, fileType string) string {
	f.calls++
	return f.texts[string(data)]
}

type fakeClassifier struct {
	subjects     map[string]string
	classifyErr  error
	summarizeErr error
	calls        int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*ai.Classification, error) {
	f.calls++
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	for keyword, subject := range f.subjects {
		if strings.Contains(text, keyword) {
			s, topic := subject, keyword
			return &ai.Classification{Subject: &s, Topic: &topic}, nil
		}
	}
	return &ai.Classification{}, nil
}

func (f *fakeClassifier) Summarize(ctx context.Context, text string) (string, error) {
	if f.summarizeErr != nil {
		return "", f.summarizeErr
	}
	return "• summary", nil
}

type memBlobs struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func (m *memBlobs) Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memBlobs) URL(key string) string { return "/api/v1/files/" + key }

func (m *memBlobs) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

type memNotes struct {
	blobs     *memBlobs
	notes     []*model.Note
	createErr error
	// set when a note was persisted before its file existed
	orphan bool
}

func (m *memNotes) Create(ctx context.Context, note *model.Note) error {
	if m.createErr != nil {
		return m.createErr
	}
	if !m.blobs.has(note.FileKey) {
		m.orphan = true
	}
	m.notes = append(m.notes, note)
	return nil
}

type failingIndexer struct{}

func (failingIndexer) Upsert(ctx context.Context, studentID, noteID string, chunks []string, metadata map[string]string) error {
	return errors.New("vector store unavailable")
}

func (failingIndexer) DeleteByNote(ctx context.Context, studentID, noteID string) error {
	return errors.New("vector store unavailable")
}

type fixture struct {
	extractor  *fakeExtractor
	classifier *fakeClassifier
	blobs      *memBlobs
	notes      *memNotes
	backend    *vectorstore.MemoryBackend
	adapter    *vectorstore.Adapter
	orch       *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ch, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	require.NoError(t, err)
	f := &fixture{
		extractor:  &fakeExtractor{texts: map[string]string{}},
		classifier: &fakeClassifier{subjects: map[string]string{}},
		blobs:      &memBlobs{files: map[string][]byte{}},
		backend:    vectorstore.NewMemoryBackend(),
	}
	f.notes = &memNotes{blobs: f.blobs}
	f.adapter = vectorstore.NewAdapter(f.backend, ai.NewEmbedder(ai.NewLocalEmbedProvider(256), "hash"), time.Second)
	f.orch = New(f.extractor, f.classifier, ch, f.adapter, f.blobs, f.notes, Config{})
	return f
}

func TestIngestRejectsUnsupportedTypeBeforeExtraction(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "virus.exe", Data: []byte("MZ")})
	require.ErrorIs(t, err, appErr.ErrUnsupportedType)
	require.Zero(t, f.extractor.calls)
	require.Empty(t, f.blobs.files)
	require.Empty(t, f.notes.notes)
}

func TestIngestCorruptPDFStillPersists(t *testing.T) {
	f := newFixture(t)
	ch, _ := chunker.New(500, 50)
	orch := New(extract.New(nil), f.classifier, ch, f.adapter, f.blobs, f.notes, Config{})

	res, err := orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "Broken.PDF", Data: []byte("garbage bytes")})
	require.NoError(t, err)
	require.NotNil(t, res.Note)
	require.Nil(t, res.Note.Subject)
	require.Nil(t, res.Note.Topic)
	require.Nil(t, res.Note.Chapter)
	require.Nil(t, res.Note.Summary)
	require.Nil(t, res.Note.ExtractedText)
	require.Equal(t, "pdf", res.Note.FileType)
	require.Equal(t, model.NoteSourceStudent, res.Note.Source)
	require.Zero(t, f.classifier.calls)
	require.Len(t, f.notes.notes, 1)
	require.False(t, f.notes.orphan)

	for stage, want := range map[Stage]StageStatus{
		StageTypeValidated: StatusSuccess,
		StageStored:        StatusSuccess,
		StageExtracted:     StatusDegraded,
		StageClassified:    StatusDegraded,
		StageIndexed:       StatusSkipped,
		StagePersisted:     StatusSuccess,
	} {
		got, ok := res.Report.Status(stage)
		require.True(t, ok, stage)
		require.Equal(t, want, got, stage)
	}
	require.True(t, res.Report.Degraded())
}

func TestIngestStoresFileBeforePersisting(t *testing.T) {
	f := newFixture(t)
	f.extractor.texts["img"] = "some handwritten text"
	res, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "scan.png", Source: model.NoteSourceFaculty, Data: []byte("img")})
	require.NoError(t, err)
	require.False(t, f.notes.orphan)
	require.Equal(t, res.Note.ID+".png", res.Note.FileKey)
	require.Equal(t, "/api/v1/files/"+res.Note.FileKey, res.Note.FileURL)
	require.Equal(t, model.NoteSourceFaculty, res.Note.Source)
}

func TestIngestBlobFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.blobs.saveErr = errors.New("disk full")
	f.extractor.texts["x"] = "text"
	_, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "a.pdf", Data: []byte("x")})
	require.Error(t, err)
	require.False(t, errors.Is(err, appErr.ErrUnsupportedType))
	require.Empty(t, f.notes.notes)
	require.Zero(t, f.extractor.calls)
}

func TestIngestClassificationDegradesIndependently(t *testing.T) {
	f := newFixture(t)
	f.classifier.classifyErr = errors.New("model timeout")
	f.extractor.texts["x"] = "paging and segmentation"
	res, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "os.pdf", Data: []byte("x")})
	require.NoError(t, err)
	require.Nil(t, res.Note.Subject)
	require.NotNil(t, res.Note.Summary)
	status, _ := res.Report.Status(StageClassified)
	require.Equal(t, StatusDegraded, status)

	hits := f.adapter.Search(context.Background(), "s", "paging", 5, nil)
	require.Len(t, hits, 1)
	require.Equal(t, "Unknown", hits[0].Metadata[vectorstore.MetaSubject])
	require.Equal(t, "Unknown", hits[0].Metadata[vectorstore.MetaTopic])
	require.Equal(t, "os.pdf", hits[0].Metadata[vectorstore.MetaFileName])
	require.Equal(t, res.Note.ID, hits[0].Metadata[vectorstore.MetaNoteID])
}

func TestIngestIndexFailureStillPersists(t *testing.T) {
	f := newFixture(t)
	ch, _ := chunker.New(500, 50)
	orch := New(f.extractor, f.classifier, ch, failingIndexer{}, f.blobs, f.notes, Config{})
	f.extractor.texts["x"] = "deadlocks"
	res, err := orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "os.pdf", Data: []byte("x")})
	require.NoError(t, err)
	status, _ := res.Report.Status(StageIndexed)
	require.Equal(t, StatusDegraded, status)
	require.Len(t, f.notes.notes, 1)
}

func TestIngestPersistFailureRemovesFile(t *testing.T) {
	f := newFixture(t)
	f.notes.createErr = errors.New("db down")
	f.extractor.texts["x"] = "text"
	_, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "a.pdf", Data: []byte("x")})
	require.Error(t, err)
	require.Empty(t, f.blobs.files)
	require.Zero(t, f.backend.Count(vectorstore.CollectionKey("s")))
	require.Empty(t, f.adapter.Search(context.Background(), "s", "text", 5, nil))
}

func TestIngestPersistFailureKeepsOtherNotesChunks(t *testing.T) {
	f := newFixture(t)
	f.extractor.texts["keep"] = "existing lecture on paging"
	kept, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "os.pdf", Data: []byte("keep")})
	require.NoError(t, err)

	f.notes.createErr = errors.New("db down")
	f.extractor.texts["x"] = "text"
	_, err = f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "a.pdf", Data: []byte("x")})
	require.Error(t, err)

	require.Equal(t, 1, f.backend.Count(vectorstore.CollectionKey("s")))
	hits := f.adapter.Search(context.Background(), "s", "paging", 5, nil)
	require.Len(t, hits, 1)
	require.Equal(t, kept.Note.ID, hits[0].Metadata[vectorstore.MetaNoteID])
}

func TestIngestPersistFailureWithUnreachableIndex(t *testing.T) {
	f := newFixture(t)
	ch, _ := chunker.New(500, 50)
	orch := New(f.extractor, f.classifier, ch, failingIndexer{}, f.blobs, f.notes, Config{})
	f.notes.createErr = errors.New("db down")
	f.extractor.texts["x"] = "text"
	_, err := orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "a.pdf", Data: []byte("x")})
	require.ErrorContains(t, err, "db down")
	require.Empty(t, f.blobs.files)
}

func TestIngestTruncatesStoredTextButIndexesAll(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("a", 5990) + " zebra"
	f.extractor.texts["x"] = long
	res, err := f.orch.Ingest(context.Background(), &Upload{StudentID: "s", FileName: "a.pdf", Data: []byte("x")})
	require.NoError(t, err)
	require.Len(t, []rune(*res.Note.ExtractedText), DefaultMaxStoredTextChars)
	require.NotContains(t, *res.Note.ExtractedText, "zebra")

	hits := f.adapter.Search(context.Background(), "s", "zebra", 1, nil)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Text, "zebra")
	// 5996 runes with step 450 give 14 windows
	require.Equal(t, 14, f.backend.Count(vectorstore.CollectionKey("s")))
}

func TestSubjectFilteredAnswerExcludesOtherSubjects(t *testing.T) {
	f := newFixture(t)
	f.classifier.subjects["normalization"] = "DBMS"
	f.classifier.subjects["scheduling"] = "OS"
	f.extractor.texts["db"] = "normalization organizes tables to reduce redundancy. normalization uses normal forms."
	f.extractor.texts["os"] = "scheduling of process priorities in the kernel scheduler."
	ctx := context.Background()

	_, err := f.orch.Ingest(ctx, &Upload{StudentID: "s1", FileName: "dbms.pdf", Data: []byte("db")})
	require.NoError(t, err)

	gen := &recordingGenerator{}
	answerer := rag.New(f.adapter, gen, 5)
	first := answerer.Answer(ctx, "s1", "What is normalization?", "")
	require.Equal(t, []string{"DBMS — dbms.pdf"}, first.Sources)

	_, err = f.orch.Ingest(ctx, &Upload{StudentID: "s1", FileName: "os.pdf", Data: []byte("os")})
	require.NoError(t, err)

	unfiltered := answerer.Answer(ctx, "s1", "What is normalization?", "")
	require.ElementsMatch(t, []string{"DBMS — dbms.pdf", "OS — os.pdf"}, unfiltered.Sources)

	filtered := answerer.Answer(ctx, "s1", "What is normalization?", "DBMS")
	require.Equal(t, []string{"DBMS — dbms.pdf"}, filtered.Sources)
	require.NotContains(t, gen.lastContext, "scheduler")

	other := answerer.Answer(ctx, "s2", "What is normalization?", "")
	require.Equal(t, rag.NotFoundAnswer, other.Answer)
}

type recordingGenerator struct {
	lastContext string
}

func (r *recordingGenerator) AnswerGrounded(ctx context.Context, question string, contextText string) (string, error) {
	r.lastContext = contextText
	return "answer", nil
}
