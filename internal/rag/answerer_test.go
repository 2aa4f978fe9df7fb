package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/notesrag/internal/vectorstore"
)

type fakeSearcher struct {
	hits      []vectorstore.Result
	gotK      int
	gotFilter map[string]string
}

func (f *fakeSearcher) Search(ctx context.Context, studentID, query string, k int, filter map[string]string) []vectorstore.Result {
	f.gotK = k
	f.gotFilter = filter
	return f.hits
}

type fakeGenerator struct {
	reply   string
	err     error
	calls   int
	context string
}

func (f *fakeGenerator) AnswerGrounded(ctx context.Context, question string, contextText string) (string, error) {
	f.calls++
	f.context = contextText
	return f.reply, f.err
}

func hit(text, subject, file string) vectorstore.Result {
	return vectorstore.Result{Text: text, Metadata: map[string]string{
		vectorstore.MetaSubject:  subject,
		vectorstore.MetaFileName: file,
	}}
}

func TestAnswerNoHitsSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	a := New(&fakeSearcher{}, gen, 0)
	res := a.Answer(context.Background(), "s", "What is paging?", "")
	require.Equal(t, NotFoundAnswer, res.Answer)
	require.NotNil(t, res.Sources)
	require.Empty(t, res.Sources)
	require.Zero(t, gen.calls)
}

func TestAnswerBuildsContextAndSources(t *testing.T) {
	searcher := &fakeSearcher{hits: []vectorstore.Result{
		hit("c1", "DBMS", "norm.pdf"),
		hit("c2", "DBMS", "norm.pdf"),
		hit("c3", "DBMS", "sql.png"),
	}}
	gen := &fakeGenerator{reply: "3NF removes transitive dependencies."}
	a := New(searcher, gen, 5)

	res := a.Answer(context.Background(), "s", "What is 3NF?", "DBMS")
	require.Equal(t, "What is 3NF?", res.Question)
	require.Equal(t, "3NF removes transitive dependencies.", res.Answer)
	require.Equal(t, []string{"DBMS — norm.pdf", "DBMS — sql.png"}, res.Sources)
	require.Equal(t, "c1\n\n---\n\nc2\n\n---\n\nc3", gen.context)
	require.Equal(t, 5, searcher.gotK)
	require.Equal(t, map[string]string{vectorstore.MetaSubject: "DBMS"}, searcher.gotFilter)
}

func TestAnswerWithoutSubjectHasNoFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	New(searcher, &fakeGenerator{}, 3).Answer(context.Background(), "s", "q", "  ")
	require.Nil(t, searcher.gotFilter)
	require.Equal(t, 3, searcher.gotK)
}

func TestAnswerGenerationFailure(t *testing.T) {
	searcher := &fakeSearcher{hits: []vectorstore.Result{hit("c1", "OS", "os.pdf")}}
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	res := New(searcher, gen, 5).Answer(context.Background(), "s", "q", "")
	require.Equal(t, ApologyAnswer, res.Answer)
	require.Equal(t, []string{"OS — os.pdf"}, res.Sources)
	require.Equal(t, 1, gen.calls)
}
