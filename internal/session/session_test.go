package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/lessonforge/internal/book"
	"github.com/lessonforge/lessonforge/internal/document"
	"github.com/lessonforge/lessonforge/internal/document/images"
)

type stubResolver struct {
	mu           sync.Mutex
	block        chan struct{} // when set, ToCanonical waits on it
	displayBlock chan struct{} // when set, ToDisplayable waits on it
	fail         bool
	uploads      int
}

func (r *stubResolver) ToCanonical(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return "", errors.New("upload rejected")
	}
	r.uploads++
	return "books/1/images/upload.png", nil
}

func (r *stubResolver) ToDisplayable(_ context.Context, canonicalRef string) (string, error) {
	if r.displayBlock != nil {
		<-r.displayBlock
	}
	return "https://cdn.example.com/" + canonicalRef, nil
}

func twoLessonBook() *book.Book {
	b := &book.Book{
		Metadata: book.Metadata{Title: "T"},
		Lessons: []book.Lesson{
			{Title: "One", Content: "# Heading\n\nFirst lesson text.\n", Filename: "lesson-01.md"},
			{Title: "Two", Content: "Second lesson text.\n\n![fig](books/1/images/fig.png)\n", Filename: "lesson-02.md"},
		},
	}
	b.RecomputeDerived()
	return b
}

func newTestSession(t *testing.T, resolver images.Resolver) (*Session, *images.Manager) {
	t.Helper()
	mgr := images.NewManager(resolver, nil)
	s, err := New(twoLessonBook(), mgr, resolver, nil)
	require.NoError(t, err)
	return s, mgr
}

func TestNew_RejectsEmptyBook(t *testing.T) {
	_, err := New(&book.Book{}, nil, nil, nil)
	assert.ErrorIs(t, err, book.ErrNoLessons)
}

func TestHydrate_FirstLessonBeforeReturn(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})

	wait, err := s.Hydrate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s.Tree(0))

	require.NoError(t, wait())
	require.NotNil(t, s.Tree(1))

	// Canonical references were translated for display during hydration.
	imgs := s.Tree(1).Images()
	require.Len(t, imgs, 1)
	img := imgs[0]
	assert.True(t, strings.HasPrefix(img.Reference, "https://cdn.example.com/"))
}

func TestHydrate_ReturnsWhileBackgroundLessonsInFlight(t *testing.T) {
	release := make(chan struct{})
	resolver := &stubResolver{displayBlock: release}
	mgr := images.NewManager(resolver, nil)

	b := &book.Book{
		Metadata: book.Metadata{Title: "T"},
		Lessons: []book.Lesson{
			{Title: "One", Content: "Plain opening text.\n", Filename: "lesson-01.md"},
			{Title: "Two", Content: "![a](books/1/images/a.png)\n", Filename: "lesson-02.md"},
			{Title: "Three", Content: "![b](books/1/images/b.png)\n", Filename: "lesson-03.md"},
		},
	}
	b.RecomputeDerived()
	s, err := New(b, mgr, resolver, nil)
	require.NoError(t, err)

	type result struct {
		wait func() error
		err  error
	}
	returned := make(chan result, 1)
	go func() {
		wait, err := s.Hydrate(context.Background())
		returned <- result{wait, err}
	}()

	// Lessons after the first hydrate in the background; the call must come
	// back while their display translation is still in flight.
	var res result
	select {
	case res = <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Hydrate did not return while background lessons were hydrating")
	}
	require.NoError(t, res.err)
	require.NotNil(t, s.Tree(0))

	close(release)
	require.NoError(t, res.wait())
	require.NotNil(t, s.Tree(1))
	require.NotNil(t, s.Tree(2))
}

func TestHydrate_DoesNotClobberActiveEdit(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})

	// The author opens lesson 1 before background hydration reaches it.
	edited, err := s.BeginEdit(1)
	require.NoError(t, err)

	wait, err := s.Hydrate(context.Background())
	require.NoError(t, err)
	require.NoError(t, wait())

	assert.Equal(t, StateEditing, s.State(1))
	assert.Same(t, edited, s.Tree(1))
}

func TestBeginEdit_SecondEditRejected(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})
	_, err := s.BeginEdit(0)
	require.NoError(t, err)
	_, err = s.BeginEdit(0)
	assert.ErrorIs(t, err, ErrLessonBusy)
}

func TestFinalizeEdit_CommitsContentAndDerivedFields(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})
	before := s.Book().Metadata.TotalWords

	tree, err := s.BeginEdit(0)
	require.NoError(t, err)
	tree.Children = append(tree.Children,
		&document.Block{Kind: document.KindBreak},
		&document.Block{Kind: document.KindParagraph, Children: []document.Node{
			&document.Text{Value: "Extra closing words here."},
		}},
	)

	markdown, err := s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	require.NoError(t, err)
	assert.Contains(t, markdown, "# Heading")
	assert.Contains(t, markdown, "Extra closing words here.")
	assert.Equal(t, markdown, s.Book().Lessons[0].Content)
	assert.Equal(t, before+4, s.Book().Metadata.TotalWords)
	assert.Equal(t, StateClean, s.State(0))
}

func TestFinalizeEdit_RequiresActiveEdit(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})
	_, err := s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestInsertImage_UploadCompletesBeforeFinalize(t *testing.T) {
	resolver := &stubResolver{}
	s, mgr := newTestSession(t, resolver)

	_, err := s.BeginEdit(0)
	require.NoError(t, err)

	node, err := s.InsertImage(context.Background(), 0, "pasted", "data:image/png;base64,AAAA", []byte{1}, "image/png")
	require.NoError(t, err)
	assert.False(t, node.Canonical)

	mgr.Wait()

	markdown, err := s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	require.NoError(t, err)
	assert.Contains(t, markdown, "![pasted](books/1/images/upload.png)")
	assert.NotContains(t, markdown, "data:image/png")
}

func TestInsertImage_RequiresActiveEdit(t *testing.T) {
	s, _ := newTestSession(t, &stubResolver{})
	_, err := s.InsertImage(context.Background(), 0, "x", "blob:x", []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestFinalizeEdit_PendingImageGate(t *testing.T) {
	release := make(chan struct{})
	resolver := &stubResolver{block: release}
	s, mgr := newTestSession(t, resolver)

	_, err := s.BeginEdit(0)
	require.NoError(t, err)
	_, err = s.InsertImage(context.Background(), 0, "slow", "blob:slow", []byte{1}, "image/png")
	require.NoError(t, err)

	// Upload still in flight: finalize blocks with a retry prompt.
	_, err = s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	assert.ErrorIs(t, err, ErrPendingImages)
	assert.Equal(t, StateEditing, s.State(0))

	// The upload finishes; retrying the action succeeds.
	close(release)
	mgr.Wait()
	markdown, err := s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	require.NoError(t, err)
	assert.Contains(t, markdown, "books/1/images/upload.png")
}

func TestFinalizeEdit_FailedImageProceedWithWarning(t *testing.T) {
	resolver := &stubResolver{fail: true}
	s, mgr := newTestSession(t, resolver)

	_, err := s.BeginEdit(0)
	require.NoError(t, err)
	_, err = s.InsertImage(context.Background(), 0, "broken", "blob:broken", []byte{1}, "image/png")
	require.NoError(t, err)
	mgr.Wait()

	_, err = s.FinalizeEdit(context.Background(), 0, FinalizeOptions{})
	assert.ErrorIs(t, err, ErrFailedImages)

	// Explicit author choice: the transient reference is persisted with the
	// understanding it will not survive a reload.
	markdown, err := s.FinalizeEdit(context.Background(), 0, FinalizeOptions{AllowPendingImages: true})
	require.NoError(t, err)
	assert.Contains(t, markdown, "blob:broken")
}

type stubGenerator struct {
	book *book.Book
	err  error
}

func (g *stubGenerator) Generate(context.Context, GenerateParams) (*book.Book, error) {
	return g.book, g.err
}

func TestGenerate(t *testing.T) {
	s, err := Generate(context.Background(), &stubGenerator{book: twoLessonBook()}, GenerateParams{Topic: "gardening"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Book().Metadata.TotalLessons)

	_, err = Generate(context.Background(), &stubGenerator{err: errors.New("quota exceeded")}, GenerateParams{}, nil, nil, nil)
	assert.ErrorContains(t, err, "quota exceeded")
}
