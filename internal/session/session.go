// Package session coordinates one single-author editing session: it owns the
// document aggregate, hydrates lessons into editable trees, and runs the
// finalize-edit transition, the only code path that mutates the aggregate.
package session

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lessonforge/lessonforge/internal/book"
	"github.com/lessonforge/lessonforge/internal/document"
	"github.com/lessonforge/lessonforge/internal/document/images"
)

// LessonState drives the per-lesson clobber protection: a background
// hydration result is applied only to a Clean lesson.
type LessonState int

const (
	StateClean LessonState = iota
	StateHydrating
	StateEditing
)

var (
	ErrLessonBusy = stderrors.New("lesson already has an active edit")
	ErrNotEditing = stderrors.New("lesson is not being edited")
	// ErrPendingImages gates finalize-edit while uploads are in flight; the
	// author must either retry later or explicitly proceed with a warning.
	ErrPendingImages = stderrors.New("lesson has images pending upload")
	ErrFailedImages  = stderrors.New("lesson has images whose upload failed")
)

// GenerateParams is the request contract of the external generation API.
type GenerateParams struct {
	Topic       string
	Audience    string
	LessonCount int
}

// Generator is the outside collaborator producing a fresh aggregate, invoked
// once per authoring session.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*book.Book, error)
}

// FinalizeOptions record the author's explicit choice when flagged images are
// present. Nothing here is auto-resolved.
type FinalizeOptions struct {
	// AllowPendingImages persists the lesson even though some image
	// references are still transient and will not survive a reload.
	AllowPendingImages bool
}

type Session struct {
	mu       sync.Mutex
	book     *book.Book
	states   []LessonState
	trees    []*document.Tree
	manager  *images.Manager
	resolver images.Resolver
	logger   *zap.Logger
}

// New wraps a loaded aggregate. The aggregate shape is validated here; a book
// without lessons refuses to open.
func New(b *book.Book, manager *images.Manager, resolver images.Resolver, logger *zap.Logger) (*Session, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b.RecomputeDerived()
	return &Session{
		book:     b,
		states:   make([]LessonState, len(b.Lessons)),
		trees:    make([]*document.Tree, len(b.Lessons)),
		manager:  manager,
		resolver: resolver,
		logger:   logger.Named("session"),
	}, nil
}

// Generate invokes the external generation API once and opens a session on
// the result.
func Generate(ctx context.Context, gen Generator, params GenerateParams, manager *images.Manager, resolver images.Resolver, logger *zap.Logger) (*Session, error) {
	b, err := gen.Generate(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "generation failed")
	}
	return New(b, manager, resolver, logger)
}

func (s *Session) Book() *book.Book {
	return s.book
}

// Hydrate builds the editable trees. The first lesson is hydrated before
// returning so the author sees usable content fastest; the remaining lessons
// hydrate in source order in the background. The returned wait function joins
// the background pass; callers may ignore it and keep authoring.
func (s *Session) Hydrate(ctx context.Context) (wait func() error, err error) {
	if err := s.hydrateLesson(ctx, 0); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	// One goroutine walks the remaining lessons so they hydrate in source
	// order without the caller ever waiting on them.
	g.Go(func() error {
		for i := 1; i < len(s.book.Lessons); i++ {
			if err := s.hydrateLesson(gctx, i); err != nil {
				// Not fatal to the session; the lesson re-hydrates on
				// demand when editing starts.
				s.logger.Warn("background hydration failed", zap.Int("lesson", i), zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait, nil
}

func (s *Session) hydrateLesson(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.states[index] != StateClean || s.trees[index] != nil {
		s.mu.Unlock()
		return nil
	}
	s.states[index] = StateHydrating
	content := s.book.Lessons[index].Content
	s.mu.Unlock()

	tree := document.Parse(content)
	s.displayableRefs(ctx, tree)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Discard the result if the author started an edit while we worked.
	if s.states[index] != StateHydrating {
		s.logger.Debug("hydration result discarded", zap.Int("lesson", index))
		return nil
	}
	s.trees[index] = tree
	s.states[index] = StateClean
	return nil
}

// displayableRefs swaps canonical references for renderable ones. A failed
// translation keeps the canonical reference so the pointer is not lost.
func (s *Session) displayableRefs(ctx context.Context, tree *document.Tree) {
	if s.resolver == nil {
		return
	}
	for _, img := range tree.Images() {
		if !img.Canonical {
			continue
		}
		ref, err := s.resolver.ToDisplayable(ctx, img.Reference)
		if err != nil {
			s.logger.Warn("displayable translation failed", zap.String("ref", img.Reference), zap.Error(err))
			continue
		}
		img.Reference = ref
	}
}

// Tree exposes the hydrated view of a lesson, or nil before hydration.
func (s *Session) Tree(index int) *document.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.trees) {
		return nil
	}
	return s.trees[index]
}

func (s *Session) State(index int) LessonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[index]
}

// BeginEdit hands the lesson's tree to the author. From this point no
// hydration pass may overwrite it until FinalizeEdit.
func (s *Session) BeginEdit(index int) (*document.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.book.Lessons) {
		return nil, errors.Errorf("lesson index %d out of range", index)
	}
	if s.states[index] == StateEditing {
		return nil, ErrLessonBusy
	}
	if s.trees[index] == nil {
		s.trees[index] = document.Parse(s.book.Lessons[index].Content)
	}
	s.states[index] = StateEditing
	return s.trees[index], nil
}

// InsertImage registers a pasted image on the edited lesson: the node shows
// the transient reference immediately while the upload runs concurrently.
func (s *Session) InsertImage(ctx context.Context, index int, altText, transientRef string, data []byte, contentType string) (*document.Image, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.states) || s.states[index] != StateEditing {
		s.mu.Unlock()
		return nil, ErrNotEditing
	}
	tree := s.trees[index]
	s.mu.Unlock()

	id := s.manager.Track(altText, transientRef)
	node := &document.Image{
		AltText:     altText,
		Reference:   transientRef,
		InsertionID: id,
	}

	s.mu.Lock()
	tree.Children = append(tree.Children, node)
	s.mu.Unlock()

	if err := s.manager.Start(ctx, id, data, contentType); err != nil {
		return nil, err
	}
	return node, nil
}

// FinalizeEdit serializes the edited tree back to Markdown and commits it to
// the aggregate, recomputing derived metadata. Lessons holding flagged images
// are rejected unless the author explicitly allows persisting transient
// references.
func (s *Session) FinalizeEdit(ctx context.Context, index int, opts FinalizeOptions) (string, error) {
	s.mu.Lock()
	if index < 0 || index >= len(s.states) || s.states[index] != StateEditing {
		s.mu.Unlock()
		return "", ErrNotEditing
	}
	tree := s.trees[index]
	s.mu.Unlock()

	var lookup document.CanonicalLookup
	if s.manager != nil {
		s.manager.Rewrite(tree)
		if !opts.AllowPendingImages {
			if err := s.flaggedImages(tree); err != nil {
				return "", err
			}
		}
		lookup = s.manager
	}

	markdown, err := document.Serialize(tree, document.SerializeOptions{
		Lookup:         lookup,
		AllowTransient: opts.AllowPendingImages,
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.SetLessonContent(index, markdown); err != nil {
		return "", err
	}
	s.trees[index] = document.Parse(markdown)
	s.states[index] = StateClean
	s.displayableRefs(ctx, s.trees[index])
	return markdown, nil
}

// flaggedImages reports pending or failed insertions referenced by this tree.
func (s *Session) flaggedImages(tree *document.Tree) error {
	for _, img := range tree.Images() {
		if img.InsertionID == "" || img.Canonical {
			continue
		}
		status, _ := s.manager.Status(img.InsertionID)
		switch status {
		case images.StatusPending:
			return errors.Wrapf(ErrPendingImages, "image %q", img.AltText)
		case images.StatusFailed:
			return errors.Wrapf(ErrFailedImages, "image %q", img.AltText)
		}
	}
	return nil
}
