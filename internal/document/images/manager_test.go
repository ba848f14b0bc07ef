package images

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonforge/lessonforge/internal/document"
)

type fakeResolver struct {
	mu     sync.Mutex
	refs   map[string]string
	failOn map[string]bool
	calls  int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{refs: map[string]string{}, failOn: map[string]bool{}}
}

func (r *fakeResolver) ToCanonical(_ context.Context, transientRef string, _ []byte, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failOn[transientRef] {
		return "", errors.New("upload rejected")
	}
	ref := "books/1/images/img-" + transientRef[len(transientRef)-4:] + ".png"
	r.refs[transientRef] = ref
	return ref, nil
}

func (r *fakeResolver) ToDisplayable(_ context.Context, canonicalRef string) (string, error) {
	return "https://cdn.example.com/" + canonicalRef, nil
}

func TestManager_UpgradeRewritesByInsertionID(t *testing.T) {
	mgr := NewManager(newFakeResolver(), nil)

	transient := "data:image/png;base64,AAAA"
	id := mgr.Track("pasted", transient)

	tree := &document.Tree{Children: []document.Node{
		&document.Block{Kind: document.KindParagraph, Children: []document.Node{&document.Text{Value: "before"}}},
		&document.Image{AltText: "pasted", Reference: transient, InsertionID: id},
	}}

	require.NoError(t, mgr.Start(context.Background(), id, []byte{1, 2, 3}, "image/png"))
	mgr.Wait()

	// The author reordered nodes while the upload ran; matching is by ID.
	tree.Children = append([]document.Node{tree.Children[1]}, tree.Children[0])

	assert.Equal(t, 1, mgr.Rewrite(tree))

	img := tree.Images()[0]
	assert.True(t, img.Canonical)
	assert.False(t, document.IsTransientRef(img.Reference))

	status, err := mgr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, status)
	assert.Empty(t, mgr.Pending())
}

func TestManager_SerializeAfterUploadHasNoTransientRef(t *testing.T) {
	mgr := NewManager(newFakeResolver(), nil)

	transient := "blob:session/123"
	id := mgr.Track("figure", transient)
	tree := &document.Tree{Children: []document.Node{
		&document.Image{AltText: "figure", Reference: transient, InsertionID: id},
	}}

	require.NoError(t, mgr.Start(context.Background(), id, []byte("png"), "image/png"))
	mgr.Wait()

	result, err := document.Serialize(tree, document.SerializeOptions{Lookup: mgr})
	require.NoError(t, err)
	assert.NotContains(t, result, transient)
	assert.Contains(t, result, "books/1/images/")
}

func TestManager_PendingBlocksSerialization(t *testing.T) {
	mgr := NewManager(newFakeResolver(), nil)

	transient := "data:image/png;base64,BBBB"
	id := mgr.Track("slow", transient)
	tree := &document.Tree{Children: []document.Node{
		&document.Image{AltText: "slow", Reference: transient, InsertionID: id},
	}}

	// Upload never started; the insertion is still pending.
	assert.Equal(t, []string{id}, mgr.Pending())

	_, err := document.Serialize(tree, document.SerializeOptions{Lookup: mgr})
	assert.ErrorIs(t, err, document.ErrTransientReference)
}

func TestManager_FailedUploadKeepsTransientAndRetries(t *testing.T) {
	resolver := newFakeResolver()
	transient := "data:image/png;base64,CCCC"
	resolver.failOn[transient] = true

	mgr := NewManager(resolver, nil)
	id := mgr.Track("flaky", transient)

	require.NoError(t, mgr.Start(context.Background(), id, []byte("png"), "image/png"))
	mgr.Wait()

	status, err := mgr.Status(id)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, []string{id}, mgr.Failed())

	_, ok := mgr.Canonical(id)
	assert.False(t, ok)

	resolver.mu.Lock()
	resolver.failOn[transient] = false
	resolver.mu.Unlock()

	require.NoError(t, mgr.Retry(id))
	require.NoError(t, mgr.Start(context.Background(), id, []byte("png"), "image/png"))
	mgr.Wait()

	ref, ok := mgr.Canonical(id)
	assert.True(t, ok)
	assert.NotEmpty(t, ref)
}

func TestManager_UnknownInsertion(t *testing.T) {
	mgr := NewManager(newFakeResolver(), nil)
	assert.Error(t, mgr.Start(context.Background(), "missing", nil, ""))
	assert.Error(t, mgr.Retry("missing"))
}
