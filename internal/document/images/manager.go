// Package images tracks pictures inserted into the editable surface and
// upgrades their transient, session-local references to canonical ones once
// the upload to the blob store completes.
package images

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lessonforge/lessonforge/internal/document"
	"github.com/lessonforge/lessonforge/internal/ulid"
)

// Resolver exchanges references between storage domains. Implemented by the
// storage layer.
type Resolver interface {
	// ToCanonical uploads the image bytes and returns a durable reference.
	ToCanonical(ctx context.Context, transientRef string, data []byte, contentType string) (string, error)
	// ToDisplayable translates a canonical reference into one the editable
	// surface can render, e.g. by attaching a short-lived access grant.
	ToDisplayable(ctx context.Context, canonicalRef string) (string, error)
}

type Status int

const (
	StatusPending Status = iota + 1
	StatusUploaded
	StatusFailed
)

type insertion struct {
	id           string
	altText      string
	transientRef string
	canonicalRef string
	status       Status
	err          error
}

// Manager owns the insertion table for one editing session. Uploads run
// concurrently with authoring; upgrades match nodes by insertion ID, never by
// position, so they stay correct while the author keeps editing.
type Manager struct {
	mu         sync.Mutex
	insertions map[string]*insertion
	resolver   Resolver
	logger     *zap.Logger
	wg         sync.WaitGroup
}

func NewManager(resolver Resolver, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		insertions: map[string]*insertion{},
		resolver:   resolver,
		logger:     logger.Named("images"),
	}
}

// Track registers a freshly inserted image displayed under a transient
// reference and returns the insertion ID to stamp onto the tree node.
func (m *Manager) Track(altText, transientRef string) string {
	id := ulid.GenerateID()
	m.mu.Lock()
	m.insertions[id] = &insertion{
		id:           id,
		altText:      altText,
		transientRef: transientRef,
		status:       StatusPending,
	}
	m.mu.Unlock()
	return id
}

// Start launches the asynchronous upload for a tracked insertion. Completion
// is recorded on the manager; the tree is rewritten later by Rewrite or at
// serialization time through the Canonical lookup.
func (m *Manager) Start(ctx context.Context, id string, data []byte, contentType string) error {
	m.mu.Lock()
	ins, ok := m.insertions[id]
	m.mu.Unlock()
	if !ok {
		return errors.Errorf("unknown image insertion %q", id)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ref, err := m.resolver.ToCanonical(ctx, ins.transientRef, data, contentType)

		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			ins.status = StatusFailed
			ins.err = err
			m.logger.Warn("image upload failed", zap.String("id", id), zap.Error(err))
			return
		}
		ins.canonicalRef = ref
		ins.status = StatusUploaded
		ins.transientRef = ""
		m.logger.Debug("image upgraded to canonical reference", zap.String("id", id), zap.String("ref", ref))
	}()
	return nil
}

// Canonical implements document.CanonicalLookup.
func (m *Manager) Canonical(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ins, ok := m.insertions[id]
	if !ok || ins.status != StatusUploaded {
		return "", false
	}
	return ins.canonicalRef, true
}

// Rewrite upgrades every tree node whose insertion finished uploading,
// in place, and returns how many nodes were rewritten.
func (m *Manager) Rewrite(tree *document.Tree) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	rewritten := 0
	for _, img := range tree.Images() {
		if img.InsertionID == "" {
			continue
		}
		ins, ok := m.insertions[img.InsertionID]
		if !ok || ins.status != StatusUploaded {
			continue
		}
		img.Reference = ins.canonicalRef
		img.Canonical = true
		rewritten++
	}
	return rewritten
}

// Status reports the lifecycle state of one insertion.
func (m *Manager) Status(id string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ins, ok := m.insertions[id]
	if !ok {
		return 0, errors.Errorf("unknown image insertion %q", id)
	}
	return ins.status, ins.err
}

// Pending returns insertion IDs whose upload has not completed. The
// finalize-edit guard consults this before serialization.
func (m *Manager) Pending() []string {
	return m.byStatus(StatusPending)
}

// Failed returns insertion IDs whose upload failed. The affected images keep
// their transient reference; recovery is the author's explicit choice.
func (m *Manager) Failed() []string {
	return m.byStatus(StatusFailed)
}

func (m *Manager) byStatus(status Status) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, ins := range m.insertions {
		if ins.status == status {
			ids = append(ids, id)
		}
	}
	return ids
}

// Retry re-queues a failed insertion as pending so Start can be invoked
// again with the original bytes.
func (m *Manager) Retry(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ins, ok := m.insertions[id]
	if !ok {
		return errors.Errorf("unknown image insertion %q", id)
	}
	if ins.status != StatusFailed {
		return errors.Errorf("image insertion %q is not failed", id)
	}
	ins.status = StatusPending
	ins.err = nil
	return nil
}

// Wait blocks until all in-flight uploads settle. Used by tests and the
// finalize-edit retry path.
func (m *Manager) Wait() {
	m.wg.Wait()
}
