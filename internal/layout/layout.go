// Package layout provides the LayoutManager used by preferences managers: an
// in-memory folder/channel tree for one user and profile, loaded from and saved
// to a LayoutRepository.
package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/portalprefs/internal/domain"
)

const rootName = "root"

var (
	ErrDuplicateNode = errors.New("layout node already exists")
	ErrNotFolder     = errors.New("parent is not a folder")
	ErrRemoveRoot    = errors.New("the root folder cannot be removed")
)

// Manager is a domain.LayoutManager bound to one identity for its whole life.
// Its methods are safe for concurrent use.
type Manager struct {
	repo     domain.LayoutRepository
	identity domain.Identity

	mu     sync.RWMutex
	layout *domain.Layout
}

var _ domain.LayoutManager = (*Manager)(nil)

// NewManager wraps an already loaded layout.
func NewManager(repo domain.LayoutRepository, identity domain.Identity, layout *domain.Layout) *Manager {
	return &Manager{repo: repo, identity: identity, layout: layout}
}

// Empty returns a layout holding only a root folder.
func Empty(layoutID int) *domain.Layout {
	root := &domain.LayoutNode{ID: uuid.NewString(), Type: domain.NodeTypeFolder, Name: rootName}
	return &domain.Layout{ID: layoutID, RootID: root.ID, Nodes: map[string]*domain.LayoutNode{root.ID: root}}
}

func (m *Manager) Identity() domain.Identity {
	return m.identity
}

func (m *Manager) LayoutID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layout.ID
}

// RootID returns the id of the root folder.
func (m *Manager) RootID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layout.RootID
}

// Node returns a copy of the node with the given id.
func (m *Manager) Node(id string) (*domain.LayoutNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.layout.Nodes[id]
	if !ok {
		return nil, false
	}
	c := *n
	c.Children = slices.Clone(n.Children)
	return &c, true
}

// AddNode appends node to the children of parentID. An empty node id is assigned.
func (m *Manager) AddNode(parentID string, node domain.LayoutNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.layout.Nodes[parentID]
	if !ok {
		return fmt.Errorf("parent %s: %w", parentID, domain.ErrNodeNotFound)
	}
	if parent.Type != domain.NodeTypeFolder {
		return fmt.Errorf("parent %s: %w", parentID, ErrNotFolder)
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if _, exists := m.layout.Nodes[node.ID]; exists {
		return fmt.Errorf("node %s: %w", node.ID, ErrDuplicateNode)
	}

	node.ParentID = parentID
	node.Children = nil
	m.layout.Nodes[node.ID] = &node
	parent.Children = append(parent.Children, node.ID)
	return nil
}

// RemoveNode deletes the node and its whole subtree.
func (m *Manager) RemoveNode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == m.layout.RootID {
		return ErrRemoveRoot
	}
	n, ok := m.layout.Nodes[id]
	if !ok {
		return fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}
	if parent, ok := m.layout.Nodes[n.ParentID]; ok {
		parent.Children = slices.DeleteFunc(parent.Children, func(c string) bool { return c == id })
	}

	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node, ok := m.layout.Nodes[cur]; ok {
			stack = append(stack, node.Children...)
			delete(m.layout.Nodes, cur)
		}
	}
	return nil
}

// Snapshot returns a deep copy of the current tree.
func (m *Manager) Snapshot() *domain.Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &domain.Layout{ID: m.layout.ID, RootID: m.layout.RootID, Nodes: make(map[string]*domain.LayoutNode, len(m.layout.Nodes))}
	for id, n := range m.layout.Nodes {
		nc := *n
		nc.Children = slices.Clone(n.Children)
		c.Nodes[id] = &nc
	}
	return c
}

// SaveLayout persists the current tree.
func (m *Manager) SaveLayout(ctx context.Context) error {
	snap := m.Snapshot()
	if err := m.repo.SaveLayout(ctx, m.identity, snap); err != nil {
		return fmt.Errorf("failed to save layout %d for %s: %w", snap.ID, m.identity, err)
	}
	slog.DebugContext(ctx, "Layout saved", "user_id", m.identity.UserID, "layout_id", snap.ID, "nodes", len(snap.Nodes))
	return nil
}

// Factory builds Managers from a LayoutRepository.
type Factory struct {
	repo domain.LayoutRepository
}

var _ domain.LayoutManagerFactory = (*Factory)(nil)

func NewFactory(repo domain.LayoutRepository) *Factory {
	return &Factory{repo: repo}
}

// NewLayoutManager loads the profile's layout for identity. A user without a
// stored layout starts from an empty tree.
func (f *Factory) NewLayoutManager(ctx context.Context, identity domain.Identity, profile *domain.Profile) (domain.LayoutManager, error) {
	if profile == nil {
		return nil, errors.New("layout manager requires a profile")
	}

	l, err := f.repo.GetLayout(ctx, identity, profile.LayoutID)
	if err == nil && l == nil {
		err = domain.ErrLayoutNotFound
	}
	switch {
	case errors.Is(err, domain.ErrLayoutNotFound):
		slog.DebugContext(ctx, "No stored layout, starting empty", "user_id", identity.UserID, "layout_id", profile.LayoutID)
		l = Empty(profile.LayoutID)
	case err != nil:
		return nil, fmt.Errorf("failed to load layout %d for %s: %w", profile.LayoutID, identity, err)
	}
	if l.Nodes == nil || l.Nodes[l.RootID] == nil {
		return nil, fmt.Errorf("layout %d for %s has no root folder", profile.LayoutID, identity)
	}
	return NewManager(f.repo, identity, l), nil
}
