package domain

import "context"

type NodeType string

const (
	NodeTypeFolder  NodeType = "folder"
	NodeTypeChannel NodeType = "channel"
)

// LayoutNode is one folder or channel in a user's layout tree.
type LayoutNode struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`

	// ChannelPublishID is the global id of the published channel; channels only.
	ChannelPublishID string `json:"channel_publish_id,omitempty"`
}

// Layout is the persisted form of a layout tree.
type Layout struct {
	ID     int                    `json:"id"`
	RootID string                 `json:"root_id"`
	Nodes  map[string]*LayoutNode `json:"nodes"`
}

// LayoutManager is a stateful handle on one user's layout tree for one profile.
// A LayoutManager is bound to exactly one Identity for its whole life.
type LayoutManager interface {
	Identity() Identity
	LayoutID() int
	Node(id string) (*LayoutNode, bool)
	AddNode(parentID string, node LayoutNode) error
	RemoveNode(id string) error
	SaveLayout(ctx context.Context) error
}

// LayoutManagerFactory builds a LayoutManager bound to (identity, profile).
type LayoutManagerFactory interface {
	NewLayoutManager(ctx context.Context, identity Identity, profile *Profile) (LayoutManager, error)
}

// LayoutRepository persists layout trees per user.
type LayoutRepository interface {
	GetLayout(ctx context.Context, identity Identity, layoutID int) (*Layout, error)
	SaveLayout(ctx context.Context, identity Identity, layout *Layout) error
}
