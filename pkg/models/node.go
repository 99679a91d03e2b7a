// Package models defines the core domain models for the content repository
// workflow and feature execution engine.
package models

import "time"

// Well-known mimetypes used as node discriminants.
const (
	FolderMimetype = "application/vnd.archon.folder"
)

// Node represents the atomic content entity managed by the repository.
// Capability-specific attributes are optional structs selected by the
// mimetype discriminant rather than subtypes.
type Node struct {
	UUID       string         `json:"uuid"`
	Title      string         `json:"title"      validate:"required"`
	Mimetype   string         `json:"mimetype"   validate:"required"`
	Parent     string         `json:"parent,omitempty"`
	Owner      string         `json:"owner,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`

	File   *FileAttributes   `json:"file,omitempty"`
	Folder *FolderAttributes `json:"folder,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileAttributes carries the file capability of a node.
type FileAttributes struct {
	Size     int64  `json:"size"`
	Location string `json:"location,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// FolderAttributes carries the folder capability of a node, including the
// feature hooks that govern its immediate children.
type FolderAttributes struct {
	OnCreateFeatures []string `json:"on_create_features,omitempty"`
	OnUpdateFeatures []string `json:"on_update_features,omitempty"`
	OnDeleteFeatures []string `json:"on_delete_features,omitempty"`
}

// IsFile reports whether the node carries the file capability.
func (n *Node) IsFile() bool {
	return n.File != nil && n.Mimetype != FolderMimetype
}

// IsFolder reports whether the node carries the folder capability.
func (n *Node) IsFolder() bool {
	return n.Mimetype == FolderMimetype
}

// HookFeatures returns the folder hook feature ids for the given event kind.
// Returns nil when the node is not a folder or no hooks are configured.
func (n *Node) HookFeatures(kind NodeEventKind) []string {
	if !n.IsFolder() || n.Folder == nil {
		return nil
	}

	switch kind {
	case NodeCreated:
		return n.Folder.OnCreateFeatures
	case NodeUpdated:
		return n.Folder.OnUpdateFeatures
	case NodeDeleted:
		return n.Folder.OnDeleteFeatures
	}

	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	clone := *n

	if n.Properties != nil {
		clone.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			clone.Properties[k] = v
		}
	}

	if n.File != nil {
		file := *n.File
		clone.File = &file
	}

	if n.Folder != nil {
		folder := FolderAttributes{
			OnCreateFeatures: append([]string(nil), n.Folder.OnCreateFeatures...),
			OnUpdateFeatures: append([]string(nil), n.Folder.OnUpdateFeatures...),
			OnDeleteFeatures: append([]string(nil), n.Folder.OnDeleteFeatures...),
		}
		clone.Folder = &folder
	}

	return &clone
}

// NodeEventKind identifies which node mutation raised an automatic trigger.
type NodeEventKind string

const (
	NodeCreated NodeEventKind = "created"
	NodeUpdated NodeEventKind = "updated"
	NodeDeleted NodeEventKind = "deleted"
)

// NodePatch is a partial update applied to a node through the workflow
// sanctioned update path.
type NodePatch struct {
	Title      *string        `json:"title,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}
