package features

import (
	"context"
	"errors"

	"github.com/archonhq/archon/pkg/auth"
	"github.com/archonhq/archon/pkg/models"
	"github.com/archonhq/archon/pkg/nodes"
	"github.com/archonhq/archon/pkg/registry"
)

// ErrContentAccessNotConfigured indicates a runnable asked for content
// export or OCR but the engine was built without a content accessor.
var ErrContentAccessNotConfigured = errors.New("content access not configured")

// ContentAccessor provides raw content export and OCR over stored files.
// The backing implementation (blob store, OCR model) is external to the
// engine.
type ContentAccessor interface {
	Export(ctx context.Context, uuid string) ([]byte, error)
	OCR(ctx context.Context, uuid string) (string, error)
}

// nodeFacade binds the node collaborator to the invoking identity and
// implements the capability surfaces handed to runnables. A runnable never
// sees the raw node service.
type nodeFacade struct {
	identity auth.Identity
	service  nodes.Service
	content  ContentAccessor
}

var _ registry.NodeWriter = (*nodeFacade)(nil)

func (f *nodeFacade) Get(ctx context.Context, uuid string) (*models.Node, error) {
	return f.service.Get(ctx, uuid)
}

func (f *nodeFacade) Find(ctx context.Context, filters []models.NodeFilter) ([]*models.Node, error) {
	return f.service.Find(ctx, filters)
}

func (f *nodeFacade) Export(ctx context.Context, uuid string) ([]byte, error) {
	if f.content == nil {
		return nil, ErrContentAccessNotConfigured
	}

	return f.content.Export(ctx, uuid)
}

func (f *nodeFacade) OCR(ctx context.Context, uuid string) (string, error) {
	if f.content == nil {
		return "", ErrContentAccessNotConfigured
	}

	return f.content.OCR(ctx, uuid)
}

func (f *nodeFacade) Update(ctx context.Context, uuid string, patch models.NodePatch) (*models.Node, error) {
	return f.service.Update(ctx, uuid, patch)
}

func (f *nodeFacade) UpdateFile(ctx context.Context, uuid string, file models.FileAttributes) (*models.Node, error) {
	return f.service.UpdateFile(ctx, uuid, file)
}

// restrictedFacade is the AI tool capability set: find, get, export, ocr.
// It deliberately cannot be cast back to a writer.
type restrictedFacade struct {
	inner *nodeFacade
}

var _ registry.NodeAccess = (*restrictedFacade)(nil)

func (f *restrictedFacade) Get(ctx context.Context, uuid string) (*models.Node, error) {
	return f.inner.Get(ctx, uuid)
}

func (f *restrictedFacade) Find(ctx context.Context, filters []models.NodeFilter) ([]*models.Node, error) {
	return f.inner.Find(ctx, filters)
}

func (f *restrictedFacade) Export(ctx context.Context, uuid string) ([]byte, error) {
	return f.inner.Export(ctx, uuid)
}

func (f *restrictedFacade) OCR(ctx context.Context, uuid string) (string, error) {
	return f.inner.OCR(ctx, uuid)
}
