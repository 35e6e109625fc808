// Package attachment keeps product image rows and the blobs they point at in
// step. It is the only writer of the product and category image namespaces.
//
// Row changes happen inside the caller's transaction. Blob writes happen
// immediately and are undone by the manager itself when a later step of the
// same call fails. Blob deletions that must only happen once the rows are
// committed are returned as a Pending for the caller to settle.
package attachment

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"catalog-service/internal/apperror"
	"catalog-service/internal/model"
	"catalog-service/internal/repository"
	"catalog-service/internal/storage"
	"catalog-service/pkg/logger"
	"catalog-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager is the image attachment manager
type Manager struct {
	blobs  storage.BlobStore
	images *repository.ImageRepository
	now    func() time.Time
}

func NewManager(blobs storage.BlobStore, images *repository.ImageRepository) *Manager {
	return &Manager{blobs: blobs, images: images, now: time.Now}
}

// Pending is the blob side of a row change that has not been committed yet.
// Exactly one of Commit or Abort should be called after the transaction ends.
type Pending struct {
	m        *Manager
	written  []string
	obsolete func(ctx context.Context)
}

// Commit runs the deferred deletions. Failures only orphan blobs and are logged.
func (p *Pending) Commit(ctx context.Context) {
	if p == nil || p.obsolete == nil {
		return
	}
	p.obsolete(ctx)
}

// Abort removes the blobs written for the uncommitted rows
func (p *Pending) Abort(ctx context.Context) {
	if p == nil {
		return
	}
	p.m.discard(ctx, "abort", p.written)
}

func (m *Manager) repo(tx *gorm.DB) *repository.ImageRepository {
	if tx == nil {
		return m.images
	}
	return m.images.WithTx(tx)
}

// discard deletes blobs written by a step that is being rolled back
func (m *Manager) discard(ctx context.Context, step string, keys []string) {
	if len(keys) == 0 {
		return
	}
	log := logger.FromCtx(ctx)
	// the request context may already be cancelled; cleanup must still run
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		prometheus.RecordCompensation(step)
		if err := m.blobs.Delete(ctx, key); err != nil {
			log.Error("Failed to remove blob during rollback",
				zap.String("step", step),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

func (m *Manager) deleteDirectory(ctx context.Context, prefix string) {
	if err := m.blobs.DeleteDirectory(context.WithoutCancel(ctx), prefix); err != nil {
		logger.FromCtx(ctx).Warn("Failed to delete image folder, blobs orphaned",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
}

// Attach stores every upload under the product's folder and inserts one row
// per blob. If any write fails the blobs written by this call are removed and
// the error is returned; the caller's transaction discards the rows.
func (m *Manager) Attach(ctx context.Context, tx *gorm.DB, productID uint, productName string, uploads []Upload) ([]model.ProductImage, *Pending, error) {
	log := logger.FromCtx(ctx)
	images := m.repo(tx)
	folder := FolderName(productName, productID)
	pending := &Pending{m: m}

	var created []model.ProductImage
	for _, u := range uploads {
		imagePath := folder + "/" + BlobName(u.Filename, m.now())
		key, err := m.blobs.Put(ctx, ProductBlobKey(imagePath), u.Data)
		if err != nil {
			log.Error("Failed to store product image",
				zap.Uint("product_id", productID),
				zap.String("filename", u.Filename),
				zap.Error(err))
			m.discard(ctx, "attach", pending.written)
			return nil, nil, apperror.Attachment("Failed to store product images", err)
		}
		pending.written = append(pending.written, key)

		row := model.ProductImage{ProductID: productID, ImagePath: imagePath}
		if err := images.Create(ctx, &row); err != nil {
			m.discard(ctx, "attach", pending.written)
			return nil, nil, err
		}
		row.ImageURL = m.blobs.URL(key)
		created = append(created, row)
	}

	log.Debug("Product images attached",
		zap.Uint("product_id", productID),
		zap.String("folder", folder),
		zap.Int("count", len(created)))
	return created, pending, nil
}

// Replace swaps the product's image set for uploads. The new images are
// written under the folder of newName before anything is removed; on commit
// the old folder is deleted, or, when the folder did not move, every blob in
// it that is not one of the new images.
func (m *Manager) Replace(ctx context.Context, tx *gorm.DB, productID uint, oldName, newName string, uploads []Upload) ([]model.ProductImage, *Pending, error) {
	images := m.repo(tx)

	old, err := images.ListByProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	created, pending, err := m.Attach(ctx, tx, productID, newName, uploads)
	if err != nil {
		return nil, nil, err
	}

	oldIDs := make([]uint, 0, len(old))
	for _, img := range old {
		oldIDs = append(oldIDs, img.ID)
	}
	if err := images.DeleteByIDs(ctx, oldIDs); err != nil {
		pending.Abort(ctx)
		return nil, nil, err
	}

	oldFolder := FolderKey(oldName, productID)
	newFolder := FolderKey(newName, productID)
	keep := make(map[string]bool, len(pending.written))
	for _, key := range pending.written {
		keep[storage.CanonicalKey(m.blobs, key)] = true
	}

	pending.obsolete = func(ctx context.Context) {
		if oldFolder != newFolder {
			m.deleteDirectory(ctx, oldFolder)
			return
		}
		m.pruneFolder(ctx, newFolder, keep)
	}
	return created, pending, nil
}

// pruneFolder removes every blob under prefix except those in keep, which
// holds canonical keys
func (m *Manager) pruneFolder(ctx context.Context, prefix string, keep map[string]bool) {
	log := logger.FromCtx(ctx)
	ctx = context.WithoutCancel(ctx)

	keys, err := m.blobs.List(ctx, prefix)
	if err != nil {
		log.Warn("Failed to list image folder, stale blobs may remain",
			zap.String("prefix", prefix),
			zap.Error(err))
		return
	}
	for _, key := range keys {
		if keep[storage.CanonicalKey(m.blobs, key)] {
			continue
		}
		if err := m.blobs.Delete(ctx, key); err != nil {
			log.Warn("Failed to delete stale image", zap.String("key", key), zap.Error(err))
		}
	}
}

// Relocate moves a renamed product's images into the folder of newName.
// Rows are repointed inside tx; the old folder is removed on commit.
func (m *Manager) Relocate(ctx context.Context, tx *gorm.DB, productID uint, oldName, newName string) (*Pending, error) {
	pending := &Pending{m: m}
	oldFolder := FolderName(oldName, productID)
	newFolder := FolderName(newName, productID)
	if oldFolder == newFolder {
		return pending, nil
	}

	log := logger.FromCtx(ctx)
	images := m.repo(tx)

	rows, err := images.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var missing []uint
	for _, row := range rows {
		data, err := m.blobs.Get(ctx, ProductBlobKey(row.ImagePath))
		if errors.Is(err, storage.ErrNotExist) {
			// every row must point at a stored blob; drop the orphan
			log.Warn("Product image blob missing, dropping row",
				zap.Uint("product_id", productID),
				zap.String("image_path", row.ImagePath))
			missing = append(missing, row.ID)
			continue
		}
		if err != nil {
			m.discard(ctx, "relocate", pending.written)
			return nil, apperror.Attachment("Failed to move product images", err)
		}

		newPath := newFolder + "/" + path.Base(row.ImagePath)
		key, err := m.blobs.Put(ctx, ProductBlobKey(newPath), data)
		if err != nil {
			m.discard(ctx, "relocate", pending.written)
			return nil, apperror.Attachment("Failed to move product images", err)
		}
		pending.written = append(pending.written, key)

		if err := images.UpdatePath(ctx, row.ID, newPath); err != nil {
			m.discard(ctx, "relocate", pending.written)
			return nil, err
		}
	}
	if err := images.DeleteByIDs(ctx, missing); err != nil {
		m.discard(ctx, "relocate", pending.written)
		return nil, err
	}

	oldPrefix := ProductNamespace + "/" + oldFolder
	pending.obsolete = func(ctx context.Context) {
		m.deleteDirectory(ctx, oldPrefix)
	}
	return pending, nil
}

// RemoveFolder deletes the product's image rows inside tx and, on commit,
// the whole folder. Removing a folder that does not exist is not an error.
func (m *Manager) RemoveFolder(ctx context.Context, tx *gorm.DB, productID uint, productName string) (*Pending, error) {
	if _, err := m.repo(tx).DeleteByProduct(ctx, productID); err != nil {
		return nil, err
	}
	prefix := FolderKey(productName, productID)
	return &Pending{m: m, obsolete: func(ctx context.Context) {
		m.deleteDirectory(ctx, prefix)
	}}, nil
}

// PutCategoryImage stores a category image and returns its key
func (m *Manager) PutCategoryImage(ctx context.Context, u Upload) (string, error) {
	key, err := m.blobs.Put(ctx, CategoryNamespace+"/"+BlobName(u.Filename, m.now()), u.Data)
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to store category image",
			zap.String("filename", u.Filename),
			zap.Error(err))
		return "", apperror.Attachment("Failed to store category image", err)
	}
	return key, nil
}

// DiscardCategoryImage undoes PutCategoryImage after a failed row write
func (m *Manager) DiscardCategoryImage(ctx context.Context, key string) {
	m.discard(ctx, "category_image", []string{key})
}

// DeleteCategoryImage removes a category image that is no longer referenced.
// Only keys inside the category namespace are touched.
func (m *Manager) DeleteCategoryImage(ctx context.Context, key string) error {
	if key == "" || !strings.HasPrefix(key, CategoryNamespace+"/") {
		return nil
	}
	if err := m.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.FromCtx(ctx).Warn("Failed to delete category image, blob orphaned",
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}

// URL returns the public location of a blob key
func (m *Manager) URL(key string) string {
	if key == "" {
		return ""
	}
	return m.blobs.URL(key)
}

// DecorateImages fills ImageURL on product image rows
func (m *Manager) DecorateImages(images []model.ProductImage) {
	for i := range images {
		images[i].ImageURL = m.blobs.URL(ProductBlobKey(images[i].ImagePath))
	}
}
