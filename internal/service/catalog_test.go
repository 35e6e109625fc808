package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"catalog-service/internal/apperror"
	"catalog-service/internal/attachment"
	"catalog-service/internal/dbtest"
	"catalog-service/internal/lock"
	"catalog-service/internal/model"
	"catalog-service/internal/repository"
	"catalog-service/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var png = []byte("\x89PNG\r\n\x1a\n0000000000000000")

type harness struct {
	catalog *Catalog
	blobs   *storage.MemoryStore
	db      *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.New(t)
	blobs := storage.NewMemoryStore()
	manager := attachment.NewManager(blobs, repository.NewImageRepository(db))
	catalog := New(db, manager, lock.NewMemoryLocker(), Options{
		Validator: attachment.Validator{
			MaxSizeBytes: 1 << 20,
			AllowedTypes: []string{"jpeg", "png", "jpg", "gif"},
		},
		LowStockThreshold: 5,
	})
	return &harness{catalog: catalog, blobs: blobs, db: db}
}

func image(name string) *attachment.Upload {
	return &attachment.Upload{Filename: name, Data: png}
}

func images(names ...string) []attachment.Upload {
	out := make([]attachment.Upload, 0, len(names))
	for _, n := range names {
		out = append(out, *image(n))
	}
	return out
}

func (h *harness) category(t *testing.T, name string) *model.Category {
	t.Helper()
	c, err := h.catalog.CreateCategory(context.Background(), CategoryForm{Name: name})
	require.NoError(t, err)
	return c
}

func productForm(name, price string, qty int, categoryID uint, expired bool, files ...string) ProductForm {
	return ProductForm{
		Name:       name,
		Price:      price,
		Quantity:   strconv.Itoa(qty),
		CategoryID: strconv.FormatUint(uint64(categoryID), 10),
		Expired:    strconv.FormatBool(expired),
		Images:     images(files...),
	}
}

func (h *harness) product(t *testing.T, form ProductForm) *model.Product {
	t.Helper()
	p, err := h.catalog.CreateProduct(context.Background(), form)
	require.NoError(t, err)
	return p
}

func (h *harness) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := h.blobs.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func (h *harness) count(t *testing.T, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(value).Count(&n).Error)
	return n
}

func validationFields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr), "expected *apperror.Error, got %v", err)
	require.Equal(t, apperror.KindValidation, appErr.Kind)
	return appErr.Fields
}

func TestCategoryRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.catalog.CreateCategory(ctx, CategoryForm{Name: "Books", Image: image("cover.png")})
	require.NoError(t, err)
	first := created.ImagePath
	assert.True(t, strings.HasPrefix(first, "category_images/"))
	assert.Equal(t, "memory://"+first, created.ImageURL)

	got, err := h.catalog.GetCategory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", got.Name)
	assert.Equal(t, first, got.ImagePath)
	assert.True(t, h.exists(t, got.ImagePath))

	// new image replaces the old one
	updated, err := h.catalog.UpdateCategory(ctx, created.ID, CategoryForm{Name: "Novels", Image: image("new.png")})
	require.NoError(t, err)
	second := updated.ImagePath
	assert.NotEqual(t, first, second)
	assert.False(t, h.exists(t, first))
	assert.True(t, h.exists(t, second))

	// no image keeps the current one
	_, err = h.catalog.UpdateCategory(ctx, created.ID, CategoryForm{Name: "Fiction"})
	require.NoError(t, err)

	got, err = h.catalog.GetCategory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fiction", got.Name)
	assert.Equal(t, second, got.ImagePath)
	assert.True(t, h.exists(t, second))
	assert.Equal(t, 1, h.blobs.Len())
}

func TestUpdateCategoryFailedImageKeepsOld(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.catalog.CreateCategory(ctx, CategoryForm{Name: "Books", Image: image("cover.png")})
	require.NoError(t, err)

	h.blobs.Fault = func(op, key string) error {
		if op == "put" {
			return errors.New("bucket unavailable")
		}
		return nil
	}
	_, err = h.catalog.UpdateCategory(ctx, created.ID, CategoryForm{Name: "Novels", Image: image("new.png")})
	assert.True(t, apperror.Is(err, apperror.KindAttachment))

	got, err := h.catalog.GetCategory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Books", got.Name)
	assert.Equal(t, created.ImagePath, got.ImagePath)
	assert.True(t, h.exists(t, got.ImagePath))
}

func TestCategoryValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.catalog.CreateCategory(ctx, CategoryForm{
		Name:  "  ",
		Image: &attachment.Upload{Filename: "notes.txt", Data: []byte("plain text")},
	})
	fields := validationFields(t, err)
	assert.Equal(t, []string{"The category_name field is required."}, fields["category_name"])
	assert.Contains(t, fields["category_image"], "The category_image must be an image.")
	assert.Equal(t, 0, h.blobs.Len())
	assert.Zero(t, h.count(t, &model.Category{}))

	_, err = h.catalog.UpdateCategory(ctx, 99, CategoryForm{Name: "x"})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestDeleteCategoryRemovesImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.catalog.CreateCategory(ctx, CategoryForm{Name: "Books", Image: image("cover.png")})
	require.NoError(t, err)
	require.NoError(t, h.catalog.DeleteCategory(ctx, created.ID))

	assert.False(t, h.exists(t, created.ImagePath))
	_, err = h.catalog.GetCategory(ctx, created.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.True(t, apperror.Is(h.catalog.DeleteCategory(ctx, created.ID), apperror.KindNotFound))
}

func TestDeleteCategoryProceedsWhenBlobDeleteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.catalog.CreateCategory(ctx, CategoryForm{Name: "Books", Image: image("cover.png")})
	require.NoError(t, err)

	h.blobs.Fault = func(op, key string) error {
		if op == "delete" {
			return errors.New("timeout")
		}
		return nil
	}
	require.NoError(t, h.catalog.DeleteCategory(ctx, created.ID))
	assert.Zero(t, h.count(t, &model.Category{}))
}

func TestDeleteCategoryInUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.category(t, "Books")
	h.product(t, productForm("Dune", "9.99", 3, c.ID, false))

	err := h.catalog.DeleteCategory(ctx, c.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.EqualValues(t, 1, h.count(t, &model.Category{}))
}

func TestTopCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var cats []*model.Category
	for i := 0; i < 6; i++ {
		cats = append(cats, h.category(t, fmt.Sprintf("C%d", i)))
	}
	for i, n := range []int{1, 4, 0, 2, 3, 1} {
		for j := 0; j < n; j++ {
			h.product(t, productForm(fmt.Sprintf("P%d-%d", i, j), "1", 10, cats[i].ID, false))
		}
	}

	top, err := h.catalog.TopCategories(ctx)
	require.NoError(t, err)
	require.Len(t, top, 5)
	assert.Equal(t, []uint{cats[1].ID, cats[4].ID, cats[3].ID, cats[0].ID, cats[5].ID},
		[]uint{top[0].ID, top[1].ID, top[2].ID, top[3].ID, top[4].ID})
	assert.EqualValues(t, 4, top[0].ProductCount)
}

func TestLowStockBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.category(t, "Pantry")
	five := h.product(t, productForm("Rice", "2", 5, c.ID, false))
	h.product(t, productForm("Beans", "2", 6, c.ID, false))
	zero := h.product(t, productForm("Salt", "1", 0, c.ID, false))

	low, err := h.catalog.LowStock(ctx, 5)
	require.NoError(t, err)
	var ids []uint
	for _, p := range low {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []uint{zero.ID, five.ID}, ids)

	checked, err := h.catalog.CheckLowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, checked, 2)

	_, err = h.catalog.LowStock(ctx, -1)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestTopProductsInCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.category(t, "A")
	b := h.category(t, "B")
	for i, price := range []string{"5", "70.5", "12", "99.99", "1", "40", "70.5"} {
		h.product(t, productForm(fmt.Sprintf("a%d", i), price, 1, a.ID, false))
	}
	h.product(t, productForm("b0", "1000", 1, b.ID, false))

	top, err := h.catalog.TopProductsInCategory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, top, 5)
	for i, p := range top {
		assert.Equal(t, a.ID, p.CategoryID)
		if i > 0 {
			assert.True(t, top[i-1].Price.GreaterThanOrEqual(p.Price))
		}
	}
	assert.Equal(t, "99.99", top[0].Price.StringFixed(2))
	assert.Equal(t, "12.00", top[4].Price.StringFixed(2))

	_, err = h.catalog.TopProductsInCategory(ctx, 999)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestCreateProductWithImages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.category(t, "Furniture")
	p := h.product(t, productForm("Desk", "120.50", 4, c.ID, false, "a.png", "b.jpg", "c.gif"))

	got, err := h.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Furniture", got.Category.Name)
	assert.Equal(t, "120.50", got.Price.StringFixed(2))
	require.Len(t, got.Images, 3)

	folder := fmt.Sprintf("product_images/Desk_%d/", p.ID)
	for _, img := range got.Images {
		key := attachment.ProductBlobKey(img.ImagePath)
		assert.True(t, strings.HasPrefix(key, folder), key)
		assert.True(t, h.exists(t, key))
		assert.Equal(t, "memory://"+key, img.ImageURL)
	}
	assert.Equal(t, 3, h.blobs.Len())
}

func TestCreateProductUnknownCategoryWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.catalog.CreateProduct(ctx, productForm("Desk", "10", 1, 42, false, "a.png"))
	fields := validationFields(t, err)
	assert.Equal(t, []string{"The selected category_id is invalid."}, fields["category_id"])

	assert.Zero(t, h.count(t, &model.Product{}))
	assert.Zero(t, h.count(t, &model.ProductImage{}))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestCreateProductFieldValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")

	_, err := h.catalog.CreateProduct(ctx, ProductForm{
		Price:      "-1",
		Quantity:   "2.5",
		CategoryID: strconv.FormatUint(uint64(c.ID), 10),
		Expired:    "maybe",
		Images:     []attachment.Upload{{Filename: "a.exe", Data: []byte("MZ")}},
	})
	fields := validationFields(t, err)
	assert.Equal(t, []string{"The product_name field is required."}, fields["product_name"])
	assert.Equal(t, []string{"The product_price must be at least 0."}, fields["product_price"])
	assert.Equal(t, []string{"The quantity must be an integer."}, fields["quantity"])
	assert.Equal(t, []string{"The expired field must be true or false."}, fields["expired"])
	assert.NotEmpty(t, fields["product_images.0"])
	assert.NotContains(t, fields, "category_id")

	_, err = h.catalog.CreateProduct(ctx, ProductForm{Name: "x", Price: "abc", Quantity: "-3"})
	fields = validationFields(t, err)
	assert.Equal(t, []string{"The product_price must be a number."}, fields["product_price"])
	assert.Equal(t, []string{"The quantity must be at least 0."}, fields["quantity"])
	assert.Equal(t, []string{"The category_id field is required."}, fields["category_id"])
}

func TestCreateProductImageFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")

	puts := 0
	h.blobs.Fault = func(op, key string) error {
		if op == "put" {
			puts++
			if puts == 2 {
				return errors.New("quota exceeded")
			}
		}
		return nil
	}

	_, err := h.catalog.CreateProduct(ctx, productForm("Desk", "10", 1, c.ID, false, "a.png", "b.png", "c.png"))
	assert.True(t, apperror.Is(err, apperror.KindAttachment))
	assert.Zero(t, h.count(t, &model.Product{}))
	assert.Zero(t, h.count(t, &model.ProductImage{}))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestUpdateProductReplacesImages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")
	other := h.category(t, "Office")

	p := h.product(t, productForm("Desk", "10", 1, c.ID, false, "a.png", "b.png"))
	oldFolder := fmt.Sprintf("product_images/Desk_%d", p.ID)

	updated, err := h.catalog.UpdateProduct(ctx, p.ID, productForm("Standing Desk", "15.25", 0, other.ID, true, "new.png"))
	require.NoError(t, err)
	assert.Equal(t, "Standing Desk", updated.Name)
	assert.Equal(t, "15.25", updated.Price.StringFixed(2))
	assert.Equal(t, 0, updated.Quantity)
	assert.Equal(t, other.ID, updated.CategoryID)
	assert.True(t, updated.Expired)

	stale, err := h.blobs.List(ctx, oldFolder)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.Len(t, updated.Images, 1)
	key := attachment.ProductBlobKey(updated.Images[0].ImagePath)
	assert.True(t, strings.HasPrefix(key, fmt.Sprintf("product_images/Standing Desk_%d/", p.ID)))
	assert.True(t, h.exists(t, key))
	assert.Equal(t, 1, h.blobs.Len())
	assert.EqualValues(t, 1, h.count(t, &model.ProductImage{}))
}

func TestUpdateProductSameNameDropsOldBlobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")

	p := h.product(t, productForm("Desk", "10", 1, c.ID, false, "a.png"))
	updated, err := h.catalog.UpdateProduct(ctx, p.ID, productForm("Desk", "11", 1, c.ID, false, "b.png", "c.png"))
	require.NoError(t, err)

	require.Len(t, updated.Images, 2)
	keys, err := h.blobs.List(ctx, fmt.Sprintf("product_images/Desk_%d", p.ID))
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	for _, img := range updated.Images {
		assert.Contains(t, keys, attachment.ProductBlobKey(img.ImagePath))
	}
}

func TestUpdateProductRenameWithoutImagesRelocates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")

	p := h.product(t, productForm("Desk", "10", 1, c.ID, false, "a.png", "b.png"))
	updated, err := h.catalog.UpdateProduct(ctx, p.ID, productForm("Table", "10", 1, c.ID, false))
	require.NoError(t, err)

	require.Len(t, updated.Images, 2)
	for _, img := range updated.Images {
		key := attachment.ProductBlobKey(img.ImagePath)
		assert.True(t, strings.HasPrefix(key, fmt.Sprintf("product_images/Table_%d/", p.ID)))
		assert.True(t, h.exists(t, key))
	}
	assert.Equal(t, 2, h.blobs.Len())
}

func TestUpdateProductErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")
	p := h.product(t, productForm("Desk", "10", 1, c.ID, false, "a.png"))

	_, err := h.catalog.UpdateProduct(ctx, 999, productForm("x", "1", 1, c.ID, false))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = h.catalog.UpdateProduct(ctx, p.ID, productForm("", "1", 1, c.ID, false))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	h.blobs.Fault = func(op, key string) error {
		if op == "put" {
			return errors.New("offline")
		}
		return nil
	}
	_, err = h.catalog.UpdateProduct(ctx, p.ID, productForm("Table", "1", 1, c.ID, false, "b.png"))
	assert.True(t, apperror.Is(err, apperror.KindAttachment))

	got, err := h.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", got.Name)
	require.Len(t, got.Images, 1)
	assert.True(t, h.exists(t, attachment.ProductBlobKey(got.Images[0].ImagePath)))
}

func TestDeleteProduct(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")
	p := h.product(t, productForm("Desk", "10", 1, c.ID, false, "a.png", "b.png"))

	require.NoError(t, h.catalog.DeleteProduct(ctx, p.ID))
	assert.Zero(t, h.count(t, &model.Product{}))
	assert.Zero(t, h.count(t, &model.ProductImage{}))
	assert.Equal(t, 0, h.blobs.Len())

	assert.True(t, apperror.Is(h.catalog.DeleteProduct(ctx, p.ID), apperror.KindNotFound))
}

func TestDeleteExpiredProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Dairy")

	var keep []*model.Product
	for i := 0; i < 3; i++ {
		h.product(t, productForm(fmt.Sprintf("Old%d", i), "1", 1, c.ID, true, "x.png"))
	}
	for i := 0; i < 2; i++ {
		keep = append(keep, h.product(t, productForm(fmt.Sprintf("Fresh%d", i), "1", 1, c.ID, false, "y.png")))
	}

	n, err := h.catalog.DeleteExpiredProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.EqualValues(t, 2, h.count(t, &model.Product{}))
	assert.EqualValues(t, 2, h.count(t, &model.ProductImage{}))
	assert.Equal(t, 2, h.blobs.Len())
	for _, p := range keep {
		got, err := h.catalog.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, got.Images, 1)
		assert.True(t, h.exists(t, attachment.ProductBlobKey(got.Images[0].ImagePath)))
	}

	expired, err := h.catalog.ListExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	n, err = h.catalog.DeleteExpiredProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// hookLocker runs before just ahead of every acquisition
type hookLocker struct {
	lock.Locker
	before func(key string)
}

func (l hookLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.before(key)
	return l.Locker.Lock(ctx, key)
}

func TestDeleteExpiredSkipsProductRestoredBeforeLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Dairy")
	restored := h.product(t, productForm("Milk", "1", 1, c.ID, true, "m.png"))
	h.product(t, productForm("Cheese", "1", 1, c.ID, true, "c.png"))

	h.catalog.locker = hookLocker{
		Locker: h.catalog.locker,
		before: func(key string) {
			if key == productKey(restored.ID) {
				require.NoError(t, h.db.Model(&model.Product{}).
					Where("id = ?", restored.ID).
					Update("expired", false).Error)
			}
		},
	}

	n, err := h.catalog.DeleteExpiredProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.catalog.GetProduct(ctx, restored.ID)
	require.NoError(t, err)
	assert.False(t, got.Expired)
	require.Len(t, got.Images, 1)
	assert.True(t, h.exists(t, attachment.ProductBlobKey(got.Images[0].ImagePath)))
	assert.EqualValues(t, 1, h.count(t, &model.Product{}))
}

func TestCreateProductPriceBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.category(t, "Furniture")

	for _, price := range []string{"1e999999999", "1E3", "0x10", "12345678901234567890", "1.5e-3"} {
		_, err := h.catalog.CreateProduct(ctx, productForm("Desk", price, 1, c.ID, false))
		fields := validationFields(t, err)
		assert.Equal(t, []string{"The product_price must be a number."}, fields["product_price"], price)
	}

	for _, price := range []string{"10000000000", "9999999999.995"} {
		_, err := h.catalog.CreateProduct(ctx, productForm("Desk", price, 1, c.ID, false))
		fields := validationFields(t, err)
		assert.Equal(t, []string{"The product_price must not be greater than 9999999999.99."}, fields["product_price"], price)
	}

	_, err := h.catalog.CreateProduct(ctx, ProductForm{
		Name:       "Desk",
		Price:      "1",
		Quantity:   "3000000000",
		CategoryID: strconv.FormatUint(uint64(c.ID), 10),
	})
	fields := validationFields(t, err)
	assert.Equal(t, []string{"The quantity must not be greater than 2147483647."}, fields["quantity"])
	assert.Zero(t, h.count(t, &model.Product{}))

	p := h.product(t, productForm("Desk", "9999999999.99", 1, c.ID, false))
	assert.Equal(t, "9999999999.99", p.Price.StringFixed(2))
}
