package attachment

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	ProductNamespace  = "product_images"
	CategoryNamespace = "category_images"
)

// sanitize keeps a user-supplied name inside a single key segment
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '-'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// FolderName is the image folder of a product: {name}_{id}.
// The name part changes when the product is renamed, which relocates the folder.
func FolderName(productName string, productID uint) string {
	name := sanitize(productName)
	if name == "" {
		name = "product"
	}
	return fmt.Sprintf("%s_%d", name, productID)
}

// FolderKey is the blob prefix holding a product's images
func FolderKey(productName string, productID uint) string {
	return ProductNamespace + "/" + FolderName(productName, productID)
}

// BlobName builds {unix}_{random}_{original}. The random part keeps two
// uploads of the same file within one second from overwriting each other.
func BlobName(original string, now time.Time) string {
	base := sanitize(path.Base(strings.ReplaceAll(original, "\\", "/")))
	if base == "" || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("%d_%s_%s", now.Unix(), uuid.NewString()[:8], base)
}

// ProductBlobKey maps a ProductImage path to its blob key
func ProductBlobKey(imagePath string) string {
	return ProductNamespace + "/" + imagePath
}
