package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"catalog-service/internal/apperror"
	"catalog-service/internal/attachment"

	"github.com/shopspring/decimal"
)

// plainDecimal admits no exponent, so rounding never has to expand the
// coefficient, and bounds the digit count
var plainDecimal = regexp.MustCompile(`^-?[0-9]{1,15}(\.[0-9]{1,15})?$`)

// MaxPrice is the largest value the decimal(12,2) price column holds
var MaxPrice = decimal.RequireFromString("9999999999.99")

// CategoryForm is the raw category input as received from a client
type CategoryForm struct {
	Name  string
	Image *attachment.Upload
}

// ProductForm is the raw product input as received from a client.
// Numeric fields are kept as strings so that malformed values surface as
// field errors instead of parse failures.
type ProductForm struct {
	Name       string
	Price      string
	Quantity   string
	CategoryID string
	Expired    string
	Images     []attachment.Upload
}

type categoryInput struct {
	name  string
	image *attachment.Upload
}

type productInput struct {
	name       string
	price      decimal.Decimal
	quantity   int
	categoryID uint
	expired    bool
	images     []attachment.Upload
}

// fieldErrors accumulates messages per field in the order they were found
type fieldErrors map[string][]string

func (f fieldErrors) add(field, format string, args ...interface{}) {
	f[field] = append(f[field], fmt.Sprintf(format, args...))
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperror.Validation(f)
}

func (s *Catalog) checkImage(errs fieldErrors, field string, u attachment.Upload) {
	for _, problem := range s.validator.Check(field, u) {
		errs[field] = append(errs[field], problem)
	}
}

func (s *Catalog) validateCategory(form CategoryForm) (categoryInput, error) {
	errs := fieldErrors{}
	name := strings.TrimSpace(form.Name)
	if name == "" {
		errs.add("category_name", "The category_name field is required.")
	}
	if form.Image != nil {
		s.checkImage(errs, "category_image", *form.Image)
	}
	if err := errs.err(); err != nil {
		return categoryInput{}, err
	}
	return categoryInput{name: name, image: form.Image}, nil
}

// validateProduct checks every field, including that the category exists,
// without writing anything
func (s *Catalog) validateProduct(ctx context.Context, form ProductForm) (productInput, error) {
	errs := fieldErrors{}
	var in productInput

	in.name = strings.TrimSpace(form.Name)
	if in.name == "" {
		errs.add("product_name", "The product_name field is required.")
	}

	if price := strings.TrimSpace(form.Price); price == "" {
		errs.add("product_price", "The product_price field is required.")
	} else if !plainDecimal.MatchString(price) {
		errs.add("product_price", "The product_price must be a number.")
	} else if d, err := decimal.NewFromString(price); err != nil {
		errs.add("product_price", "The product_price must be a number.")
	} else if d.IsNegative() {
		errs.add("product_price", "The product_price must be at least 0.")
	} else if d = d.Round(2); d.GreaterThan(MaxPrice) {
		errs.add("product_price", "The product_price must not be greater than %s.", MaxPrice.StringFixed(2))
	} else {
		in.price = d
	}

	if qty := strings.TrimSpace(form.Quantity); qty == "" {
		errs.add("quantity", "The quantity field is required.")
	} else if n, err := strconv.Atoi(qty); err != nil {
		errs.add("quantity", "The quantity must be an integer.")
	} else if n < 0 {
		errs.add("quantity", "The quantity must be at least 0.")
	} else if n > math.MaxInt32 {
		errs.add("quantity", "The quantity must not be greater than %d.", math.MaxInt32)
	} else {
		in.quantity = n
	}

	if expired, ok := parseBool(form.Expired); ok {
		in.expired = expired
	} else {
		errs.add("expired", "The expired field must be true or false.")
	}

	for i, u := range form.Images {
		s.checkImage(errs, fmt.Sprintf("product_images.%d", i), u)
	}
	in.images = form.Images

	if raw := strings.TrimSpace(form.CategoryID); raw == "" {
		errs.add("category_id", "The category_id field is required.")
	} else if id, err := strconv.ParseUint(raw, 10, 64); err != nil || id == 0 {
		errs.add("category_id", "The selected category_id is invalid.")
	} else {
		exists, err := s.categories.Exists(ctx, uint(id))
		if err != nil {
			return productInput{}, err
		}
		if !exists {
			errs.add("category_id", "The selected category_id is invalid.")
		}
		in.categoryID = uint(id)
	}

	if err := errs.err(); err != nil {
		return productInput{}, err
	}
	return in, nil
}

// parseBool accepts the boolean spellings form clients send; empty means false
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "false":
		return false, true
	case "1", "true":
		return true, true
	}
	return false, false
}
