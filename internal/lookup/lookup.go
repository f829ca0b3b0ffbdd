// Package lookup resolves scanned barcodes to product names. Lookups never block item
// creation: every failure degrades to a placeholder name.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/fampantry/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	Code  string
	Name  string
	Brand string
}

type ProductLookup interface {
	// Lookup returns ErrProductNotFound when the code is unknown or has no name.
	Lookup(ctx context.Context, code string) (*Product, error)
}

// Categorizer suggests one of domain.Categories for a product name.
type Categorizer interface {
	Categorize(ctx context.Context, productName string) (string, error)
}

type Result struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Found    bool   `json:"found"`
}

type Service struct {
	products    ProductLookup
	categorizer Categorizer
	timeout     time.Duration
	logger      *slog.Logger
}

// NewService builds a lookup service. categorizer may be nil.
func NewService(products ProductLookup, categorizer Categorizer, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{products: products, categorizer: categorizer, timeout: timeout, logger: logger}
}

func PlaceholderName(code string) string {
	return fmt.Sprintf("Scanned Item (%s)", code)
}

func (s *Service) Resolve(ctx context.Context, code string) Result {
	code = strings.TrimSpace(code)
	res := Result{Code: code, Name: PlaceholderName(code), Category: domain.CategoryOther}
	if code == "" || s.products == nil {
		return res
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	p, err := s.products.Lookup(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrProductNotFound) {
			s.logger.Warn("product lookup failed", "code", code, "error", err)
		}
		return res
	}
	res.Name = p.Name
	res.Found = true

	if s.categorizer != nil {
		category, err := s.categorizer.Categorize(ctx, p.Name)
		if err != nil {
			s.logger.Warn("categorize failed", "code", code, "error", err)
		} else {
			res.Category = MatchCategory(category)
		}
	}
	return res
}

// MatchCategory maps free text onto the category catalogue, falling back to Other.
func MatchCategory(answer string) string {
	answer = strings.TrimSpace(strings.Trim(answer, `."'`))
	for _, c := range domain.Categories {
		if strings.EqualFold(answer, c) {
			return c
		}
	}
	lower := strings.ToLower(answer)
	for _, c := range domain.Categories {
		if strings.Contains(lower, strings.ToLower(c)) {
			return c
		}
	}
	return domain.CategoryOther
}
