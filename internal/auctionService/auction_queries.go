package auction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
)

// EndingSoonWindow is how close to its end an auction counts as ending soon
const EndingSoonWindow = time.Hour

const (
	defaultPageSize = 10
	maxPageSize     = 100
	defaultLimit    = 10
)

// PageRequest selects one page of a sorted auction listing
type PageRequest struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

var sortKeys = map[string]func(a, b models.Auction) int{
	"createdAt":    func(a, b models.Auction) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"endTime":      func(a, b models.Auction) int { return a.EndTime.Compare(b.EndTime) },
	"startTime":    func(a, b models.Auction) int { return a.StartTime.Compare(b.StartTime) },
	"currentPrice": func(a, b models.Auction) int { return a.CurrentPrice.Cmp(b.CurrentPrice) },
	"totalBids":    func(a, b models.Auction) int { return a.TotalBids - b.TotalBids },
	"title":        func(a, b models.Auction) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) },
}

func sortAuctions(auctions []models.Auction, key string, desc bool) {
	cmp := sortKeys[key]
	sort.SliceStable(auctions, func(i, j int) bool {
		c := cmp(auctions[i], auctions[j])
		if c == 0 {
			return auctions[i].ID < auctions[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func limitTo(auctions []models.Auction, limit int) []models.Auction {
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(auctions) > limit {
		return auctions[:limit]
	}
	return auctions
}

func (s *AuctionService) list(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	auctions, err := s.repo.ListAuctions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

// List returns one page of all auctions
func (s *AuctionService) List(ctx context.Context, req PageRequest) (models.Page[models.Auction], error) {
	if req.Size == 0 {
		req.Size = defaultPageSize
	}
	if req.SortBy == "" {
		req.SortBy = "createdAt"
	}
	if req.SortDir == "" {
		req.SortDir = "desc"
	}

	switch {
	case req.Page < 0:
		return models.Page[models.Auction]{}, fmt.Errorf("service: %w - page must not be negative", biddingerrors.ErrValidation)
	case req.Size < 0 || req.Size > maxPageSize:
		return models.Page[models.Auction]{}, fmt.Errorf("service: %w - size must be between 1 and %d", biddingerrors.ErrValidation, maxPageSize)
	case sortKeys[req.SortBy] == nil:
		return models.Page[models.Auction]{}, fmt.Errorf("service: %w - cannot sort by %q", biddingerrors.ErrValidation, req.SortBy)
	}
	desc := strings.EqualFold(req.SortDir, "desc")
	if !desc && !strings.EqualFold(req.SortDir, "asc") {
		return models.Page[models.Auction]{}, fmt.Errorf("service: %w - sort direction must be asc or desc", biddingerrors.ErrValidation)
	}

	auctions, err := s.list(ctx, models.AuctionFilter{})
	if err != nil {
		return models.Page[models.Auction]{}, err
	}
	sortAuctions(auctions, req.SortBy, desc)

	total := len(auctions)
	from := req.Page * req.Size
	if from > total {
		from = total
	}
	to := from + req.Size
	if to > total {
		to = total
	}

	return models.Page[models.Auction]{
		Content:       auctions[from:to],
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    (total + req.Size - 1) / req.Size,
	}, nil
}

// Active returns open auctions, closest to ending first
func (s *AuctionService) Active(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.list(ctx, models.AuctionFilter{Status: models.AuctionActive})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "endTime", false)
	return auctions, nil
}

// EndingSoon returns open auctions ending within EndingSoonWindow
func (s *AuctionService) EndingSoon(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.list(ctx, models.AuctionFilter{
		Status:     models.AuctionActive,
		EndsBefore: s.now().Add(EndingSoonWindow),
	})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "endTime", false)
	return auctions, nil
}

// Recent returns the newest auctions
func (s *AuctionService) Recent(ctx context.Context, limit int) ([]models.Auction, error) {
	auctions, err := s.list(ctx, models.AuctionFilter{})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "createdAt", true)
	return limitTo(auctions, limit), nil
}

// TopByPrice returns the open auctions with the highest current price
func (s *AuctionService) TopByPrice(ctx context.Context, limit int) ([]models.Auction, error) {
	auctions, err := s.list(ctx, models.AuctionFilter{Status: models.AuctionActive})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "currentPrice", true)
	return limitTo(auctions, limit), nil
}

// ByCategory returns auctions in a category, newest first
func (s *AuctionService) ByCategory(ctx context.Context, category string) ([]models.Auction, error) {
	if category == "" {
		return nil, fmt.Errorf("service: %w - empty category", biddingerrors.ErrValidation)
	}
	auctions, err := s.list(ctx, models.AuctionFilter{Category: category})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "createdAt", true)
	return auctions, nil
}

// BySeller returns a seller's auctions, newest first
func (s *AuctionService) BySeller(ctx context.Context, sellerID string) ([]models.Auction, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("service: %w - empty seller ID", biddingerrors.ErrValidation)
	}
	auctions, err := s.list(ctx, models.AuctionFilter{SellerID: sellerID})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "createdAt", true)
	return auctions, nil
}

// Search matches query against titles and descriptions
func (s *AuctionService) Search(ctx context.Context, query string) ([]models.Auction, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("service: %w - empty search query", biddingerrors.ErrValidation)
	}
	auctions, err := s.list(ctx, models.AuctionFilter{Search: query})
	if err != nil {
		return nil, err
	}
	sortAuctions(auctions, "createdAt", true)
	return auctions, nil
}
