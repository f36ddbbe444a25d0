package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/ledger"
	"auction-core/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// PostgresRepo is the durable AuctionDB. Every write runs in one
// transaction that locks the auction row with SELECT ... FOR UPDATE.
type PostgresRepo struct {
	db *sqlx.DB
}

// NewPostgresRepo connects to databaseURL and applies the schema
func NewPostgresRepo(ctx context.Context, databaseURL string) (*PostgresRepo, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresRepo{db: db}, nil
}

// Close closes the database connection
func (p *PostgresRepo) Close() error {
	return p.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, biddingerrors.ErrStorage, err)
}

const insertAuction = `
	INSERT INTO auctions (id, seller_id, title, description, category, starting_price, reserve_price,
		current_price, current_winner_id, status, start_time, end_time, total_bids, outcome, paid, created_at, updated_at)
	VALUES (:id, :seller_id, :title, :description, :category, :starting_price, :reserve_price,
		:current_price, :current_winner_id, :status, :start_time, :end_time, :total_bids, :outcome, :paid, :created_at, :updated_at)`

// CreateAuction stores a new auction
func (p *PostgresRepo) CreateAuction(ctx context.Context, auction models.Auction) error {
	if _, err := p.db.NamedExecContext(ctx, insertAuction, auction); err != nil {
		return storageErr("create auction "+auction.ID, err)
	}
	return nil
}

// GetAuction returns an auction by id
func (p *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	var a models.Auction
	err := p.db.GetContext(ctx, &a, "SELECT * FROM auctions WHERE id = $1", auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, storageErr("get auction "+auctionID, err)
	}
	return a, nil
}

// ListAuctions returns auctions matching filter, oldest first. Status,
// seller and end bound are pushed to SQL; the rest is matched in memory.
func (p *PostgresRepo) ListAuctions(ctx context.Context, filter models.AuctionFilter) ([]models.Auction, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SellerID != "" {
		args = append(args, filter.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if !filter.EndsBefore.IsZero() {
		args = append(args, filter.EndsBefore)
		where = append(where, fmt.Sprintf("end_time < $%d", len(args)))
	}
	if filter.NonTerminal {
		where = append(where, "status NOT IN ('ENDED', 'CANCELLED')")
	}

	query := "SELECT * FROM auctions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	var rows []models.Auction
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageErr("list auctions", err)
	}

	out := make([]models.Auction, 0, len(rows))
	for _, a := range rows {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func lockAuction(ctx context.Context, tx *sqlx.Tx, auctionID string) (models.Auction, error) {
	var a models.Auction
	err := tx.GetContext(ctx, &a, "SELECT * FROM auctions WHERE id = $1 FOR UPDATE", auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, storageErr("lock auction "+auctionID, err)
	}
	return a, nil
}

// TransitionAuction moves an auction from one status to another
func (p *PostgresRepo) TransitionAuction(ctx context.Context, auctionID string, from, to models.AuctionStatus, outcome models.Outcome, at time.Time) (models.Auction, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Auction{}, storageErr("begin transition", err)
	}
	defer tx.Rollback()

	a, err := lockAuction(ctx, tx, auctionID)
	if err != nil {
		return models.Auction{}, err
	}
	if a.Status != from {
		return a, fmt.Errorf("transition auction %s from %s: %w - status is %s", auctionID, from, biddingerrors.ErrStaleState, a.Status)
	}

	a.Status = to
	if outcome != models.OutcomeNone {
		a.Outcome = outcome
	}
	a.UpdatedAt = at
	if _, err := tx.ExecContext(ctx,
		"UPDATE auctions SET status = $1, outcome = $2, updated_at = $3 WHERE id = $4",
		a.Status, a.Outcome, a.UpdatedAt, auctionID); err != nil {
		return models.Auction{}, storageErr("update auction status", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Auction{}, storageErr("commit transition", err)
	}
	return a, nil
}

// MarkPaid flags an auction as paid, reporting whether anything changed
func (p *PostgresRepo) MarkPaid(ctx context.Context, auctionID string, at time.Time) (models.Auction, bool, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Auction{}, false, storageErr("begin mark paid", err)
	}
	defer tx.Rollback()

	a, err := lockAuction(ctx, tx, auctionID)
	if err != nil {
		return models.Auction{}, false, err
	}
	if a.Paid {
		return a, false, nil
	}
	a.Paid = true
	a.UpdatedAt = at
	if _, err := tx.ExecContext(ctx, "UPDATE auctions SET paid = TRUE, updated_at = $1 WHERE id = $2", at, auctionID); err != nil {
		return models.Auction{}, false, storageErr("mark paid", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Auction{}, false, storageErr("commit mark paid", err)
	}
	return a, true, nil
}

type lastStamp struct {
	Seq      int64        `db:"seq"`
	PlacedAt sql.NullTime `db:"placed_at"`
}

// CommitBid records an accepted bid, outbids the previous ones and applies
// the bid to the auction row in a single transaction.
func (p *PostgresRepo) CommitBid(ctx context.Context, bid models.Bid, expectedPrice decimal.Decimal, at time.Time) (models.Bid, models.Auction, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Bid{}, models.Auction{}, storageErr("begin commit bid", err)
	}
	defer tx.Rollback()

	a, err := lockAuction(ctx, tx, bid.AuctionID)
	if err != nil {
		return models.Bid{}, models.Auction{}, err
	}
	if a.Status != models.AuctionActive {
		return models.Bid{}, a, fmt.Errorf("commit bid on %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotActive)
	}
	if !a.CurrentPrice.Equal(expectedPrice) {
		return models.Bid{}, a, fmt.Errorf("commit bid on %s: %w", bid.AuctionID, biddingerrors.ErrStaleState)
	}

	var last lastStamp
	if err := tx.GetContext(ctx, &last,
		"SELECT COALESCE(MAX(seq), 0) AS seq, MAX(placed_at) AS placed_at FROM bids WHERE auction_id = $1",
		bid.AuctionID); err != nil {
		return models.Bid{}, models.Auction{}, storageErr("read last bid", err)
	}
	bid.Sequence, bid.Timestamp = ledger.NextStamp(last.Seq, last.PlacedAt.Time, at)
	bid.Status = models.BidWinning

	if _, err := tx.ExecContext(ctx,
		"UPDATE bids SET status = $1 WHERE auction_id = $2 AND status IN ($3, $4)",
		models.BidOutbid, bid.AuctionID, models.BidActive, models.BidWinning); err != nil {
		return models.Bid{}, models.Auction{}, storageErr("outbid prior bids", err)
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, placed_at, seq, status)
		VALUES (:id, :auction_id, :bidder_id, :bidder_name, :amount, :placed_at, :seq, :status)`, bid); err != nil {
		return models.Bid{}, models.Auction{}, storageErr("insert bid", err)
	}

	a.ApplyAcceptedBid(bid)
	res, err := tx.ExecContext(ctx, `
		UPDATE auctions SET current_price = $1, current_winner_id = $2, total_bids = $3, updated_at = $4
		WHERE id = $5 AND current_price = $6`,
		a.CurrentPrice, a.CurrentWinnerID, a.TotalBids, a.UpdatedAt, a.ID, expectedPrice)
	if err != nil {
		return models.Bid{}, models.Auction{}, storageErr("apply bid to auction", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return models.Bid{}, models.Auction{}, fmt.Errorf("apply bid to auction %s: %w", a.ID, biddingerrors.ErrStaleState)
	}

	if err := tx.Commit(); err != nil {
		return models.Bid{}, models.Auction{}, storageErr("commit bid", err)
	}
	return bid, a, nil
}

// CancelBid withdraws a non-winning bid
func (p *PostgresRepo) CancelBid(ctx context.Context, auctionID, bidID string) (models.Bid, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Bid{}, storageErr("begin cancel bid", err)
	}
	defer tx.Rollback()

	if _, err := lockAuction(ctx, tx, auctionID); err != nil {
		return models.Bid{}, err
	}

	var b models.Bid
	err = tx.GetContext(ctx, &b, "SELECT * FROM bids WHERE id = $1 AND auction_id = $2", bidID, auctionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("cancel bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if err != nil {
		return models.Bid{}, storageErr("load bid "+bidID, err)
	}
	switch b.Status {
	case models.BidWinning:
		return models.Bid{}, fmt.Errorf("cancel bid %s: %w - winning bid cannot be cancelled", bidID, biddingerrors.ErrInvalidTransition)
	case models.BidCancelled:
		return b, nil
	}

	b.Status = models.BidCancelled
	if _, err := tx.ExecContext(ctx, "UPDATE bids SET status = $1 WHERE id = $2", b.Status, bidID); err != nil {
		return models.Bid{}, storageErr("cancel bid "+bidID, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Bid{}, storageErr("commit cancel bid", err)
	}
	return b, nil
}

// FindBid returns a bid by id
func (p *PostgresRepo) FindBid(ctx context.Context, bidID string) (models.Bid, error) {
	var b models.Bid
	err := p.db.GetContext(ctx, &b, "SELECT * FROM bids WHERE id = $1", bidID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("find bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if err != nil {
		return models.Bid{}, storageErr("find bid "+bidID, err)
	}
	return b, nil
}

func (p *PostgresRepo) selectBids(ctx context.Context, op, query string, args ...any) ([]models.Bid, error) {
	bids := make([]models.Bid, 0)
	if err := p.db.SelectContext(ctx, &bids, query, args...); err != nil {
		return nil, storageErr(op, err)
	}
	return bids, nil
}

func (p *PostgresRepo) ensureAuction(ctx context.Context, auctionID string) error {
	var exists bool
	if err := p.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)", auctionID); err != nil {
		return storageErr("check auction "+auctionID, err)
	}
	if !exists {
		return fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

// GetBidsByAuction returns every bid of an auction, oldest first
func (p *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if err := p.ensureAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return p.selectBids(ctx, "get bids for auction "+auctionID,
		"SELECT * FROM bids WHERE auction_id = $1 ORDER BY seq", auctionID)
}

// GetRecentBids returns up to limit bids, newest first
func (p *PostgresRepo) GetRecentBids(ctx context.Context, auctionID string, limit int) ([]models.Bid, error) {
	if err := p.ensureAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return p.selectBids(ctx, "get recent bids for auction "+auctionID,
			"SELECT * FROM bids WHERE auction_id = $1 ORDER BY seq DESC", auctionID)
	}
	return p.selectBids(ctx, "get recent bids for auction "+auctionID,
		"SELECT * FROM bids WHERE auction_id = $1 ORDER BY seq DESC LIMIT $2", auctionID, limit)
}

// GetWinningBid returns the bid currently marked WINNING
func (p *PostgresRepo) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if err := p.ensureAuction(ctx, auctionID); err != nil {
		return models.Bid{}, err
	}
	var b models.Bid
	err := p.db.GetContext(ctx, &b, "SELECT * FROM bids WHERE auction_id = $1 AND status = $2", auctionID, models.BidWinning)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return models.Bid{}, storageErr("get winning bid for auction "+auctionID, err)
	}
	return b, nil
}

// GetPriceTrend returns the auction's price history in timestamp order
func (p *PostgresRepo) GetPriceTrend(ctx context.Context, auctionID string) ([]models.PricePoint, error) {
	bids, err := p.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return ledger.Restore(auctionID, bids).PriceTrend(), nil
}

// GetBidsByBidder returns all bids of a bidder, newest first
func (p *PostgresRepo) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	return p.selectBids(ctx, "get bids for bidder "+bidderID,
		"SELECT * FROM bids WHERE bidder_id = $1 ORDER BY placed_at DESC", bidderID)
}
