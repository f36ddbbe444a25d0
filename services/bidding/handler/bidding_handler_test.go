package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// bidRequestMatcher compares amounts by value
type bidRequestMatcher struct {
	auctionID, bidderID string
	amount              decimal.Decimal
	name                string
}

func (m bidRequestMatcher) Matches(x any) bool {
	req, ok := x.(models.BidRequest)
	return ok && req.AuctionID == m.auctionID && req.BidderID == m.bidderID && req.Amount.Equal(m.amount) &&
		(m.name == "" || req.BidderName == m.name)
}

func (m bidRequestMatcher) String() string {
	return fmt.Sprintf("bid on %s by %s for %s", m.auctionID, m.bidderID, m.amount)
}

func bidFor(auctionID, bidderID string, amount int64) gomock.Matcher {
	return bidRequestMatcher{auctionID: auctionID, bidderID: bidderID, amount: decimal.NewFromInt(amount)}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bids/auction/:auction_id", handler.PlaceBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		retryAfter     bool
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: `{"bidderId":"U1","bidderName":"alice","amount":150}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U1", 150)).
					Return(models.Bid{
						ID:         uuid.NewString(),
						AuctionID:  "a1",
						BidderID:   "U1",
						BidderName: "alice",
						Amount:     decimal.NewFromInt(150),
						Timestamp:  now,
						Sequence:   1,
						Status:     models.BidWinning,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid placed successfully",
			validateData: func(t *testing.T, data map[string]any) {
				_, parseErr := uuid.Parse(data["id"].(string))
				require.NoError(t, parseErr, "bid id should be a valid UUID")
				require.Equal(t, "a1", data["auctionId"])
				require.Equal(t, "U1", data["bidderId"])
				require.Equal(t, 150.0, data["amount"])
				require.Equal(t, "WINNING", data["status"])
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_bidder",
			requestBody:    `{"amount":150}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "amount_not_above_price",
			requestBody: `{"bidderId":"U2","amount":120}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U2", 120)).
					Return(models.Bid{}, fmt.Errorf("service: %w - current price is 150.00", biddingerrors.ErrBidTooLow))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "bid amount must be higher than the current price",
		},
		{
			name:        "first_and_last_name",
			requestBody: `{"bidderId":"U3","bidderFirstName":"Alice","bidderLastName":"Smith","amount":170}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidRequestMatcher{auctionID: "a1", bidderID: "U3", amount: decimal.NewFromInt(170), name: "Alice Smith"}).
					Return(models.Bid{ID: uuid.NewString(), AuctionID: "a1", BidderID: "U3", BidderName: "Alice Smith", Amount: decimal.NewFromInt(170)}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid placed successfully",
		},
		{
			name:        "below_minimum_increment",
			requestBody: `{"bidderId":"U2","amount":155}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U2", 155)).
					Return(models.Bid{}, fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: decimal.NewFromInt(160), Increment: true}))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "minimum bid is 160.00",
		},
		{
			name:        "seller_cannot_bid",
			requestBody: `{"bidderId":"S","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "S", 500)).
					Return(models.Bid{}, biddingerrors.ErrSelfBid)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "sellers cannot bid on their own auction",
		},
		{
			name:        "auction_closed",
			requestBody: `{"bidderId":"U1","amount":500}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U1", 500)).
					Return(models.Bid{}, biddingerrors.ErrAuctionNotActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction is not accepting bids",
		},
		{
			name:        "auction_busy",
			requestBody: `{"bidderId":"U1","amount":501}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U1", 501)).
					Return(models.Bid{}, biddingerrors.ErrTimeout)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "auction is busy, try again",
			retryAfter:     true,
		},
		{
			name:        "service_generic_error",
			requestBody: `{"bidderId":"U1","amount":502}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), bidFor("a1", "U1", 502)).
					Return(models.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/bids/auction/a1", bytes.NewReader([]byte(tc.requestBody)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)
			resp := decodeEnvelope(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)
			require.NotEmpty(t, resp["timestamp"])
			if tc.retryAfter {
				require.NotEmpty(t, w.Header().Get("Retry-After"))
			}

			if tc.validateData != nil && w.Code == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Test CancelBidHandler
func TestCancelBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PATCH("/bids/:bid_id/cancel", handler.CancelBidHandler)

	tests := []struct {
		name           string
		requester      string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name:           "missing_requester",
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "not_the_bidder",
			requester: "U2",
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "b1", "U2").Return(models.Bid{}, biddingerrors.ErrUnauthorized)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:      "winning_bid",
			requester: "U3",
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "b1", "U3").Return(models.Bid{}, biddingerrors.ErrInvalidTransition)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:      "cancelled",
			requester: "U1",
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "b1", "U1").Return(models.Bid{ID: "b1", Status: models.BidCancelled}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPatch, "/bids/b1/cancel", nil)
			if tc.requester != "" {
				req.Header.Set("X-User-ID", tc.requester)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)
		})
	}
}

// Test the ledger read endpoints
func TestBidQueryHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/bids/auction/:auction_id", handler.GetBidsByAuctionHandler)
	router.GET("/bids/auction/:auction_id/recent", handler.GetRecentBidsHandler)
	router.GET("/bids/auction/:auction_id/highest", handler.GetHighestBidHandler)
	router.GET("/bids/auction/:auction_id/trends", handler.GetPriceTrendHandler)
	router.GET("/bids/auction/:auction_id/count", handler.CountBidsHandler)
	router.GET("/bids/bidder/:bidder_id", handler.GetBidsByBidderHandler)
	router.GET("/bids/bidder/:bidder_id/winning", handler.GetWinningBidsByBidderHandler)

	bid := models.Bid{ID: "b1", AuctionID: "a1", BidderID: "U1", Amount: decimal.NewFromInt(150), Status: models.BidWinning}

	tests := []struct {
		name           string
		path           string
		mockSetup      func()
		expectedStatus int
		validate       func(t *testing.T, data any)
	}{
		{
			name: "all_bids_empty_is_list",
			path: "/bids/auction/a1",
			mockSetup: func() {
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "a1").Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data any) {
				require.Equal(t, []any{}, data)
			},
		},
		{
			name: "recent_with_limit",
			path: "/bids/auction/a1/recent?limit=5",
			mockSetup: func() {
				mockService.EXPECT().GetRecentBids(gomock.Any(), "a1", 5).Return([]models.Bid{bid}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data any) {
				require.Len(t, data, 1)
			},
		},
		{
			name:           "recent_bad_limit",
			path:           "/bids/auction/a1/recent?limit=five",
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "highest_without_bids",
			path: "/bids/auction/a2/highest",
			mockSetup: func() {
				mockService.EXPECT().GetHighestBid(gomock.Any(), "a2").Return(models.Bid{}, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "highest_unknown_auction",
			path: "/bids/auction/missing/highest",
			mockSetup: func() {
				mockService.EXPECT().GetHighestBid(gomock.Any(), "missing").Return(models.Bid{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "trends",
			path: "/bids/auction/a1/trends",
			mockSetup: func() {
				mockService.EXPECT().GetPriceTrend(gomock.Any(), "a1").Return([]models.PricePoint{{Amount: decimal.NewFromInt(150), BidderName: "alice"}}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data any) {
				points := data.([]any)
				require.Equal(t, "alice", points[0].(map[string]any)["bidderName"])
			},
		},
		{
			name: "count",
			path: "/bids/auction/a1/count",
			mockSetup: func() {
				mockService.EXPECT().CountBids(gomock.Any(), "a1").Return(3, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data any) {
				require.Equal(t, 3.0, data.(map[string]any)["count"])
			},
		},
		{
			name: "bidder_history",
			path: "/bids/bidder/U1",
			mockSetup: func() {
				mockService.EXPECT().GetBidsByBidder(gomock.Any(), "U1").Return([]models.Bid{bid, bid}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, data any) {
				require.Len(t, data, 2)
			},
		},
		{
			name: "bidder_winning",
			path: "/bids/bidder/U1/winning",
			mockSetup: func() {
				mockService.EXPECT().GetWinningBidsByBidder(gomock.Any(), "U1").Return([]models.Bid{bid}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, tc.expectedStatus, w.Code)
			resp := decodeEnvelope(t, w)
			require.Equal(t, tc.expectedStatus == http.StatusOK, resp["success"])
			if tc.validate != nil {
				tc.validate(t, resp["data"])
			}
		})
	}
}
