package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	auction "auction-core/internal/auctionService"
	"auction-core/internal/auctionlock"
	bidding "auction-core/internal/biddingService"
	"auction-core/internal/models"
	"auction-core/internal/notification"
	"auction-core/internal/repository"
	"auction-core/internal/server"
	"auction-core/internal/settlement"

	"github.com/gin-gonic/gin"
)

// TestEnv is a fully wired in-memory server
type TestEnv struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
	Hub    *notification.Hub
	Engine *settlement.Engine
	Events *EventLog
}

// EventLog captures every hub event in delivery order
type EventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *EventLog) record(evt models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

// Has reports whether an event of type typ reached topic
func (l *EventLog) Has(typ models.EventType, topic string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Type == typ && e.Topic == topic {
			return true
		}
	}
	return false
}

// SetupTestRouter initializes the router with in-memory repository for integration testing.
func SetupTestRouter(t *testing.T, opts ...func(*auction.Options, *bidding.Options)) *TestEnv {
	gin.SetMode(gin.TestMode)

	auctionOpts := auction.Options{}
	biddingOpts := bidding.Options{}
	for _, o := range opts {
		o(&auctionOpts, &biddingOpts)
	}

	repo := repository.NewMemoryRepo()
	hub := notification.NewHub(1024)
	locks := auctionlock.NewTable(2 * time.Second)
	engine := settlement.NewEngine(repo, hub)
	auctionSvc := auction.NewAuctionService(repo, locks, engine, hub, auctionOpts)
	biddingSvc := bidding.NewBiddingService(repo, locks, auctionSvc, hub, biddingOpts)

	log := &EventLog{}
	sub := hub.Subscribe(notification.AllTopics, log.record)
	t.Cleanup(sub.Unsubscribe)

	return &TestEnv{
		Router: server.SetupRouter(auctionSvc, biddingSvc, hub),
		Repo:   repo,
		Hub:    hub,
		Engine: engine,
		Events: log,
	}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// returns the decoded envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any, headers ...string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// AsUser sets the requester header
func AsUser(id string) []string {
	return []string{"X-User-ID", id}
}

// CreateAuction posts an auction, ending in an hour unless body says otherwise
func CreateAuction(t *testing.T, env *TestEnv, body map[string]any) map[string]any {
	t.Helper()
	if _, ok := body["endTime"]; !ok {
		body["endTime"] = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	}
	resp, w := ExecuteRequestAndParse(t, env.Router, "POST", "/api/auctions", body)
	if w.Code != 201 {
		t.Fatalf("create auction: status %d body %s", w.Code, w.Body.String())
	}
	return resp["data"].(map[string]any)
}

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)
