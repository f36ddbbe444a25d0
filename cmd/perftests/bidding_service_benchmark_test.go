package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	_, svc := newBench(b.N, 50)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		amount := int64(51 + rand.Intn(100))
		if _, err := svc.PlaceBid(ctx, bid(auctionID(i), fmt.Sprintf("user_%d", i), amount)); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	_, svc := newBench(1, 50)
	ctx := context.Background()
	shared := auctionID(0)

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
			_, _ = svc.PlaceBid(ctx, bid(shared, fmt.Sprintf("user_parallel_%d", rnd.Int()), nextBid))
		}
	})
}

// Benchmark 3: GetHighestBid - Single-Threaded (Low Contention)
func Benchmark_GetHighestBid_SingleThreaded(b *testing.B) {
	_, svc := newBench(b.N, 50)
	ctx := context.Background()

	for i := 0; i < b.N; i++ {
		for j := 1; j <= 10; j++ {
			_, _ = svc.PlaceBid(ctx, bid(auctionID(i), fmt.Sprintf("user_%d_%d", i, j), int64(50+j*10)))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := svc.GetHighestBid(ctx, auctionID(i)); err != nil {
			b.Fatalf("failed to get highest bid: %v", err)
		}
	}
}

// Benchmark 4: GetHighestBid - Concurrent (High Contention)
func Benchmark_GetHighestBid_ConcurrentSharedAuction(b *testing.B) {
	_, svc := newBench(1, 50)
	ctx := context.Background()
	shared := auctionID(0)

	for j := 1; j <= 100; j++ {
		_, _ = svc.PlaceBid(ctx, bid(shared, fmt.Sprintf("user_%d", j), int64(50+j)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var failures int64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := svc.GetHighestBid(ctx, shared); err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}
	})
	if failures > 0 {
		b.Fatalf("%d highest bid reads failed", failures)
	}
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	_, svc := newBench(1, 50)
	ctx := context.Background()
	shared := auctionID(0)

	for j := 1; j <= 50; j++ {
		_, _ = svc.PlaceBid(ctx, bid(shared, fmt.Sprintf("user_seed_%d", j), int64(50+j*2)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastBid int64 = 150

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if rnd.Intn(10) < 3 {
				nextBid := atomic.AddInt64(&lastBid, int64(rnd.Intn(5)+1))
				_, _ = svc.PlaceBid(ctx, bid(shared, fmt.Sprintf("user_writer_%d", rnd.Int()), nextBid))
				continue
			}
			_, _ = svc.GetRecentBids(ctx, shared, 10)
		}
	})
}
