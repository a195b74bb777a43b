package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/logger"
)

const (
	redisAddr     = "localhost:6379"
	userID        = int64(424242)
	barcode       = "4820000000011"
	cartCeiling   = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	log, err := logger.New("development", "info")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize Redis
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = redisAddr
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, PoolSize: totalRequests})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	adapter := storage.NewRedisAdapter(rdb, storage.RedisOptions{CartCeiling: cartCeiling})

	// Clear previous test data
	if err := adapter.Clear(ctx, userID); err != nil {
		log.Fatal("failed to clear cart", zap.Error(err))
	}
	defer adapter.Clear(ctx, userID)

	ok := addToCart(ctx, adapter, log)
	ok = lockUser(ctx, adapter, log) && ok

	if !ok {
		os.Exit(1)
	}
}

// addToCart fires concurrent increments at one cart line and checks the
// ceiling holds.
func addToCart(ctx context.Context, adapter *storage.RedisAdapter, log *zap.Logger) bool {
	var successCount, ceilingCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := adapter.AddItem(ctx, userID, barcode, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrQuantityCeilingExceeded):
				ceilingCount.Add(1)
			default:
				errorCount.Add(1)
				log.Warn("add item failed", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	cart, err := adapter.GetCart(ctx, userID)
	if err != nil {
		log.Error("failed to read cart", zap.Error(err))
		return false
	}

	fmt.Println("========== CART CEILING RESULTS ==========")
	fmt.Printf("Ceiling:          %d\n", cartCeiling)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Added:            %d\n", successCount.Load())
	fmt.Printf("Over Ceiling:     %d\n", ceilingCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Final Quantity:   %d\n", cart[barcode])
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if successCount.Load() == cartCeiling && ceilingCount.Load() == totalRequests-cartCeiling && cart[barcode] == cartCeiling {
		fmt.Printf("PASS: exactly %d increments applied\n", cartCeiling)
		return true
	}
	fmt.Printf("FAIL: expected %d added/%d rejected, quantity %d\n",
		cartCeiling, totalRequests-cartCeiling, cartCeiling)
	return false
}

// lockUser races for the per-user lock; exactly one caller may hold it.
func lockUser(ctx context.Context, adapter *storage.RedisAdapter, log *zap.Logger) bool {
	var holders atomic.Int32
	tokens := make(chan string, totalRequests)

	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			token, ok, err := adapter.AcquireUserLock(ctx, userID, 10*time.Second)
			if err != nil {
				log.Warn("acquire lock failed", zap.Error(err))
				return
			}
			if ok {
				holders.Add(1)
				tokens <- token
			}
		}()
	}
	wg.Wait()
	close(tokens)

	for token := range tokens {
		if err := adapter.ReleaseUserLock(ctx, userID, token); err != nil {
			log.Warn("release lock failed", zap.Error(err))
		}
	}

	fmt.Printf("Lock holders:     %d\n", holders.Load())
	if holders.Load() == 1 {
		fmt.Println("PASS: one lock holder")
		return true
	}
	fmt.Println("FAIL: expected exactly one lock holder")
	return false
}
