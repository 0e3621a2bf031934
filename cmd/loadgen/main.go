package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"matchbook/engine"
)

type tradeCounter struct{ n int64 }

func (t *tradeCounter) OnTrade(engine.Trade) { t.n++ }

func main() {
	totalOrders := flag.Int("orders", 500000, "number of orders to submit")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the mid")
	tick := flag.Int64("tick", 1, "tick size for limit prices")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	symbol := flag.String("symbol", "SIM", "symbol to trade")
	maxDepth := flag.Int("max-depth", 2048, "maximum resting depth tracked")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random resting order every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	marketRatio := flag.Int("market-ratio", 5, "1 in N orders will be market instead of limit")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	eng := engine.NewMatchingEngine(*symbol, *maxDepth, nil)
	counter := &tradeCounter{}
	eng.AddTradeListener(counter)

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		order := nextRandomOrder(rng, uint64(i)+1, *symbol, *basePrice, *priceLevels, *tick, *marketRatio)
		eng.AddOrder(order)
		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := engine.OrderID(rng.Intn(i) + 1)
			eng.CancelOrder(target)
		}
	}
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	tradesPerSec := float64(counter.n) / elapsed.Seconds()

	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n", *totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("matched %d trades (%.0f trades/s)\n", counter.n, tradesPerSec)
	fmt.Printf("config: depth=%d market-ratio=1/%d\n", *maxDepth, *marketRatio)
}

func nextRandomOrder(rng *rand.Rand, id uint64, symbol string, mid, width, tick int64, marketRatio int) *engine.Order {
	side := engine.Side(rng.Intn(2))
	var price int64
	if side == engine.Buy {
		price = mid + rng.Int63n(width)
	} else {
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = tick
		}
	}

	orderType := engine.Limit
	if marketRatio > 0 && rng.Intn(marketRatio) == 0 {
		orderType = engine.Market
	}

	qty := rng.Int63n(5) + 1

	return engine.NewOrder(engine.OrderID(id), symbol, side, engine.Quantity(qty), orderType, engine.GTC,
		engine.Price(price), 0, engine.NoConditions, time.Now())
}
