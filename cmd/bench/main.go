package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Hammers a running phiwatch node with synthetic heartbeats from a set of
// fake peers and reports throughput plus the resulting /peers snapshot.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "node address")
	n := flag.Int("n", 5000, "heartbeats to send")
	conc := flag.Int("c", 32, "concurrency")
	peers := flag.Int("peers", 8, "distinct fake peer ids")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	wg := sync.WaitGroup{}
	start := time.Now()
	ch := make(chan int, *conc)

	for i := 0; i < *n; i++ {
		wg.Add(1)
		ch <- 1
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("%s/heartbeat/bench-%d", *addr, i%*peers)
			resp, _ := client.Post(url, "", nil)
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			<-ch
		}(i)
	}
	wg.Wait()
	dur := time.Since(start)
	fmt.Printf("Delivered %d heartbeats in %s (%.2f ops/s)\n", *n, dur, float64(*n)/dur.Seconds())

	resp, err := client.Get(*addr + "/peers")
	if err != nil {
		fmt.Println("snapshot failed:", err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Println(string(body))
}
