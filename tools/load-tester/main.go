package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Fires signed synthetic event callbacks at the intake endpoint. A fraction
// of requests reuse the previous event ID to exercise duplicate suppression.
func main() {
	targetURL := flag.String("url", "http://localhost:8080/slack/events", "Target URL for event intake")
	secret := flag.String("secret", "supersecret", "Tenant signing secret")
	channel := flag.String("channel", "C0LOADTEST", "Channel ID to send events for")
	threadTS := flag.String("thread-ts", "1700000000.000100", "Anchor thread timestamp")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 100, "Requests per second limit")
	dupEvery := flag.Int("dup-every", 10, "Send a duplicate of the previous event every N requests (0 to disable)")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			var lastEventID string
			sent := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx) // Wait for token from rate limiter
					sent++

					eventID := uuid.NewString()
					if *dupEvery > 0 && sent%*dupEvery == 0 && lastEventID != "" {
						eventID = lastEventID
					}
					lastEventID = eventID

					ts := fmt.Sprintf("%d.%06d", time.Now().Unix(), sent%1000000)
					payload := fmt.Sprintf(
						`{"type":"event_callback","event_id":"%s","event":{"type":"message","channel":"%s","user":"U%06d","text":"load test report from worker %d","ts":"%s","thread_ts":"%s"}}`,
						eventID, *channel, workerID, workerID, ts, *threadTS)

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewBufferString(payload))
					if err != nil {
						continue // Should not happen
					}
					now := strconv.FormatInt(time.Now().Unix(), 10)
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-Slack-Request-Timestamp", now)
					req.Header.Set("X-Slack-Signature", sign(*secret, now, payload))

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					if resp.StatusCode == http.StatusOK {
						successCount.Add(1)
					} else {
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}

func sign(secret, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
