package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

// UserResp represents the server's response when a user registers.
type UserResp struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// PostReq defines the request payload for creating a new post.
type PostReq struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	IsPublic bool   `json:"is_public"`
}

// Post represents a post entity returned by the API.
type Post struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Created  time.Time `json:"created"`
}

// Notification represents one inbox row returned by the API.
type Notification struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actor_id"`
	PostID  string    `json:"post_id"`
	Created time.Time `json:"created"`
}

// The probe measures end-to-end latency from publishing a post to the
// corresponding notification landing in a subscriber's inbox, i.e. the full
// server -> Kafka -> worker -> Cassandra path.
func main() {
	// CLI flags
	var serverAddr string
	var U, F, P, concurrency int
	var pollTimeout int

	flag.StringVar(&serverAddr, "server", "https://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to register")
	flag.IntVar(&F, "subs", 10, "average subscriptions per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for notification delivery")
	flag.Parse()

	ctx := context.Background()

	// --- TLS setup for secure communication ---
	cert, err := tls.LoadX509KeyPair("../../certs/cert.pem", "../../certs/key.pem")
	if err != nil {
		panic(fmt.Sprintf("failed to load cert/key: %v", err))
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
			},
		},
		Timeout: 10 * time.Second,
	}

	// --- 1) Register users ---
	fmt.Printf("Registering %d users...\n", U)
	users := make([]UserResp, 0, U)
	for i := 0; i < U; i++ {
		payload := map[string]string{
			"email":    fmt.Sprintf("e2e-user-%d-%d@bench.local", i, time.Now().UnixNano()),
			"password": "bench-pass",
		}
		b, _ := json.Marshal(payload)

		resp, err := client.Post(serverAddr+"/register", "application/json", bytes.NewReader(b))
		if err != nil {
			fmt.Printf("register error: %v\n", err)
			os.Exit(1)
		}

		var ur UserResp
		if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
			resp.Body.Close()
			fmt.Printf("decode register resp error: %v\n", err)
			os.Exit(1)
		}
		resp.Body.Close()
		users = append(users, ur)
	}
	fmt.Println("Users registered successfully.")

	// --- 2) Build a token map for quick authorization lookup ---
	userTokens := make(map[string]string, len(users))
	for _, u := range users {
		userTokens[u.UserID] = u.Token
	}

	// --- 3) Create subscriptions between users ---
	fmt.Printf("Creating subscriptions (~%d per user)...\n", F)
	subscriberMap := make(map[string][]string) // target -> subscribers
	for _, u := range users {
		for j := 0; j < F; j++ {
			target := users[rand.Intn(len(users))]
			if target.UserID == u.UserID {
				continue
			}
			payload := map[string]string{"target_id": target.UserID}
			b, _ := json.Marshal(payload)
			req, _ := http.NewRequestWithContext(ctx, "POST", serverAddr+"/subscribe", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+u.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("subscribe error: %v\n", err)
				os.Exit(1)
			}
			resp.Body.Close()
			subscriberMap[target.UserID] = append(subscriberMap[target.UserID], u.UserID)
		}
	}
	fmt.Println("Subscriptions established.")

	// --- 4) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	type postRecord struct {
		PostID   string
		AuthorID string
		Created  time.Time
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // concurrency limiter
	postsCh := make(chan postRecord, P)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()

			author := users[rand.Intn(len(users))]
			reqBody := PostReq{
				Title:    fmt.Sprintf("e2e post %d", n),
				Body:     fmt.Sprintf("post body %d", rand.Int()),
				IsPublic: true,
			}
			b, _ := json.Marshal(reqBody)

			req, _ := http.NewRequestWithContext(ctx, "POST", serverAddr+"/posts", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+author.Token)

			resp, err := client.Do(req)
			if err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}

			var p Post
			if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
				resp.Body.Close()
				fmt.Printf("decode post error: %v\n", err)
				return
			}
			resp.Body.Close()
			postsCh <- postRecord{PostID: p.ID, AuthorID: p.AuthorID, Created: p.Created}
		}(i)
	}

	wg.Wait()
	close(postsCh)

	// --- 5) Verify notification delivery to subscribers' inboxes ---
	fmt.Println("Checking notification delivery...")
	var latencies []float64
	var latMu sync.Mutex
	var failCount int64
	var checksWg sync.WaitGroup

	for pr := range postsCh {
		subscribers := subscriberMap[pr.AuthorID]
		for _, sid := range subscribers {
			checksWg.Add(1)
			go func(pr postRecord, sid string) {
				defer checksWg.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
				found := false
				token := userTokens[sid]

				// Poll the inbox until the notification appears or timeout
				for time.Now().Before(deadline) {
					req, _ := http.NewRequestWithContext(ctx, "GET", serverAddr+"/notifications", nil)
					req.Header.Set("Authorization", "Bearer "+token)
					resp, err := client.Do(req)
					if err != nil {
						time.Sleep(200 * time.Millisecond)
						continue
					}

					var inbox []Notification
					if err := json.NewDecoder(resp.Body).Decode(&inbox); err != nil {
						resp.Body.Close()
						time.Sleep(200 * time.Millisecond)
						continue
					}
					resp.Body.Close()

					for _, n := range inbox {
						if n.Kind == "post_created" && n.PostID == pr.PostID {
							lat := time.Since(pr.Created).Seconds() * 1000
							latMu.Lock()
							latencies = append(latencies, lat)
							latMu.Unlock()
							found = true
							return
						}
					}
					time.Sleep(200 * time.Millisecond)
				}

				if !found {
					latMu.Lock()
					failCount++
					latMu.Unlock()
				}
			}(pr, sid)
		}
	}

	checksWg.Wait()

	// --- 6) Compute latency statistics and export to CSV ---
	if len(latencies) == 0 {
		fmt.Println("No successful deliveries recorded.")
	} else {
		trimPercent := 1.0
		meanVal := trimmedMean(latencies, trimPercent)
		p50 := trimmedPercentile(latencies, 50, trimPercent)
		p90 := trimmedPercentile(latencies, 90, trimPercent)
		p99 := trimmedPercentile(latencies, 99, trimPercent)
		fmt.Printf("Delivery stats (ms): count=%d mean=%.2f p50=%.2f p90=%.2f p99=%.2f fails=%d\n",
			len(latencies), meanVal, p50, p90, p99, failCount)

		// Export latencies to CSV
		f, _ := os.Create("e2e_latencies.csv")
		w := csv.NewWriter(f)
		w.Write([]string{"latency_ms"})
		for _, v := range latencies {
			w.Write([]string{fmt.Sprintf("%.3f", v)})
		}
		w.Flush()
		f.Close()
		fmt.Println("Saved e2e_latencies.csv")
	}
}

// trimmedMean calculates the mean of a dataset excluding extreme values.
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// trimmedPercentile returns a percentile value after trimming extremes.
func trimmedPercentile(data []float64, p float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	data = data[trim : len(data)-trim]
	return percentile(data, p)
}

// percentile calculates the requested percentile using linear interpolation.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	d0 := data[f] * (float64(c) - k)
	d1 := data[c] * (k - float64(f))
	return d0 + d1
}
