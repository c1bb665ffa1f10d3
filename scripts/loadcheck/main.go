package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8000", "pricecheck API base URL")
	apiKey      = flag.String("api-key", "", "API key sent as X-API-Key")
	requests    = flag.Int("requests", 6, "Total /automate requests to send")
	concurrency = flag.Int("concurrency", 6, "Requests in flight at once")
	items       = flag.String("items", "Sauce Labs Backpack,Sauce Labs Bike Light,Sauce Labs Jetpack", "Comma-separated items, used round-robin")
	timeout     = flag.Int("timeout", 0, "Per-run timeout in seconds sent with each request (0 = server default)")
	output      = flag.String("output", "loadcheck-results.json", "JSON output file path")
)

// --- Request / Response types (mirrors models package) ---

type automateRequest struct {
	Run     bool   `json:"run"`
	Item    string `json:"item,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

type automateResponse struct {
	Status string `json:"status"`
	Result struct {
		Price   string `json:"price"`
		Message string `json:"message"`
	} `json:"result"`
	Message    string `json:"message"`
	RunID      string `json:"run_id"`
	DurationMs int64  `json:"duration_ms"`
}

type healthResponse struct {
	Gate struct {
		Capacity int `json:"capacity"`
		InFlight int `json:"in_flight"`
		Waiting  int `json:"waiting"`
	} `json:"gate"`
}

// --- Report types ---

type requestResult struct {
	Index      int    `json:"index"`
	Item       string `json:"item"`
	HTTPStatus int    `json:"http_status"`
	Status     string `json:"status"`
	Price      string `json:"price,omitempty"`
	Message    string `json:"message,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	WorkerMs   int64  `json:"worker_ms"`
	Error      string `json:"error,omitempty"`
}

type gateSample struct {
	Capacity    int `json:"capacity"`
	MaxInFlight int `json:"max_in_flight"`
	MaxWaiting  int `json:"max_waiting"`
}

type loadReport struct {
	Timestamp   string          `json:"timestamp"`
	APIURL      string          `json:"api_url"`
	Requests    int             `json:"requests"`
	Concurrency int             `json:"concurrency"`
	WallMs      int64           `json:"wall_ms"`
	Gate        gateSample      `json:"gate"`
	Results     []requestResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== pricecheck load check ===")
	fmt.Printf("API URL:      %s\n", *apiURL)
	fmt.Printf("Requests:     %d\n", *requests)
	fmt.Printf("Concurrency:  %d\n", *concurrency)
	fmt.Printf("Output:       %s\n", *output)
	fmt.Println()

	if _, err := fetchHealth(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure pricecheck is running (e.g. make run)\n")
		os.Exit(1)
	}

	itemList := splitItems(*items)
	report := loadReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		Requests:    *requests,
		Concurrency: *concurrency,
		Results:     make([]requestResult, *requests),
	}

	sampleCtx, stopSampling := context.WithCancel(context.Background())
	samples := make(chan gateSample, 1)
	go func() { samples <- sampleGate(sampleCtx) }()

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(*concurrency)
	var printMu sync.Mutex
	for i := 0; i < *requests; i++ {
		i := i
		item := itemList[i%len(itemList)]
		g.Go(func() error {
			rr := send(i, item)
			report.Results[i] = rr

			printMu.Lock()
			defer printMu.Unlock()
			if rr.Error != "" {
				fmt.Printf("  #%-3d %-28s FAILED: %s\n", i, item, rr.Error)
			} else {
				fmt.Printf("  #%-3d %-28s %d %-8s %6dms %s\n", i, item, rr.HTTPStatus, rr.Status, rr.LatencyMs, rr.Price+rr.Message)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.WallMs = time.Since(start).Milliseconds()

	stopSampling()
	report.Gate = <-samples

	fmt.Println()
	printTable(report)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func splitItems(s string) []string {
	var out []string
	for _, it := range strings.Split(s, ",") {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

func fetchHealth(ctx context.Context) (*healthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *apiURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// sampleGate polls /health until ctx ends and keeps the peak gate usage.
func sampleGate(ctx context.Context) gateSample {
	var s gateSample
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if h, err := fetchHealth(ctx); err == nil {
			s.Capacity = h.Gate.Capacity
			s.MaxInFlight = max(s.MaxInFlight, h.Gate.InFlight)
			s.MaxWaiting = max(s.MaxWaiting, h.Gate.Waiting)
		}
		select {
		case <-ctx.Done():
			return s
		case <-ticker.C:
		}
	}
}

func send(index int, item string) requestResult {
	rr := requestResult{Index: index, Item: item}

	bodyBytes, err := json.Marshal(automateRequest{Run: true, Item: item, Timeout: *timeout})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/automate", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("X-API-Key", *apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	start := time.Now()
	resp, err := client.Do(req)
	rr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	// Non-2xx replies wrap the body in "detail".
	var body struct {
		automateResponse
		Detail *automateResponse `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	ar := body.automateResponse
	if body.Detail != nil {
		ar = *body.Detail
	}

	rr.Status = ar.Status
	rr.Price = ar.Result.Price
	rr.Message = ar.Message
	if rr.Message == "" {
		rr.Message = ar.Result.Message
	}
	rr.RunID = ar.RunID
	rr.WorkerMs = ar.DurationMs
	return rr
}

func printTable(report loadReport) {
	fmt.Println(strings.Repeat("─", 60))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "HTTP\tCount\tAvg Latency\tp95 Latency\n")
	fmt.Fprintf(w, "────\t─────\t───────────\t───────────\n")

	byStatus := map[int][]int64{}
	for _, r := range report.Results {
		byStatus[r.HTTPStatus] = append(byStatus[r.HTTPStatus], r.LatencyMs)
	}
	codes := make([]int, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	for _, code := range codes {
		lat := byStatus[code]
		label := fmt.Sprintf("%d", code)
		if code == 0 {
			label = "ERR"
		}
		fmt.Fprintf(w, "%s\t%d\t%dms\t%dms\n", label, len(lat), average(lat), percentile(lat, 0.95))
	}
	w.Flush()
	fmt.Println(strings.Repeat("─", 60))

	fmt.Printf("Wall time:     %dms\n", report.WallMs)
	fmt.Printf("Gate:          capacity %d, peak in-flight %d, peak waiting %d\n",
		report.Gate.Capacity, report.Gate.MaxInFlight, report.Gate.MaxWaiting)
	if report.Gate.Capacity > 0 && report.Gate.MaxInFlight > report.Gate.Capacity {
		fmt.Println("WARNING: in-flight runs exceeded gate capacity")
	}
}

func average(v []int64) int64 {
	if len(v) == 0 {
		return 0
	}
	var sum int64
	for _, x := range v {
		sum += x
	}
	return sum / int64(len(v))
}

func percentile(v []int64, p float64) int64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]int64(nil), v...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func writeJSON(path string, report loadReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
