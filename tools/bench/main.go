package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// 消息创建接口压测工具
// 模拟多个学生并发提交课程咨询，统计吞吐与延迟分布

type result struct {
	latency time.Duration
	status  int
	err     error
}

type createRequest struct {
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	SchoolID     string `json:"schoolId"`
	SchoolName   string `json:"schoolName"`
	ProgramID    string `json:"programId"`
	ProgramTitle string `json:"programTitle"`
	Content      string `json:"content"`
}

var schools = []struct {
	id, name string
}{
	{"sch_001", "Stockholm Business School"},
	{"sch_002", "Uppsala Institute of Technology"},
	{"sch_003", "Gothenburg Design Academy"},
	{"sch_004", "Lund Medical College"},
}

func randomRequest(r *rand.Rand) *createRequest {
	school := schools[r.Intn(len(schools))]
	studentNo := r.Intn(10000)
	return &createRequest{
		StudentID:    fmt.Sprintf("stu_%04d", studentNo),
		StudentName:  fmt.Sprintf("Student %04d", studentNo),
		StudentEmail: fmt.Sprintf("student%04d@example.com", studentNo),
		SchoolID:     school.id,
		SchoolName:   school.name,
		ProgramID:    fmt.Sprintf("prog_%02d", r.Intn(20)),
		ProgramTitle: fmt.Sprintf("Program %02d", r.Intn(20)),
		Content:      "I would like to know more about the admission requirements for this program.",
	}
}

func worker(id int, baseURL string, total int, client *http.Client, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()
	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for i := 0; i < total; i++ {
		body, _ := json.Marshal(randomRequest(r))

		start := time.Now()
		resp, err := client.Post(baseURL+"/api/v1/messages", "application/json", bytes.NewReader(body))
		latency := time.Since(start)

		if err != nil {
			results <- result{latency: latency, err: err}
			continue
		}
		resp.Body.Close()
		results <- result{latency: latency, status: resp.StatusCode}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	baseURL := flag.String("url", "http://localhost:3008", "service base URL")
	concurrency := flag.Int("c", 10, "concurrent workers")
	requests := flag.Int("n", 100, "requests per worker")
	flag.Parse()

	totalRequests := *concurrency * *requests
	fmt.Printf("Target: %s\n", *baseURL)
	fmt.Printf("Workers: %d, requests per worker: %d, total: %d\n\n", *concurrency, *requests, totalRequests)

	client := &http.Client{Timeout: 15 * time.Second}
	results := make(chan result, totalRequests)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go worker(i, *baseURL, *requests, client, results, &wg)
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(results)

	var latencies []time.Duration
	statusCounts := make(map[int]int)
	errCount := 0
	for r := range results {
		if r.err != nil {
			errCount++
			continue
		}
		statusCounts[r.status]++
		latencies = append(latencies, r.latency)
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("Elapsed: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput: %.1f req/s\n", float64(totalRequests)/elapsed.Seconds())
	fmt.Printf("Errors: %d\n\n", errCount)

	fmt.Println("Status codes:")
	for status, count := range statusCounts {
		fmt.Printf("  %d: %d\n", status, count)
	}

	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Println("\nLatency:")
		fmt.Printf("  avg: %v\n", (sum / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("  p50: %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("  p90: %v\n", percentile(latencies, 0.90).Round(time.Microsecond))
		fmt.Printf("  p99: %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Printf("  max: %v\n", latencies[len(latencies)-1].Round(time.Microsecond))
	}

	fmt.Printf("\nClient goroutines peak: %d\n", runtime.NumGoroutine())
}
