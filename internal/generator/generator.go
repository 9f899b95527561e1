// Package generator produces synthetic Kubernetes-style log files for
// exercising the ingestion and query pipelines without a live cluster.
package generator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	applications = []string{"app1", "app2", "app3", "app4", "app5", "app6", "app7", "app8", "app9", "app10"}
	namespaces   = []string{"namespace-1", "namespace-2", "namespace-3", "namespace-4", "namespace-5"}
	logLevels    = []string{"INFO", "WARN", "ERROR", "DEBUG"}
	podEvents    = []string{"PodDeleted", "PodCrashLoopBackOff", "OOMKilled"}
	crashEvents  = []string{"PodCrashLoopBackOff", "OOMKilled"}

	messageWords = []string{
		"request", "completed", "successfully", "connection", "established",
		"cache", "refreshed", "configuration", "reloaded", "healthcheck",
		"passed", "queue", "drained", "worker", "started", "session",
		"expired", "upstream", "responded", "payload", "validated",
		"retrying", "scheduled", "task", "finished", "metrics", "flushed",
	}
)

const clusterName = "aks-demo-cluster"

// Entry is one synthetic log record in the AKS export shape.
type Entry struct {
	Timestamp   string  `json:"timestamp"`
	Namespace   string  `json:"namespace"`
	Pod         string  `json:"pod"`
	Container   string  `json:"container"`
	Application string  `json:"application"`
	Cluster     string  `json:"cluster"`
	Node        string  `json:"node"`
	HostIP      string  `json:"hostIP"`
	PodIP       string  `json:"podIP"`
	TraceID     string  `json:"traceId"`
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryMB    int     `json:"memoryUsageMB"`
	EventType   string  `json:"eventType,omitempty"`
	Level       string  `json:"level"`
	Message     string  `json:"message"`
}

// Generator emits synthetic logs with occasional incident bursts
// (crash-looping pods, node scale events) so retrieval has something
// interesting to find.
type Generator struct {
	rng      *rand.Rand
	burst    string // "" / "pod_crash" / "scale_up"
	burstEnd time.Time
}

// New creates a generator. The same seed reproduces the same log stream.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateDay writes count logs spread evenly over the given day into
// dir/aks_logs_<date>.json as a single JSON array, matching the AKS export
// format the loader expects.
func (g *Generator) GenerateDay(dir string, date time.Time, count int) (string, error) {
	if count <= 0 {
		count = 2000
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		offset := time.Duration(int64(86400/count) * int64(i) * int64(time.Second))
		entries[i] = g.Next(day.Add(offset))
	}

	path := filepath.Join(dir, fmt.Sprintf("aks_logs_%s.json", day.Format("2006-01-02")))
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal logs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Next produces the log entry for the given instant, advancing burst state.
func (g *Generator) Next(ts time.Time) Entry {
	if g.burst == "" && g.rng.Float64() < 0.01 {
		g.startBurst(ts)
	}
	if g.burst != "" && ts.After(g.burstEnd) {
		g.burst = ""
	}

	app := pick(g.rng, applications)
	namespace := pick(g.rng, namespaces)
	pod := fmt.Sprintf("%s-pod-%d", app, 1+g.rng.Intn(5))

	e := Entry{
		Timestamp:   ts.UTC().Format("2006-01-02T15:04:05") + "Z",
		Namespace:   namespace,
		Pod:         pod,
		Container:   app + "-container",
		Application: app,
		Cluster:     clusterName,
		Node:        fmt.Sprintf("aks-nodepool-%d", 1+g.rng.Intn(3)),
		HostIP:      g.ipv4(),
		PodIP:       g.privateIPv4(),
		TraceID:     g.traceID(),
		CPUUsage:    round2(0.1 + g.rng.Float64()*2.4),
		MemoryMB:    50 + g.rng.Intn(1451),
	}

	switch g.burst {
	case "pod_crash":
		e.CPUUsage = round2(1.5 + g.rng.Float64()*1.5)
		e.MemoryMB = 1000 + g.rng.Intn(2001)
		event := pick(g.rng, crashEvents)
		e.EventType = event
		e.Level = "ERROR"
		e.Message = fmt.Sprintf("%s occurred for pod %s in namespace %s", event, pod, namespace)
		return e

	case "scale_up":
		// First part of the burst scales up, the tail scales back down.
		if ts.Before(g.burstEnd.Add(-time.Minute)) {
			e.EventType = "NodeScaledUp"
			e.Message = "Node scaled up in cluster " + clusterName
		} else {
			e.EventType = "NodeScaledDown"
			e.Message = "Node scaled down in cluster " + clusterName
		}
		e.Level = "INFO"
		return e
	}

	switch g.weighted(85, 10, 5) {
	case 0: // normal
		e.Level = pick(g.rng, logLevels)
		e.Message = g.sentence()
	case 1: // pod event
		event := pick(g.rng, podEvents)
		e.EventType = event
		if event == "OOMKilled" {
			e.Level = "ERROR"
		} else {
			e.Level = "WARN"
		}
		e.Message = fmt.Sprintf("%s occurred for pod %s in namespace %s", event, pod, namespace)
	default: // node event
		if g.rng.Intn(2) == 0 {
			e.EventType = "NodeScaledUp"
			e.Message = "Node ScaledUp in cluster " + clusterName
		} else {
			e.EventType = "NodeScaledDown"
			e.Message = "Node ScaledDown in cluster " + clusterName
		}
		e.Level = "INFO"
	}
	return e
}

func (g *Generator) startBurst(ts time.Time) {
	if g.rng.Intn(2) == 0 {
		g.burst = "pod_crash"
	} else {
		g.burst = "scale_up"
	}
	g.burstEnd = ts.Add(time.Duration(2+g.rng.Intn(4)) * time.Minute)
}

func (g *Generator) weighted(normal, pod, node int) int {
	n := g.rng.Intn(normal + pod + node)
	switch {
	case n < normal:
		return 0
	case n < normal+pod:
		return 1
	default:
		return 2
	}
}

func (g *Generator) sentence() string {
	n := 6 + g.rng.Intn(7)
	words := make([]string, n)
	for i := range words {
		words[i] = pick(g.rng, messageWords)
	}
	out := words[0]
	for _, w := range words[1:] {
		out += " " + w
	}
	return out + "."
}

func (g *Generator) ipv4() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+g.rng.Intn(223), g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))
}

func (g *Generator) privateIPv4() string {
	return fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))
}

func (g *Generator) traceID() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 36)
	for i := range buf {
		switch i {
		case 8, 13, 18, 23:
			buf[i] = '-'
		case 14:
			buf[i] = '4'
		default:
			buf[i] = hexDigits[g.rng.Intn(16)]
		}
	}
	return string(buf)
}

func pick(rng *rand.Rand, items []string) string {
	return items[rng.Intn(len(items))]
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
