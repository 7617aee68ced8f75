package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/notegraph"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "notegraph"

// healthCheckUser owns no data; reading its graph exercises the store.
const healthCheckUser = "__health_check__"

// HealthHandler handles health check requests
type HealthHandler struct {
	graph   notegraph.NoteGraph
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(g notegraph.NoteGraph) *HealthHandler {
	return &HealthHandler{graph: g, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	store := h.checkStore(ctx)
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"graph_store": store,
			"system": gin.H{
				"status": "healthy",
				"uptime": time.Since(h.started).Round(time.Second).String(),
			},
		},
	}
	if store["status"] != "healthy" {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	store := h.checkStore(ctx)
	m := getSystemMetrics()

	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": gin.H{
			"graph_store": store,
			"system": gin.H{
				"status":       "healthy",
				"memory_usage": m.MemoryUsage,
				"goroutines":   m.Goroutines,
				"gc_cycles":    m.GCCycles,
				"heap_objects": m.HeapObjects,
				"stack_usage":  m.StackUsage,
			},
		},
		"metrics": gin.H{
			"response_time_ms": time.Since(start).Milliseconds(),
			"uptime_seconds":   int64(time.Since(h.started).Seconds()),
		},
	}
	if store["status"] != "healthy" {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkStore(ctx context.Context) gin.H {
	if h.graph == nil {
		return gin.H{
			"status": "unhealthy",
			"error":  "notegraph client not initialized",
		}
	}
	start := time.Now()
	_, err := h.graph.GetUserGraph(ctx, healthCheckUser)
	duration := time.Since(start)
	if err != nil {
		return gin.H{
			"status":      "unhealthy",
			"error":       err.Error(),
			"duration_ms": duration.Milliseconds(),
		}
	}
	return gin.H{
		"status":      "healthy",
		"duration_ms": duration.Milliseconds(),
	}
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

func getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
