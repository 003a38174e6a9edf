package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceOptimizer sizes the adapter worker pool from host resources
type ResourceOptimizer struct {
	mu                 sync.RWMutex
	config             ResourceOptimizerConfig
	cpuCores           int
	memoryGB           float64
	currentCPUUsage    float64
	currentMemoryUsage float64
	optimalWorkers     int
	logger             *logrus.Logger
}

// ResourceOptimizerConfig holds configuration for the resource optimizer
type ResourceOptimizerConfig struct {
	CPUThreshold    float64 `yaml:"cpu_threshold" default:"80.0"`
	MemoryThreshold float64 `yaml:"memory_threshold" default:"85.0"`
	MinWorkers      int     `yaml:"min_workers" default:"1"`
	MaxWorkers      int     `yaml:"max_workers" default:"6"`
}

// NewResourceOptimizer creates a new resource optimizer
func NewResourceOptimizer(config ResourceOptimizerConfig, logger *logrus.Logger) *ResourceOptimizer {
	// Apply default values if not provided
	if config.CPUThreshold == 0 {
		config.CPUThreshold = 80.0
	}
	if config.MemoryThreshold == 0 {
		config.MemoryThreshold = 85.0
	}
	if config.MinWorkers <= 0 {
		config.MinWorkers = 1
	}
	if config.MaxWorkers < config.MinWorkers {
		config.MaxWorkers = max(config.MinWorkers, len(DefaultAdapters(0)))
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ro := &ResourceOptimizer{
		config:   config,
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}

	// Get initial memory info
	if memInfo, err := mem.VirtualMemory(); err == nil {
		ro.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		ro.logger.WithError(err).Warn("Could not get memory info, using default")
		ro.memoryGB = 8.0
	}

	ro.calculateOptimalWorkers()

	ro.logger.WithFields(logrus.Fields{
		"cpu_cores":   ro.cpuCores,
		"memory_gb":   ro.memoryGB,
		"max_workers": ro.optimalWorkers,
	}).Info("Resource optimizer initialized")

	return ro
}

// calculateOptimalWorkers derives the adapter concurrency from cores, memory and load
func (ro *ResourceOptimizer) calculateOptimalWorkers() {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	// Each adapter fit is CPU bound, so start from the core count
	workers := ro.cpuCores

	// Tree ensembles allocate per fit; cut back on small hosts
	memoryFactor := 1.0
	if ro.memoryGB < 2.0 {
		memoryFactor = 0.5
	} else if ro.memoryGB < 4.0 {
		memoryFactor = 0.75
	}

	loadFactor := 1.0
	if ro.currentCPUUsage > ro.config.CPUThreshold {
		loadFactor = 0.5
	} else if ro.currentMemoryUsage > ro.config.MemoryThreshold {
		loadFactor = 0.75
	}

	workers = int(float64(workers) * memoryFactor * loadFactor)
	ro.optimalWorkers = max(ro.config.MinWorkers, min(ro.config.MaxWorkers, workers))
}

// OptimalWorkers returns the current adapter worker limit
func (ro *ResourceOptimizer) OptimalWorkers() int {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.optimalWorkers
}

// UpdateSystemMetrics samples CPU and memory usage and recomputes the limit
func (ro *ResourceOptimizer) UpdateSystemMetrics(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	ro.mu.Lock()
	if len(cpuPercent) > 0 {
		ro.currentCPUUsage = cpuPercent[0]
	}
	ro.currentMemoryUsage = memInfo.UsedPercent
	ro.mu.Unlock()

	ro.calculateOptimalWorkers()
	return nil
}

// GetSystemInfo returns current system information
func (ro *ResourceOptimizer) GetSystemInfo() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return map[string]interface{}{
		"cpu_cores":      ro.cpuCores,
		"memory_gb":      ro.memoryGB,
		"current_cpu":    ro.currentCPUUsage,
		"current_memory": ro.currentMemoryUsage,
		"goroutines":     runtime.NumGoroutine(),
		"max_workers":    ro.optimalWorkers,
	}
}
