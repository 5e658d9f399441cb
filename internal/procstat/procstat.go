// Package procstat reports resource usage of the running server process.
package procstat

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	Threads       int32   `json:"threads"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type Sampler struct {
	proc    *process.Process
	started time.Time
}

// New returns a sampler for the current process.
func New() (*Sampler, error) {
	return NewForPID(int32(os.Getpid()))
}

func NewForPID(pid int32) (*Sampler, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, err)
	}
	return &Sampler{proc: p, started: time.Now()}, nil
}

// Sample reads CPU (averaged over the process lifetime), resident memory and
// thread counts. Goroutines are only meaningful for the current process.
func (s *Sampler) Sample(ctx context.Context) (Stats, error) {
	cpu, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cpu percent: %w", err)
	}
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("memory info: %w", err)
	}
	threads, err := s.proc.NumThreadsWithContext(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("thread count: %w", err)
	}

	return Stats{
		CPUPercent:    cpu,
		RSSBytes:      mem.RSS,
		Threads:       threads,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}, nil
}
