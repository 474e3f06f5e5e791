package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fundops/compliance-engine/internal/domain"
)

// healthReport is the /system/health response: resource usage plus the
// staleness of the price book, so an operator dashboard (or an uptime
// probe) can tell "up" apart from "up but evaluating against stale
// prices".
type healthReport struct {
	Status        string   `json:"status"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskPercent   float64  `json:"disk_percent"`
	StaleTickers  []string `json:"stale_tickers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{Status: "ok"}

	if pct, err := cpu.PercentWithContext(r.Context(), 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		report.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		report.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.UsageWithContext(r.Context(), s.cfg.DataDir); err == nil {
		report.DiskPercent = du.UsedPercent
	}

	cutoff := domain.Now().Add(-s.cfg.PriceStalenessWindow)
	stale, err := s.deps.Securities.StaleTickers(r.Context(), cutoff)
	if err != nil {
		s.log.Warn().Err(err).Msg("stale ticker check failed")
	} else if len(stale) > 0 {
		report.Status = "degraded"
		report.StaleTickers = stale
	}

	// Stale prices degrade readiness, not liveness: the process is still
	// healthy, so this always reports 200.
	s.respondJSON(w, http.StatusOK, report)
}
