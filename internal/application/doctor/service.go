package doctor

import (
	"context"
	"fmt"
	"time"

	appconfig "github.com/doeshing/pmpilot/internal/application/config"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Health         ports.HealthChecker
	Documents      ports.DocumentService
	Store          ports.BlobStore
	// StoreName describes Store in the report, e.g. "sqlite /home/me/.pmpilot/history/history.db".
	StoreName string
	Timeout   time.Duration
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("loaded version %s", cfg.ConfigFormatVersion)))
	}

	checks = append(checks, stagesCheck(cfg))

	if s.Health != nil {
		checks = append(checks, s.pipelineCheck(ctx, cfg))
	} else {
		checks = append(checks, warn("Pipeline", "health checker not initialized"))
	}

	if s.Documents != nil {
		checks = append(checks, s.documentsCheck(ctx))
	}

	if s.Store != nil {
		checks = append(checks, s.storeCheck(ctx, cfg.GetHistoryKey()))
	} else {
		checks = append(checks, fail("History store", "not initialized"))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return domain.DefaultHealthTimeout
}

func (s *Service) pipelineCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	if err := s.Health.Health(ctx); err != nil {
		return fail("Pipeline", fmt.Sprintf("%s unreachable: %s", cfg.GetPipelineURL(), domain.FailureMessage(err)))
	}
	return ok("Pipeline", fmt.Sprintf("%s healthy", cfg.GetPipelineURL()))
}

func (s *Service) documentsCheck(ctx context.Context) domain.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	files, err := s.Documents.ListFiles(ctx)
	if err != nil {
		return warn("Documents", domain.FailureMessage(err))
	}
	if len(files) == 0 {
		return warn("Documents", "no documents uploaded")
	}
	return ok("Documents", fmt.Sprintf("%d available", len(files)))
}

func (s *Service) storeCheck(ctx context.Context, key string) domain.HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	name := s.StoreName
	if name == "" {
		name = "configured store"
	}
	data, found, err := s.Store.Get(ctx, key)
	if err != nil {
		return fail("History store", fmt.Sprintf("%s unreadable: %v", name, err))
	}
	if !found {
		return ok("History store", fmt.Sprintf("%s (empty)", name))
	}
	return ok("History store", fmt.Sprintf("%s (%d bytes)", name, len(data)))
}

func stagesCheck(cfg domain.Config) domain.HealthCheck {
	schedule, err := cfg.StageSchedule()
	if err != nil {
		return fail("Stages", err.Error())
	}
	var total time.Duration
	for _, d := range schedule {
		total += d
	}
	return ok("Stages", fmt.Sprintf("%d stages, last stage reached after %s", len(cfg.PipelineStages()), total))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
