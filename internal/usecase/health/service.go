package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results with the dimension diagnostic.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	Dimension *domain.DimensionCheck
}

// probeText is embedded once per compatibility check to learn the provider's
// current output dimensionality.
const probeText = "dimension probe"

// Service coordinates health checks and the embedding-dimension diagnostic.
type Service struct {
	db        DBPinger
	ledger    LedgerPinger
	embedding EmbeddingChecker
	embed     Embedder
	dims      DimReader
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, ledger LedgerPinger, embedding EmbeddingChecker, embed Embedder, dims DimReader) *Service {
	return &Service{db: db, ledger: ledger, embedding: embedding, embed: embed, dims: dims}
}

// Check runs health checks against all components. The dimension diagnostic
// is attached when it can be computed; its failure degrades the report but
// never errors the endpoint.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if err := s.ledger.Ping(ctx); err != nil {
		checks["ledger"] = CheckError
	} else {
		checks["ledger"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	var dimension *domain.DimensionCheck
	if check, err := s.CheckCompatibility(ctx); err == nil {
		dimension = &check
		if !check.Matches {
			checks["dimension"] = CheckError
		} else {
			checks["dimension"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Dimension: dimension}
}

// CheckCompatibility probes the provider's current dimensionality against a
// sampled stored vector. An empty corpus has nothing to conflict with and
// reports a match with StoredDim zero. A mismatch means the corpus must be
// re-embedded or the provider reconfigured; it is reported, never fixed here.
func (s *Service) CheckCompatibility(ctx context.Context) (domain.DimensionCheck, error) {
	probe, err := s.embed.Embed(ctx, probeText)
	if err != nil {
		return domain.DimensionCheck{}, fmt.Errorf("embed probe: %w", err)
	}

	storedDim, err := s.dims.StoredDim(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DimensionCheck{QueryDim: probe.Dim(), StoredDim: 0, Matches: true}, nil
		}
		return domain.DimensionCheck{}, fmt.Errorf("read stored dim: %w", err)
	}

	return domain.DimensionCheck{
		QueryDim:  probe.Dim(),
		StoredDim: storedDim,
		Matches:   probe.Dim() == storedDim,
	}, nil
}
