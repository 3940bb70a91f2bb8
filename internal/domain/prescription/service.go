package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rxdesk/rxdesk/internal/platform/metrics"
	"github.com/rxdesk/rxdesk/internal/platform/rxdoc"
)

type Service struct {
	repo     Repository
	renderer *rxdoc.Renderer
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the store to the document renderer. m may be nil.
func NewService(repo Repository, renderer *rxdoc.Renderer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		metrics:  m,
		logger:   logger.With().Str("component", "prescription").Logger(),
		now:      time.Now,
	}
}

// prepare defaults, validates and derives quantities on p in place. Drafts
// that are only rendered accept dates the store could not hold.
func (s *Service) prepare(p *rxdoc.Prescription, draft bool) error {
	p.Normalize()
	validate := p.Validate
	if draft {
		validate = p.ValidateDraft
	}
	if err := validate(); err != nil {
		s.metrics.ValidationFailed()
		return err
	}
	rxdoc.ApplyQuantities(p)
	return nil
}

// CreatePrescription validates the draft, recomputes every quantity and
// stores it with its medicine lines and test reports.
func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := s.prepare(&p.Prescription, false); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create prescription: %w", err)
	}
	s.metrics.PrescriptionCreated()
	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Int("medicines", len(p.Medicines)).
		Msg("prescription created")
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, patient string, limit, offset int) ([]*Prescription, int, error) {
	items, total, err := s.repo.List(ctx, patient, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	if items == nil {
		items = []*Prescription{}
	}
	return items, total, nil
}

// Quantities returns a copy of the draft with defaults applied and every
// quantity recomputed. The draft need not be complete.
func (s *Service) Quantities(p *rxdoc.Prescription) *rxdoc.Prescription {
	out := p.Clone()
	out.Normalize()
	rxdoc.ApplyQuantities(out)
	return out
}

// Render produces a document for an unsaved draft. The caller's model is
// left untouched.
func (s *Service) Render(p *rxdoc.Prescription, format rxdoc.Format) (*rxdoc.Artifact, error) {
	draft := p.Clone()
	if err := s.prepare(draft, true); err != nil {
		return nil, err
	}
	return s.observe(format, func() (*rxdoc.Artifact, error) {
		return s.renderer.Render(draft, format)
	})
}

// RenderRecord produces a document for a stored prescription.
func (s *Service) RenderRecord(ctx context.Context, id uuid.UUID, format rxdoc.Format) (*rxdoc.Artifact, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := p.Prescription.Clone()
	doc.Normalize()
	return s.observe(format, func() (*rxdoc.Artifact, error) {
		return s.renderer.RenderRecord(doc, format)
	})
}

func (s *Service) observe(format rxdoc.Format, render func() (*rxdoc.Artifact, error)) (*rxdoc.Artifact, error) {
	start := time.Now()
	art, err := render()
	size := 0
	if art != nil {
		size = len(art.Body)
	}
	s.metrics.ObserveRender(string(format), size, time.Since(start), err)
	if err != nil {
		var rerr *rxdoc.RenderError
		if errors.As(err, &rerr) {
			s.logger.Error().Err(rerr.Err).Str("format", string(format)).Msg("render failed")
		}
		return nil, err
	}
	return art, nil
}

// DashboardStats counts records overall and for the current local day.
func (s *Service) DashboardStats(ctx context.Context) (*Stats, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats, err := s.repo.Stats(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
