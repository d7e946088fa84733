package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/event-pass-system/internal/model"
)

// AddSponsor records a sponsor whose logo file is already stored.
func (s *PassService) AddSponsor(ctx context.Context, name, logo string) (model.Sponsor, error) {
	name, logo = strings.TrimSpace(name), strings.TrimSpace(logo)
	if name == "" || logo == "" {
		return model.Sponsor{}, fmt.Errorf("%w: name and logo required", ErrValidation)
	}
	sp := model.Sponsor{Name: name, Logo: logo, AddedAt: s.now()}
	if err := s.store.AddSponsor(ctx, sp); err != nil {
		return model.Sponsor{}, err
	}
	s.log.WithField("sponsor", name).Info("sponsor added")
	return sp, nil
}

// ListSponsors returns sponsors in the order they were added.
func (s *PassService) ListSponsors(ctx context.Context) ([]model.Sponsor, error) {
	return s.store.ListSponsors(ctx)
}

// RemoveSponsor deletes every sponsor named name and reports how many went
// away.  An unknown name removes nothing and is not an error.
func (s *PassService) RemoveSponsor(ctx context.Context, name string) (int, error) {
	n, err := s.store.RemoveSponsor(ctx, name)
	if err != nil {
		return 0, err
	}
	s.log.WithField("sponsor", name).WithField("removed", n).Info("sponsor removed")
	return n, nil
}

// UpdatePoweredBy replaces the powered-by branding.
func (s *PassService) UpdatePoweredBy(ctx context.Context, name, logo string) (model.PoweredBy, error) {
	name, logo = strings.TrimSpace(name), strings.TrimSpace(logo)
	if name == "" || logo == "" {
		return model.PoweredBy{}, fmt.Errorf("%w: name and logo required", ErrValidation)
	}
	return s.store.UpdatePoweredBy(ctx, name, logo, s.now())
}

// GetPoweredBy returns the current powered-by branding.
func (s *PassService) GetPoweredBy(ctx context.Context) (model.PoweredBy, error) {
	return s.store.GetPoweredBy(ctx)
}
