package check

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/internal/provision"
	"github.com/toozej/diagramcheck/internal/render"
)

// Session holds the dependencies shared by every check in a run. It provisions
// the PlantUML jar and stdlib at most once and remembers the outcome, so a
// download failure is reported by every PlantUML check without being retried.
type Session struct {
	provisioner *provision.Provisioner
	jar         provision.Resource
	stdlib      provision.Resource
	logger      *log.Entry

	once   sync.Once
	assets render.PlantUMLAssets
	err    error
}

// NewSession creates a session. Nothing is downloaded until Prepare or
// PlantUMLAssets is first called.
func NewSession(p *provision.Provisioner, jar, stdlib provision.Resource) *Session {
	return &Session{
		provisioner: p,
		jar:         jar,
		stdlib:      stdlib,
		logger:      log.WithField("component", "session"),
	}
}

// Prepare provisions the PlantUML dependencies and records the result.
func (s *Session) Prepare(ctx context.Context) error {
	s.once.Do(func() {
		s.assets, s.err = s.provision(ctx)
		if s.err != nil {
			s.logger.WithError(s.err).Error("PlantUML dependencies unavailable")
			return
		}
		s.logger.WithFields(log.Fields{
			"jar":    s.assets.Jar,
			"stdlib": s.assets.Stdlib,
		}).Debug("PlantUML dependencies ready")
	})
	return s.err
}

// PlantUMLAssets implements render.AssetResolver.
func (s *Session) PlantUMLAssets(ctx context.Context) (render.PlantUMLAssets, error) {
	if err := s.Prepare(ctx); err != nil {
		return render.PlantUMLAssets{}, err
	}
	return s.assets, nil
}

// CacheDir returns the provisioner's cache root.
func (s *Session) CacheDir() string {
	return s.provisioner.Root()
}

func (s *Session) provision(ctx context.Context) (render.PlantUMLAssets, error) {
	jar, err := s.provisioner.Ensure(ctx, s.jar)
	if err != nil {
		return render.PlantUMLAssets{}, fmt.Errorf("failed to provision %s: %w", s.jar.Name, err)
	}
	stdlib, err := s.provisioner.Ensure(ctx, s.stdlib)
	if err != nil {
		return render.PlantUMLAssets{}, fmt.Errorf("failed to provision %s: %w", s.stdlib.Name, err)
	}
	return render.PlantUMLAssets{Jar: jar, Stdlib: stdlib}, nil
}
