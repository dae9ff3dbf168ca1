package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/launchforge/launchforge/artifact"
	"github.com/launchforge/launchforge/errs"
	"github.com/launchforge/launchforge/pkg/logging"
)

// Service applies edit instructions to persisted website pages. On success
// the store keeps the previous version for one level of undo.
type Service struct {
	engine *Engine
	store  artifact.Store
	log    *slog.Logger
}

// NewService builds a Service over an engine and an artifact store.
func NewService(engine *Engine, store artifact.Store) *Service {
	return &Service{
		engine: engine,
		store:  store,
		log:    logging.WithComponent("editor"),
	}
}

// PageKind is the artifact kind for one website page.
func PageKind(page string) string {
	return "website:" + page
}

// EditPage loads the page, runs the edit strategy, and persists the new
// version. The artifact is left untouched on any failure.
func (s *Service) EditPage(ctx context.Context, projectID, page, instruction string, onProgress func(stage, message string)) (*artifact.Record, *Result, error) {
	if page == "" {
		page = "home"
	}

	rec, err := s.store.Get(ctx, projectID, PageKind(page))
	if err != nil {
		return nil, nil, err
	}
	if rec.Data == "" {
		return nil, nil, errs.NotFoundf("page %s of project %s is empty", page, projectID)
	}

	result, err := s.engine.Edit(ctx, &Request{
		Content:     rec.Data,
		Instruction: instruction,
		OnProgress:  onProgress,
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.store.Put(ctx, projectID, PageKind(page), result.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("persist edited page: %w", err)
	}

	s.log.Info("page edited",
		"project", projectID,
		"page", page,
		"classification", result.Classification,
		"applied", result.Applied,
		"version", updated.Version,
	)
	return updated, result, nil
}

// UndoPage restores the previous version of a page.
func (s *Service) UndoPage(ctx context.Context, projectID, page string) (*artifact.Record, error) {
	if page == "" {
		page = "home"
	}
	return s.store.Undo(ctx, projectID, PageKind(page))
}
