package database

import (
	"context"
	"fmt"
	"log/slog"

	"eventtree/internal/models"
)

// EventCreator is the part of the event store Seed needs.
type EventCreator interface {
	List(ctx context.Context) ([]models.Event, error)
	Create(ctx context.Context, name string) (*models.Event, error)
}

// CategoryCreator is the part of the category store Seed needs.
type CategoryCreator interface {
	Create(ctx context.Context, label string, parentID *int64, eventID int64) (*models.Category, error)
}

type seedNode struct {
	label    string
	children []seedNode
}

var sampleForest = []seedNode{
	{label: "Sailing", children: []seedNode{
		{label: "Dinghy", children: []seedNode{{label: "Laser"}, {label: "420"}}},
		{label: "Keelboat"},
	}},
	{label: "Rowing", children: []seedNode{
		{label: "Single Sculls"},
	}},
}

// Seed populates the database with a sample event and category forest for
// development. It is a no-op when any event already exists.
func Seed(ctx context.Context, events EventCreator, categories CategoryCreator) error {
	existing, err := events.List(ctx)
	if err != nil {
		return fmt.Errorf("seed check events: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	event, err := events.Create(ctx, "Autumn Regatta")
	if err != nil {
		return fmt.Errorf("seed insert event: %w", err)
	}

	count, err := seedNodes(ctx, categories, event.ID, nil, sampleForest)
	if err != nil {
		return err
	}

	slog.Info("database seeded with sample event",
		"event_id", event.ID,
		"categories", count,
	)
	return nil
}

func seedNodes(ctx context.Context, categories CategoryCreator, eventID int64, parentID *int64, nodes []seedNode) (int, error) {
	count := 0
	for _, n := range nodes {
		c, err := categories.Create(ctx, n.label, parentID, eventID)
		if err != nil {
			return count, fmt.Errorf("seed insert category %q: %w", n.label, err)
		}
		count++
		sub, err := seedNodes(ctx, categories, eventID, &c.ID, n.children)
		count += sub
		if err != nil {
			return count, err
		}
	}
	return count, nil
}
