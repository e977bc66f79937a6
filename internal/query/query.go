// Package query selects participant documents from the simulation results
// collection.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pmtexport/internal/participant"
)

var (
	// ErrInvalidFilter indicates a filter with neither or both of a window
	// and an ID set.
	ErrInvalidFilter = errors.New("query filter must set exactly one of window or ids")
	// ErrEmptyProjection indicates a query with no projected fields.
	ErrEmptyProjection = errors.New("query projection is empty")
)

// Projections name the fields each pipeline reads.
var (
	GameProjection = []string{
		"uuid",
		"section2.humanExplored",
		"decisions.agent1",
		"failedTutorial",
		"createdAt",
		"survey1Modified",
		"survey2Modified",
		"gameMode",
		"endGame",
		"survey1",
		"survey2",
	}
	CoverageProjection = []string{
		"uuid",
		"section2.humanExplored",
	}
)

// Window selects sessions played on Site with From <= createdAt < To.
type Window struct {
	Site string
	From time.Time
	To   time.Time
}

// Filter is either a Window or an explicit ID set.
type Filter struct {
	Window *Window
	IDs    []string
}

// ByWindow builds a time-window filter.
func ByWindow(w Window) Filter {
	return Filter{Window: &w}
}

// ByIDs builds a participant-ID filter. A nil slice is treated as empty.
func ByIDs(ids []string) Filter {
	if ids == nil {
		ids = []string{}
	}
	return Filter{IDs: ids}
}

// Query is a filter plus the fields to return.
type Query struct {
	Filter     Filter
	Projection []string
}

// Source returns participant documents matching a query. Result order is
// whatever the store yields.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]participant.Document, error)
}

// Pipeline renders the query as a $match + $project aggregation.
func Pipeline(q Query) (mongo.Pipeline, error) {
	match, err := matchStage(q.Filter)
	if err != nil {
		return nil, err
	}
	if len(q.Projection) == 0 {
		return nil, ErrEmptyProjection
	}
	project := make(bson.D, 0, len(q.Projection))
	for _, field := range q.Projection {
		project = append(project, bson.E{Key: field, Value: 1})
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$project", Value: project}},
	}, nil
}

func matchStage(f Filter) (bson.D, error) {
	switch {
	case f.Window != nil && f.IDs == nil:
		w := f.Window
		if !w.From.Before(w.To) {
			return nil, fmt.Errorf("window start %s is not before end %s", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
		}
		return bson.D{
			{Key: "playedOn", Value: w.Site},
			{Key: "createdAt", Value: bson.D{
				{Key: "$gte", Value: w.From.UTC()},
				{Key: "$lt", Value: w.To.UTC()},
			}},
		}, nil
	case f.Window == nil && f.IDs != nil:
		return bson.D{
			{Key: "uuid", Value: bson.D{{Key: "$in", Value: f.IDs}}},
		}, nil
	default:
		return nil, ErrInvalidFilter
	}
}
