// Package flatten maps participant documents onto fixed-width rows.
//
// Scalar fields are looked up independently and fall back to "" on their
// own. The survey1 and survey2 sub-documents are all-or-nothing: one missing
// key blanks the whole block, so a populated survey column implies the
// survey was completed. Decision rounds are keyed by list position. The
// exploration sub-document is required; a document without it fails the
// run unless Options.SkipIncomplete is set.
package flatten

import (
	"errors"
	"fmt"

	"pmtexport/internal/participant"
	"pmtexport/internal/tabular"
)

// Options tunes a flattening pass.
type Options struct {
	// SkipIncomplete drops documents without the exploration sub-document
	// instead of failing.
	SkipIncomplete bool
}

// Result is the table plus the identifiers of any skipped documents.
type Result struct {
	Table   *tabular.Table
	Skipped []string
}

// Flatten produces one row per document, in input order.
func Flatten(schema *Schema, docs []participant.Document) (*tabular.Table, error) {
	res, err := FlattenWith(schema, docs, Options{})
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

// FlattenWith is Flatten with options.
func FlattenWith(schema *Schema, docs []participant.Document, opts Options) (Result, error) {
	table := tabular.New(schema.Names())
	var skipped []string
	for i, doc := range docs {
		rec, err := newRecord(doc)
		if err != nil {
			var missing *participant.MissingFieldError
			if opts.SkipIncomplete && errors.As(err, &missing) {
				skipped = append(skipped, missing.UUID)
				continue
			}
			return Result{}, fmt.Errorf("document %d: %w", i, err)
		}
		if err := table.Append(schema.row(rec)); err != nil {
			return Result{}, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return Result{Table: table, Skipped: skipped}, nil
}
