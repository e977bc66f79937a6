package flatten

import (
	"pmtexport/internal/participant"
)

const (
	// TotalCells is the number of addressable grid cells in the map.
	TotalCells = 54801
	// Intervals is the number of decision rounds given fixed columns.
	Intervals = 7

	exploredPath  = "section2.humanExplored"
	decisionsPath = "decisions.agent1"
	endGamePath   = "endGame"
)

// Recognised surveyResponse names.
const (
	responsePerformance = "performanceRating"
	responseHonesty     = "honestlyMoralityRating"
	responseInfluence   = "influenceText"
)

type round struct {
	decision    string
	timeTaken   string
	collected   string
	performance string
	honesty     string
	influence   string
}

// record is a participant document resolved once into the pieces the
// column rules read from.
type record struct {
	doc      participant.Document
	explored int
	rounds   [Intervals]round
	endGame  [2]string
	survey1  map[string]string
	survey2  map[string]string
}

func newRecord(doc participant.Document) (*record, error) {
	raw, ok := doc.Lookup(exploredPath)
	if !ok {
		return nil, &participant.MissingFieldError{UUID: doc.UUID(), Field: exploredPath}
	}
	n, ok := participant.Len(raw)
	if !ok {
		return nil, &participant.MissingFieldError{UUID: doc.UUID(), Field: exploredPath}
	}

	r := &record{doc: doc, explored: n}
	r.readRounds()
	r.readEndGame()
	r.survey1 = readBlock(doc, "survey1", survey1Fields)
	r.survey2 = readBlock(doc, "survey2", survey2Fields)
	return r, nil
}

// scalar copies a top-level field, "" when absent. Each field is
// independent of its siblings.
func (r *record) scalar(key string) string {
	v, ok := r.doc.Lookup(key)
	if !ok {
		return ""
	}
	return FormatCell(v)
}

// readRounds fills rounds by list position, not by any round number inside
// the entry. Entries past Intervals are dropped.
func (r *record) readRounds() {
	raw, ok := r.doc.Lookup(decisionsPath)
	if !ok {
		return
	}
	entries, ok := participant.AsList(raw)
	if !ok {
		return
	}
	for j, entry := range entries {
		if j >= Intervals {
			break
		}
		step, ok := participant.AsMap(entry)
		if !ok {
			continue
		}
		rd := round{
			decision:  fieldCell(step, "decision"),
			timeTaken: fieldCell(step, "timeTaken"),
			collected: fieldCell(step, "humanGoldTargetsCollected"),
		}
		responses, _ := participant.AsList(step["surveyResponse"])
		for _, item := range responses {
			resp, ok := participant.AsMap(item)
			if !ok {
				continue
			}
			name, _ := resp["name"].(string)
			switch name {
			case responsePerformance:
				rd.performance = FormatCell(resp["value"])
			case responseHonesty:
				rd.honesty = FormatCell(resp["value"])
			case responseInfluence:
				rd.influence = FormatCell(resp["value"])
			}
		}
		r.rounds[j] = rd
	}
}

// readEndGame keeps the one-entry asymmetry: rounds played can be set while
// last-two-rounds stays empty.
func (r *record) readEndGame() {
	raw, ok := r.doc.Lookup(endGamePath)
	if !ok {
		return
	}
	entries, ok := participant.AsList(raw)
	if !ok {
		return
	}
	for i := 0; i < len(r.endGame) && i < len(entries); i++ {
		if entry, ok := participant.AsMap(entries[i]); ok {
			r.endGame[i] = fieldCell(entry, "value")
		}
	}
}

type surveyField struct {
	column string
	key    string
}

// readBlock copies a survey sub-document all-or-nothing: nil unless the
// sub-document is present, non-empty and holds every listed key.
func readBlock(doc participant.Document, path string, fields []surveyField) map[string]string {
	raw, ok := doc.Lookup(path)
	if !ok {
		return nil
	}
	sub, ok := participant.AsMap(raw)
	if !ok || len(sub) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := sub[f.key]
		if !ok {
			return nil
		}
		out[f.key] = FormatCell(v)
	}
	return out
}

func fieldCell(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return FormatCell(v)
}
