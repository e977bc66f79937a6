package flatten

import (
	"fmt"
	"strconv"
)

// Column is one output column: its header name and how a cell is drawn
// from a resolved participant record.
type Column struct {
	Name  string
	value func(r *record) string
}

// Schema is an ordered, fixed column set.
type Schema struct {
	Name    string
	Columns []Column
}

// Names returns a fresh copy of the header.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s *Schema) row(r *record) []string {
	row := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		row[i] = c.value(r)
	}
	return row
}

// Coverage column names shared by both schemas.
const (
	ColumnExplored = "Number of grid cells explored"
	ColumnCoverage = "Percentage of explorable area covered"
	ColumnTotal    = "Total number of grid cells"
)

var survey1Fields = []surveyField{
	{"survey1Reliable", "reliable"},
	{"survey1Compentent", "competent"},
	{"survey1Ethical", "ethical"},
	{"survey1Transparent", "transparent"},
	{"survey1Benevolent", "benevolent"},
	{"survey1Predictable", "predictable"},
	{"survey1Skilled", "skilled"},
	{"survey1Principled", "principled"},
	{"survey1Genuine", "genuine"},
	{"survey1Kind", "kind"},
	{"survey1SelectThree", "selectThree"},
	{"survey1Dependable", "dependable"},
	{"survey1Capable", "capable"},
	{"survey1Moral", "moral"},
	{"survey1Sincere", "sincere"},
	{"survey1Considerate", "considerate"},
	{"survey1Consistent", "consistent"},
	{"survey1Meticulous", "meticulous"},
	{"survey1HasIntegrity", "hasintegrity"},
	{"survey1Candid", "candid"},
	{"survey1Goodwill", "goodwill"},
}

var survey2Fields = []surveyField{
	{"survey2Gender", "gender"},
	{"survey2SelfDescribeText", "selfDescribeText"},
	{"survey2Age", "age"},
	{"survey2Education", "education"},
	{"survey2TechEd", "techEd"},
	{"survey2RoboticsExp", "roboticsExp"},
}

var (
	gameSchema     = buildGameSchema()
	coverageSchema = buildCoverageSchema()
)

// GameSchema is the full per-participant game table.
func GameSchema() *Schema { return gameSchema }

// CoverageSchema is the exploration coverage table.
func CoverageSchema() *Schema { return coverageSchema }

func scalarColumn(key string) Column {
	return Column{Name: key, value: func(r *record) string { return r.scalar(key) }}
}

func coverageColumns() []Column {
	return []Column{
		{Name: ColumnExplored, value: func(r *record) string {
			return strconv.Itoa(r.explored)
		}},
		{Name: ColumnCoverage, value: func(r *record) string {
			return strconv.FormatFloat(float64(r.explored)/TotalCells, 'f', -1, 64)
		}},
		{Name: ColumnTotal, value: func(*record) string {
			return strconv.Itoa(TotalCells)
		}},
	}
}

func roundColumns(j int) []Column {
	return []Column{
		{Name: fmt.Sprintf("decisions%d", j), value: func(r *record) string { return r.rounds[j].decision }},
		{Name: fmt.Sprintf("timeTaken%d", j), value: func(r *record) string { return r.rounds[j].timeTaken }},
		{Name: fmt.Sprintf("humanGoldTargetsCollected%d", j), value: func(r *record) string { return r.rounds[j].collected }},
		{Name: fmt.Sprintf("performanceRating%d", j), value: func(r *record) string { return r.rounds[j].performance }},
		{Name: fmt.Sprintf("honestlyMoralityRating%d", j), value: func(r *record) string { return r.rounds[j].honesty }},
		{Name: fmt.Sprintf("influenceText%d", j), value: func(r *record) string { return r.rounds[j].influence }},
	}
}

// blockColumns reads from an all-or-nothing block; a nil block yields "".
func blockColumns(fields []surveyField, block func(r *record) map[string]string) []Column {
	cols := make([]Column, len(fields))
	for i, f := range fields {
		key := f.key
		cols[i] = Column{Name: f.column, value: func(r *record) string {
			return block(r)[key]
		}}
	}
	return cols
}

func buildGameSchema() *Schema {
	cols := []Column{
		scalarColumn("uuid"),
		scalarColumn("createdAt"),
		scalarColumn("gameMode"),
		scalarColumn("failedTutorial"),
		scalarColumn("survey1Modified"),
		scalarColumn("survey2Modified"),
	}
	cols = append(cols, coverageColumns()...)
	for j := 0; j < Intervals; j++ {
		cols = append(cols, roundColumns(j)...)
	}
	cols = append(cols,
		Column{Name: "endGameRoundsPlayed", value: func(r *record) string { return r.endGame[0] }},
		Column{Name: "endGameLastTwoRounds", value: func(r *record) string { return r.endGame[1] }},
	)
	cols = append(cols, blockColumns(survey1Fields, func(r *record) map[string]string { return r.survey1 })...)
	cols = append(cols, blockColumns(survey2Fields, func(r *record) map[string]string { return r.survey2 })...)
	return &Schema{Name: "game", Columns: cols}
}

func buildCoverageSchema() *Schema {
	cols := []Column{scalarColumn("uuid")}
	cols = append(cols, coverageColumns()...)
	return &Schema{Name: "coverage", Columns: cols}
}
