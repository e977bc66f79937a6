package flatten

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pmtexport/internal/participant"
)

// TimeLayout renders BSON datetimes to the second. A non-zero fraction is
// appended as six-digit microseconds ("2023-04-26 14:03:07.250000"), so the
// cell reads the same as a Python datetime printed with str().
const TimeLayout = "2006-01-02 15:04:05"

// listSeparator joins array values (e.g. survey1.selectThree) into one cell.
const listSeparator = ";"

// FormatCell renders a decoded BSON value as a CSV cell. Null is the empty
// sentinel, same as an absent key.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case primitive.DateTime:
		return formatTime(x.Time())
	case time.Time:
		return formatTime(x)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		return x.String()
	case primitive.Null, primitive.Undefined:
		return ""
	}
	if list, ok := participant.AsList(v); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = FormatCell(item)
		}
		return strings.Join(parts, listSeparator)
	}
	return fmt.Sprint(v)
}

func formatTime(t time.Time) string {
	t = t.UTC()
	out := t.Format(TimeLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	return out
}
