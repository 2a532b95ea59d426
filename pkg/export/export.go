// Package export renders plan results for downstream consumption.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"staffplan/core/calendar"
	"staffplan/core/planner"
)

// DocumentVersion is bumped when the document shape changes incompatibly.
const DocumentVersion = 1

// Document wraps a plan result with run provenance for archival.
type Document struct {
	ID          string         `json:"id"`
	Version     int            `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	WindowFrom  string         `json:"window_from"`
	WindowTo    string         `json:"window_to"`
	Algorithm   string         `json:"algorithm"`
	Recreate    bool           `json:"recreate"`
	Result      planner.Result `json:"result"`
}

// NewDocument stamps a result with a fresh ID and the current time.
func NewDocument(res *planner.Result, from, to time.Time, algorithm planner.Algorithm, recreate bool) Document {
	return Document{
		ID:          uuid.NewString(),
		Version:     DocumentVersion,
		GeneratedAt: time.Now().UTC(),
		WindowFrom:  calendar.FormatDate(from),
		WindowTo:    calendar.FormatDate(to),
		Algorithm:   string(algorithm),
		Recreate:    recreate,
		Result:      *res,
	}
}

// WriteJSON writes the plan document to w in indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes the plan's assignments to w, one row per member-week.
func WriteCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"member", "initiative", "week_start", "capacity_pw", "source"}); err != nil {
		return err
	}
	for _, a := range doc.Result.Assignments {
		capacity := ""
		if a.CapacityPW != nil {
			capacity = strconv.FormatFloat(*a.CapacityPW, 'f', -1, 64)
		}
		rec := []string{
			a.MemberName,
			a.InitiativeName,
			calendar.FormatDate(a.WeekStart),
			capacity,
			a.Source,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
