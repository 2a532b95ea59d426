package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staffplan/core/model"
	"staffplan/core/planner"
)

func sampleDocument(t *testing.T) Document {
	t.Helper()
	week := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	res := &planner.Result{
		Assignments: []model.Assignment{
			{MemberName: "alice", InitiativeName: "rollout", WeekStart: week, CapacityPW: model.Ptr(0.8), Source: "ilp"},
			{MemberName: "bob", InitiativeName: "rollout", WeekStart: week, Source: "greedy"},
		},
		Summary: planner.Summary{InitiativesConsidered: 1, InitiativesPlanned: 1, TotalPersonWeeks: 0.8},
	}
	return NewDocument(res, week, week.AddDate(0, 0, 14), planner.AlgorithmILP, false)
}

func TestNewDocumentStampsProvenance(t *testing.T) {
	doc := sampleDocument(t)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, DocumentVersion, doc.Version)
	require.Equal(t, "2026-01-05", doc.WindowFrom)
	require.Equal(t, "2026-01-19", doc.WindowTo)
	require.Equal(t, "ilp", doc.Algorithm)
	require.False(t, doc.GeneratedAt.IsZero())
}

func TestWriteJSONRoundtrip(t *testing.T) {
	doc := sampleDocument(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))

	var decoded Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, doc.ID, decoded.ID)
	require.Len(t, decoded.Result.Assignments, 2)
	require.Equal(t, 0.8, *decoded.Result.Assignments[0].CapacityPW)
}

func TestWriteCSV(t *testing.T) {
	doc := sampleDocument(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, doc))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "member,initiative,week_start,capacity_pw,source", lines[0])
	require.Equal(t, "alice,rollout,2026-01-05,0.8,ilp", lines[1])
	require.Equal(t, "bob,rollout,2026-01-05,,greedy", lines[2])
}
