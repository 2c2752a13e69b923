package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DevHack1010/NemHemAI/internal/dataset"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "analysis.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func scoresDataset() *dataset.Dataset {
	ds := dataset.New([]string{"name", "score"}, [][]string{
		{"A", "10"}, {"B", "20"}, {"C", "30"},
	})
	ds.Coerce()
	return ds
}

func TestValidateQuery(t *testing.T) {
	rejected := []string{
		"update t set x = 1",
		"DELETE FROM t",
		"  drop table t",
		"\tDrop Table t",
		"insert into t values (1)",
		"",
	}
	for _, q := range rejected {
		var ve *ValidationError
		if err := ValidateQuery(q); !errors.As(err, &ve) {
			t.Errorf("ValidateQuery(%q) = %v, want ValidationError", q, err)
		}
	}
	allowed := []string{
		"select * from t",
		"SELECT 1",
		"  SeLeCt name from t",
	}
	for _, q := range allowed {
		if err := ValidateQuery(q); err != nil {
			t.Errorf("ValidateQuery(%q) = %v, want nil", q, err)
		}
	}
}

func TestSaveAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	table := TableName("u1", "s1", time.Now())
	if err := s.SaveDataset(ctx, table, scoresDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	res, err := s.Query(ctx, "select name, score from "+table+" order by score")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.RowCount != 3 {
		t.Errorf("RowCount = %d", res.RowCount)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "name" {
		t.Errorf("Columns = %v", res.Columns)
	}
	first := res.Data[0]
	if first[0].Value != "A" {
		t.Errorf("first name = %v", first[0].Value)
	}
	if got, ok := first[1].Value.(float64); !ok || got != 10 {
		t.Errorf("first score = %v", first[1].Value)
	}
}

func TestSaveDatasetReplacesSameName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Unix(1700000000, 0)
	table := TableName("u1", "s1", at)
	if table != TableName("u1", "s1", at.Add(500*time.Millisecond)) {
		t.Fatalf("same-second names differ")
	}
	if err := s.SaveDataset(ctx, table, scoresDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	second := dataset.New([]string{"name", "score"}, [][]string{
		{"X", "40"}, {"Y", "60"},
	})
	second.Coerce()
	if err := s.SaveDataset(ctx, table, second); err != nil {
		t.Fatalf("re-saving same table name: %v", err)
	}
	res, err := s.Query(ctx, "select name from "+table+" order by name")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.RowCount != 2 || res.Data[0][0].Value != "X" {
		t.Errorf("replaced table rows = %d, first = %v", res.RowCount, res.Data[0][0].Value)
	}
}

func TestQueryCapsRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rows := make([][]string, 75)
	for i := range rows {
		rows[i] = []string{"1"}
	}
	ds := dataset.New([]string{"v"}, rows)
	ds.Coerce()
	if err := s.SaveDataset(ctx, "data_cap", ds); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	res, err := s.Query(ctx, "select v from data_cap")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.RowCount != 75 {
		t.Errorf("RowCount = %d, want full count", res.RowCount)
	}
	if len(res.Data) != 50 {
		t.Errorf("len(Data) = %d, want capped at 50", len(res.Data))
	}
}

func TestQueryRejectsWrites(t *testing.T) {
	s := openTestStore(t)
	var ve *ValidationError
	if _, err := s.Query(context.Background(), "drop table uploads"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLatestUploadWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)
	for i, table := range []string{"data_first", "data_second"} {
		if err := s.RecordUpload(ctx, Upload{
			UserID:     "u1",
			SessionID:  "s1",
			Filename:   table + ".csv",
			TableName:  table,
			UploadedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("RecordUpload: %v", err)
		}
	}
	up, err := s.LatestUpload(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("LatestUpload: %v", err)
	}
	if up.TableName != "data_second" {
		t.Errorf("latest table = %q", up.TableName)
	}
}

func TestLatestUploadWinsWithinSameSecond(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	// A whole-second timestamp renders without a fraction and sorts after a
	// fractional one as text; recency must not depend on that ordering.
	base := time.Unix(1700000000, 0).UTC()
	stamps := []time.Time{base, base.Add(500 * time.Millisecond)}
	for i, at := range stamps {
		if err := s.RecordUpload(ctx, Upload{
			UserID:     "u1",
			SessionID:  "s1",
			Filename:   "scores.csv",
			TableName:  []string{"data_first", "data_second"}[i],
			UploadedAt: at,
		}); err != nil {
			t.Fatalf("RecordUpload: %v", err)
		}
	}
	up, err := s.LatestUpload(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("LatestUpload: %v", err)
	}
	if up.TableName != "data_second" {
		t.Errorf("latest table = %q", up.TableName)
	}
}

func TestLatestUploadMissingSession(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LatestUpload(context.Background(), "u1", "nope"); !errors.Is(err, ErrNoUpload) {
		t.Fatalf("expected ErrNoUpload, got %v", err)
	}
}

func TestListTablesExcludesMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveDataset(ctx, "data_u1_s1_1", scoresDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	tables, err := s.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "data_u1_s1_1" {
		t.Errorf("tables = %v", tables)
	}
}

func TestDescribeTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveDataset(ctx, "data_desc", scoresDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	cols, err := s.DescribeTable(ctx, "data_desc")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("cols = %v", cols)
	}
	if cols[0].Name != "name" || cols[0].Type != "TEXT" {
		t.Errorf("first column = %+v", cols[0])
	}
	if cols[1].Name != "score" || cols[1].Type != "REAL" {
		t.Errorf("second column = %+v", cols[1])
	}

	if _, err := s.DescribeTable(ctx, "missing"); !errors.Is(err, ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
}

func TestPreviewRendersRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveDataset(ctx, "data_prev", scoresDataset()); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	out, err := s.Preview(ctx, "select name, score from data_prev order by name")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "name\tscore" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "A\t10") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestTableNameSanitized(t *testing.T) {
	got := TableName("user-1", "sess.2", time.Unix(1700000000, 0))
	if got != "data_user_1_sess_2_1700000000" {
		t.Errorf("TableName = %q", got)
	}
}
