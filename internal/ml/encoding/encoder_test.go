package encoding

import (
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func strPtr(s string) *string { return &s }

func record(id, thread string, from *string, to, cc, labels []string) *emaildomain.Message {
	return &emaildomain.Message{ID: id, ThreadID: thread, From: from, To: to, Cc: cc, Labels: labels}
}

func value(t *testing.T, f *mldomain.Frame, row int, column string) float64 {
	t.Helper()
	i := f.Index(column)
	if i < 0 {
		t.Fatalf("missing column %q in %v", column, f.Columns)
	}
	return f.Values[row][i]
}

func TestEncodeDerivesSortedColumns(t *testing.T) {
	records := []*emaildomain.Message{
		record("e1", "t1", strPtr("alice@a.com"), []string{"me@x.org"}, []string{}, []string{"INBOX", "Label_1"}),
		record("e2", "t2", nil, []string{"me@x.org", "you@y.org"}, []string{"cc@a.com"}, []string{"Label_2"}),
	}

	frame := Encode(records, nil)

	want := []string{
		"cc_@a.com", "cc_cc@a.com",
		"from_@a.com", "from_alice@a.com",
		"labels_INBOX", "labels_Label_1", "labels_Label_2",
		"threads_t1", "threads_t2",
		"to_@x.org", "to_@y.org", "to_me@x.org", "to_you@y.org",
	}
	if !reflect.DeepEqual(frame.Columns, want) {
		t.Fatalf("Columns = %v\nwant %v", frame.Columns, want)
	}
	if !reflect.DeepEqual(frame.EmailIDs, []string{"e1", "e2"}) {
		t.Errorf("EmailIDs = %v", frame.EmailIDs)
	}
	if h := frame.Header(); h[len(h)-1] != mldomain.EmailIDColumn {
		t.Errorf("email id should trail the header: %v", h)
	}

	checks := []struct {
		row    int
		column string
		want   float64
	}{
		{0, "from_alice@a.com", 1},
		{0, "from_@a.com", 1},
		{1, "from_@a.com", 0},
		{0, "labels_INBOX", 1},
		{1, "labels_INBOX", 0},
		{0, "threads_t1", 1},
		{0, "threads_t2", 0},
		{1, "to_@y.org", 1},
		{0, "to_@y.org", 0},
		{0, "to_@x.org", 1},
		{1, "cc_@a.com", 1},
		{0, "cc_@a.com", 0},
	}
	for _, c := range checks {
		if got := value(t, frame, c.row, c.column); got != c.want {
			t.Errorf("row %d %s = %v, want %v", c.row, c.column, got, c.want)
		}
	}
}

func TestEncodeAddressColumnsMatchSubstrings(t *testing.T) {
	records := []*emaildomain.Message{
		record("e1", "t1", strPtr("b@y.com"), []string{"b@y.com"}, nil, nil),
		record("e2", "t2", strPtr("ab@y.com.au"), []string{"ab@y.com.au"}, nil, nil),
	}
	frame := Encode(records, nil)

	// "b@y.com" and "@y.com" are substrings of "ab@y.com.au".
	for _, col := range []string{"from_b@y.com", "from_@y.com", "to_b@y.com", "to_@y.com", "from_@y.com.au"} {
		if got := value(t, frame, 1, col); got != 1 {
			t.Errorf("row 1 %s = %v, want 1", col, got)
		}
	}
	if got := value(t, frame, 0, "from_ab@y.com.au"); got != 0 {
		t.Errorf("longer address must not match a shorter one")
	}
}

func TestEncodeWithSchemaUsesExactlySchema(t *testing.T) {
	records := []*emaildomain.Message{
		record("e1", "t9", strPtr("new@sender.com"), []string{"me@x.org"}, nil, []string{"INBOX"}),
	}
	schema := []string{"to_me@x.org", "from_old@sender.com", "threads_t1", mldomain.EmailIDColumn, "from_@sender.com"}

	frame := Encode(records, schema)

	want := []string{"from_@sender.com", "from_old@sender.com", "threads_t1", "to_me@x.org"}
	if !reflect.DeepEqual(frame.Columns, want) {
		t.Fatalf("Columns = %v, want %v", frame.Columns, want)
	}
	if !reflect.DeepEqual(frame.Values[0], []float64{1, 0, 0, 1}) {
		t.Errorf("Values = %v", frame.Values[0])
	}
}

func TestEncodeSchemaColumnOutsideBatchIsZero(t *testing.T) {
	// "b@y.com" is a substring of the row's address, but the batch never
	// produces that column, so it is added as zeros.
	records := []*emaildomain.Message{record("e1", "t1", strPtr("ab@y.com"), nil, nil, nil)}
	frame := Encode(records, []string{"from_b@y.com", "from_ab@y.com"})
	if got := value(t, frame, 0, "from_b@y.com"); got != 0 {
		t.Errorf("from_b@y.com = %v, want 0", got)
	}
	if got := value(t, frame, 0, "from_ab@y.com"); got != 1 {
		t.Errorf("from_ab@y.com = %v, want 1", got)
	}
}

func TestEncodeTrainingSplit(t *testing.T) {
	records := []*emaildomain.Message{
		record("e1", "t1", strPtr("a@b.com"), nil, nil, []string{"INBOX", "Label_7"}),
		record("e2", "t2", strPtr("c@d.com"), nil, nil, []string{"UNREAD"}),
	}
	x, y, err := EncodeTraining(records)
	if err != nil {
		t.Fatalf("EncodeTraining failed: %v", err)
	}

	for _, c := range x.Columns {
		if strings.HasPrefix(c, PrefixLabels) {
			t.Errorf("label column %q leaked into features", c)
		}
	}
	if !reflect.DeepEqual(y.Columns, []string{"labels_Label_7"}) {
		t.Errorf("targets = %v", y.Columns)
	}
	col, _ := y.Column("labels_Label_7")
	if !reflect.DeepEqual(col, []float64{1, 0}) {
		t.Errorf("target values = %v", col)
	}
	if LabelOf("labels_Label_7") != "Label_7" {
		t.Errorf("LabelOf = %q", LabelOf("labels_Label_7"))
	}

	features, err := EncodeFeatures(records, nil)
	if err != nil {
		t.Fatalf("EncodeFeatures failed: %v", err)
	}
	if !reflect.DeepEqual(features.Columns, x.Columns) {
		t.Errorf("EncodeFeatures = %v, want %v", features.Columns, x.Columns)
	}
}

func TestEncodeEmptyBatch(t *testing.T) {
	frame := Encode(nil, nil)
	if frame.NumRows() != 0 || len(frame.Columns) != 0 {
		t.Errorf("unexpected frame %+v", frame)
	}
	frame = Encode(nil, []string{"to_a@b.c"})
	if frame.NumRows() != 0 || len(frame.Columns) != 1 {
		t.Errorf("schema columns should survive an empty batch: %+v", frame)
	}
}

func TestEncodeTrainingWithoutUserLabels(t *testing.T) {
	tests := []struct {
		name    string
		records []*emaildomain.Message
	}{
		{"empty batch", nil},
		{"system labels only", []*emaildomain.Message{
			record("e1", "t1", strPtr("a@b.com"), nil, nil, []string{"INBOX"}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, err := EncodeTraining(tt.records)
			if err != nil {
				t.Fatalf("EncodeTraining failed: %v", err)
			}
			if len(y.Columns) != 0 {
				t.Errorf("targets = %v, want none", y.Columns)
			}
			if x.NumRows() != len(tt.records) || y.NumRows() != len(tt.records) {
				t.Errorf("rows x=%d y=%d, want %d", x.NumRows(), y.NumRows(), len(tt.records))
			}
		})
	}
}

var (
	addressPool = []string{"a@x.com", "ba@x.com", "a@x.com.au", "c@y.org", "odd@two@at.net", "z@y.org"}
	labelPool   = []string{"INBOX", "SPAM", "Label_1", "Label_2", "Label_3"}
)

// randomRecords builds a batch from a seed so gopter can shrink the seed.
func randomRecords(seed int64, n int) []*emaildomain.Message {
	rng := rand.New(rand.NewSource(seed))
	pick := func(pool []string) []string {
		out := []string{}
		for _, v := range pool {
			if rng.Intn(3) == 0 {
				out = append(out, v)
			}
		}
		return out
	}
	records := make([]*emaildomain.Message, n)
	for i := range records {
		var from *string
		if rng.Intn(4) > 0 {
			from = strPtr(addressPool[rng.Intn(len(addressPool))])
		}
		records[i] = record(
			"e"+string(rune('a'+i)),
			"t"+string(rune('0'+rng.Intn(4))),
			from, pick(addressPool), pick(addressPool), pick(labelPool),
		)
	}
	return records
}

// bruteForce evaluates one derived column on one record the slow way.
func bruteForce(rec *emaildomain.Message, column string) float64 {
	anyContains := func(addrs []string, e string) bool {
		for _, a := range addrs {
			if strings.Contains(a, e) {
				return true
			}
		}
		return false
	}
	hit := false
	switch {
	case strings.HasPrefix(column, PrefixLabels):
		hit = rec.HasLabel(strings.TrimPrefix(column, PrefixLabels))
	case strings.HasPrefix(column, PrefixCc):
		hit = anyContains(rec.Cc, strings.TrimPrefix(column, PrefixCc))
	case strings.HasPrefix(column, PrefixFrom):
		hit = rec.From != nil && strings.Contains(*rec.From, strings.TrimPrefix(column, PrefixFrom))
	case strings.HasPrefix(column, PrefixThreads):
		hit = rec.ThreadID == strings.TrimPrefix(column, PrefixThreads)
	case strings.HasPrefix(column, PrefixTo):
		hit = anyContains(rec.To, strings.TrimPrefix(column, PrefixTo))
	}
	if hit {
		return 1
	}
	return 0
}

func TestProperty_EncoderMatchesBruteForce(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("indexed_matches_equal_scan", prop.ForAll(
		func(seed int64, n int) bool {
			records := randomRecords(seed, n)
			frame := Encode(records, nil)
			for r, rec := range records {
				for i, c := range frame.Columns {
					if frame.Values[r][i] != bruteForce(rec, c) {
						t.Logf("row %d column %s", r, c)
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}

// Training schema -> stored -> loaded in any order -> encoding a new batch
// always yields exactly the stored columns.
func TestProperty_SchemaRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("columns_equal_loaded_schema", prop.ForAll(
		func(trainSeed, newSeed int64, n, m int) bool {
			x, _, err := EncodeTraining(randomRecords(trainSeed, n))
			if err != nil {
				return false
			}
			stored := append([]string(nil), x.Columns...)
			rand.New(rand.NewSource(newSeed)).Shuffle(len(stored), func(i, j int) {
				stored[i], stored[j] = stored[j], stored[i]
			})

			if len(stored) == 0 {
				return true
			}
			frame, err := EncodeFeatures(randomRecords(newSeed, m), stored)
			if err != nil {
				return false
			}

			want := append([]string(nil), stored...)
			sort.Strings(want)
			if !reflect.DeepEqual(frame.Columns, want) {
				return false
			}
			for _, row := range frame.Values {
				if len(row) != len(want) {
					return false
				}
			}
			_, err = frame.Matrix(want)
			return err == nil
		},
		gen.Int64(),
		gen.Int64(),
		gen.IntRange(1, 8),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
