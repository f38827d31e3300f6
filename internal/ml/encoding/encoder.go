// Package encoding turns stored messages into the 0/1 feature frames the
// per-label classifiers are trained and scored on.
package encoding

import (
	"fmt"
	"sort"
	"strings"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
)

// Column prefixes, one per encoded field.
const (
	PrefixLabels  = "labels_"
	PrefixCc      = "cc_"
	PrefixFrom    = "from_"
	PrefixThreads = "threads_"
	PrefixTo      = "to_"

	// PrefixTarget marks user created labels, the classification targets.
	PrefixTarget = PrefixLabels + "Label_"
)

var prefixes = []string{PrefixLabels, PrefixCc, PrefixFrom, PrefixThreads, PrefixTo}

// Encode one-hot encodes every field of records.
//
// With an empty schema every value seen in the batch becomes a column. With a
// schema the frame has exactly the schema's columns: schema columns the batch
// does not produce are all zero and batch columns outside the schema are
// dropped. Columns are sorted by name either way; the email id column is
// never part of Columns.
func Encode(records []*emaildomain.Message, schema []string) *mldomain.Frame {
	derived := derive(records)

	var columns []string
	if len(schema) == 0 {
		columns = derived.columns()
	} else {
		columns = normalizeSchema(schema)
	}

	frame := &mldomain.Frame{
		Columns:  columns,
		EmailIDs: make([]string, len(records)),
		Values:   make([][]float64, len(records)),
	}
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	for r, rec := range records {
		frame.EmailIDs[r] = rec.ID
		row := make([]float64, len(columns))
		for _, c := range derived.hits(rec) {
			if i, ok := pos[c]; ok {
				row[i] = 1
			}
		}
		frame.Values[r] = row
	}
	return frame
}

// EncodeFeatures encodes the model inputs. Without a schema these are all
// derived columns except the label columns; with one it is exactly the schema.
func EncodeFeatures(records []*emaildomain.Message, schema []string) (*mldomain.Frame, error) {
	if len(schema) > 0 {
		return Encode(records, schema), nil
	}
	frame := Encode(records, nil)
	x, err := frame.Select(FeatureColumns(frame.Columns))
	if err != nil {
		return nil, fmt.Errorf("failed to select feature columns: %w", err)
	}
	return x, nil
}

// EncodeTraining encodes a training batch and splits it into the features X
// and the user label targets Y.
func EncodeTraining(records []*emaildomain.Message) (x, y *mldomain.Frame, err error) {
	frame := Encode(records, nil)
	if x, err = frame.Select(FeatureColumns(frame.Columns)); err != nil {
		return nil, nil, fmt.Errorf("failed to select feature columns: %w", err)
	}
	if y, err = frame.Select(TargetColumns(frame.Columns)); err != nil {
		return nil, nil, fmt.Errorf("failed to select target columns: %w", err)
	}
	return x, y, nil
}

// FeatureColumns keeps every column that is not a label column.
func FeatureColumns(columns []string) []string {
	out := []string{}
	for _, c := range columns {
		if !strings.HasPrefix(c, PrefixLabels) && c != mldomain.EmailIDColumn {
			out = append(out, c)
		}
	}
	return out
}

// TargetColumns keeps the user label columns.
func TargetColumns(columns []string) []string {
	out := []string{}
	for _, c := range columns {
		if strings.HasPrefix(c, PrefixTarget) {
			out = append(out, c)
		}
	}
	return out
}

// LabelOf maps a target column to the label id it predicts.
func LabelOf(column string) string {
	return strings.TrimPrefix(column, PrefixLabels)
}

// normalizeSchema sorts and dedupes a stored schema and drops the id column.
func normalizeSchema(schema []string) []string {
	seen := make(map[string]struct{}, len(schema))
	out := make([]string, 0, len(schema))
	for _, c := range schema {
		if c == mldomain.EmailIDColumn {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
