package dbutil

import (
	"reflect"
	"testing"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		args      []interface{}
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "plain placeholders",
			query:     "SELECT id FROM videos WHERE state = ?",
			args:      []interface{}{"published"},
			wantQuery: "SELECT id FROM videos WHERE state = $1",
			wantArgs:  []interface{}{"published"},
		},
		{
			name:      "no args",
			query:     "SELECT 1",
			args:      nil,
			wantQuery: "SELECT 1",
			wantArgs:  nil,
		},
		{
			name:      "mysql limit rewritten and args swapped",
			query:     "SELECT id FROM videos WHERE state = ? ORDER BY id LIMIT ?,?",
			args:      []interface{}{"published", 10, 50},
			wantQuery: "SELECT id FROM videos WHERE state = $1 ORDER BY id LIMIT $2 OFFSET $3",
			wantArgs:  []interface{}{"published", 50, 10},
		},
		{
			name:      "limit with spacing",
			query:     "SELECT id FROM media_files LIMIT ? , ?",
			args:      []interface{}{0, 25},
			wantQuery: "SELECT id FROM media_files LIMIT $1 OFFSET $2",
			wantArgs:  []interface{}{25, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := Finalize(tt.query, tt.args)
			if query != tt.wantQuery {
				t.Errorf("Finalize() query = %q, want %q", query, tt.wantQuery)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("Finalize() args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
