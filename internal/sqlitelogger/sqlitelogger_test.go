package sqlitelogger

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrintQuery(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	for _, tc := range []struct {
		name   string
		query  string
		args   []interface{}
		output string
	}{
		{"NoArgs", "select 1", nil, "select 1"},
		{"Positional", "select * from videos where id = ? and title = ?", []interface{}{int64(4), "cats"}, "select * from videos where id = 4 and title = 'cats'"},
		{"Numbered", "where a = ?2 and b = ?1", []interface{}{"x", int64(9)}, "where a = 9 and b = 'x'"},
		{"Dollar", "where a = $1", []interface{}{true}, "where a = true"},
		{"Null", "where a is ?", []interface{}{nil}, "where a is NULL"},
		{"Time", "where t < ?", []interface{}{ts}, "where t < '2024-05-06T07:08:09Z'"},
		{"Whitespace", "select\n  1\n\tfrom  x", nil, "select 1 from x"},
		{"MissingArg", "where a = ?3", []interface{}{int64(1)}, "where a = ?3"},
		{"Binary", "where a = ?", []interface{}{[]byte{0x00, 0x01}}, "where a = [2 bytes of binary data ('\\x00')]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			var args []driver.NamedValue
			for i, v := range tc.args {
				args = append(args, driver.NamedValue{Ordinal: i + 1, Value: v})
			}

			a.Equal(tc.output, PrintQuery(tc.query, args))
		})
	}
}
