package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
	}{
		{"42", 42},
		{[]byte(" 42 "), 42},
		{int32(7), 7},
		{uint8(1), 1},
		{3.9, 3},
		{"12.00", 12},
		{json.Number("5"), 5},
		{true, 1},
		{"abc", 0},
		{"NaN", 0},
		{nil, 0},
		{time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), 1725148800},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToInt64(tt.in), "%#v", tt.in)
	}
	assert.Equal(t, 12, ToInt("12"))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "HIS-101", ToString([]byte("HIS-101")))
	assert.Equal(t, "5", ToString(int64(5)))
	assert.Equal(t, "5", ToString(json.Number("5")))
}

func TestToUnix(t *testing.T) {
	assert.Equal(t, int64(0), ToUnix(time.Time{}))
	assert.Equal(t, int64(86400), ToUnix(time.Unix(86400, 0)))
}

func TestToBool(t *testing.T) {
	for _, v := range []any{"true", " Y ", "1", []byte("yes"), int64(1), uint8(1), true} {
		assert.True(t, ToBool(v), "%#v", v)
	}
	for _, v := range []any{"0", "false", "N", "", int64(0), nil, false} {
		assert.False(t, ToBool(v), "%#v", v)
	}
}
