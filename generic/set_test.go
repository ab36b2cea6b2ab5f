package generic

import (
	"errors"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[string]()
	assert.False(s.Contains("a"))
	assert.True(s.Add("a"))
	assert.True(s.Contains("a"))
	assert.False(s.Add("a"))

	s2 := NewSet("s2_av.m3u8", "s1_av.m3u8", "s1_av.m3u8")
	assert.True(s2.Contains("s1_av.m3u8", "s2_av.m3u8"))
	assert.False(s2.Contains("s1_av.m3u8", "s3_av.m3u8"))
	assert.False(s2.Add("s1_av.m3u8"))
}

func TestUnique(t *testing.T) {
	assert := assert_.New(t)

	assert.Equal([]int{3, 1, 2}, Unique([]int{3, 1, 3, 2, 1}))
	assert.Equal([]int{}, Unique[int](nil))
}

func TestResult(t *testing.T) {
	assert := assert_.New(t)

	ok := NewResult(12, nil)
	assert.True(ok.IsOk())
	assert.Equal(12, ok.Unwrap())

	bad := Err[int](errors.New("bad"))
	assert.True(bad.IsErr())
	_, err := bad.Parts()
	assert.EqualError(err, "bad")
	assert.Panics(func() { bad.Unwrap() })
	assert.Panics(func() { Unwrap_(errors.New("boom")) })
}
