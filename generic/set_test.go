package generic

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert := assert.New(t)
	s := NewSet("48K", "32K")
	assert.Equal(2, s.Count())
	assert.True(s.Contains("48K"))
	assert.False(s.Contains("128K"))
	assert.False(s.Contains("48K", "128K"))

	assert.True(s.Add("128K"))
	assert.False(s.Add("128K"))
	assert.True(s.Contains("48K", "128K"))

	assert.True(s.Remove("32K"))
	assert.False(s.Remove("32K"))

	items := s.ToSlice()
	sort.Strings(items)
	assert.Equal([]string{"128K", "48K"}, items)
}
