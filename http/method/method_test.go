package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethod(t *testing.T) {
	for _, m := range List {
		assert.Equal(t, m.String(), Parse(m.String()).String())
	}
}

func TestParseUnknown(t *testing.T) {
	assert.Equal(t, Unknown, Parse("FETCH"))
	assert.Equal(t, Unknown, Parse(""))
}
