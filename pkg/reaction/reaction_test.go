package reaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTally(t *testing.T) {
	tally := NewTally()
	assert.Len(t, tally, 4)
	for _, k := range Kinds {
		v, ok := tally[k]
		assert.True(t, ok, "missing kind %s", k)
		assert.Equal(t, 0, v)
	}
	assert.Equal(t, 0, tally.Total())
}

func TestTallyAdd(t *testing.T) {
	tally := NewTally()
	tally.Add(Peluk, 2)
	tally.Add(Bangga, 1)
	tally.Add(Kind("love"), 10)

	assert.Len(t, tally, 4)
	assert.Equal(t, 2, tally[Peluk])
	assert.Equal(t, 1, tally[Bangga])
	assert.Equal(t, 3, tally.Total())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ikut_sedih")
	assert.NoError(t, err)
	assert.Equal(t, IkutSedih, k)

	_, err = ParseKind("like")
	assert.ErrorContains(t, err, "unknown kind")
}
