package dao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_Value(t *testing.T) {
	t.Parallel()

	_, err := JSON(nil).Value()
	assert.Error(t, err, "NOT NULL 列不允许写空文档")

	v, err := JSON(`{"k":1}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, v)
}

func TestJSON_Scan(t *testing.T) {
	t.Parallel()

	var j JSON
	require.NoError(t, j.Scan([]byte(`[1,2]`)))
	assert.Equal(t, JSON(`[1,2]`), j)

	require.NoError(t, j.Scan(`{"k":1}`))
	assert.Equal(t, JSON(`{"k":1}`), j)

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))
}
