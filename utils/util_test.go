package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	data := []string{"a", "b", "c"}
	m := map[int32]string{1: "a", 2: "b", 3: "c"}

	ok, failed := Find(m, data, nil)
	assert.Equal(t, data, ok)
	assert.Empty(t, failed)

	ok, failed = Find(m, data, []int32{3, 9, 1})
	assert.Equal(t, []string{"c", "a"}, ok)
	assert.Equal(t, []int32{9}, failed)
}
