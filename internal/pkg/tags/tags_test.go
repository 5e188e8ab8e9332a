package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_OrderIndependent(t *testing.T) {
	a := New("job:build", "branch:main", "env:prod")
	b := New("env:prod", "job:build", "branch:main", "job:build")

	assert.True(t, a.Equal(b), "наборы с разным порядком должны быть равны")
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, 3, b.Len(), "дубликаты должны удаляться")
}

func TestNew_Normalization(t *testing.T) {
	s := New("  job:build ", "", "   ", "a,b:c")

	assert.Equal(t, []string{"a_b:c", "job:build"}, s.Strings())
	assert.True(t, s.Contains("job:build"))
	assert.False(t, s.Contains("job:deploy"))
}

func TestNew_UnicodeNFC(t *testing.T) {
	// "é" в форме NFD (e + combining acute) и NFC должны совпадать
	nfd := New("user:e\u0301")
	nfc := New("user:\u00e9")

	assert.True(t, nfd.Equal(nfc))
}

func TestFromMap(t *testing.T) {
	s := FromMap(map[string][]string{
		"job":    {"build"},
		"branch": {"main", "dev"},
		"flag":   nil,
		"":       {"ignored"},
		"empty":  {" "},
	})

	assert.Equal(t, []string{"branch:dev", "branch:main", "empty", "flag", "job:build"}, s.Strings())
}

func TestEmptySets(t *testing.T) {
	var zero Set
	assert.True(t, zero.Equal(New()))
	assert.True(t, zero.Equal(FromMap(nil)))
	assert.Nil(t, zero.Strings())
	assert.Equal(t, "", zero.Key())
}

func TestMergeAndWith(t *testing.T) {
	base := New("env:prod")
	merged := base.Merge(New("job:build", "env:prod"))

	assert.Equal(t, []string{"env:prod", "job:build"}, merged.Strings())
	assert.Equal(t, []string{"env:prod", "result:SUCCESS"}, base.With("result:SUCCESS").Strings())
	assert.Equal(t, []string{"env:prod"}, base.Strings(), "исходный набор не должен меняться")
	assert.Equal(t, base, base.Merge(Set{}))
	assert.Equal(t, base, Set{}.Merge(base))
}

func TestSet_Comparable(t *testing.T) {
	m := map[Set]int{New("b:2", "a:1"): 1}
	m[New("a:1", "b:2")]++

	assert.Len(t, m, 1, "равные наборы дают один ключ map")
	assert.Equal(t, 2, m[New("a:1", "b:2")])
}
