package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct{ n int }

func (c *counter) Release() { c.n++ }

func TestDependencies(t *testing.T) {
	d := NewDependencies()
	a, b, c := &counter{}, &counter{}, &counter{}

	d.Put(StreamNamespace, "a", a)
	d.Put(StreamNamespace, "b", b)
	d.Put("other", "a", c)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []string{"a", "b"}, d.Views(StreamNamespace))

	replacement := &counter{}
	d.Put(StreamNamespace, "a", replacement)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []string{"a", "b"}, d.Views(StreamNamespace))

	d.Release()
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
	assert.Equal(t, 1, c.n)
	assert.Equal(t, 1, replacement.n)
	assert.Zero(t, d.Len())

	d.Release()
	assert.Equal(t, 1, b.n)
}

func TestDependenciesFoldCase(t *testing.T) {
	d := NewDependencies()
	first, second := &counter{}, &counter{}

	d.Put(StreamNamespace, "Sales", first)
	d.Put(StreamNamespace, "sales", second)
	assert.Equal(t, 1, first.n)
	assert.Equal(t, 0, second.n)
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, []string{"sales"}, d.Views(StreamNamespace))

	d.Release()
	assert.Equal(t, 1, first.n)
	assert.Equal(t, 1, second.n)
}
