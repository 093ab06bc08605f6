package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	typed := newTestHandler("typed")
	other := newTestHandler("other")
	wildcard := newTestHandler("wildcard")

	r.Register(typed, "A", "B")
	r.Register(typed, "A")
	r.Register(other, "B")
	r.Register(wildcard)

	t.Run("typed handlers come before wildcard ones", func(t *testing.T) {
		handlers := r.GetHandlers("A")
		assert.Len(t, handlers, 2)
		assert.Same(t, typed, handlers[0])
		assert.Same(t, wildcard, handlers[1])
	})

	t.Run("unknown types only reach wildcards", func(t *testing.T) {
		assert.Len(t, r.GetHandlers("Z"), 1)
	})

	t.Run("all handlers are distinct", func(t *testing.T) {
		assert.Len(t, r.GetAllHandlers(), 3)
	})

	t.Run("unregister removes from every type", func(t *testing.T) {
		r.Unregister(typed)
		assert.Len(t, r.GetHandlers("A"), 1)
		b := r.GetHandlers("B")
		assert.Len(t, b, 2)
		assert.Same(t, other, b[0])
		_, stillKeyed := r.handlers["A"]
		assert.False(t, stillKeyed)
	})
}
