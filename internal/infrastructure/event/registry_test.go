package event

import (
	"testing"

	"github.com/clinic/backend/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	typed := newRecordingHandler()
	wildcard := newRecordingHandler()

	registry.Register(typed, inventory.EventTypeContainerOpened, inventory.EventTypeContainerOversold)
	registry.Register(typed, inventory.EventTypeContainerOpened)
	registry.Register(wildcard)
	registry.Register(wildcard)

	handlers := registry.GetHandlers(inventory.EventTypeContainerOpened)
	assert.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])

	assert.Len(t, registry.GetHandlers(inventory.EventTypeStockBelowReorderPoint), 1)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := newRecordingHandler()
	second := newRecordingHandler()

	registry.Register(first, inventory.EventTypeContainerOpened)
	registry.Register(second, inventory.EventTypeContainerOpened)
	registry.Register(first)

	registry.Unregister(first)

	handlers := registry.GetHandlers(inventory.EventTypeContainerOpened)
	assert.Len(t, handlers, 1)
	assert.Same(t, second, handlers[0])

	registry.Unregister(second)
	assert.Empty(t, registry.GetHandlers(inventory.EventTypeContainerOpened))
	assert.Empty(t, registry.handlers)
}
