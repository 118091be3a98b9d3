// Package hooking lets observers attach to the points where a simulated
// component does something worth recording.
package hooking

import "sync"

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface. Hooks may be attached while other goroutines are
// invoking them.
type HookableBase struct {
	hookLock sync.RWMutex
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	h.hookLock.RLock()
	defer h.hookLock.RUnlock()

	return len(h.hookList)
}

// Hooks returns a copy of the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	h.hookLock.RLock()
	defer h.hookLock.RUnlock()

	return append([]Hook(nil), h.hookList...)
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hookLock.Lock()
	defer h.hookLock.Unlock()

	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); isFunc {
		return
	}

	for _, existing := range h.hookList {
		if existing == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks in registration order. A hook
// must not register another hook on the same object.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.hookLock.RLock()
	hooks := h.hookList
	h.hookLock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
