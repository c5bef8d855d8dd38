package vm

import "github.com/kristofer/loxvm/internal/object"

// captureUpvalue returns the open upvalue for stack slot, reusing one
// already open for that exact slot so that two closures capturing the same
// local share mutations (spec.md 4.4). The open list is kept sorted by
// descending slot so the scan can stop as soon as it passes the target.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot > slot {
		prev = uv
		uv = uv.OpenNext
	}
	if uv != nil && uv.Slot == slot {
		return uv
	}

	created := vm.heap.NewUpvalue(&vm.stack[slot], slot)
	created.OpenNext = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.OpenNext = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stack index from,
// copying the value out of the stack into the upvalue's own storage so it
// survives the frame returning (spec.md 4.4).
func (vm *VM) closeUpvalues(from int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= from {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.OpenNext
		uv.OpenNext = nil
	}
}
