package toolchanger

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/toolchanger/domain/tool"
)

// Registry maps tool numbers to tools. Numbers are kept in ascending order
// with an index-aligned list of names.
type Registry struct {
	tools   map[int]*tool.Tool
	numbers []int
	names   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[int]*tool.Tool),
	}
}

// Assign registers t under number. It fails with ErrDuplicateAssignment when
// number belongs to a different tool and replace is false. With replace the
// previous holder is dropped and returned so the caller can unassign it.
// The entry at previous is removed first when it belongs to t.
func (r *Registry) Assign(t *tool.Tool, number, previous int, replace bool) (*tool.Tool, error) {
	if number < 0 {
		return nil, fmt.Errorf("%w: tool number %d", ErrInvalidArgument, number)
	}

	holder, taken := r.tools[number]
	if taken && holder != t && !replace {
		return nil, fmt.Errorf("%w: %d is held by %s", ErrDuplicateAssignment, number, holder.Name())
	}

	if prev, ok := r.tools[previous]; ok && prev == t {
		r.remove(previous)
	}

	var displaced *tool.Tool
	if holder, taken := r.tools[number]; taken {
		if holder != t {
			displaced = holder
		}
		r.remove(number)
	}

	r.tools[number] = t
	pos := sort.SearchInts(r.numbers, number)
	r.numbers = insertAt(r.numbers, pos, number)
	r.names = insertAt(r.names, pos, t.Name())

	return displaced, nil
}

func (r *Registry) remove(number int) {
	delete(r.tools, number)
	pos := sort.SearchInts(r.numbers, number)
	if pos < len(r.numbers) && r.numbers[pos] == number {
		r.numbers = append(r.numbers[:pos], r.numbers[pos+1:]...)
		r.names = append(r.names[:pos], r.names[pos+1:]...)
	}
}

// Lookup returns the tool at number, or nil.
func (r *Registry) Lookup(number int) *tool.Tool {
	return r.tools[number]
}

// Numbers returns the assigned numbers in ascending order.
func (r *Registry) Numbers() []int {
	out := make([]int, len(r.numbers))
	copy(out, r.numbers)
	return out
}

// Names returns tool names aligned with Numbers.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of assigned tools.
func (r *Registry) Len() int {
	return len(r.numbers)
}

func insertAt[T any](s []T, pos int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}
