// Package list implements a small doubly linked list with O(1) removal of any link.
package list

// List is a doubly linked list of values of type T.
type List[T any] struct {
	head *Link[T]
	tail *Link[T]
	size int
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Len returns the number of links in the list.
func (list *List[T]) Len() int {
	return list.size
}

// PeekHead returns the head of the list, or nil if it is empty.
func (list *List[T]) PeekHead() *Link[T] {
	return list.head
}

// PeekTail returns the tail of the list, or nil if it is empty.
func (list *List[T]) PeekTail() *Link[T] {
	return list.tail
}

// PushHead adds an element to the start of the list. Returns the added link.
func (list *List[T]) PushHead(value T) *Link[T] {
	newlink := &Link[T]{list: list, next: list.head, value: value}
	if list.head != nil {
		list.head.prev = newlink
	}
	list.head = newlink
	if list.tail == nil {
		list.tail = newlink
	}
	list.size++
	return newlink
}

// PushTail adds an element to the end of the list. Returns the added link.
func (list *List[T]) PushTail(value T) *Link[T] {
	newlink := &Link[T]{list: list, prev: list.tail, value: value}
	if list.tail != nil {
		list.tail.next = newlink
	}
	list.tail = newlink
	if list.head == nil {
		list.head = newlink
	}
	list.size++
	return newlink
}

// PopHead removes the head of the list and returns its value.
// ok is false if the list is empty.
func (list *List[T]) PopHead() (value T, ok bool) {
	if list.head == nil {
		return value, false
	}
	link := list.head
	link.PopSelf()
	return link.value, true
}

// Find returns the first link for which f is true, or nil.
func (list *List[T]) Find(f func(*Link[T]) bool) *Link[T] {
	for cur := list.head; cur != nil; cur = cur.next {
		if f(cur) {
			return cur
		}
	}
	return nil
}

// Map applies f to every link in order. f may pop the link it is given.
func (list *List[T]) Map(f func(*Link[T])) {
	for cur := list.head; cur != nil; {
		next := cur.next
		f(cur)
		cur = next
	}
}

// Clear removes every link.
func (list *List[T]) Clear() {
	for cur := list.head; cur != nil; {
		next := cur.next
		cur.list, cur.prev, cur.next = nil, nil, nil
		cur = next
	}
	list.head, list.tail, list.size = nil, nil, 0
}

// Link is one element of a List.
type Link[T any] struct {
	list  *List[T]
	prev  *Link[T]
	next  *Link[T]
	value T
}

// GetList returns the list this link belongs to, or nil once popped.
func (link *Link[T]) GetList() *List[T] {
	return link.list
}

func (link *Link[T]) GetValue() T {
	return link.value
}

func (link *Link[T]) SetValue(value T) {
	link.value = value
}

func (link *Link[T]) GetPrev() *Link[T] {
	return link.prev
}

func (link *Link[T]) GetNext() *Link[T] {
	return link.next
}

// PopSelf removes the link from its list. Popping a detached link is a no-op.
func (link *Link[T]) PopSelf() {
	list := link.list
	if list == nil {
		return
	}
	if link.prev == nil {
		list.head = link.next
	} else {
		link.prev.next = link.next
	}
	if link.next == nil {
		list.tail = link.prev
	} else {
		link.next.prev = link.prev
	}
	list.size--
	link.list, link.prev, link.next = nil, nil, nil
}
