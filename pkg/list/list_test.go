package list_test

import (
	"testing"

	"pmhash/pkg/list"
)

func verifyList(t *testing.T, l *list.List[int], data []int) {
	listdata := make([]int, 0)
	for curr := l.PeekHead(); curr != nil; curr = curr.GetNext() {
		listdata = append(listdata, curr.GetValue())
	}
	if len(listdata) != len(data) || l.Len() != len(data) {
		t.Fatalf("lists of unequal size; got %v (len %d), expected %v", listdata, l.Len(), data)
	}
	for i := range data {
		if listdata[i] != data[i] {
			t.Fatalf("lists not equal; got %v, expected %v.", listdata, data)
		}
	}
}

func TestList(t *testing.T) {
	t.Run("EmptyList", testEmptyList)
	t.Run("PushHead", testPushHead)
	t.Run("PushTail", testPushTail)
	t.Run("PopHeadFIFO", testPopHeadFIFO)
	t.Run("Find", testFind)
	t.Run("PopSelf", testPopSelf)
	t.Run("MapWithPop", testMapWithPop)
	t.Run("Clear", testClear)
}

func testEmptyList(t *testing.T) {
	l := list.NewList[int]()
	if l.PeekHead() != nil || l.PeekTail() != nil {
		t.Fatal("bad list initialization")
	}
	if _, ok := l.PopHead(); ok {
		t.Fatal("popping an empty list should fail")
	}
}

func testPushHead(t *testing.T) {
	l := list.NewList[int]()
	for i := 1; i <= 5; i++ {
		l.PushHead(i)
	}
	if l.PeekHead().GetValue() != 5 || l.PeekTail().GetValue() != 1 {
		t.Fatal("bad head or tail")
	}
	verifyList(t, l, []int{5, 4, 3, 2, 1})
}

func testPushTail(t *testing.T) {
	l := list.NewList[int]()
	for i := 1; i <= 5; i++ {
		l.PushTail(i)
	}
	verifyList(t, l, []int{1, 2, 3, 4, 5})
}

func testPopHeadFIFO(t *testing.T) {
	l := list.NewList[int]()
	l.PushTail(7)
	l.PushTail(8)
	l.PushTail(9)
	for _, want := range []int{7, 8, 9} {
		got, ok := l.PopHead()
		if !ok || got != want {
			t.Fatalf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
	verifyList(t, l, []int{})
}

func testFind(t *testing.T) {
	l := list.NewList[int]()
	l.PushTail(1)
	l.PushTail(2)
	found := l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 2 })
	if found == nil || found.GetValue() != 2 {
		t.Fatal("expected to find 2")
	}
	if l.Find(func(link *list.Link[int]) bool { return link.GetValue() == 3 }) != nil {
		t.Fatal("found a value that is not in the list")
	}
}

func testPopSelf(t *testing.T) {
	l := list.NewList[int]()
	links := make([]*list.Link[int], 0)
	for i := 1; i <= 5; i++ {
		links = append(links, l.PushTail(i))
	}
	links[2].PopSelf() // middle
	verifyList(t, l, []int{1, 2, 4, 5})
	links[0].PopSelf() // head
	verifyList(t, l, []int{2, 4, 5})
	links[4].PopSelf() // tail
	verifyList(t, l, []int{2, 4})
	if links[4].GetList() != nil {
		t.Fatal("popped link still references its list")
	}
	links[4].PopSelf()
	verifyList(t, l, []int{2, 4})
	links[1].PopSelf()
	links[3].PopSelf()
	verifyList(t, l, []int{})
	if l.PeekHead() != nil || l.PeekTail() != nil {
		t.Fatal("empty list should have nil head and tail")
	}
}

func testMapWithPop(t *testing.T) {
	l := list.NewList[int]()
	for i := 1; i <= 6; i++ {
		l.PushTail(i)
	}
	l.Map(func(link *list.Link[int]) {
		if link.GetValue()%2 == 0 {
			link.PopSelf()
		}
	})
	verifyList(t, l, []int{1, 3, 5})
}

func testClear(t *testing.T) {
	l := list.NewList[int]()
	first := l.PushTail(1)
	l.PushTail(2)
	l.Clear()
	verifyList(t, l, []int{})
	if first.GetList() != nil {
		t.Fatal("cleared link still references its list")
	}
}
