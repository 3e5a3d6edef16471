package pmm

import "testing"

func TestAllocatePagesFindsFirstFreeRun(t *testing.T) {
	a := NewForTesting(16)

	addr, ok := a.AllocatePages(4)
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if addr != 0 {
		t.Fatalf("expected first allocation to start at page 0, got %#x", addr)
	}

	addr2, ok := a.AllocatePages(2)
	if !ok {
		t.Fatal("expected second allocation to succeed")
	}
	if addr2 != 4*PageSize {
		t.Fatalf("expected second allocation right after the first, got %#x", addr2)
	}
}

func TestAllocatePagesDisjoint(t *testing.T) {
	a := NewForTesting(8)

	first, _ := a.AllocatePages(3)
	second, _ := a.AllocatePages(3)

	firstEnd := first + 3*PageSize
	if second < firstEnd && second+3*PageSize > first {
		t.Fatalf("expected disjoint allocations, got [%#x,%#x) and [%#x,%#x)", first, firstEnd, second, second+3*PageSize)
	}
}

func TestAllocatePagesOOM(t *testing.T) {
	a := NewForTesting(4)

	if _, ok := a.AllocatePages(5); ok {
		t.Fatal("expected allocation larger than total pages to fail")
	}

	if _, ok := a.AllocatePages(4); !ok {
		t.Fatal("expected allocation of exactly total pages to succeed")
	}
	if _, ok := a.AllocatePages(1); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestFreePagesAllowsReallocation(t *testing.T) {
	a := NewForTesting(4)

	addr, _ := a.AllocatePages(4)
	if _, ok := a.AllocatePage(); ok {
		t.Fatal("expected allocator to be exhausted before freeing")
	}

	a.FreePages(addr, 4)

	if _, ok := a.AllocatePages(4); !ok {
		t.Fatal("expected allocation to succeed after freeing the whole range")
	}
}

func TestFreePagesRetreatsCursor(t *testing.T) {
	a := NewForTesting(8)

	a.AllocatePages(4) // cursor now at page 4
	a.FreePages(0, 2)  // free pages 0-1, below the cursor

	if a.lastUsedIndex != 0 {
		t.Fatalf("expected cursor to retreat to 0, got %d", a.lastUsedIndex)
	}
}

func TestFreePagesIgnoresOutOfRangeIndices(t *testing.T) {
	a := NewForTesting(4)

	a.FreePages(100*PageSize, 4) // should not panic or corrupt state

	if _, ok := a.AllocatePages(4); !ok {
		t.Fatal("expected allocator to still be fully free")
	}
}

func TestAllocatePagesRovingCursorWrapsAround(t *testing.T) {
	a := NewForTesting(8)

	if _, ok := a.AllocatePages(8); !ok {
		t.Fatal("expected the whole bitmap to be allocatable up front")
	}
	// Free two holes. FreePages retreats the cursor to page 2, so a 3-page
	// request skips the 2-page hole, takes pages 5-7 in the first pass and
	// leaves the cursor at 8 (== totalPages).
	a.FreePages(2*PageSize, 2) // free pages 2-3
	a.FreePages(5*PageSize, 3) // free pages 5-7
	if addr, ok := a.AllocatePages(3); !ok || addr != 5*PageSize {
		t.Fatalf("expected the 3-page request to take pages 5-7, got %#x (ok=%v)", addr, ok)
	}

	// The hole at pages 2-3 now lies below the cursor and can only be found
	// by the second, wraparound pass.
	addr, ok := a.AllocatePages(2)
	if !ok {
		t.Fatal("expected wraparound allocation to succeed")
	}
	if addr != 2*PageSize {
		t.Fatalf("expected wraparound allocation to reuse the freed hole at page 2, got %#x", addr)
	}
}

func TestAllocatePageZeroIsRejected(t *testing.T) {
	a := NewForTesting(4)
	if _, ok := a.AllocatePages(0); ok {
		t.Fatal("expected a request for zero pages to fail")
	}
}
