package indel

import "testing"

func set(xs ...int) map[int]struct{} {
	out := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func TestInsertStripsOppositeSideDelete(t *testing.T) {
	b := NewBuilder[int]()
	b.Delete(1)
	b.Insert(1)
	u := b.ExportAndReset()
	if _, ok := u.Deletes[1]; ok {
		t.Fatal("insert must strip the opposite delete")
	}
	if _, ok := u.Inserts[1]; !ok {
		t.Fatal("expected 1 to be inserted")
	}
}

func TestDeleteStripsOppositeSideInsert(t *testing.T) {
	b := NewBuilder[int]()
	b.Insert(1)
	b.Delete(1)
	u := b.ExportAndReset()
	if _, ok := u.Inserts[1]; ok {
		t.Fatal("delete must strip the opposite insert")
	}
	if _, ok := u.Deletes[1]; !ok {
		t.Fatal("expected 1 to be deleted")
	}
}

func TestExportAndResetClearsBuilder(t *testing.T) {
	b := NewBuilder[int]()
	b.Insert(1)
	b.ExportAndReset()
	u := b.ExportAndReset()
	if len(u.Inserts) != 0 || len(u.Deletes) != 0 {
		t.Fatal("builder should be empty after export")
	}
}

func TestApplyReplaceAll(t *testing.T) {
	s := set(1, 2, 3)
	u := ReplaceAll(set(9))
	got := Apply(s, u)
	if len(got) != 1 {
		t.Fatalf("expected replaceAll to discard prior set, got %v", got)
	}
	if _, ok := got[9]; !ok {
		t.Fatal("expected 9 present after replaceAll")
	}
}

func TestApplyDelta(t *testing.T) {
	s := set(1, 2)
	u := Update[int]{Inserts: set(3), Deletes: set(1)}
	got := Apply(s, u)
	want := set(2, 3)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for x := range want {
		if _, ok := got[x]; !ok {
			t.Fatalf("missing %d in %v", x, got)
		}
	}
}

func TestWireRoundTrip(t *testing.T) {
	u := Update[int32]{Inserts: set32(1, 2), Deletes: set32(3), ReplaceAll: true}
	w := ToWire(u)
	back := FromWire(w)
	if back.ReplaceAll != u.ReplaceAll {
		t.Fatal("replaceAll lost in round trip")
	}
	if len(back.Inserts) != len(u.Inserts) || len(back.Deletes) != len(u.Deletes) {
		t.Fatal("set sizes lost in round trip")
	}
}

func set32(xs ...int32) map[int32]struct{} {
	out := make(map[int32]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func FuzzApply(f *testing.F) {
	f.Add(1, 2, 2, 3, false)
	f.Add(1, 1, 1, 1, true)
	f.Add(0, 0, 0, 0, false)

	f.Fuzz(func(t *testing.T, s1, s2, insert, del int, replaceAll bool) {
		s := set(s1, s2)
		u := Update[int]{Inserts: set(insert), Deletes: set(del), ReplaceAll: replaceAll}
		got := Apply(s, u)

		if _, ok := got[insert]; !ok {
			if _, deleted := u.Deletes[insert]; !deleted {
				t.Fatalf("Apply(%v, %+v) = %v, want %d present", s, u, got, insert)
			}
		}
		if !replaceAll {
			for x := range s {
				_, wasDeleted := u.Deletes[x]
				_, present := got[x]
				if !wasDeleted && !present {
					t.Fatalf("Apply(%v, %+v) = %v, expected %d to survive (not deleted, not replaced)", s, u, got, x)
				}
			}
		} else {
			for x := range s {
				if _, stillInserted := u.Inserts[x]; !stillInserted {
					if _, present := got[x]; present {
						t.Fatalf("Apply(%v, %+v) = %v, replaceAll must discard %d", s, u, got, x)
					}
				}
			}
		}
	})
}

func FuzzWireRoundTrip(f *testing.F) {
	f.Add(int32(1), int32(2), int32(3), true)
	f.Add(int32(0), int32(0), int32(0), false)

	f.Fuzz(func(t *testing.T, a, b, c int32, replaceAll bool) {
		u := Update[int32]{Inserts: set32(a, b), Deletes: set32(c), ReplaceAll: replaceAll}
		back := FromWire(ToWire(u))

		if back.ReplaceAll != u.ReplaceAll {
			t.Fatalf("ToWire/FromWire lost ReplaceAll: got %v want %v", back.ReplaceAll, u.ReplaceAll)
		}
		if len(back.Inserts) != len(u.Inserts) {
			t.Fatalf("ToWire/FromWire changed insert set size: got %d want %d", len(back.Inserts), len(u.Inserts))
		}
		for x := range u.Inserts {
			if _, ok := back.Inserts[x]; !ok {
				t.Fatalf("ToWire/FromWire dropped insert %d", x)
			}
		}
		if len(back.Deletes) != len(u.Deletes) {
			t.Fatalf("ToWire/FromWire changed delete set size: got %d want %d", len(back.Deletes), len(u.Deletes))
		}
	})
}
