package roster

import "testing"

func TestEncodeTargetedLine(t *testing.T) {
	line := Targeted.Encode(Entry{Kind: NewPhysical, Participant: "Alice", Target: 120})
	want := string(NewPhysical) + "  Alice 目標120万 :"
	if line != want {
		t.Fatalf("encode:\n got %q\nwant %q", line, want)
	}

	line = Targeted.Encode(Entry{Stage: StageInBattle, Kind: CarryMagic, Participant: "Bob", Target: 80, Note: "95", HasNote: true})
	want = "本戦 " + string(CarryMagic) + "  Bob 目標80万 : 95"
	if line != want {
		t.Fatalf("encode:\n got %q\nwant %q", line, want)
	}
}

func TestDecodeRejectsNonEntries(t *testing.T) {
	cases := []string{
		"",
		"1:TestBoss 残りHP(万):500",
		Separator,
		string(NewPhysical) + "  Alice 目標万 :",
		string(NewPhysical) + "  Alice 目標１２０万 :",
		string(NewPhysical) + " Alice 目標120万 :",
		string(NewPhysical) + "  Alice 目標120万:",
		"謎凸  Alice 目標120万 :",
		"Alice(新凸)",
		"\xff\xfe",
	}
	for _, line := range cases {
		if e, ok := Targeted.Decode(line); ok {
			t.Fatalf("decode(%q) = %+v, want not an entry", line, e)
		}
	}
}

func TestDecodeTargeted(t *testing.T) {
	e, ok := Targeted.Decode("本戦 " + string(CarryPhysical) + "  山田 太郎 目標1500万 : 1620 LA")
	if !ok {
		t.Fatal("expected entry")
	}
	want := Entry{Stage: StageInBattle, Kind: CarryPhysical, Participant: "山田 太郎", Target: 1500, Note: "1620 LA", HasNote: true}
	if e != want {
		t.Fatalf("decode = %+v, want %+v", e, want)
	}

	// пустая заметка и отсутствие заметки — разные значения
	e, ok = Targeted.Decode(string(NewMagic) + "  Alice 目標1万 : ")
	if !ok || !e.HasNote || e.Note != "" {
		t.Fatalf("empty note: %+v ok=%v", e, ok)
	}
	e, ok = Targeted.Decode(string(NewMagic) + "  Alice 目標1万 :")
	if !ok || e.HasNote {
		t.Fatalf("no note: %+v ok=%v", e, ok)
	}
}

func TestDecodeLegacy(t *testing.T) {
	e, ok := Legacy.Decode("Alice(持越)")
	if !ok || e.Participant != "Alice" || e.Kind != LegacyCarry {
		t.Fatalf("legacy decode = %+v ok=%v", e, ok)
	}
	if _, ok := Legacy.Decode("Alice(本戦)"); ok {
		t.Fatal("unknown legacy kind must not decode")
	}
	if _, ok := Legacy.Decode("------"); ok {
		t.Fatal("separator must not decode")
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		string(NewPhysical) + "  Alice 目標120万 :",
		string(NewMagic) + "  Bob 目標0万 : ",
		string(CarryPhysical) + "  Carol 目標007万 : 130",
		"本戦 " + string(CarryMagic) + "  Dave  目標 目標5万 : 目標9万 : x",
		"本戦 " + string(NewPhysical) + "   spaced name 目標42万 : memo 目標1万 :",
	}
	for _, line := range lines {
		e, ok := Targeted.Decode(line)
		if !ok {
			t.Fatalf("decode(%q) failed", line)
		}
		back, ok := Targeted.Decode(Targeted.Encode(e))
		if !ok || back != e {
			t.Fatalf("round trip of %q: got %+v, want %+v", line, back, e)
		}
	}

	for _, line := range []string{"Alice(新凸)", "A(x)(持越)"} {
		e, ok := Legacy.Decode(line)
		if !ok {
			t.Fatalf("legacy decode(%q) failed", line)
		}
		if back, ok := Legacy.Decode(Legacy.Encode(e)); !ok || back != e {
			t.Fatalf("legacy round trip of %q: got %+v", line, back)
		}
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		kind  Kind
		isNew bool
		carry bool
	}{
		{NewPhysical, true, false},
		{NewMagic, true, false},
		{CarryPhysical, false, true},
		{CarryMagic, false, true},
		{LegacyNew, true, false},
		{LegacyCarry, false, true},
	}
	for _, c := range cases {
		if c.kind.IsNew() != c.isNew || c.kind.IsCarryOver() != c.carry {
			t.Fatalf("%q: IsNew=%v IsCarryOver=%v", c.kind, c.kind.IsNew(), c.kind.IsCarryOver())
		}
	}
}
