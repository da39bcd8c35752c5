package roster

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind — вид атаки (маркер состояния в начале строки).
type Kind string

// Cancel в SetEntry означает "снять запись".
const Cancel Kind = ""

// Виды атак в актуальной схеме. Пробелы (U+3000 и ASCII) и эмодзи
// с вариационным селектором — часть формата.
const (
	NewPhysical   Kind = "\u3000新凸\u3000 物\U0001F5E1\uFE0F"
	NewMagic      Kind = "\u3000新凸\u3000 魔\u2721\uFE0F"
	CarryPhysical Kind = "★持越★ 物\U0001F5E1\uFE0F"
	CarryMagic    Kind = "★持越★ 魔\u2721\uFE0F"
)

// Виды атак старой схемы.
const (
	LegacyNew   Kind = "新凸"
	LegacyCarry Kind = "持越"
)

// IsNew / IsCarryOver классифицируют вид по первым трём символам маркера.
func (k Kind) IsNew() bool       { return strings.Contains(k.window(), "新") }
func (k Kind) IsCarryOver() bool { return strings.Contains(k.window(), "持") }

func (k Kind) window() string {
	s := string(k)
	n := 0
	for i := range s {
		if n == 3 {
			return s[:i]
		}
		n++
	}
	return s
}

// Stage — отметка "本戦" (игрок зашёл в основной бой).
type Stage int

const (
	StageDeclared Stage = iota
	StageInBattle
)

// Layout — раскладка строки записи.
type Layout int

const (
	LayoutTargeted Layout = iota
	LayoutLegacy
)

// Scheme — параметры кодека и движка преобразований. Разные исторические
// варианты формата отличаются только схемой.
type Scheme struct {
	Layout Layout
	Kinds  []Kind
}

var (
	Targeted = Scheme{
		Layout: LayoutTargeted,
		Kinds:  []Kind{NewPhysical, NewMagic, CarryPhysical, CarryMagic},
	}
	Legacy = Scheme{
		Layout: LayoutLegacy,
		Kinds:  []Kind{LegacyNew, LegacyCarry},
	}
)

// Entry — одна запись участника. Target и Note имеют смысл только
// в раскладке Targeted; HasNote различает "заметки нет" и пустую заметку.
type Entry struct {
	Stage       Stage
	Kind        Kind
	Participant string
	Target      int
	Note        string
	HasNote     bool
}

const (
	battlePrefix = "本戦 "
	nameSep      = "  "
	targetSep    = " 目標"
	targetSuffix = "万 :"
)

var (
	reTargeted = regexp.MustCompile(`^(.+?)  (.+?) 目標([0-9]+)万 :(?: (.*))?$`)
	reLegacy   = regexp.MustCompile(`^(.+)\((.+?)\)$`)
)

// Knows — входит ли вид в закрытый набор схемы.
func (s Scheme) Knows(k Kind) bool {
	for _, known := range s.Kinds {
		if known == k {
			return true
		}
	}
	return false
}

// Decode разбирает строку. Для заголовков, разделителей и битых строк
// возвращает ok=false — такие строки надо оставлять как есть.
func (s Scheme) Decode(line string) (Entry, bool) {
	if !utf8.ValidString(line) {
		return Entry{}, false
	}
	if s.Layout == LayoutLegacy {
		return s.decodeLegacy(line)
	}

	var e Entry
	rest := line
	if strings.HasPrefix(rest, battlePrefix) {
		e.Stage = StageInBattle
		rest = rest[len(battlePrefix):]
	}
	m := reTargeted.FindStringSubmatchIndex(rest)
	if m == nil {
		return Entry{}, false
	}
	kind := Kind(rest[m[2]:m[3]])
	if !s.Knows(kind) {
		return Entry{}, false
	}
	target, err := strconv.Atoi(rest[m[6]:m[7]])
	if err != nil {
		return Entry{}, false
	}
	e.Kind = kind
	e.Participant = rest[m[4]:m[5]]
	e.Target = target
	if m[8] >= 0 {
		e.Note = rest[m[8]:m[9]]
		e.HasNote = true
	}
	return e, true
}

func (s Scheme) decodeLegacy(line string) (Entry, bool) {
	m := reLegacy.FindStringSubmatch(line)
	if m == nil || !s.Knows(Kind(m[2])) {
		return Entry{}, false
	}
	return Entry{Kind: Kind(m[2]), Participant: m[1]}, true
}

// Encode — обратная к Decode операция.
func (s Scheme) Encode(e Entry) string {
	if s.Layout == LayoutLegacy {
		return e.Participant + "(" + string(e.Kind) + ")"
	}
	var b strings.Builder
	if e.Stage == StageInBattle {
		b.WriteString(battlePrefix)
	}
	b.WriteString(string(e.Kind))
	b.WriteString(nameSep)
	b.WriteString(e.Participant)
	b.WriteString(targetSep)
	b.WriteString(strconv.Itoa(e.Target))
	b.WriteString(targetSuffix)
	if e.HasNote {
		b.WriteByte(' ')
		b.WriteString(e.Note)
	}
	return b.String()
}
