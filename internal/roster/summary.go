package roster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Summary — сводка по записям ростера.
type Summary struct {
	Entries    int
	NewAttacks int
	CarryOvers int
	InBattle   int
	Noted      int
	Damage     int // сумма урона из заметок, 万
}

// Summarize считает записи по видам. Вид определяется по первым трём
// символам маркера: каждое вхождение 新/持 в этом окне считается отдельно.
func (s Scheme) Summarize(lines []string) Summary {
	var sum Summary
	for _, line := range lines {
		e, ok := s.Decode(line)
		if !ok {
			continue
		}
		sum.Entries++
		w := e.Kind.window()
		sum.NewAttacks += strings.Count(w, "新")
		sum.CarryOvers += strings.Count(w, "持")
		if e.Stage == StageInBattle {
			sum.InBattle++
		}
		if d, ok := NoteDamage(e); ok {
			sum.Noted++
			sum.Damage += d
		}
	}
	return sum
}

func (sum Summary) String() string {
	return fmt.Sprintf("新凸:%d 持越:%d 本戦:%d ダメ入力:%d/%d 合計:%d万",
		sum.NewAttacks, sum.CarryOvers, sum.InBattle, sum.Noted, sum.Entries, sum.Damage)
}

// Header — первая строка ростера: "{n}:{boss} 残りHP(万):{hp}".
type Header struct {
	Number int
	Boss   string
	HP     int
}

// Separator — вторая строка ростера.
const Separator = "------"

var reHeader = regexp.MustCompile(`^([0-9]+):(.*) 残りHP\(万\):(-?[0-9]+)$`)

func (h Header) String() string {
	return fmt.Sprintf("%d:%s 残りHP(万):%d", h.Number, h.Boss, h.HP)
}

// BossLabel — "{n}:{boss}" для уведомлений.
func (h Header) BossLabel() string {
	return fmt.Sprintf("%d:%s", h.Number, h.Boss)
}

// ParseHeader разбирает первую строку ростера.
func ParseHeader(line string) (Header, bool) {
	m := reHeader.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
	if m == nil {
		return Header{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Header{}, false
	}
	hp, err := strconv.Atoi(m[3])
	if err != nil {
		return Header{}, false
	}
	return Header{Number: n, Boss: m[2], HP: hp}, true
}

// NewDocument — текст нового ростера без записей.
func NewDocument(h Header) string {
	return h.String() + "\n" + Separator
}
