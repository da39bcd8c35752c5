// Package carryover считает время переноса (持越) при одновременных атаках
// на босса.
//
// Все значения в 万. У атаки, добившей босса, остаётся время:
// min(90, ceil(overkill/dmg*90 + 20)) секунд.
package carryover

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxCarryOver — потолок времени переноса, секунды.
const MaxCarryOver = 90

// Role — что делает атака в выбранном порядке.
type Role int

const (
	Through    Role = iota // босс жив после удара
	LastAttack             // добивание (LA)
	Off                    // босс уже мёртв, атаку "сливают"
)

type Step struct {
	Role   Role
	Damage int
}

// Result — один порядок атак. CarryOver == 0, если босс не добит.
type Result struct {
	CarryOver int
	Steps     []Step
}

// Killed — босс добит в этом порядке.
func (r Result) Killed() bool { return r.CarryOver >= 20 }

// Simulate прогоняет атаки в заданном порядке. Атаки до LA в результате
// упорядочены по убыванию урона.
func Simulate(hp int, dmgs []int) Result {
	var r Result
	left := hp
	for _, d := range dmgs {
		switch {
		case left-d > 0:
			left -= d
			r.Steps = append(r.Steps, Step{Role: Through, Damage: d})
		case left > 0:
			left -= d
			r.CarryOver = carryTime(-left, d)
			sort.SliceStable(r.Steps, func(i, j int) bool { return r.Steps[i].Damage > r.Steps[j].Damage })
			r.Steps = append(r.Steps, Step{Role: LastAttack, Damage: d})
		default:
			r.Steps = append(r.Steps, Step{Role: Off, Damage: d})
		}
	}
	return r
}

func carryTime(overkill, dmg int) int {
	co := int(math.Ceil(float64(overkill)/float64(dmg)*90 + 20))
	if co > MaxCarryOver {
		co = MaxCarryOver
	}
	return co
}

// Permutations перебирает все порядки атак и сортирует результаты по
// времени переноса по убыванию; при равенстве сохраняется порядок перебора.
func Permutations(hp int, dmgs []int) []Result {
	var out []Result
	permute(dmgs, nil, make([]bool, len(dmgs)), func(order []int) {
		out = append(out, Simulate(hp, order))
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CarryOver > out[j].CarryOver })
	return out
}

func permute(src, cur []int, used []bool, emit func([]int)) {
	if len(cur) == len(src) {
		emit(append([]int(nil), cur...))
		return
	}
	for i, v := range src {
		if used[i] {
			continue
		}
		used[i] = true
		permute(src, append(cur, v), used, emit)
		used[i] = false
	}
}

// String — строка таблицы: "持越: 45秒 = 300 -> 200(LA) --- 流し: 100".
func (r Result) String() string {
	var hit, off []string
	for _, s := range r.Steps {
		if s.Role == Off {
			off = append(off, strconv.Itoa(s.Damage))
			continue
		}
		hit = append(hit, strconv.Itoa(s.Damage))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "持越: %d秒 = %s", r.CarryOver, strings.Join(hit, " -> "))
	if !r.Killed() {
		b.WriteString("(未討伐)")
		return b.String()
	}
	b.WriteString("(LA)")
	if len(off) > 0 {
		sort.Strings(off)
		b.WriteString(" --- 流し: ")
		b.WriteString(strings.Join(off, ", "))
	}
	return b.String()
}

// Table — строки результатов без повторов.
func Table(hp int, dmgs []int) []string {
	var lines []string
	seen := make(map[string]bool)
	for _, r := range Permutations(hp, dmgs) {
		s := r.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		lines = append(lines, s)
	}
	return lines
}

// Fullback — урон, нужный чтобы добить босса с остатком hp и получить
// seconds секунд переноса.
func Fullback(hp, seconds int) (int, error) {
	den := MaxCarryOver - seconds + 21
	if den <= 0 {
		return 0, fmt.Errorf("carryover: carry time %d out of range", seconds)
	}
	return int(math.Ceil(float64(hp) * 90 / float64(den))), nil
}
