package roster

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/text/width"
)

var (
	// ErrNoEntry — у участника нет записи, над которой можно выполнить действие.
	ErrNoEntry = errors.New("roster: participant has no entry")
	// ErrNotSupported — операция не поддерживается раскладкой схемы.
	ErrNotSupported = errors.New("roster: operation not supported by scheme")
	// ErrUnknownKind — вид атаки не входит в набор схемы.
	ErrUnknownKind = errors.New("roster: unknown attack kind")
	// ErrBadName — имя участника не переживает запись в строку: при разборе
	// получилась бы запись другого участника.
	ErrBadName = errors.New("roster: participant name cannot be encoded")
)

var reDigits = regexp.MustCompile(`[0-9]+`)

// SetEntry удаляет все записи участника и, если kind не Cancel, добавляет
// в конец новую запись. Повторная отмена ничего не меняет.
func (s Scheme) SetEntry(lines []string, participant string, kind Kind, target int) ([]string, error) {
	if kind != Cancel {
		if !s.Knows(kind) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		if target < 0 {
			return nil, fmt.Errorf("roster: negative target damage %d", target)
		}
	}

	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if e, ok := s.Decode(line); ok && e.Participant == participant {
			continue
		}
		out = append(out, line)
	}
	if kind == Cancel {
		return out, nil
	}
	e := Entry{Kind: kind, Participant: participant}
	if s.Layout == LayoutTargeted {
		e.Target = target
	}
	line := s.Encode(e)
	if d, ok := s.Decode(line); !ok || d.Participant != participant {
		return nil, fmt.Errorf("%w: %q", ErrBadName, participant)
	}
	return append(out, line), nil
}

// Annotate записывает заметку (обычно фактический урон) в запись участника
// и пересортировывает строки по урону из заметок.
func (s Scheme) Annotate(lines []string, participant, note string) ([]string, error) {
	if s.Layout != LayoutTargeted {
		return nil, ErrNotSupported
	}
	out, found := s.rewrite(lines, participant, func(e *Entry) {
		e.Note = note
		e.HasNote = true
	})
	if !found {
		return nil, ErrNoEntry
	}
	return s.SortByDamage(out), nil
}

// ToggleState переводит запись участника из from в to, а если она уже в to —
// обратно в from (повторное нажатие отменяет первое). Порядок строк не меняется.
func (s Scheme) ToggleState(lines []string, participant string, from, to Stage) ([]string, error) {
	if s.Layout != LayoutTargeted {
		return nil, ErrNotSupported
	}
	out, found := s.rewrite(lines, participant, func(e *Entry) {
		if e.Stage == to {
			e.Stage = from
		} else {
			e.Stage = to
		}
	})
	if !found {
		return nil, ErrNoEntry
	}
	return out, nil
}

// SortByDamage — стабильная сортировка по урону из заметки по убыванию.
// Строки без числа в заметке (и не-записи) уходят в конец в прежнем порядке.
func (s Scheme) SortByDamage(lines []string) []string {
	type keyed struct {
		line string
		dmg  int
		ok   bool
	}
	ks := make([]keyed, len(lines))
	for i, line := range lines {
		ks[i].line = line
		if e, ok := s.Decode(line); ok {
			ks[i].dmg, ks[i].ok = NoteDamage(e)
		}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].ok && ks[i].dmg > ks[j].dmg
	})
	out := make([]string, len(ks))
	for i := range ks {
		out[i] = ks[i].line
	}
	return out
}

// NoteDamage достаёт урон из заметки: первая группа цифр, полноширинные
// цифры ("１３０") приводятся к ASCII.
func NoteDamage(e Entry) (int, bool) {
	if !e.HasNote {
		return 0, false
	}
	d := reDigits.FindString(width.Narrow.String(e.Note))
	if d == "" {
		return 0, false
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Find возвращает запись участника.
func (s Scheme) Find(lines []string, participant string) (Entry, bool) {
	for _, line := range lines {
		if e, ok := s.Decode(line); ok && e.Participant == participant {
			return e, true
		}
	}
	return Entry{}, false
}

// Participants — имена участников в порядке строк.
func (s Scheme) Participants(lines []string) []string {
	var names []string
	for _, line := range lines {
		if e, ok := s.Decode(line); ok {
			names = append(names, e.Participant)
		}
	}
	return names
}

func (s Scheme) rewrite(lines []string, participant string, fn func(*Entry)) ([]string, bool) {
	out := make([]string, len(lines))
	found := false
	for i, line := range lines {
		e, ok := s.Decode(line)
		if !ok || e.Participant != participant {
			out[i] = line
			continue
		}
		fn(&e)
		out[i] = s.Encode(e)
		found = true
	}
	return out, found
}
