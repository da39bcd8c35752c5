// Package roster разбирает и переписывает текст сообщения "同時凸" —
// ростер атак клана на босса. Текст сообщения и есть хранилище: заголовок
// (босс и оставшееся HP), разделитель и по одной строке на участника.
//
// Формат строки задаётся схемой (Scheme):
//
//	Targeted: [本戦 ]{kind}  {имя} 目標{урон}万 :[ {заметка}]
//	Legacy:   {имя}({kind})
//
// Все преобразования чистые: на вход строки записей (без заголовка), на выход
// новые строки. Сериализацию конкурентных правок делает пакет doccache.
//
// Пример:
//
//	lines, _ := roster.Targeted.SetEntry(nil, "Alice", roster.NewPhysical, 120)
//	lines, err := roster.Targeted.Annotate(lines, "Alice", "130")
//	if errors.Is(err, roster.ErrNoEntry) { ... }
package roster
