// Package doccache сериализует правки общего текстового документа
// (сообщения в чате) по его идентификатору.
//
// На каждый id заводится запись: эксклюзивная блокировка и последний текст,
// который выдал кэш. Apply под блокировкой берёт за основу кэш (если вид
// вызывающего устарел), применяет преобразование к строкам после заголовка и
// сохраняет результат. Блокировки разных id друг друга не ждут; таблица
// блокировок защищена своим мьютексом только на время поиска/вставки.
//
// Кэш живёт в памяти процесса: после рестарта источником истины снова
// становится текст сообщения.
package doccache

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Transform — чистое преобразование строк документа после заголовка.
type Transform func(lines []string) ([]string, error)

// TransformError — преобразование вернуло ошибку или упало с panic.
// Кэш при этом не меняется.
type TransformError struct {
	ID  string
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("doccache: transform %s: %v", e.ID, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// DefaultHeaderLines — заголовок ростера: строка босса и разделитель.
const DefaultHeaderLines = 2

type Cache struct {
	headerLines int

	mu   sync.Mutex
	docs map[string]*record
}

type record struct {
	sem  chan struct{} // ёмкость 1: занятый слот = блокировка взята
	text string
	set  bool
	dead bool // запись удалена Forget; новые правки заводят свою
}

type Option func(*Cache)

// WithHeaderLines задаёт число строк заголовка, которые не передаются
// в Transform.
func WithHeaderLines(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.headerLines = n
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		headerLines: DefaultHeaderLines,
		docs:        make(map[string]*record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply применяет fn к документу id. observed — текст, который видел
// вызывающий; если в кэше есть другой текст, observed отбрасывается.
// Возвращённый текст — авторитетный, отображать нужно именно его.
func (c *Cache) Apply(ctx context.Context, id, observed string, fn Transform) (string, error) {
	r, err := c.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer r.unlock()

	base := observed
	if r.set && r.text != observed {
		base = r.text
	}
	out, err := c.run(base, fn)
	if err != nil {
		return "", &TransformError{ID: id, Err: err}
	}
	r.text, r.set = out, true
	return out, nil
}

// Peek возвращает закэшированный текст документа.
func (c *Cache) Peek(ctx context.Context, id string) (string, bool, error) {
	c.mu.Lock()
	r, ok := c.docs[id]
	c.mu.Unlock()
	if !ok {
		return "", false, nil
	}
	if err := r.lock(ctx); err != nil {
		return "", false, err
	}
	defer r.unlock()
	if r.dead {
		return "", false, nil
	}
	return r.text, r.set, nil
}

// Forget убирает документ из кэша (сообщение удалено). Ждёт начатый Apply;
// правки, вставшие в очередь к старой записи, перейдут на новую.
func (c *Cache) Forget(ctx context.Context, id string) error {
	c.mu.Lock()
	r, ok := c.docs[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := r.lock(ctx); err != nil {
		return err
	}
	defer r.unlock()
	r.dead = true
	c.mu.Lock()
	if c.docs[id] == r {
		delete(c.docs, id)
	}
	c.mu.Unlock()
	return nil
}

// Len — сколько документов уже заведено.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Cache) record(id string) *record {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.docs[id]
	if !ok {
		r = &record{sem: make(chan struct{}, 1)}
		c.docs[id] = r
	}
	return r
}

// acquire берёт блокировку живой записи id.
func (c *Cache) acquire(ctx context.Context, id string) (*record, error) {
	for {
		r := c.record(id)
		if err := r.lock(ctx); err != nil {
			return nil, err
		}
		if !r.dead {
			return r, nil
		}
		r.unlock()
	}
}

func (c *Cache) run(base string, fn Transform) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	lines := SplitLines(base)
	h := c.headerLines
	if h > len(lines) {
		h = len(lines)
	}
	body := append([]string(nil), lines[h:]...)
	body, err = fn(body)
	if err != nil {
		return "", err
	}
	joined := make([]string, 0, h+len(body))
	joined = append(joined, lines[:h]...)
	joined = append(joined, body...)
	return strings.Join(joined, "\n"), nil
}

// SplitLines режет текст по "\n", отбрасывая "\r" (старые ростеры писались
// через "\r\n"). Пустой текст — ноль строк.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (r *record) lock(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *record) unlock() { <-r.sem }
