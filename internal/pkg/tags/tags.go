// Package tags предоставляет нормализованный набор тегов "name:value".
//
// Набор тегов сравнивается как множество: порядок и дубликаты не влияют на равенство.
// Два логически одинаковых набора, переданных в разном порядке, дают один ключ счётчика.
package tags

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// separator — разделитель тегов в канонической строке Set.Key().
// Запятая не может встречаться в нормализованном теге (заменяется на '_').
const separator = ","

// Set — неизменяемый нормализованный набор тегов.
// Нулевое значение является валидным пустым набором. Set сравним через ==
// и может входить в ключ map.
type Set struct {
	key string
}

// New создаёт Set из списка тегов.
// Каждый тег нормализуется (NFC, trim, запятые → '_'), пустые отбрасываются,
// дубликаты удаляются, результат сортируется.
func New(tags ...string) Set {
	if len(tags) == 0 {
		return Set{}
	}
	seen := make(map[string]struct{}, len(tags))
	items := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalize(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		items = append(items, t)
	}
	sort.Strings(items)
	return Set{key: strings.Join(items, separator)}
}

// FromMap создаёт Set из отображения name → набор значений, как его передаёт хост.
// Пустое значение даёт тег без значения ("name").
func FromMap(m map[string][]string) Set {
	if len(m) == 0 {
		return Set{}
	}
	tags := make([]string, 0, len(m))
	for name, values := range m {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if len(values) == 0 {
			tags = append(tags, name)
			continue
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				tags = append(tags, name)
				continue
			}
			tags = append(tags, name+":"+v)
		}
	}
	return New(tags...)
}

// normalize приводит тег к канонической форме.
func normalize(tag string) string {
	tag = strings.TrimSpace(norm.NFC.String(tag))
	return strings.ReplaceAll(tag, separator, "_")
}

// Strings возвращает копию тегов в отсортированном порядке.
// Для пустого набора возвращает nil.
func (s Set) Strings() []string {
	if s.key == "" {
		return nil
	}
	return strings.Split(s.key, separator)
}

// Len возвращает количество тегов.
func (s Set) Len() int {
	if s.key == "" {
		return 0
	}
	return strings.Count(s.key, separator) + 1
}

// Key возвращает каноническое строковое представление набора.
// Два набора равны тогда и только тогда, когда равны их ключи.
func (s Set) Key() string {
	return s.key
}

// Equal сравнивает наборы как множества.
func (s Set) Equal(other Set) bool {
	return s.key == other.key
}

// Contains проверяет наличие тега (после нормализации).
func (s Set) Contains(tag string) bool {
	tag = normalize(tag)
	items := s.Strings()
	i := sort.SearchStrings(items, tag)
	return i < len(items) && items[i] == tag
}

// With возвращает новый набор с добавленными тегами.
func (s Set) With(tags ...string) Set {
	if len(tags) == 0 {
		return s
	}
	return New(append(s.Strings(), tags...)...)
}

// Merge объединяет два набора.
func (s Set) Merge(other Set) Set {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	return New(append(s.Strings(), other.Strings()...)...)
}

// String реализует fmt.Stringer.
func (s Set) String() string {
	return "[" + s.Key() + "]"
}
