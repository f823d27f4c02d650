// Package catalog holds the static table of courses that can be issued.
package catalog

import "sort"

// NoDescription is returned for courses missing from the catalog.
const NoDescription = "no description available"

var courses = map[string]string{
	"Основы Git":             "Ветки, коммиты, слияния и работа с удалёнными репозиториями.",
	"Основы Linux":           "Командная строка, файловая система, права доступа и процессы.",
	"Docker для начинающих":  "Образы, контейнеры, тома и docker compose.",
	"Go: первые шаги":        "Синтаксис, пакеты, тесты и модули Go.",
	"SQL и базы данных":      "Запросы, индексы, транзакции и нормализация.",
	"Аналитика данных":       "Сбор, очистка и визуализация данных.",
	"CI/CD на практике":      "Сборочные конвейеры, автотесты и выкладка.",
	"Сети для разработчиков": "TCP/IP, DNS, HTTP и TLS без лишней теории.",
}

// Describe returns the description of course, or NoDescription when the
// course is unknown.
func Describe(course string) string {
	if d, ok := courses[course]; ok {
		return d
	}
	return NoDescription
}

// Courses returns the known course names in sorted order.
func Courses() []string {
	names := make([]string, 0, len(courses))
	for name := range courses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
