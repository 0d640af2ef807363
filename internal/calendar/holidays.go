package calendar

import (
	"time"
)

// Holiday is a named non-business day.
type Holiday struct {
	Date time.Time
	Name string
}

var fixedHolidays = []struct {
	month time.Month
	day   int
	name  string
	since int
}{
	{time.January, 1, "Confraternização Universal", 0},
	{time.April, 21, "Tiradentes", 0},
	{time.May, 1, "Dia do Trabalho", 0},
	{time.September, 7, "Independência do Brasil", 0},
	{time.October, 12, "Nossa Senhora Aparecida", 0},
	{time.November, 2, "Finados", 0},
	{time.November, 15, "Proclamação da República", 0},
	{time.November, 20, "Dia Nacional de Zumbi e da Consciência Negra", 2024},
	{time.December, 25, "Natal", 0},
}

// NationalHolidays returns the Brazilian national holidays of year, including the
// Easter-based Carnival, Good Friday and Corpus Christi dates.
func NationalHolidays(year int) []Holiday {
	var out []Holiday
	for _, h := range fixedHolidays {
		if year < h.since {
			continue
		}
		out = append(out, Holiday{Date: time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC), Name: h.name})
	}

	easter := Easter(year)
	out = append(out,
		Holiday{Date: easter.AddDate(0, 0, -48), Name: "Carnaval (segunda-feira)"},
		Holiday{Date: easter.AddDate(0, 0, -47), Name: "Carnaval (terça-feira)"},
		Holiday{Date: easter.AddDate(0, 0, -2), Name: "Sexta-feira Santa"},
		Holiday{Date: easter.AddDate(0, 0, 60), Name: "Corpus Christi"},
	)
	return out
}

// Easter returns Easter Sunday of year in the Gregorian calendar (anonymous Gregorian algorithm).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
