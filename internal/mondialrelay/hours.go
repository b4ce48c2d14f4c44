package mondialrelay

import "strings"

var weekdays = [7]string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}

// dayIndex maps both the named (Horaires_Lundi) and numbered (Horaires_01) element
// forms to a weekday.
var dayIndex = func() map[string]int {
	m := make(map[string]int, 14)
	for i, day := range weekdays {
		m["Horaires_"+day] = i
		m["Horaires_0"+string(rune('1'+i))] = i
	}
	return m
}()

const closedSlot = "0000"

// openingHours renders "Jour: HH:MM-HH:MM / HH:MM-HH:MM" per open day, Monday first.
// A day is encoded as four HHMM values; a closed half-day is 0000 0000.
func openingHours(elems []anyElement) []string {
	var byDay [7][]string
	for _, el := range elems {
		i, ok := dayIndex[el.XMLName.Local]
		if !ok {
			continue
		}
		slots := el.Slots
		if len(slots) == 0 {
			slots = strings.Fields(el.Text)
		}
		byDay[i] = slots
	}

	hours := make([]string, 0, 7)
	for i, slots := range byDay {
		var ranges []string
		for j := 0; j+1 < len(slots) && j < 4; j += 2 {
			if r, ok := timeRange(slots[j], slots[j+1]); ok {
				ranges = append(ranges, r)
			}
		}
		if len(ranges) > 0 {
			hours = append(hours, weekdays[i]+": "+strings.Join(ranges, " / "))
		}
	}
	return hours
}

func timeRange(from, to string) (string, bool) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == closedSlot || to == closedSlot || len(from) != 4 || len(to) != 4 {
		return "", false
	}
	return from[:2] + ":" + from[2:] + "-" + to[:2] + ":" + to[2:], true
}
