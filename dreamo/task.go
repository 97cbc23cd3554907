// task.go - Aufgabentyp einer Referenz (id, ip, style)
package dreamo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownTask wird fuer nicht unterstuetzte Aufgaben-Tags zurueckgegeben
var ErrUnknownTask = errors.New("unbekannte aufgabe")

// Task bestimmt, wie ein Referenzbild vorverarbeitet wird.
// Nur die drei Konstanten sind gueltig; ParseTask weist alles andere ab.
type Task string

const (
	// TaskIP uebernimmt ein Subjekt (Hintergrund wird entfernt)
	TaskIP Task = "ip"
	// TaskID uebernimmt die Identitaet eines Gesichts
	TaskID Task = "id"
	// TaskStyle uebernimmt den Stil (Bild bleibt vollstaendig)
	TaskStyle Task = "style"
)

// Tasks gibt alle gueltigen Aufgaben in Anzeige-Reihenfolge zurueck
func Tasks() []Task {
	return []Task{TaskIP, TaskID, TaskStyle}
}

// ParseTask wandelt einen Tag in eine Task um
func ParseTask(s string) (Task, error) {
	tag := strings.ToLower(strings.TrimSpace(s))
	for _, t := range Tasks() {
		if string(t) == tag {
			return t, nil
		}
	}

	if hint := closestTask(tag); hint != "" {
		return "", fmt.Errorf("%w %q, meinten sie %q?", ErrUnknownTask, s, hint)
	}
	return "", fmt.Errorf("%w %q (erlaubt: ip, id, style)", ErrUnknownTask, s)
}

// Valid meldet ob t eine der bekannten Aufgaben ist
func (t Task) Valid() bool {
	switch t {
	case TaskIP, TaskID, TaskStyle:
		return true
	default:
		return false
	}
}

func (t Task) String() string { return string(t) }

// closestTask schlaegt die aehnlichste Aufgabe vor (hoechstens 2 Aenderungen)
func closestTask(tag string) Task {
	if tag == "" {
		return ""
	}
	best, bestDist := Task(""), 3
	for _, t := range Tasks() {
		if d := levenshtein.ComputeDistance(tag, string(t)); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}
