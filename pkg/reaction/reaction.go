package reaction

import "fmt"

type Kind string

const (
	Peluk     Kind = "peluk"      // comfort
	Semangat  Kind = "semangat"   // encouragement
	IkutSedih Kind = "ikut_sedih" // empathy
	Bangga    Kind = "bangga"     // pride
)

// Kinds lists every reaction kind in display order.
var Kinds = []Kind{Peluk, Semangat, IkutSedih, Bangga}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("reaction: unknown kind %q", s)
}

func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Tally counts reactions per kind. A tally built with NewTally always
// carries every kind, zero when absent.
type Tally map[Kind]int

func NewTally() Tally {
	t := make(Tally, len(Kinds))
	for _, k := range Kinds {
		t[k] = 0
	}
	return t
}

// Add counts n reactions of kind k, unknown kinds are ignored.
func (t Tally) Add(k Kind, n int) {
	if !k.Valid() {
		return
	}
	t[k] += n
}

func (t Tally) Total() int {
	total := 0
	for _, k := range Kinds {
		total += t[k]
	}
	return total
}
