package music

// MajorTriad holds the semitone offsets of a major triad.
var MajorTriad = [3]int{0, 4, 7}

// BuildChord returns the major triad on root plus two transpositions of the
// root, as unique note names in first-seen order.
func BuildChord(root string, offsetA, offsetB int) ([]string, error) {
	r, err := Parse(root)
	if err != nil {
		return nil, err
	}

	notes := make([]string, 0, len(MajorTriad)+2)
	seen := make(map[Note]bool, len(MajorTriad)+2)

	add := func(n Note) {
		if seen[n] {
			return
		}
		seen[n] = true
		notes = append(notes, n.String())
	}

	for _, s := range MajorTriad {
		add(r.Transpose(s))
	}
	add(r.Transpose(offsetA))
	add(r.Transpose(offsetB))

	return notes, nil
}

// Frequencies converts note names to frequencies, skipping unparsable names.
func Frequencies(names []string) []float64 {
	freqs := make([]float64, 0, len(names))
	for _, name := range names {
		n, err := Parse(name)
		if err != nil {
			continue
		}
		freqs = append(freqs, n.Frequency())
	}
	return freqs
}
