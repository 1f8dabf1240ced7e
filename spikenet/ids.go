package spikenet

// GroupID identifies a neuron group within its population, in insertion
// order starting at 0.
type GroupID int32

// PresynapticID is a tagged index into either the ordinary neuron
// population or the input population. The tag lives in bit 30, the
// highest bit below the int32 sign bit, so that ordinary IDs (the overwhelmingly common case) compare and sort
// exactly like a plain index.
type PresynapticID int32

const inputTag PresynapticID = 1 << 30

// CorrectedPresynapticID encodes a neuron index with a flag selecting the
// ordinary population (isInput == false) or the input population
// (isInput == true).
func CorrectedPresynapticID(i int, isInput bool) PresynapticID {
	id := PresynapticID(i)
	if isInput {
		id |= inputTag
	}
	return id
}

// IsInput reports whether id references the input population.
func (id PresynapticID) IsInput() bool {
	return id&inputTag != 0
}

// Index returns the untagged neuron index within whichever population
// IsInput selects.
func (id PresynapticID) Index() int {
	return int(id &^ inputTag)
}
