package generic

// Void is a zero-size placeholder for "no value", e.g. as the value type of a set's backing map.
type Void = struct{}

func NewVoid() Void {
	return Void{}
}
