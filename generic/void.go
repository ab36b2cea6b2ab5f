package generic

// Void is a zero-size placeholder value, for sets and results that carry no data.
type Void struct{}

func NewVoid() Void {
	return Void{}
}
