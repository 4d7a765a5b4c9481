package signal

// Detector is one stage of the detection cascade.
//
// Analyze must be pure: the same inputs yield the same Result, inputs are
// never mutated, and numeric degeneracies are reported as NOT_FOUND rather
// than errors or panics.
type Detector interface {
	Method() Method
	Analyze(x, y []float64) Result
}
