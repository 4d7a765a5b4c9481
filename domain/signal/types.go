package signal

// ============================================================================
// VERDICT PRIMITIVES
// ============================================================================

// Series is an ordered, fixed-length sequence of samples. Pairs handed to the
// analysis layers are assumed to be time-aligned by the caller.
type Series []float64

// Status is the binary verdict of a detection pass
type Status string

const (
	StatusFound    Status = "FOUND"
	StatusNotFound Status = "NOT_FOUND"
)

// Method names the layer that produced a FOUND verdict
type Method string

const (
	MethodNone         Method = ""
	MethodRankCorr     Method = "RANK_CORR"     // monotonic gate (Spearman)
	MethodDependence   Method = "DEPENDENCE"    // mutual information
	MethodElasticMatch Method = "ELASTIC_MATCH" // DTW
)

// Type is the direction of a detected relationship
type Type string

const (
	TypeNone     Type = ""
	TypeParallel Type = "PARALLEL"
	TypeInverse  Type = "INVERSE"
)

// Recommendation is the advisory tag attached to elastic matches
type Recommendation string

const (
	RecommendNone    Recommendation = ""
	RecommendPrepare Recommendation = "PREPARE" // candidate moves ahead of the target
	RecommendWait    Recommendation = "WAIT"
)

// Inconclusive reasons, stored under Metadata["reason"] on NOT_FOUND results
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonDegenerateInput  = "degenerate_input"
	ReasonNonFiniteInput   = "non_finite_input"
	ReasonLengthMismatch   = "length_mismatch"
	ReasonCancelled        = "cancelled"
	ReasonAlignmentFailed  = "alignment_failed"
)

// MetadataReason is the metadata key carrying an inconclusive reason
const MetadataReason = "reason"

// ============================================================================
// RESULT
// ============================================================================

// Result is the verdict of one layer (or of the whole cascade) for a pair.
// INVARIANTS:
// - Status == NOT_FOUND implies Method == "", SignalType == "" and Confidence == 0
// - Status == FOUND implies Method is set
// - Lag is non-zero only for ELASTIC_MATCH
// Results are values; Metadata is freshly allocated per verdict and must not
// be mutated by consumers.
type Result struct {
	Status          Status                 `json:"status"`
	Method          Method                 `json:"method,omitempty"`
	Confidence      float64                `json:"confidence"` // scale depends on Method
	Lag             int                    `json:"lag"`        // positive: candidate leads target
	EstimatedImpact float64                `json:"estimated_impact"`
	Recommendation  Recommendation         `json:"recommendation,omitempty"`
	SignalType      Type                   `json:"signal_type,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Found reports whether the verdict is positive
func (r Result) Found() bool {
	return r.Status == StatusFound
}

// Reason returns the inconclusive reason, if any
func (r Result) Reason() string {
	if r.Metadata == nil {
		return ""
	}
	reason, _ := r.Metadata[MetadataReason].(string)
	return reason
}

// NotFound builds a negative verdict carrying optional diagnostics.
func NotFound(metadata map[string]interface{}) Result {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return Result{
		Status:   StatusNotFound,
		Metadata: metadata,
	}
}

// Inconclusive builds a negative verdict for inputs no layer can judge.
func Inconclusive(reason string, metadata map[string]interface{}) Result {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata[MetadataReason] = reason
	return NotFound(metadata)
}
