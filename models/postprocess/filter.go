package postprocess

// ClassPredicate reports whether a class index is one the caller wants kept.
type ClassPredicate func(classID int) bool

// AnyClass accepts every class index.
func AnyClass(int) bool { return true }

// TargetClass returns a predicate that accepts class indices whose label
// equals name. Indices outside the label table are rejected.
//
// Arguments:
//   - labels: Class names ordered by network index.
//   - name: The target class name, e.g. "person".
//
// Returns:
//   - The predicate.
func TargetClass(labels []string, name string) ClassPredicate {
	return func(classID int) bool {
		return classID >= 0 && classID < len(labels) && labels[classID] == name
	}
}

// Filter keeps the records whose best class satisfies isTarget and whose
// best confidence is strictly greater than confidenceThreshold. The output
// keeps the input order.
//
// Arguments:
//   - records: The decoded records, in anchor order.
//   - isTarget: The class predicate.
//   - confidenceThreshold: The exclusive confidence floor.
//
// Returns:
//   - The surviving candidates, empty when nothing passes.
func Filter(records []DetectionRecord, isTarget ClassPredicate, confidenceThreshold float32) []Candidate {
	candidates := make([]Candidate, 0, len(records))
	for _, r := range records {
		if r.BestClassConfidence > confidenceThreshold && isTarget(r.BestClassID) {
			candidates = append(candidates, Candidate{
				Box:        r.Box(),
				Confidence: r.BestClassConfidence,
				Class:      r.BestClassID,
			})
		}
	}
	return candidates
}
