package claim

// SignalBucket accumulates annotations of one type for a claim.
// NetHelpfulness keeps the per-annotation floored values so downstream
// weighting can dampen each annotation independently.
type SignalBucket struct {
	Count          int   `json:"count"`
	NetHelpfulness []int `json:"net_helpfulness"`
}

// TotalNetHelpfulness returns the summed net helpfulness for the bucket.
func (b SignalBucket) TotalNetHelpfulness() int {
	var total int
	for _, n := range b.NetHelpfulness {
		total += n
	}
	return total
}

// SignalVector is the aggregated evidence vector for a claim, grouped by
// annotation type. It is a pure function of the stored annotations and is
// safe to recompute after any vote change.
type SignalVector struct {
	Support    SignalBucket `json:"support"`
	Contradict SignalBucket `json:"contradict"`
	Context    SignalBucket `json:"context"`
}

// AnnotationCount returns the total number of aggregated annotations.
func (v SignalVector) AnnotationCount() int {
	return v.Support.Count + v.Contradict.Count + v.Context.Count
}

// Aggregate builds the signal vector for a claim from its annotations.
// Annotations with unknown types are ignored rather than failing the
// aggregation; the validator rejects them at write time.
func Aggregate(annotations []Annotation) SignalVector {
	var v SignalVector
	for i := range annotations {
		ann := &annotations[i]
		net := ann.NetHelpfulness()
		switch ann.AnnotationType {
		case TypeSupport:
			v.Support.Count++
			v.Support.NetHelpfulness = append(v.Support.NetHelpfulness, net)
		case TypeContradict:
			v.Contradict.Count++
			v.Contradict.NetHelpfulness = append(v.Contradict.NetHelpfulness, net)
		case TypeContext:
			v.Context.Count++
			v.Context.NetHelpfulness = append(v.Context.NetHelpfulness, net)
		}
	}
	return v
}
