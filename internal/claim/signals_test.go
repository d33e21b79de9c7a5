package claim

import "testing"

func TestAggregate(t *testing.T) {
	annotations := []Annotation{
		{AnnotationType: TypeSupport, HelpfulVotes: 5, NotHelpfulVotes: 1},
		{AnnotationType: TypeSupport, HelpfulVotes: 1, NotHelpfulVotes: 0},
		{AnnotationType: TypeContradict, HelpfulVotes: 2, NotHelpfulVotes: 4},
		{AnnotationType: TypeContext, HelpfulVotes: 0, NotHelpfulVotes: 0},
	}

	v := Aggregate(annotations)

	if v.Support.Count != 2 || v.Contradict.Count != 1 || v.Context.Count != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1",
			v.Support.Count, v.Contradict.Count, v.Context.Count)
	}
	if got := v.Support.TotalNetHelpfulness(); got != 5 {
		t.Errorf("support net helpfulness = %d, want 5", got)
	}
	// Downvoted contradict annotation floors at zero.
	if got := v.Contradict.TotalNetHelpfulness(); got != 0 {
		t.Errorf("contradict net helpfulness = %d, want 0", got)
	}
	if got := v.AnnotationCount(); got != 4 {
		t.Errorf("AnnotationCount() = %d, want 4", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	v := Aggregate(nil)
	if v.AnnotationCount() != 0 {
		t.Errorf("AnnotationCount() = %d, want 0", v.AnnotationCount())
	}
}

func TestAggregateIgnoresUnknownTypes(t *testing.T) {
	v := Aggregate([]Annotation{
		{AnnotationType: "agree"},
		{AnnotationType: TypeSupport},
	})
	if v.AnnotationCount() != 1 {
		t.Errorf("AnnotationCount() = %d, want 1", v.AnnotationCount())
	}
}

func TestAggregateIsRecomputable(t *testing.T) {
	annotations := []Annotation{
		{AnnotationType: TypeSupport, HelpfulVotes: 3},
		{AnnotationType: TypeContradict, HelpfulVotes: 1},
	}

	first := Aggregate(annotations)
	annotations[0].HelpfulVotes = 2
	second := Aggregate(annotations)

	if first.Support.TotalNetHelpfulness() != 3 {
		t.Errorf("first aggregation = %d, want 3", first.Support.TotalNetHelpfulness())
	}
	if second.Support.TotalNetHelpfulness() != 2 {
		t.Errorf("second aggregation = %d, want 2", second.Support.TotalNetHelpfulness())
	}
}
