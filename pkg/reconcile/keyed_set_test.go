package reconcile

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestKeyedSet(t *testing.T) {
	current := []string{"Label_1", "Label_2"}
	desired := map[string]int{"Label_2": 20, "Label_3": 30}

	plan := KeyedSet(current, desired)

	if len(plan.Add) != 1 || plan.Add["Label_3"] != 30 {
		t.Errorf("unexpected add set: %v", plan.Add)
	}
	if len(plan.Update) != 1 || plan.Update["Label_2"] != 20 {
		t.Errorf("unexpected update set: %v", plan.Update)
	}
	if len(plan.Remove) != 1 || plan.Remove[0] != "Label_1" {
		t.Errorf("unexpected remove set: %v", plan.Remove)
	}
}

func TestSetSkipsUnchangedKeys(t *testing.T) {
	plan := Set([]string{"from_a@b.com", "to_c@d.com"}, []string{"to_c@d.com", "cc_@d.com"})

	if _, ok := plan.Add["cc_@d.com"]; !ok || len(plan.Add) != 1 {
		t.Errorf("unexpected add set: %v", plan.Add)
	}
	if len(plan.Update) != 0 {
		t.Errorf("expected no updates, got %v", plan.Update)
	}
	if len(plan.Remove) != 1 || plan.Remove[0] != "from_a@b.com" {
		t.Errorf("unexpected remove set: %v", plan.Remove)
	}
	if plan.Empty() {
		t.Error("plan should not be empty")
	}
	if !Set([]string{"x"}, []string{"x"}).Empty() {
		t.Error("identical sets should produce an empty plan")
	}
}

// After applying a plan the key set must equal the desired key set.
func TestProperty_KeyedSetConverges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("applied_plan_equals_desired", prop.ForAll(
		func(current []string, desiredKeys []string) bool {
			desired := make(map[string]bool, len(desiredKeys))
			for _, k := range desiredKeys {
				desired[k] = true
			}
			plan := KeyedSet(current, desired)

			result := make(map[string]bool)
			for _, k := range current {
				result[k] = true
			}
			for _, k := range plan.Remove {
				delete(result, k)
			}
			for k := range plan.Add {
				if result[k] {
					return false
				}
				result[k] = true
			}
			for k := range plan.Update {
				if !result[k] {
					return false
				}
			}

			got := SortedKeys(result)
			want := SortedKeys(desired)
			sort.Strings(want)
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
