/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/ptr"
)

func TestDecodeDefaults(t *testing.T) {
	c, err := Decode([]byte("algorithm: rvea\n"))
	require.NoError(t, err)

	want := &SearchConfiguration{
		TypeMeta:             metav1.TypeMeta{APIVersion: "search.coverage.io/v1alpha1", Kind: "SearchConfiguration"},
		Algorithm:            AlgorithmRVEA,
		ObjectiveManager:     ObjectiveManagerStructural,
		PopulationSize:       ptr.To[int32](50),
		CrossoverProbability: ptr.To(0.75),
		MutationProbability:  ptr.To(0.1),
		RestartFraction:      ptr.To(0.1),
		TournamentSize:       ptr.To[int32](2),
		RVEAAlpha:            ptr.To(2.0),
		Budgets:              Budgets{SearchTime: &metav1.Duration{Duration: time.Minute}},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("unexpected configuration (-want +got):\n%s", diff)
	}
}

func TestDecodeKeepsExplicitBudgets(t *testing.T) {
	c, err := Decode([]byte(`
objectiveManager: uncovered
populationSize: 8
seed: 42
budgets:
  maxEvaluations: 200
  totalTime: 30s
`))
	require.NoError(t, err)
	assert.Equal(t, ObjectiveManagerUncovered, c.ObjectiveManager)
	assert.Equal(t, int32(8), *c.PopulationSize)
	assert.Equal(t, uint64(42), *c.Seed)
	assert.Equal(t, int32(200), *c.Budgets.MaxEvaluations)
	assert.Equal(t, 30*time.Second, c.Budgets.TotalTime.Duration)
	assert.Nil(t, c.Budgets.SearchTime)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte("algorithm: mosa\npopulation: 3\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SearchConfiguration)
		want   field.ErrorList
	}{
		{
			name:   "valid",
			mutate: func(*SearchConfiguration) {},
		},
		{
			name:   "unknown algorithm",
			mutate: func(c *SearchConfiguration) { c.Algorithm = "hillclimb" },
			want: field.ErrorList{field.NotSupported(field.NewPath("algorithm"), AlgorithmName("hillclimb"),
				[]string{"mosa", "nsga2", "pcsea", "random", "rvea"})},
		},
		{
			name:   "probability out of range",
			mutate: func(c *SearchConfiguration) { c.MutationProbability = ptr.To(1.5) },
			want:   field.ErrorList{field.Invalid(field.NewPath("mutationProbability"), 1.5, "must be within [0, 1]")},
		},
		{
			name:   "no budget",
			mutate: func(c *SearchConfiguration) { c.Budgets = Budgets{} },
			want:   field.ErrorList{field.Required(field.NewPath("budgets"), "at least one budget must be set")},
		},
		{
			name:   "non-positive population",
			mutate: func(c *SearchConfiguration) { c.PopulationSize = ptr.To[int32](0) },
			want:   field.ErrorList{field.Invalid(field.NewPath("populationSize"), int32(0), "must be positive")},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &SearchConfiguration{}
			SetDefaults(c)
			tc.mutate(c)
			assert.Equal(t, tc.want, Validate(c))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	c := &SearchConfiguration{Algorithm: AlgorithmPCSEA}
	SetDefaults(c)
	data, err := Encode(c)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}
