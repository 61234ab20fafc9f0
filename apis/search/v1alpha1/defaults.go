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
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

var (
	DefaultPopulationSize       int32   = 50
	DefaultCrossoverProbability float64 = 0.75
	DefaultMutationProbability  float64 = 0.1
	DefaultRestartFraction      float64 = 0.1
	DefaultTournamentSize       int32   = 2
	DefaultRVEAAlpha            float64 = 2.0
	DefaultSearchTime                   = metav1.Duration{Duration: time.Minute}
)

// SetDefaults fills every unset field. When no budget is configured the
// search time is bounded by DefaultSearchTime.
func SetDefaults(c *SearchConfiguration) {
	if c.APIVersion == "" {
		c.APIVersion = GroupName + "/" + Version
	}
	if c.Kind == "" {
		c.Kind = Kind
	}
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmMOSA
	}
	if c.ObjectiveManager == "" {
		c.ObjectiveManager = ObjectiveManagerStructural
	}
	if c.PopulationSize == nil {
		c.PopulationSize = ptr.To(DefaultPopulationSize)
	}
	if c.CrossoverProbability == nil {
		c.CrossoverProbability = ptr.To(DefaultCrossoverProbability)
	}
	if c.MutationProbability == nil {
		c.MutationProbability = ptr.To(DefaultMutationProbability)
	}
	if c.RestartFraction == nil {
		c.RestartFraction = ptr.To(DefaultRestartFraction)
	}
	if c.TournamentSize == nil {
		c.TournamentSize = ptr.To(DefaultTournamentSize)
	}
	if c.RVEAAlpha == nil {
		c.RVEAAlpha = ptr.To(DefaultRVEAAlpha)
	}
	if !c.Budgets.any() {
		c.Budgets.SearchTime = ptr.To(DefaultSearchTime)
	}
}

func (b Budgets) any() bool {
	return b.MaxEvaluations != nil || b.MaxIterations != nil || b.SearchTime != nil ||
		b.TotalTime != nil || b.MaxStagnationIterations != nil
}
