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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	GroupName = "search.coverage.io"
	Version   = "v1alpha1"
	Kind      = "SearchConfiguration"
)

// AlgorithmName selects the search strategy.
type AlgorithmName string

const (
	AlgorithmRandom AlgorithmName = "random"
	AlgorithmMOSA   AlgorithmName = "mosa"
	AlgorithmNSGAII AlgorithmName = "nsga2"
	AlgorithmPCSEA  AlgorithmName = "pcsea"
	AlgorithmRVEA   AlgorithmName = "rvea"
)

// ObjectiveManagerName selects how objectives are activated and archived.
type ObjectiveManagerName string

const (
	ObjectiveManagerPopulation ObjectiveManagerName = "population"
	ObjectiveManagerUncovered  ObjectiveManagerName = "uncovered"
	ObjectiveManagerStructural ObjectiveManagerName = "structural"
	ObjectiveManagerTracking   ObjectiveManagerName = "tracking"
)

// SearchConfiguration configures one search run.
type SearchConfiguration struct {
	metav1.TypeMeta `json:",inline"`

	// Algorithm is the search strategy. Defaults to mosa.
	Algorithm AlgorithmName `json:"algorithm,omitempty"`

	// ObjectiveManager decides which objectives guide the search. Defaults to
	// structural.
	ObjectiveManager ObjectiveManagerName `json:"objectiveManager,omitempty"`

	// PopulationSize is the number of encodings kept between generations
	PopulationSize *int32 `json:"populationSize,omitempty"`

	// CrossoverProbability is the chance two parents are recombined
	CrossoverProbability *float64 `json:"crossoverProbability,omitempty"`

	// MutationProbability is the per-gene mutation chance
	MutationProbability *float64 `json:"mutationProbability,omitempty"`

	// RestartFraction is the share of each offspring generation that is
	// freshly sampled instead of bred
	RestartFraction *float64 `json:"restartFraction,omitempty"`

	// TournamentSize is the number of contestants in parent selection
	TournamentSize *int32 `json:"tournamentSize,omitempty"`

	// RVEAAlpha controls how fast the angle penalty grows with progress
	RVEAAlpha *float64 `json:"rveaAlpha,omitempty"`

	// Seed makes sampling and variation reproducible when set
	Seed *uint64 `json:"seed,omitempty"`

	Budgets Budgets `json:"budgets,omitempty"`
}

// Budgets bound a search. A nil field is not enforced; at least one must be
// set.
type Budgets struct {
	// MaxEvaluations counts executions in both initialization and search
	MaxEvaluations *int32 `json:"maxEvaluations,omitempty"`

	// MaxIterations counts search iterations
	MaxIterations *int32 `json:"maxIterations,omitempty"`

	// SearchTime bounds the time spent in the search phase
	SearchTime *metav1.Duration `json:"searchTime,omitempty"`

	// TotalTime bounds initialization plus search
	TotalTime *metav1.Duration `json:"totalTime,omitempty"`

	// MaxStagnationIterations stops the search after this many iterations
	// without new coverage
	MaxStagnationIterations *int32 `json:"maxStagnationIterations,omitempty"`
}
