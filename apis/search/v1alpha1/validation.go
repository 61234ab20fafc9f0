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
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

var (
	validAlgorithms = sets.New(string(AlgorithmRandom), string(AlgorithmMOSA), string(AlgorithmNSGAII),
		string(AlgorithmPCSEA), string(AlgorithmRVEA))
	validManagers = sets.New(string(ObjectiveManagerPopulation), string(ObjectiveManagerUncovered),
		string(ObjectiveManagerStructural), string(ObjectiveManagerTracking))
)

// Validate checks a defaulted configuration.
func Validate(c *SearchConfiguration) field.ErrorList {
	var errs field.ErrorList

	if !validAlgorithms.Has(string(c.Algorithm)) {
		errs = append(errs, field.NotSupported(field.NewPath("algorithm"), c.Algorithm, sets.List(validAlgorithms)))
	}
	if !validManagers.Has(string(c.ObjectiveManager)) {
		errs = append(errs, field.NotSupported(field.NewPath("objectiveManager"), c.ObjectiveManager, sets.List(validManagers)))
	}

	errs = append(errs, validatePositive(field.NewPath("populationSize"), c.PopulationSize)...)
	errs = append(errs, validatePositive(field.NewPath("tournamentSize"), c.TournamentSize)...)
	errs = append(errs, validateProbability(field.NewPath("crossoverProbability"), c.CrossoverProbability)...)
	errs = append(errs, validateProbability(field.NewPath("mutationProbability"), c.MutationProbability)...)
	errs = append(errs, validateProbability(field.NewPath("restartFraction"), c.RestartFraction)...)
	if c.RVEAAlpha != nil && *c.RVEAAlpha < 0 {
		errs = append(errs, field.Invalid(field.NewPath("rveaAlpha"), *c.RVEAAlpha, "must be non-negative"))
	}

	errs = append(errs, validateBudgets(field.NewPath("budgets"), c.Budgets)...)
	return errs
}

func validateBudgets(path *field.Path, b Budgets) field.ErrorList {
	var errs field.ErrorList
	if !b.any() {
		errs = append(errs, field.Required(path, "at least one budget must be set"))
	}
	errs = append(errs, validatePositive(path.Child("maxEvaluations"), b.MaxEvaluations)...)
	errs = append(errs, validatePositive(path.Child("maxIterations"), b.MaxIterations)...)
	errs = append(errs, validatePositive(path.Child("maxStagnationIterations"), b.MaxStagnationIterations)...)
	if b.SearchTime != nil && b.SearchTime.Duration <= 0 {
		errs = append(errs, field.Invalid(path.Child("searchTime"), b.SearchTime.Duration.String(), "must be positive"))
	}
	if b.TotalTime != nil && b.TotalTime.Duration <= 0 {
		errs = append(errs, field.Invalid(path.Child("totalTime"), b.TotalTime.Duration.String(), "must be positive"))
	}
	return errs
}

func validatePositive(path *field.Path, v *int32) field.ErrorList {
	if v != nil && *v <= 0 {
		return field.ErrorList{field.Invalid(path, *v, "must be positive")}
	}
	return nil
}

func validateProbability(path *field.Path, v *float64) field.ErrorList {
	if v != nil && (*v < 0 || *v > 1) {
		return field.ErrorList{field.Invalid(path, *v, "must be within [0, 1]")}
	}
	return nil
}
