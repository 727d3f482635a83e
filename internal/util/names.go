package util

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Package-level default RNG to avoid allocations when rng is nil
var defaultRNG = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

// FrenchNameProbability is the probability (0.0-1.0) of generating a French name
const FrenchNameProbability = 0.20

var (
	EnglishMaleFirstNames = []string{
		"James", "John", "Robert", "Michael", "William", "David", "Richard", "Joseph",
		"Thomas", "Charles", "Daniel", "Matthew", "Anthony", "Mark", "Paul", "Andrew",
		"Kevin", "Brian", "George", "Edward", "Ryan", "Jacob", "Eric", "Stephen",
	}

	EnglishFemaleFirstNames = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth", "Susan", "Jessica",
		"Sarah", "Karen", "Lisa", "Nancy", "Margaret", "Sandra", "Emily", "Michelle",
		"Laura", "Amy", "Anna", "Helen", "Rachel", "Julia", "Grace", "Alice",
	}

	EnglishLastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Miller", "Davis", "Wilson",
		"Anderson", "Taylor", "Moore", "Jackson", "White", "Harris", "Clark", "Lewis",
		"Walker", "Young", "Allen", "King", "Wright", "Hill", "Green", "Baker",
	}

	FrenchMaleFirstNames = []string{
		"Jean", "Pierre", "Michel", "André", "Philippe", "Alain", "Bernard", "Jacques",
		"François", "Olivier", "Laurent", "Julien", "Antoine", "Hugo", "Louis", "Rémi",
	}

	FrenchFemaleFirstNames = []string{
		"Marie", "Nathalie", "Isabelle", "Sylvie", "Catherine", "Valérie", "Sophie", "Céline",
		"Julie", "Claire", "Camille", "Manon", "Léa", "Chloé", "Lucie", "Hélène",
	}

	FrenchLastNames = []string{
		"Martin", "Bernard", "Dubois", "Thomas", "Robert", "Richard", "Petit", "Durand",
		"Leroy", "Moreau", "Simon", "Lefebvre", "Girard", "Mercier", "Dupont", "Lambert",
	}
)

// GeneratePatientName returns a "LASTNAME^FIRSTNAME" DICOM person name.
// Names are 80% English and 20% French. Sex "M" picks a male first name,
// anything else a female one. A nil rng uses the shared default.
func GeneratePatientName(sex string, rng *rand.Rand) string {
	if rng == nil {
		rng = defaultRNG
	}
	first, last := EnglishFemaleFirstNames, EnglishLastNames
	if sex == "M" {
		first = EnglishMaleFirstNames
	}
	if rng.Float64() < FrenchNameProbability {
		first, last = FrenchFemaleFirstNames, FrenchLastNames
		if sex == "M" {
			first = FrenchMaleFirstNames
		}
	}
	return last[rng.IntN(len(last))] + "^" + first[rng.IntN(len(first))]
}

// GenerateStaffName returns an upper case "LASTNAME^FIRSTNAME" name for
// reviewer and operator fields of synthetic plans.
func GenerateStaffName(rng *rand.Rand) string {
	if rng == nil {
		rng = defaultRNG
	}
	sex := "F"
	if rng.IntN(2) == 0 {
		sex = "M"
	}
	return strings.ToUpper(GeneratePatientName(sex, rng))
}
