package profile

import "slices"

// SkinType is the self-reported skin type.
type SkinType string

const (
	SkinDry         SkinType = "Dry"
	SkinOily        SkinType = "Oily"
	SkinCombination SkinType = "Combination"
	SkinNormal      SkinType = "Normal"
	SkinSensitive   SkinType = "Sensitive"
	SkinUnknown     SkinType = "Unknown"
)

// Goal is one skin goal tag.
type Goal string

const (
	GoalHydration   Goal = "Hydration"
	GoalBrightening Goal = "Brightening"
	GoalAcne        Goal = "Acne"
	GoalAntiAging   Goal = "Anti-Aging"
	GoalGlow        Goal = "Glow"
	GoalTexture     Goal = "Texture"
	GoalEvenTone    Goal = "EvenTone"
)

type SensitivityLevel string

const (
	NotSensitive      SensitivityLevel = "NotSensitive"
	SlightlySensitive SensitivityLevel = "SlightlySensitive"
	VerySensitive     SensitivityLevel = "VerySensitive"
)

type RoutineFrequency string

const (
	FrequencyTwiceDaily    RoutineFrequency = "TwiceDaily"
	FrequencyOnceDaily     RoutineFrequency = "OnceDaily"
	FrequencyFewTimesAWeek RoutineFrequency = "FewTimesAWeek"
	FrequencyRarely        RoutineFrequency = "Rarely"
)

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "Beginner"
	ExperienceIntermediate ExperienceLevel = "Intermediate"
	ExperienceAdvanced     ExperienceLevel = "Advanced"
)

// Concern is the user's primary skin concern.
type Concern string

const (
	ConcernAcne       Concern = "Acne"
	ConcernDryness    Concern = "Dryness"
	ConcernDullness   Concern = "Dullness"
	ConcernRedness    Concern = "Redness"
	ConcernFineLines  Concern = "FineLines"
	ConcernUnevenTone Concern = "UnevenTone"
	ConcernOther      Concern = "Other"
)

type Climate string

const (
	ClimateHumid     Climate = "Humid"
	ClimateDry       Climate = "Dry"
	ClimateTemperate Climate = "Temperate"
	ClimateCold      Climate = "Cold"
)

// RoutineTime is how long the user wants to spend per routine. It drives the
// step-count budget.
type RoutineTime string

const (
	TimeUnder5Min       RoutineTime = "Under5Min"
	Time5To10Min        RoutineTime = "5to10Min"
	Time10To15Min       RoutineTime = "10to15Min"
	TimeAsLongAsItTakes RoutineTime = "AsLongAsItTakes"
)

type FragrancePreference string

const (
	FragranceFree         FragrancePreference = "FragranceFree"
	FragranceScented      FragrancePreference = "Scented"
	FragranceNoPreference FragrancePreference = "NoPreference"
)

// Field names a Profile attribute addressable by the quiz.
type Field string

const (
	FieldSkinType                    Field = "skinType"
	FieldSkinGoals                   Field = "skinGoals"
	FieldSensitivityLevel            Field = "sensitivityLevel"
	FieldRoutineFrequency            Field = "routineFrequency"
	FieldExperienceLevel             Field = "experienceLevel"
	FieldPrimaryConcern              Field = "primaryConcern"
	FieldAllergies                   Field = "allergies"
	FieldPreferredIngredients        Field = "preferredIngredients"
	FieldUsingPrescription           Field = "usingPrescription"
	FieldUsesSPF                     Field = "usesSPF"
	FieldDoubleCleanses              Field = "doubleCleanses"
	FieldWantsProductRecommendations Field = "wantsProductRecommendations"
	FieldClimate                     Field = "climate"
	FieldDesiredRoutineTime          Field = "desiredRoutineTime"
	FieldFragrancePreference         Field = "fragrancePreference"
)

// Kind is the value shape a Field accepts.
type Kind string

const (
	KindUnknown Kind = ""
	KindChoice  Kind = "choice"
	KindChoices Kind = "choices"
	KindText    Kind = "text"
	KindToggle  Kind = "toggle"
)

var fieldOrder = []Field{
	FieldSkinType,
	FieldSkinGoals,
	FieldSensitivityLevel,
	FieldRoutineFrequency,
	FieldExperienceLevel,
	FieldPrimaryConcern,
	FieldAllergies,
	FieldPreferredIngredients,
	FieldUsingPrescription,
	FieldUsesSPF,
	FieldDoubleCleanses,
	FieldWantsProductRecommendations,
	FieldClimate,
	FieldDesiredRoutineTime,
	FieldFragrancePreference,
}

var kinds = map[Field]Kind{
	FieldSkinType:                    KindChoice,
	FieldSkinGoals:                   KindChoices,
	FieldSensitivityLevel:            KindChoice,
	FieldRoutineFrequency:            KindChoice,
	FieldExperienceLevel:             KindChoice,
	FieldPrimaryConcern:              KindChoice,
	FieldAllergies:                   KindText,
	FieldPreferredIngredients:        KindText,
	FieldUsingPrescription:           KindToggle,
	FieldUsesSPF:                     KindToggle,
	FieldDoubleCleanses:              KindToggle,
	FieldWantsProductRecommendations: KindToggle,
	FieldClimate:                     KindChoice,
	FieldDesiredRoutineTime:          KindChoice,
	FieldFragrancePreference:         KindChoice,
}

var options = map[Field][]string{
	FieldSkinType: {
		string(SkinDry), string(SkinOily), string(SkinCombination),
		string(SkinNormal), string(SkinSensitive), string(SkinUnknown),
	},
	FieldSkinGoals: {
		string(GoalHydration), string(GoalBrightening), string(GoalAcne),
		string(GoalAntiAging), string(GoalGlow), string(GoalTexture), string(GoalEvenTone),
	},
	FieldSensitivityLevel: {
		string(NotSensitive), string(SlightlySensitive), string(VerySensitive),
	},
	FieldRoutineFrequency: {
		string(FrequencyTwiceDaily), string(FrequencyOnceDaily),
		string(FrequencyFewTimesAWeek), string(FrequencyRarely),
	},
	FieldExperienceLevel: {
		string(ExperienceBeginner), string(ExperienceIntermediate), string(ExperienceAdvanced),
	},
	FieldPrimaryConcern: {
		string(ConcernAcne), string(ConcernDryness), string(ConcernDullness), string(ConcernRedness),
		string(ConcernFineLines), string(ConcernUnevenTone), string(ConcernOther),
	},
	FieldClimate: {
		string(ClimateHumid), string(ClimateDry), string(ClimateTemperate), string(ClimateCold),
	},
	FieldDesiredRoutineTime: {
		string(TimeUnder5Min), string(Time5To10Min), string(Time10To15Min), string(TimeAsLongAsItTakes),
	},
	FieldFragrancePreference: {
		string(FragranceFree), string(FragranceScented), string(FragranceNoPreference),
	},
}

// Fields returns every addressable field in declaration order.
func Fields() []Field { return slices.Clone(fieldOrder) }

// KindOf returns the value shape of f, or KindUnknown.
func KindOf(f Field) Kind { return kinds[f] }

// Options returns the declared option set for a choice field. Text and
// toggle fields have none.
func Options(f Field) []string { return slices.Clone(options[f]) }
