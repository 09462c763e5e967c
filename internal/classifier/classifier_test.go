package classifier

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"rulebook-classifier/internal/rulebook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createStreetRulebook(t testing.TB) *rulebook.Rulebook {
	t.Helper()
	b := rulebook.NewBuilder("SCCA")
	b.Class("Street").
		Subclass("AS", "A Street").
		Subclass("BS", "B Street").
		Question("fenders", "Are your fenders unmodified?", "").
		Question("tires", "Are your tires 200 treadwear and DOT legal?", "")
	rb, err := b.Build()
	require.NoError(t, err)
	return rb
}

func createMultiClassRulebook(t testing.TB) *rulebook.Rulebook {
	t.Helper()
	b := rulebook.NewBuilder("SCCA")
	b.Class("Street").
		Subclass("AS", "A Street").
		Subclass("BS", "B Street").
		Question("fenders", "Are your fenders unmodified?", "").
		Question("tires", "Are your tires 200 treadwear and DOT legal?", "")
	b.Class("Street Touring").
		Subclass("STR", "Street Touring Roadster").
		Question("tires", "Are your tires 200 treadwear or higher?", "").
		Question("engine", "Is the engine the one the car was sold with?", "Swaps are Street Modified.")
	b.Class("Open").
		Subclass("O", "Open")
	rb, err := b.Build()
	require.NoError(t, err)
	return rb
}

var streetSubclasses = []rulebook.Subclass{
	{Code: "AS", DisplayName: "A Street"},
	{Code: "BS", DisplayName: "B Street"},
}

// ==========================
// Street Scenarios
// ==========================

func TestClassify_StreetScenarios(t *testing.T) {
	tests := []struct {
		name             string
		answers          Answers
		expectedVerdict  Verdict
		expectedWarnings []Warning
	}{
		{
			name:    "all yes is eligible for every subclass",
			answers: Answers{"Street": {"fenders": true, "tires": true}},
			expectedVerdict: Verdict{
				Class:      "Street",
				Status:     StatusEligible,
				Subclasses: streetSubclasses,
			},
		},
		{
			name:    "one no bumps",
			answers: Answers{"Street": {"fenders": false, "tires": true}},
			expectedVerdict: Verdict{
				Class:   "Street",
				Status:  StatusBumped,
				Reasons: []string{"fenders"},
			},
		},
		{
			name:    "every no is reported",
			answers: Answers{"Street": {"fenders": false, "tires": false}},
			expectedVerdict: Verdict{
				Class:   "Street",
				Status:  StatusBumped,
				Reasons: []string{"fenders", "tires"},
			},
		},
		{
			name:    "unanswered question leaves class incomplete",
			answers: Answers{"Street": {"fenders": true}},
			expectedVerdict: Verdict{
				Class:      "Street",
				Status:     StatusIncomplete,
				Unanswered: []string{"tires"},
			},
		},
		{
			name:    "empty answers leave every question unanswered",
			answers: Answers{},
			expectedVerdict: Verdict{
				Class:      "Street",
				Status:     StatusIncomplete,
				Unanswered: []string{"fenders", "tires"},
			},
		},
		{
			name:    "unknown question is ignored and warned about",
			answers: Answers{"Street": {"fenders": false, "helmet": true}},
			expectedVerdict: Verdict{
				Class:   "Street",
				Status:  StatusBumped,
				Reasons: []string{"fenders"},
			},
			expectedWarnings: []Warning{
				{Kind: rulebook.KindUnknownQuestion, Class: "Street", Question: "helmet"},
			},
		},
	}

	rb := createStreetRulebook(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Classify(rb, tt.answers)

			assert.Equal(t, "SCCA", report.Organization)
			require.Len(t, report.Verdicts, 1)
			assert.Equal(t, tt.expectedVerdict, report.Verdicts[0])
			assert.Equal(t, tt.expectedWarnings, report.Warnings)
		})
	}
}

func TestClassify_NilAnswers(t *testing.T) {
	report := Classify(createStreetRulebook(t), nil)

	require.Len(t, report.Verdicts, 1)
	assert.Equal(t, StatusIncomplete, report.Verdicts[0].Status)
	assert.Empty(t, report.Warnings)
}

func TestClassify_BumpBeatsUnanswered(t *testing.T) {
	rb := createMultiClassRulebook(t)

	report := Classify(rb, Answers{"Street Touring": {"engine": false}})

	v, ok := report.Verdict("Street Touring")
	require.True(t, ok)
	assert.Equal(t, StatusBumped, v.Status)
	assert.Equal(t, []string{"engine"}, v.Reasons)
	assert.Empty(t, v.Unanswered)
}

func TestClassify_ClassWithoutQuestionsIsAlwaysEligible(t *testing.T) {
	rb := createMultiClassRulebook(t)

	for _, answers := range []Answers{
		nil,
		{},
		{"Open": {"anything": false}},
		{"Street": {"fenders": false}},
	} {
		report := Classify(rb, answers)
		v, ok := report.Verdict("Open")
		require.True(t, ok)
		assert.Equal(t, StatusEligible, v.Status)
		assert.Equal(t, []rulebook.Subclass{{Code: "O", DisplayName: "Open"}}, v.Subclasses)
	}
}

func TestClassify_ClassesAreIndependent(t *testing.T) {
	rb := createMultiClassRulebook(t)

	answers := Answers{
		"Street":         {"fenders": true, "tires": true},
		"Street Touring": {"tires": false},
	}
	report := Classify(rb, answers)

	require.Len(t, report.Verdicts, 3)
	assert.Equal(t, []string{"Street", "Street Touring", "Open"}, classNames(report))
	assert.Equal(t, StatusEligible, report.Verdicts[0].Status)
	assert.Equal(t, StatusBumped, report.Verdicts[1].Status)
	assert.Equal(t, StatusEligible, report.Verdicts[2].Status)
	assert.Equal(t, []string{"Street", "Open"}, report.EligibleClasses())
	assert.Equal(t, map[Status]int{StatusEligible: 2, StatusBumped: 1, StatusIncomplete: 0}, report.Counts())
}

func TestClassify_UnknownClassWarning(t *testing.T) {
	rb := createStreetRulebook(t)

	report := Classify(rb, Answers{
		"Prepared": {"roll_bar": true},
		"Street":   {"helmet": true, "fenders": true, "tires": true, "annual": false},
	})

	assert.Equal(t, StatusEligible, report.Verdicts[0].Status)
	assert.Equal(t, []Warning{
		{Kind: rulebook.KindUnknownClass, Class: "Prepared"},
		{Kind: rulebook.KindUnknownQuestion, Class: "Street", Question: "annual"},
		{Kind: rulebook.KindUnknownQuestion, Class: "Street", Question: "helmet"},
	}, report.Warnings)
	assert.Equal(t, "unknown class Prepared", report.Warnings[0].String())
	assert.Equal(t, "unknown question Street.annual", report.Warnings[1].String())
}

func TestClassify_DoesNotMutateAnswers(t *testing.T) {
	rb := createMultiClassRulebook(t)
	answers := Answers{"Street": {"fenders": false}, "Nope": {"x": true}}
	before := answers.Clone()

	_ = Classify(rb, answers)

	assert.Equal(t, before, answers)
}

// ==========================
// Property Tests
// ==========================

func randomAnswers(rng *rand.Rand, rb *rulebook.Rulebook) Answers {
	answers := Answers{}
	for _, class := range rb.Classes() {
		for _, q := range class.Questions() {
			switch rng.Intn(3) {
			case 0:
				answers.Set(class.Name(), q.ID, true)
			case 1:
				answers.Set(class.Name(), q.ID, false)
			}
		}
	}
	if rng.Intn(2) == 0 {
		answers.Set("Ghost", fmt.Sprintf("q%d", rng.Intn(5)), rng.Intn(2) == 0)
	}
	return answers
}

func TestClassify_Properties(t *testing.T) {
	rb := createMultiClassRulebook(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		answers := randomAnswers(rng, rb)
		report := Classify(rb, answers)

		// Totality and ordering.
		require.Equal(t, rb.ClassNames(), classNames(report))

		// Determinism.
		require.Equal(t, report, Classify(rb, answers))

		for _, v := range report.Verdicts {
			class, _ := rb.Class(v.Class)
			anyNo := false
			for _, q := range class.Questions() {
				if a, ok := answers.Lookup(class.Name(), q.ID); ok && !a {
					anyNo = true
				}
			}

			// Bump priority.
			if anyNo {
				require.Equal(t, StatusBumped, v.Status)
			}

			// Reason soundness.
			for _, id := range v.Reasons {
				a, ok := answers.Lookup(class.Name(), id)
				require.True(t, ok)
				require.False(t, a)
			}
			for _, id := range v.Unanswered {
				require.True(t, class.HasQuestion(id))
				_, ok := answers.Lookup(class.Name(), id)
				require.False(t, ok)
			}
		}
	}
}

func TestClassify_ExtraAnswersAreIrrelevant(t *testing.T) {
	rb := createMultiClassRulebook(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		answers := randomAnswers(rng, rb)
		base := Classify(rb, answers)

		extra := answers.Clone()
		extra.Set("Street", "helmet", rng.Intn(2) == 0)
		extra.Set("Street Touring", "numbers", rng.Intn(2) == 0)
		extra.Set("Karting", "shifter", false)

		withExtra := Classify(rb, extra)
		assert.Equal(t, base.Verdicts, withExtra.Verdicts)
	}
}

func TestClassify_ConcurrentUse(t *testing.T) {
	rb := createMultiClassRulebook(t)
	answers := Answers{"Street": {"fenders": true, "tires": true}}
	expected := Classify(rb, answers)

	var wg sync.WaitGroup
	results := make([]Report, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Classify(rb, answers)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, expected, r)
	}
}

// ==========================
// Pending Question Tests
// ==========================

func TestPending(t *testing.T) {
	rb := createMultiClassRulebook(t)

	report := Classify(rb, Answers{
		"Street":         {"fenders": true},
		"Street Touring": {"engine": false},
	})
	pending := Pending(rb, report)

	require.Len(t, pending, 1)
	assert.Equal(t, "Street", pending[0].Class)
	assert.Equal(t, "tires", pending[0].Question.ID)
	assert.Equal(t, "Are your tires 200 treadwear and DOT legal?", pending[0].Question.Prompt)
}

func TestPending_FollowsQuestionOrder(t *testing.T) {
	rb := createMultiClassRulebook(t)
	pending := Pending(rb, Classify(rb, nil))

	var ids []string
	for _, p := range pending {
		ids = append(ids, p.Class+"."+p.Question.ID)
	}
	assert.Equal(t, []string{
		"Street.fenders",
		"Street.tires",
		"Street Touring.tires",
		"Street Touring.engine",
	}, ids)
}

func classNames(r Report) []string {
	var names []string
	for _, v := range r.Verdicts {
		names = append(names, v.Class)
	}
	return names
}
