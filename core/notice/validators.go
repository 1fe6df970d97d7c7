package notice

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
)

var (
	articleInitialTag   = "articleinitial"
	articleInitialText  = "{0} may only contain letters and spaces"
	articleInitialRegex = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// childSet holds the desired children of an update, validated together.
type childSet struct {
	Articles           []Article               `json:"articles" validate:"max=20,dive"`
	EvaluationCriteria []EvaluationCriterion   `json:"evaluation_criteria" validate:"max=6,dive"`
	Assignments        []assignment.Assignment `json:"assignments" validate:"max=15,dive"`
}

// InitValidators registers the notice validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(articleInitialTag, func(fl validator.FieldLevel) bool {
		return articleInitialRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, articleInitialTag, articleInitialText)

	validate.RegisterStructValidation(uniqueChildrenValidation, NewNotice{}, childSet{})
}

// uniqueChildrenValidation checks that no two children of the same kind share a natural key.
func uniqueChildrenValidation(sl validator.StructLevel) {
	var (
		articles    []Article
		criteria    []EvaluationCriterion
		assignments []assignment.Assignment
	)
	switch v := sl.Current().Interface().(type) {
	case NewNotice:
		articles, criteria, assignments = v.Articles, v.EvaluationCriteria, v.Assignments
	case childSet:
		articles, criteria, assignments = v.Articles, v.EvaluationCriteria, v.Assignments
	default:
		return
	}

	core.ReportUniqueKeys(sl, articles, "articles", keysOf(articles, ArticleKey))
	core.ReportUniqueKeys(sl, criteria, "evaluation_criteria", keysOf(criteria, CriterionKey))
	core.ReportUniqueKeys(sl, assignments, "assignments", keysOf(assignments, assignment.Key))
}

func keysOf[T any](items []T, keyOf func(T) string) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, keyOf(it))
	}
	return keys
}

func parseState(raw string, def State) (State, error) {
	raw = core.CleanString(raw)
	if raw == "" {
		return def, nil
	}
	st, ok := ParseState(raw)
	if !ok {
		return "", core.NewValidationError(nil, core.FieldError{Field: "state", Error: "unknown notice state " + `"` + raw + `"`})
	}
	return st, nil
}

// Build validates nn and returns the Notice it describes.
// Assignments always start Unassigned, whatever the input says.
func (nn NewNotice) Build(validate *validator.Validate) (Notice, error) {
	nn.Protocol = core.CleanString(nn.Protocol)
	nn.Fields.clean()
	nn.Assignments = resetLifecycle(nn.Assignments)

	if err := validate.Struct(nn); err != nil {
		return Notice{}, core.NewValidationError(err)
	}
	state, err := parseState(nn.State, StateDraft)
	if err != nil {
		return Notice{}, err
	}

	n := Notice{
		Protocol:           nn.Protocol,
		State:              state,
		Fields:             nn.Fields,
		Articles:           make([]Article, 0, len(nn.Articles)),
		EvaluationCriteria: make([]EvaluationCriterion, 0, len(nn.EvaluationCriteria)),
		Assignments:        make([]assignment.Assignment, 0, len(nn.Assignments)),
	}
	for _, a := range nn.Articles {
		a.ID = 0
		a.NoticeProtocol = n.Protocol
		n.Articles = append(n.Articles, a)
	}
	for _, c := range nn.EvaluationCriteria {
		c.NoticeProtocol = n.Protocol
		n.EvaluationCriteria = append(n.EvaluationCriteria, c)
	}
	for _, a := range nn.Assignments {
		a.ID = 0
		a.NoticeProtocol = n.Protocol
		n.Assignments = append(n.Assignments, a)
	}
	sheet := *nn.ApplicationSheet
	sheet.NoticeProtocol = n.Protocol
	n.ApplicationSheet = &sheet
	return n, nil
}

// Build validates un and returns curr with the update applied. Children that are not
// Present in un are left empty: the caller must not reconcile them.
func (un UpdateNotice) Build(validate *validator.Validate, curr Notice) (Notice, error) {
	un.Fields.clean()
	un.Assignments.Items = resetLifecycle(un.Assignments.Items)

	if err := validate.Struct(un); err != nil {
		return Notice{}, core.NewValidationError(err)
	}
	children := childSet{
		Articles:           un.Articles.Items,
		EvaluationCriteria: un.EvaluationCriteria.Items,
		Assignments:        un.Assignments.Items,
	}
	if err := validate.Struct(children); err != nil {
		return Notice{}, core.NewValidationError(err)
	}
	state, err := parseState(un.State, curr.State)
	if err != nil {
		return Notice{}, err
	}

	next := Notice{
		Protocol:  curr.Protocol,
		State:     state,
		Fields:    un.Fields,
		CreatedAt: curr.CreatedAt,
	}
	for _, a := range un.Articles.Items {
		a.NoticeProtocol = next.Protocol
		next.Articles = append(next.Articles, a)
	}
	for _, c := range un.EvaluationCriteria.Items {
		c.NoticeProtocol = next.Protocol
		next.EvaluationCriteria = append(next.EvaluationCriteria, c)
	}
	for _, a := range un.Assignments.Items {
		a.NoticeProtocol = next.Protocol
		next.Assignments = append(next.Assignments, a)
	}
	if un.ApplicationSheet != nil {
		sheet := *un.ApplicationSheet
		sheet.NoticeProtocol = next.Protocol
		next.ApplicationSheet = &sheet
	}
	return next, nil
}

// resetLifecycle drops the lifecycle fields of assignments coming from a notice payload:
// they only change through the assignment lifecycle operations.
func resetLifecycle(items []assignment.Assignment) []assignment.Assignment {
	out := make([]assignment.Assignment, 0, len(items))
	for _, a := range items {
		a.ID = 0
		a.State = assignment.StateUnassigned
		a.Student = ""
		a.Note = ""
		out = append(out, a)
	}
	return out
}
