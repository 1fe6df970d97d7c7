package sqlxrepos

import (
	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/notice"
)

// NoticeRepositories wires every store a notice service needs.
// Ratings and candidatures are dependents: they go away with their notice.
func NoticeRepositories(exec core.DBExecutor) notice.Repositories {
	return notice.Repositories{
		Notices:     NewNoticeRepository(exec),
		Articles:    NewArticleRepository(exec),
		Criteria:    NewCriterionRepository(exec),
		Assignments: NewAssignmentRepository(exec),
		Sheets:      NewApplicationSheetRepository(exec),
		Comments:    NewCommentRepository(exec),
		Dependents: []notice.DependentRepository{
			NewRatingRepository(exec),
			NewCandidatureRepository(exec),
		},
	}
}
