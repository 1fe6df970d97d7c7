package dummydb

import "github.com/foureyes/bando/core/notice"

// NoticeRepositories wires every store a notice service needs.
// Ratings and candidatures are dependents: they go away with their notice.
func NoticeRepositories(db *DB) notice.Repositories {
	return notice.Repositories{
		Notices:     NewNoticeRepository(db),
		Articles:    NewArticleRepository(db),
		Criteria:    NewCriterionRepository(db),
		Assignments: NewAssignmentRepository(db),
		Sheets:      NewApplicationSheetRepository(db),
		Comments:    NewCommentRepository(db),
		Dependents: []notice.DependentRepository{
			NewRatingRepository(db),
			NewCandidatureRepository(db),
		},
	}
}
