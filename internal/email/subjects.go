package email

const (
	subjectQueryCreatedFmt       = "We received your query #%d"
	subjectQueryAssignedFmt      = "Query #%d has been assigned to you"
	subjectQueryStatusUpdatedFmt = "Update on query #%d"
	subjectQueryResolvedFmt      = "Your query #%d has been resolved"
	subjectQueryFollowUpFmt      = "Follow-up due on query #%d"
	subjectQueryOverdueFmt       = "Query #%d is overdue"
)
