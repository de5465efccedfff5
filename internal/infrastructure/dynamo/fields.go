package dynamo

// DynamoDB attribute and index names shared by the repos and Bootstrap.
const (
	fieldNotificationID = "notification_id"
	fieldFeed           = "feed"
	fieldIsRead         = "is_read"

	fieldRequestID  = "request_id"
	fieldStatus     = "status"
	fieldNote       = "note"
	fieldReviewedBy = "reviewed_by"
	fieldScore      = "score"
	fieldUpdatedAt  = "updated_at"

	// Every notification carries the same feed value so one GSI can list
	// them all ordered by id, which is time-sortable.
	adminFeed = "admin"

	indexFeed   = "feed-notification_id-index"
	indexStatus = "status-request_id-index"
)
