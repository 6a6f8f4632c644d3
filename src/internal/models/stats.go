package models

// DashboardStats is the per-user summary shown on the dashboard.
type DashboardStats struct {
	TotalSessions     int64   `json:"totalSessions"`
	UpcomingSessions  int64   `json:"upcomingSessions"`
	CompletedSessions int64   `json:"completedSessions"`
	PendingFeedback   int64   `json:"pendingFeedback"`
	TrainingPoints    int64   `json:"trainingPoints"`
	AverageRating     float64 `json:"averageRating"`
}

// GetAllUsersRequest represents request for getting all users
type GetAllUsersRequest struct {
	Page   int    `json:"page" form:"page"`
	Limit  int    `json:"limit" form:"limit"`
	Role   string `json:"role" form:"role"`
	Status string `json:"status" form:"status"`
	Search string `json:"search" form:"search"`
}

// GetAllUsersResponse represents response for getting all users
type GetAllUsersResponse struct {
	Users      []*User `json:"users"`
	TotalCount int64   `json:"totalCount"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}
