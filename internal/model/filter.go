package model

// AgentFilter narrows ListAgents. Zero values mean "no constraint".
type AgentFilter struct {
	Owner  string
	Limit  int
	Offset int
}

// FeedbackFilter narrows ListFeedback. Subject empty means all subjects
// (used by the snapshot exporter); IncludeRevoked keeps revoked rows in
// the result, which scoring never sets.
type FeedbackFilter struct {
	Subject        string
	Author         string
	IncludeRevoked bool
	Limit          int
	Offset         int
}
