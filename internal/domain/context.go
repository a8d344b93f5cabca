package domain

// VoterContext carries what the identity collaborator knows about the
// submitter of a vote. PriorVotes is the voter's existing votes on the
// poll being evaluated, supplied by the caller.
type VoterContext struct {
	Authenticated bool
	VoterID       string
	DisplayName   string
	Admin         bool
	PriorVotes    []Vote
}

// ViewerContext describes who is asking to see results.
type ViewerContext struct {
	Authenticated bool
	ViewerID      string
	Admin         bool
	Owner         bool
	HasVoted      bool
}
