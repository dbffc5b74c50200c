// Package common contains common shared types, variables and constants used
// throughout the project
package common

// Post is a generic post exposed publically through the JSON API. Either OP
// or reply.
type Post struct {
	Editing    bool              `json:"editing,omitempty"`
	Moderated  bool              `json:"-"`
	Deleted    bool              `json:"deleted,omitempty"`
	ImgDeleted bool              `json:"imgDeleted,omitempty"`
	ID         uint64            `json:"id"`
	Time       int64             `json:"time"`
	Body       string            `json:"body"`
	Name       string            `json:"name,omitempty"`
	Trip       string            `json:"trip,omitempty"`
	Mnemonic   string            `json:"mnemonic,omitempty"`
	Image      *Image            `json:"image,omitempty"`
	Moderation []ModerationEntry `json:"moderation,omitempty"`

	// Never serialized. Only the derived mnemonic may ever reach the client.
	IP string `json:"-"`
}

// StandalonePost is a post view that includes the "op" and "board" fields,
// which are not exposed though Post, but are required for retrieving a post
// with unknown parenthood.
type StandalonePost struct {
	Post
	OP    uint64 `json:"op"`
	Board string `json:"board"`
}

// Thread stores thread metadata. The post and image counters are derived
// from the posts table on read and exclude the OP.
type Thread struct {
	Sticky    bool   `json:"sticky,omitempty"`
	Locked    bool   `json:"locked,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
	PostCtr   uint32 `json:"postCtr"`
	ImageCtr  uint32 `json:"imageCtr"`
	ID        uint64 `json:"id"`
	ReplyTime int64  `json:"replyTime"`
	BumpTime  int64  `json:"bumpTime"`
	Subject   string `json:"subject"`
	Board     string `json:"board"`
}

// ThreadJoin is a thread metadata row joined with its OP post, as returned
// by storage queries
type ThreadJoin struct {
	Thread
	OP Post
}

// ThreadContainer is a transport/export wrapper that stores both the thread
// metadata, its opening post data and a page of its replies. The composite
// type itself is not stored in the database. Replies are keyed by stringified
// post ID. The thread and OP halves are separate fields, so their overlapping
// keys both survive serialization.
type ThreadContainer struct {
	Abbrev bool            `json:"abbrev,omitempty"`
	Thread Thread          `json:"thread"`
	OP     Post            `json:"op"`
	Posts  map[string]Post `json:"posts,omitempty"`
}

// Board is an aggregate view of a board or the /all/ metaboard: the board's
// progress counter and its threads in catalog order. Catalog entries carry
// only the thread metadata and OP.
type Board struct {
	Ctr     uint64            `json:"ctr"`
	Threads []ThreadContainer `json:"threads"`
}
