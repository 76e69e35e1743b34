package bot

import "context"

// MediaRef is the download ticket for an inbound image: everything the
// transport needs to fetch and decrypt the bytes later.
type MediaRef struct {
	URL           string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
	Mimetype      string
	Caption       string
}

// Message is an inbound chat event, already flattened out of the transport's
// wire types.
type Message struct {
	Chat    string // chat JID (group or private)
	Sender  string // raw sender identifier; participant form in groups
	IsGroup bool
	FromMe  bool
	Text    string
	Image   *MediaRef
}

// GroupUpdate reports a membership change in a group.
type GroupUpdate struct {
	GroupID string
	Left    []string // raw identifiers of departed participants
}

// Transport is everything the dispatcher may ask of the messaging client.
type Transport interface {
	SendText(ctx context.Context, to, text string) error
	SendImage(ctx context.Context, to string, data []byte, caption string) error
	DownloadImage(ctx context.Context, ref *MediaRef) ([]byte, error)
	CreateGroup(ctx context.Context, name string, memberPhones []string) (string, error)
	GroupMembers(ctx context.Context, groupID string) ([]string, error)
	SetGroupLocked(ctx context.Context, groupID string, locked bool) error
	SetGroupAnnounce(ctx context.Context, groupID string, announce bool) error
	LeaveGroup(ctx context.Context, groupID string) error
	BotPhone() string
}
