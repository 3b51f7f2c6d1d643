package models

// Mattermost channel types
const (
	ChannelTypeDirect  = "D"
	ChannelTypeGroup   = "G"
	ChannelTypeOpen    = "O"
	ChannelTypePrivate = "P"
)

// User is a chat account
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Team is a chat team the bot belongs to
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Channel is a chat channel the bot can read
type Channel struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// FileInfo describes an uploaded file
type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
}

// PostMetadata carries server-side enrichments of a post
type PostMetadata struct {
	Files []FileInfo `json:"files,omitempty"`
}

// Post is an incoming chat message
type Post struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id"`
	UserID    string       `json:"user_id"`
	Message   string       `json:"message"`
	CreateAt  int64        `json:"create_at"`
	FileIDs   []string     `json:"file_ids,omitempty"`
	Metadata  PostMetadata `json:"metadata"`
}

// FileInfoFor returns the embedded metadata for fileID, if the server sent it
func (p Post) FileInfoFor(fileID string) (FileInfo, bool) {
	for _, f := range p.Metadata.Files {
		if f.ID == fileID {
			return f, true
		}
	}
	return FileInfo{}, false
}

// AttachmentField is one field of a rich message attachment
type AttachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// MessageAttachment is a rich card rendered under a post
type MessageAttachment struct {
	Fallback string            `json:"fallback,omitempty"`
	Color    string            `json:"color,omitempty"`
	Title    string            `json:"title,omitempty"`
	Text     string            `json:"text,omitempty"`
	Fields   []AttachmentField `json:"fields,omitempty"`
}

// OutgoingPost is a message the bot sends
type OutgoingPost struct {
	ChannelID   string              `json:"channel_id"`
	Message     string              `json:"message"`
	Attachments []MessageAttachment `json:"-"`
	FileIDs     []string            `json:"file_ids,omitempty"`
}
