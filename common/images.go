package common

// Supported file formats of uploaded images
const (
	JPEG uint8 = iota
	PNG
	GIF
	WEBM
	PDF
	MP4
	WEBP
)

// Image contains a post's image and thumbnail data
type Image struct {
	Spoiler bool `json:"spoiler,omitempty"`
	ImageCommon
	Name string `json:"name,omitempty"`
}

// ImageCommon contains the deduplicated, content-addressed core of an image.
// All posts linking the same upload share one ImageCommon record.
type ImageCommon struct {
	FileType  uint8     `json:"fileType"`
	ThumbType uint8     `json:"thumbType"`
	Dims      [4]uint16 `json:"dims"`
	Size      int       `json:"size"`
	MD5       string    `json:"md5"`
	SHA1      string    `json:"sha1"`
}
