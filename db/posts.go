package db

import (
	"database/sql"

	"github.com/kagami-ch/kagami/common"
	"github.com/lib/pq"
)

// Post is for writing new posts to the database. It contains the IP field,
// which is never exposed publically through common.Post.
type Post struct {
	common.StandalonePost
	IP string
}

// WritePost writes a post row to the database. Any image row must be
// inserted beforehand with WriteImage.
func (s *Store) WritePost(tx *sql.Tx, p Post) (err error) {
	var (
		sha1      *string
		spoiler   bool
		imageName string
	)
	if p.Image != nil {
		sha1 = &p.Image.SHA1
		spoiler = p.Image.Spoiler
		imageName = p.Image.Name
	}

	_, err = s.sq.Insert("posts").
		Columns(
			"editing", "moderated", "deleted", "imgDeleted", "spoiler",
			"id", "op", "time", "body", "name", "trip", "ip",
			"imageName", "SHA1",
		).
		Values(
			p.Editing, p.Moderated, p.Deleted, p.ImgDeleted, spoiler,
			p.ID, p.OP, p.Time, p.Body, p.Name, p.Trip, p.IP,
			imageName, sha1,
		).
		RunWith(tx).
		Exec()
	return
}

// WriteImage writes a deduplicated image record to the database
func (s *Store) WriteImage(i common.ImageCommon) (err error) {
	dims := make(pq.Int64Array, 4)
	for j := range dims {
		dims[j] = int64(i.Dims[j])
	}

	_, err = s.sq.Insert("images").
		Columns("fileType", "thumbType", "dims", "size", "MD5", "SHA1").
		Values(i.FileType, i.ThumbType, dims, i.Size, i.MD5, i.SHA1).
		Exec()
	return
}

// LogModeration appends an entry to a post's moderation log and flags the
// post as moderated
func (s *Store) LogModeration(tx *sql.Tx, postID uint64,
	e common.ModerationEntry,
) (err error) {
	_, err = s.sq.Insert("post_moderation").
		Columns("post_id", "type", "length", "by", "data").
		Values(postID, e.Type, e.Length, e.By, e.Data).
		RunWith(tx).
		Exec()
	if err != nil {
		return
	}

	_, err = s.sq.Update("posts").
		Set("moderated", true).
		Where("id = ?", postID).
		RunWith(tx).
		Exec()
	return
}
