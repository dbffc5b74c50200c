package db

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/kagami-ch/kagami/common"
	"github.com/kagami-ch/kagami/util"
	"github.com/lib/pq"
)

const (
	postSelectsSQL = `p.editing, p.moderated, p.deleted, p.imgDeleted,
	p.id, p.time, p.body, p.name, p.trip, p.ip,
	p.spoiler, p.imageName,
	i.*`

	// The derived counters are subselects on the posts table, so they are
	// resolved by the same statement as the rest of the row. Both exclude
	// the OP.
	threadSelectsSQL = `t.sticky, t.locked, t.deleted, t.id, t.board,
	t.replyTime, t.bumpTime, t.subject,
	(
		select count(*)
		from posts
		where posts.op = t.id and posts.id != t.id
	),
	(
		select count(*)
		from posts
		where posts.op = t.id and posts.id != t.id
			and posts.SHA1 is not null
	), ` + postSelectsSQL

	getOPSQL = `
	select ` + threadSelectsSQL + `
	from threads as t
	inner join posts as p on t.id = p.id
	left outer join images as i on p.SHA1 = i.SHA1
	where t.id = $1`

	// Fetches the trailing $2 replies in creation order. A null limit
	// fetches all of them.
	getThreadPostsSQL = `
	with thread as (
		select ` + postSelectsSQL + `
		from posts as p
		left outer join images as i on p.SHA1 = i.SHA1
		where p.op = $1 and p.id != $1
		order by p.id desc
		limit $2
	)
	select * from thread
	order by id asc`
)

type imageScanner struct {
	FileType, ThumbType, Size sql.NullInt64
	MD5, SHA1                 sql.NullString
	Dims                      pq.Int64Array
}

// Returns an array of pointers to the struct fields for passing to
// rowScanner.Scan()
func (i *imageScanner) ScanArgs() []interface{} {
	return []interface{}{
		&i.FileType, &i.ThumbType, &i.Dims, &i.Size, &i.MD5, &i.SHA1,
	}
}

// Returns the scanned *common.Image or nil, if none
func (i *imageScanner) Val() *common.Image {
	if !i.SHA1.Valid {
		return nil
	}

	var dims [4]uint16
	for j := range dims {
		dims[j] = uint16(i.Dims[j])
	}

	return &common.Image{
		ImageCommon: common.ImageCommon{
			FileType:  uint8(i.FileType.Int64),
			ThumbType: uint8(i.ThumbType.Int64),
			Dims:      dims,
			Size:      int(i.Size.Int64),
			MD5:       i.MD5.String,
			SHA1:      i.SHA1.String,
		},
	}
}

type postScanner struct {
	common.Post
	spoiler   bool
	imageName string
}

func (p *postScanner) ScanArgs() []interface{} {
	return []interface{}{
		&p.Editing, &p.Moderated, &p.Deleted, &p.ImgDeleted,
		&p.ID, &p.Time, &p.Body, &p.Name, &p.Trip, &p.IP,
		&p.spoiler, &p.imageName,
	}
}

func (p postScanner) Val() common.Post {
	return p.Post
}

// Returns if image is spoiled and its assigned name, if any
func (p postScanner) Image() (bool, string) {
	return p.spoiler, p.imageName
}

func extractPost(ps postScanner, is imageScanner) (p common.Post) {
	p = ps.Val()
	p.Image = is.Val()
	if p.Image != nil {
		p.Image.Spoiler, p.Image.Name = ps.Image()
	}
	return
}

// Thread fetches a thread's metadata joined with its OP and derived counters
// together with its replies in creation order in one read-only transaction.
// A nonzero lastN bounds the replies to the trailing lastN-1, with the OP
// occupying the remaining slot of the window. A missing thread or OP returns
// nil halves without an error, converging with a clean miss.
func (s *Store) Thread(id uint64, lastN int) (
	join *common.ThreadJoin, replies []common.Post, err error,
) {
	err = s.InTransaction(true, func(tx *sql.Tx) (err error) {
		t, err := scanOP(tx.QueryRow(getOPSQL, id))
		switch err {
		case nil:
		case sql.ErrNoRows:
			return nil
		default:
			return
		}

		var limit *int
		if lastN != 0 {
			n := lastN - 1
			limit = &n
		}
		r, err := tx.Query(getThreadPostsSQL, id, limit)
		if err != nil {
			return
		}
		defer r.Close()

		var (
			post postScanner
			img  imageScanner
			args = append(post.ScanArgs(), img.ScanArgs()...)
		)
		out := make([]common.Post, 0, int(t.PostCtr))
		for r.Next() {
			err = r.Scan(args...)
			if err != nil {
				return
			}
			out = append(out, extractPost(post, img))
		}
		err = r.Err()
		if err != nil {
			return
		}

		join = &t
		replies = out
		return
	})
	if err != nil || join == nil {
		join = nil
		replies = nil
		return
	}

	open := make([]*common.Post, 0, 64)
	moderated := make([]*common.Post, 0, 64)
	filterInjectable(&open, &moderated, &join.OP)
	for i := range replies {
		filterInjectable(&open, &moderated, &replies[i])
	}
	err = s.injectOpenBodies(open)
	if err != nil {
		return
	}
	err = s.injectModeration(moderated)
	return
}

func scanOP(r rowScanner) (t common.ThreadJoin, err error) {
	var (
		post  postScanner
		img   imageScanner
		pArgs = post.ScanArgs()
		iArgs = img.ScanArgs()
		args  = make([]interface{}, 0, 10+len(pArgs)+len(iArgs))
	)
	args = append(args,
		&t.Sticky, &t.Locked, &t.Deleted, &t.ID, &t.Board,
		&t.ReplyTime, &t.BumpTime, &t.Subject, &t.PostCtr, &t.ImageCtr,
	)
	args = append(args, pArgs...)
	args = append(args, iArgs...)

	err = r.Scan(args...)
	if err != nil {
		return
	}

	t.OP = extractPost(post, img)
	return
}

// Post fetches a single post by ID together with its parenthood. Returns
// nil, if missing.
func (s *Store) Post(id uint64) (res *common.StandalonePost, err error) {
	var (
		post  postScanner
		img   imageScanner
		p     common.StandalonePost
		pArgs = post.ScanArgs()
		iArgs = img.ScanArgs()
		args  = make([]interface{}, 2, 2+len(pArgs)+len(iArgs))
	)
	args[0] = &p.OP
	args[1] = &p.Board
	args = append(args, pArgs...)
	args = append(args, iArgs...)

	err = s.sq.Select("p.op, t.board, "+postSelectsSQL).
		From("posts as p").
		Join("threads as t on t.id = p.op").
		LeftJoin("images as i on p.SHA1 = i.SHA1").
		Where("p.id = ?", id).
		QueryRow().
		Scan(args...)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil, nil
	default:
		err = util.WrapError(fmt.Sprintf("retrieving post %d", id), err)
		return
	}
	p.Post = extractPost(post, img)

	open := make([]*common.Post, 0, 1)
	moderated := make([]*common.Post, 0, 1)
	filterInjectable(&open, &moderated, &p.Post)
	err = s.injectOpenBodies(open)
	if err != nil {
		return
	}
	err = s.injectModeration(moderated)
	if err != nil {
		return
	}

	res = &p
	return
}

func (s *Store) getOPs() squirrel.SelectBuilder {
	return s.sq.Select(threadSelectsSQL).
		From("threads as t").
		Join("posts as p on t.id = p.id").
		LeftJoin("images as i on p.SHA1 = i.SHA1")
}

// ThreadsByBoard fetches all thread-OP joins of a board in catalog order:
// stickies first, then by bump time
func (s *Store) ThreadsByBoard(board string) ([]common.ThreadJoin, error) {
	r, err := s.getOPs().
		Where("t.board = ?", board).
		OrderBy("t.sticky desc", "t.bumpTime desc").
		Query()
	if err != nil {
		msg := fmt.Sprintf("retrieving threads of board %s", board)
		return nil, util.WrapError(msg, err)
	}
	return s.scanCatalog(r)
}

// AllThreads fetches thread-OP joins across all boards in bump order. The
// passed boards are excluded at the query level to bound query cost.
func (s *Store) AllThreads(exclude ...string) ([]common.ThreadJoin, error) {
	q := s.getOPs().OrderBy("t.bumpTime desc")
	if len(exclude) != 0 {
		q = q.Where(squirrel.NotEq{"t.board": exclude})
	}
	r, err := q.Query()
	if err != nil {
		return nil, util.WrapError("retrieving all threads", err)
	}
	return s.scanCatalog(r)
}

func (s *Store) scanCatalog(r tableScanner) (
	threads []common.ThreadJoin, err error,
) {
	defer r.Close()

	threads = make([]common.ThreadJoin, 0, 32)
	for r.Next() {
		var t common.ThreadJoin
		t, err = scanOP(r)
		if err != nil {
			return
		}
		threads = append(threads, t)
	}
	err = r.Err()
	if err != nil {
		return
	}

	open := make([]*common.Post, 0, 16)
	moderated := make([]*common.Post, 0, 16)
	for i := range threads {
		filterInjectable(&open, &moderated, &threads[i].OP)
	}
	err = s.injectOpenBodies(open)
	if err != nil {
		return
	}
	err = s.injectModeration(moderated)
	return
}

// Filter and append a post, if it has injectable open bodies and/or
// moderation entries
func filterInjectable(open, moderated *[]*common.Post, p *common.Post) {
	if p.Editing {
		*open = append(*open, p)
	}
	if p.Moderated {
		*moderated = append(*moderated, p)
	}
}

// Inject open post bodies from the embedded database into the posts
func (s *Store) injectOpenBodies(posts []*common.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.boltDB.Begin(false)
	if err != nil {
		return err
	}

	buc := bodyBucket(tx)
	for _, p := range posts {
		p.Body = string(buc.Get(formatPostID(p.ID)))
	}

	return tx.Rollback()
}

// Inject moderation log entries into affected post structs
func (s *Store) injectModeration(posts []*common.Post) (err error) {
	if len(posts) == 0 {
		return
	}

	byID := make(map[uint64]*common.Post, len(posts))
	set := make([]byte, 1, 512)
	set[0] = '('
	for i, p := range posts {
		byID[p.ID] = p
		if i != 0 {
			set = append(set, ',')
		}
		set = strconv.AppendUint(set, p.ID, 10)
	}
	set = append(set, ')')

	r, err := s.sq.Select("post_id", "type", "length", "by", "data").
		From("post_moderation").
		Where(fmt.Sprintf("post_id in %s", string(set))).
		OrderBy("id asc").
		Query()
	if err != nil {
		return
	}
	defer r.Close()

	var (
		e  common.ModerationEntry
		id uint64
	)
	for r.Next() {
		err = r.Scan(&id, &e.Type, &e.Length, &e.By, &e.Data)
		if err != nil {
			return
		}
		byID[id].Moderation = append(byID[id].Moderation, e)
	}

	return r.Err()
}
