package db

import (
	"database/sql"
	"fmt"

	"github.com/kagami-ch/kagami/common"
	"github.com/kagami-ch/kagami/util"
)

// ThreadExists checks, if a thread exists on the specific board. Independent
// of access rights.
func (s *Store) ThreadExists(id uint64, board string) (
	exists bool, err error,
) {
	err = s.db.
		QueryRow(
			`select exists (
				select
				from threads
				where id = $1 and board = $2
			)`,
			id, board,
		).
		Scan(&exists)
	if err != nil {
		msg := fmt.Sprintf("checking existence of thread %d on board %s",
			id, board)
		err = util.WrapError(msg, err)
	}
	return
}

// BoardCounter returns the progress counter of a board: the number of
// threads it currently contains
func (s *Store) BoardCounter(board string) (ctr uint64, err error) {
	err = s.sq.Select("count(*)").
		From("threads").
		Where("board = ?", board).
		QueryRow().
		Scan(&ctr)
	if err != nil {
		msg := fmt.Sprintf("retrieving board counter: %s", board)
		err = util.WrapError(msg, err)
	}
	return
}

// PostCounter returns the global post progress counter
func (s *Store) PostCounter() (ctr uint64, err error) {
	err = s.sq.Select("count(*)").
		From("posts").
		QueryRow().
		Scan(&ctr)
	if err != nil {
		err = util.WrapError("retrieving post counter", err)
	}
	return
}

// WriteThread writes a thread metadata row to the database. The OP post is
// to be inserted in a separate call.
func (s *Store) WriteThread(tx *sql.Tx, t common.Thread) (err error) {
	_, err = s.sq.Insert("threads").
		Columns(
			"sticky", "locked", "deleted", "id", "board",
			"replyTime", "bumpTime", "subject",
		).
		Values(
			t.Sticky, t.Locked, t.Deleted, t.ID, t.Board,
			t.ReplyTime, t.BumpTime, t.Subject,
		).
		RunWith(tx).
		Exec()
	return
}
