package db

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/kagami-ch/kagami/config"
	"github.com/kagami-ch/kagami/util"
	"github.com/lib/pq"
)

// BoardConfigs contains extra fields not exposed on database reads
type BoardConfigs struct {
	config.BoardConfigs
	Created time.Time
}

func (s *Store) getBoardConfigs() squirrel.SelectBuilder {
	return s.sq.Select("readOnly", "id", "title", "notice", "rules").
		From("boards")
}

// Load board configurations into the config package and update on each
// change notification
func (s *Store) loadBoardConfigs() (err error) {
	err = queryAll(s.getBoardConfigs(), func(r *sql.Rows) (err error) {
		c, err := scanBoardConfigs(r)
		if err != nil {
			return
		}
		config.SetBoardConfigs(c)
		return
	})
	if err != nil {
		return util.WrapError("loading board configurations", err)
	}
	return s.Listen("board_updated", s.updateBoardConfigs)
}

func scanBoardConfigs(r rowScanner) (c config.BoardConfigs, err error) {
	var rules pq.StringArray
	err = r.Scan(&c.ReadOnly, &c.ID, &c.Title, &c.Notice, &rules)
	c.Rules = []string(rules)
	return
}

// Reload a single board's configuration on update notification. A missing
// row means the board was deleted.
func (s *Store) updateBoardConfigs(board string) (err error) {
	r := s.getBoardConfigs().
		Where("id = ?", board).
		QueryRow()
	c, err := scanBoardConfigs(r)
	switch err {
	case nil:
		config.SetBoardConfigs(c)
		return nil
	case sql.ErrNoRows:
		config.RemoveBoardConfigs(board)
		return nil
	default:
		return
	}
}

// WriteBoard writes a board complete with configurations to the database
// and loads it into the config package
func (s *Store) WriteBoard(tx *sql.Tx, c BoardConfigs) (err error) {
	_, err = s.sq.Insert("boards").
		Columns("readOnly", "id", "title", "notice", "rules", "created").
		Values(
			c.ReadOnly, c.ID, c.Title, c.Notice,
			pq.StringArray(c.Rules), c.Created,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return
	}
	config.SetBoardConfigs(c.BoardConfigs)
	return
}
